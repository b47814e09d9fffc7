// Package finance вычисляет производные показатели инвестиций и кошелька для
// отображения в личном кабинете. Все функции чистые: результат зависит только
// от переданной записи и момента времени now.
package finance

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/investdash/internal/model"
)

const dayMillis = 86400000

var hundred = decimal.NewFromInt(100)

// ReturnSource указывает, откуда взята ожидаемая итоговая сумма инвестиции.
type ReturnSource string

const (
	ReturnFromServer   ReturnSource = "server"
	ReturnFromComputed ReturnSource = "computed"
)

// DaysLeft возвращает число оставшихся дней до end, округлённое вверх, не меньше нуля.
func DaysLeft(end, now time.Time) int {
	if end.IsZero() {
		return 0
	}
	diff := end.Sub(now).Milliseconds()
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(float64(diff) / dayMillis))
}

// DaysElapsed возвращает число прошедших дней в пределах [0, DurationDays].
// Без даты окончания срок не начат: прогресс и накопленный доход нулевые.
func DaysElapsed(inv model.Investment, now time.Time) int {
	total := inv.Plan.DurationDays
	if total <= 0 || inv.EndDate.IsZero() {
		return 0
	}

	elapsed := total - DaysLeft(inv.EndDate, now)
	if elapsed < 0 {
		return 0
	}
	if elapsed > total {
		return total
	}
	return elapsed
}

// ProgressPct возвращает прогресс инвестиции в процентах от 0 до 100.
func ProgressPct(inv model.Investment, now time.Time) float64 {
	total := inv.Plan.DurationDays
	if total <= 0 {
		return 0
	}
	return math.Min(100, 100*float64(DaysElapsed(inv, now))/float64(total))
}

// DailyReturn возвращает ежедневный доход: amount * dailyRoiPercent / 100.
func DailyReturn(inv model.Investment) decimal.Decimal {
	return inv.Amount.Mul(inv.Plan.DailyROIPercent).Div(hundred)
}

// WeeklyReturn возвращает доход за 7 дней.
func WeeklyReturn(inv model.Investment) decimal.Decimal {
	return DailyReturn(inv).Mul(decimal.NewFromInt(7))
}

// MonthlyReturn возвращает доход за 30 дней.
func MonthlyReturn(inv model.Investment) decimal.Decimal {
	return DailyReturn(inv).Mul(decimal.NewFromInt(30))
}

// TotalEarned возвращает доход, накопленный к моменту now.
func TotalEarned(inv model.Investment, now time.Time) decimal.Decimal {
	return DailyReturn(inv).Mul(decimal.NewFromInt(int64(DaysElapsed(inv, now))))
}

// ExpectedTotal возвращает ожидаемую итоговую сумму. Значение бэкенда имеет
// приоритет; локальная формула amount + dailyReturn * totalDays используется
// только при его отсутствии, и источник всегда возвращается вместе с суммой.
func ExpectedTotal(inv model.Investment) (decimal.Decimal, ReturnSource) {
	if inv.ServerTotalReturn != nil {
		return *inv.ServerTotalReturn, ReturnFromServer
	}
	days := decimal.NewFromInt(int64(inv.Plan.DurationDays))
	return inv.Amount.Add(DailyReturn(inv).Mul(days)), ReturnFromComputed
}

// IsCompleted сообщает, завершён ли срок инвестиции к моменту now.
// Без даты окончания инвестиция завершённой не считается.
func IsCompleted(inv model.Investment, now time.Time) bool {
	if inv.EndDate.IsZero() {
		return false
	}
	return DaysLeft(inv.EndDate, now) == 0 && !now.Before(inv.EndDate)
}

// InvestmentSummary содержит готовое к отображению представление инвестиции.
type InvestmentSummary struct {
	ID             int64                  `json:"id"`
	PlanName       string                 `json:"plan_name"`
	Status         model.InvestmentStatus `json:"status"`
	Amount         string                 `json:"amount"`
	DailyROI       string                 `json:"daily_roi_percent"`
	TotalDays      int                    `json:"total_days"`
	DaysElapsed    int                    `json:"days_elapsed"`
	DaysLeft       int                    `json:"days_left"`
	ProgressPct    float64                `json:"progress_pct"`
	DailyReturn    string                 `json:"daily_return"`
	WeeklyReturn   string                 `json:"weekly_return"`
	MonthlyReturn  string                 `json:"monthly_return"`
	TotalEarned    string                 `json:"total_earned"`
	ExpectedTotal  string                 `json:"expected_total"`
	ExpectedSource ReturnSource           `json:"expected_total_source"`
	IsCompleted    bool                   `json:"is_completed"`
	StartDate      time.Time              `json:"start_date"`
	EndDate        time.Time              `json:"end_date"`
}

// Summarize вычисляет все производные поля инвестиции на момент now.
func Summarize(inv model.Investment, now time.Time) InvestmentSummary {
	expected, source := ExpectedTotal(inv)

	return InvestmentSummary{
		ID:             inv.ID,
		PlanName:       inv.Plan.Name,
		Status:         inv.Status,
		Amount:         FormatUSD(inv.Amount),
		DailyROI:       inv.Plan.DailyROIPercent.String(),
		TotalDays:      inv.Plan.DurationDays,
		DaysElapsed:    DaysElapsed(inv, now),
		DaysLeft:       DaysLeft(inv.EndDate, now),
		ProgressPct:    math.Round(ProgressPct(inv, now)*100) / 100,
		DailyReturn:    FormatUSD(DailyReturn(inv)),
		WeeklyReturn:   FormatUSD(WeeklyReturn(inv)),
		MonthlyReturn:  FormatUSD(MonthlyReturn(inv)),
		TotalEarned:    FormatUSD(TotalEarned(inv, now)),
		ExpectedTotal:  FormatUSD(expected),
		ExpectedSource: source,
		IsCompleted:    IsCompleted(inv, now),
		StartDate:      inv.StartDate,
		EndDate:        inv.EndDate,
	}
}

// Portfolio содержит агрегаты по всем инвестициям пользователя.
type Portfolio struct {
	TotalInvested decimal.Decimal
	TotalEarned   decimal.Decimal
	DailyIncome   decimal.Decimal
	ActiveCount   int
	Count         int
}

// SummarizePortfolio агрегирует список инвестиций. Ежедневный доход учитывает только
// активные инвестиции, срок которых ещё не истёк.
func SummarizePortfolio(invs []model.Investment, now time.Time) Portfolio {
	p := Portfolio{
		TotalInvested: decimal.Zero,
		TotalEarned:   decimal.Zero,
		DailyIncome:   decimal.Zero,
		Count:         len(invs),
	}

	for _, inv := range invs {
		p.TotalInvested = p.TotalInvested.Add(inv.Amount)
		p.TotalEarned = p.TotalEarned.Add(TotalEarned(inv, now))

		if inv.Status == model.InvestmentActive && !IsCompleted(inv, now) {
			p.ActiveCount++
			p.DailyIncome = p.DailyIncome.Add(DailyReturn(inv))
		}
	}

	return p
}
