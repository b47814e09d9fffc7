package finance

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/investdash/internal/model"
)

// WalletSummary содержит разобранный снимок кошелька. Поля Invalid перечисляют
// строки бэкенда, которые не удалось разобрать как десятичное число.
type WalletSummary struct {
	Balance          decimal.Decimal
	TotalDeposits    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	Invalid          []string
}

// ParseWallet разбирает строковые суммы кошелька. Пустая строка считается нулём,
// неразбираемая строка тоже становится нулём, а имя поля попадает в Invalid.
func ParseWallet(w model.Wallet) WalletSummary {
	var ws WalletSummary
	ws.Balance = parseAmount(w.Balance, "balance", &ws.Invalid)
	ws.TotalDeposits = parseAmount(w.TotalDeposits, "total_deposits", &ws.Invalid)
	ws.TotalWithdrawals = parseAmount(w.TotalWithdrawals, "total_withdrawals", &ws.Invalid)
	return ws
}

func parseAmount(s, field string, invalid *[]string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		*invalid = append(*invalid, field)
		return decimal.Zero
	}
	return v
}

// FormatUSD форматирует сумму в виде $1,234.56, отрицательные как -$1,234.56.
func FormatUSD(v decimal.Decimal) string {
	neg := v.IsNegative()
	s := v.Abs().StringFixed(2)

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	if neg && !v.Round(2).IsZero() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	b.WriteString(frac)

	return b.String()
}
