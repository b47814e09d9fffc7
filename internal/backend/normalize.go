package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/investdash/internal/model"
)

// Бэкенд отдаёт одни и те же сущности в разных формах: суммы строками или
// числами, план вложенным объектом или плоскими полями, списки массивом или
// страницей {"results": [...]}. Здесь варианты разрешаются один раз.

type flexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (d *flexDecimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	if s == "" {
		return nil
	}

	v, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("decode decimal %q: %w", s, err)
	}

	d.Value = v
	d.Valid = true
	return nil
}

type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(b)), `"`))
	if s == "" || s == "null" {
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*n = flexInt(v)
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("decode integer %q: %w", s, err)
	}
	*n = flexInt(math.Trunc(f))
	return nil
}

type flexString string

func (fs *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*fs = flexString(s)
		return nil
	}

	*fs = flexString(b)
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}

	for _, layout := range timeLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v.UTC()
			return nil
		}
	}

	return fmt.Errorf("decode time %q: unsupported format", s)
}

// listItems извлекает элементы списка из массива или страничного конверта.
func listItems(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var page struct {
			Results json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("decode page: %w", err)
		}
		if page.Results == nil {
			return []json.RawMessage{trimmed}, nil
		}
		trimmed = bytes.TrimSpace(page.Results)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return items, nil
}

type rawWallet struct {
	Balance          flexString `json:"balance"`
	TotalDeposits    flexString `json:"total_deposits"`
	TotalDeposited   flexString `json:"total_deposited"`
	TotalWithdrawals flexString `json:"total_withdrawals"`
	TotalWithdrawn   flexString `json:"total_withdrawn"`
}

func decodeWallet(raw json.RawMessage) (*model.Wallet, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &model.Wallet{}, nil
	}

	var rw rawWallet
	if err := json.Unmarshal(items[0], &rw); err != nil {
		return nil, fmt.Errorf("decode wallet: %w", err)
	}

	return &model.Wallet{
		Balance:          string(rw.Balance),
		TotalDeposits:    string(firstNonEmpty(rw.TotalDeposits, rw.TotalDeposited)),
		TotalWithdrawals: string(firstNonEmpty(rw.TotalWithdrawals, rw.TotalWithdrawn)),
	}, nil
}

type rawPlan struct {
	ID              flexInt     `json:"id"`
	Name            string      `json:"name"`
	DailyROI        flexDecimal `json:"daily_roi"`
	DailyROIPercent flexDecimal `json:"daily_roi_percent"`
	ROIRate         flexDecimal `json:"roi_rate"`
	DurationDays    flexInt     `json:"duration_days"`
	Duration        flexInt     `json:"duration"`
}

type rawInvestment struct {
	ID             flexInt         `json:"id"`
	Amount         flexDecimal     `json:"amount"`
	Status         string          `json:"status"`
	StartDate      flexTime        `json:"start_date"`
	EndDate        flexTime        `json:"end_date"`
	CreatedAt      flexTime        `json:"created_at"`
	TotalReturn    flexDecimal     `json:"total_return"`
	ExpectedReturn flexDecimal     `json:"expected_return"`
	Plan           json.RawMessage `json:"plan"`

	// Плоский вариант формы: поля плана лежат прямо в инвестиции.
	PlanID          flexInt     `json:"plan_id"`
	PlanName        string      `json:"plan_name"`
	DailyROI        flexDecimal `json:"daily_roi"`
	DailyROIPercent flexDecimal `json:"daily_roi_percent"`
	ROIRate         flexDecimal `json:"roi_rate"`
	DurationDays    flexInt     `json:"duration_days"`
	Duration        flexInt     `json:"duration"`
}

func decodeInvestments(raw json.RawMessage) ([]model.Investment, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}

	res := make([]model.Investment, 0, len(items))
	for _, item := range items {
		var ri rawInvestment
		if err := json.Unmarshal(item, &ri); err != nil {
			return nil, fmt.Errorf("decode investment: %w", err)
		}

		inv, err := ri.normalize()
		if err != nil {
			return nil, err
		}
		res = append(res, inv)
	}

	return res, nil
}

func (ri rawInvestment) normalize() (model.Investment, error) {
	flat := rawPlan{
		ID:              ri.PlanID,
		Name:            ri.PlanName,
		DailyROI:        ri.DailyROI,
		DailyROIPercent: ri.DailyROIPercent,
		ROIRate:         ri.ROIRate,
		DurationDays:    ri.DurationDays,
		Duration:        ri.Duration,
	}

	nested := bytes.TrimSpace(ri.Plan)
	if len(nested) > 0 && nested[0] == '{' {
		var rp rawPlan
		if err := json.Unmarshal(nested, &rp); err != nil {
			return model.Investment{}, fmt.Errorf("decode investment plan: %w", err)
		}
		flat = mergePlan(rp, flat)
	} else if len(nested) > 0 && string(nested) != "null" {
		var id flexInt
		if err := json.Unmarshal(nested, &id); err == nil && flat.ID == 0 {
			flat.ID = id
		}
	}

	plan := model.Plan{
		ID:              int64(flat.ID),
		Name:            flat.Name,
		DailyROIPercent: firstDecimal(flat.DailyROIPercent, flat.DailyROI, flat.ROIRate),
		DurationDays:    int(flat.DurationDays),
	}
	if plan.DurationDays == 0 {
		plan.DurationDays = int(flat.Duration)
	}

	start := ri.StartDate.Time
	if start.IsZero() {
		start = ri.CreatedAt.Time
	}
	end := ri.EndDate.Time
	if end.IsZero() && !start.IsZero() && plan.DurationDays > 0 {
		end = start.AddDate(0, 0, plan.DurationDays)
	}

	inv := model.Investment{
		ID:        int64(ri.ID),
		Amount:    ri.Amount.Value,
		Plan:      plan,
		Status:    model.InvestmentStatus(strings.ToLower(strings.TrimSpace(ri.Status))),
		StartDate: start,
		EndDate:   end,
	}

	switch {
	case ri.TotalReturn.Valid:
		v := ri.TotalReturn.Value
		inv.ServerTotalReturn = &v
	case ri.ExpectedReturn.Valid:
		v := ri.ExpectedReturn.Value
		inv.ServerTotalReturn = &v
	}

	return inv, nil
}

// mergePlan дополняет вложенный план полями плоской формы, если их нет во вложенном.
func mergePlan(nested, flat rawPlan) rawPlan {
	if nested.ID == 0 {
		nested.ID = flat.ID
	}
	if nested.Name == "" {
		nested.Name = flat.Name
	}
	if !nested.DailyROIPercent.Valid && !nested.DailyROI.Valid && !nested.ROIRate.Valid {
		nested.DailyROIPercent = flat.DailyROIPercent
		nested.DailyROI = flat.DailyROI
		nested.ROIRate = flat.ROIRate
	}
	if nested.DurationDays == 0 && nested.Duration == 0 {
		nested.DurationDays = flat.DurationDays
		nested.Duration = flat.Duration
	}
	return nested
}

type rawTransaction struct {
	ID              flexString  `json:"id"`
	Type            string      `json:"type"`
	TransactionType string      `json:"transaction_type"`
	Amount          flexDecimal `json:"amount"`
	Status          string      `json:"status"`
	Reference       string      `json:"reference"`
	Method          string      `json:"method"`
	PaymentMethod   string      `json:"payment_method"`
	TxHash          string      `json:"tx_hash"`
	TransactionHash string      `json:"transaction_hash"`
	Hash            string      `json:"hash"`
	CreatedAt       flexTime    `json:"created_at"`
	UpdatedAt       flexTime    `json:"updated_at"`
}

func decodeTransactions(raw json.RawMessage) ([]model.Transaction, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}

	res := make([]model.Transaction, 0, len(items))
	for _, item := range items {
		var rt rawTransaction
		if err := json.Unmarshal(item, &rt); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}

		typ := rt.Type
		if typ == "" {
			typ = rt.TransactionType
		}

		res = append(res, model.Transaction{
			ID:        string(rt.ID),
			Type:      model.TransactionType(strings.ToLower(strings.TrimSpace(typ))),
			Amount:    rt.Amount.Value,
			Status:    model.TransactionStatus(strings.ToLower(strings.TrimSpace(rt.Status))),
			Reference: rt.Reference,
			Method:    firstString(rt.Method, rt.PaymentMethod),
			TxHash:    firstString(rt.TxHash, rt.TransactionHash, rt.Hash),
			CreatedAt: rt.CreatedAt.Time,
			UpdatedAt: rt.UpdatedAt.Time,
		})
	}

	return res, nil
}

type rawVerification struct {
	ID              flexInt  `json:"id"`
	Status          string   `json:"status"`
	RejectionReason string   `json:"rejection_reason"`
	SubmittedAt     flexTime `json:"submitted_at"`
	ReviewedAt      flexTime `json:"reviewed_at"`
}

func decodeVerification(raw json.RawMessage) (*model.Verification, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	var rv rawVerification
	if err := json.Unmarshal(items[0], &rv); err != nil {
		return nil, fmt.Errorf("decode kyc: %w", err)
	}

	v := &model.Verification{
		ID:              int64(rv.ID),
		Status:          model.VerificationStatus(strings.ToLower(strings.TrimSpace(rv.Status))),
		RejectionReason: rv.RejectionReason,
	}
	if !rv.SubmittedAt.IsZero() {
		t := rv.SubmittedAt.Time
		v.SubmittedAt = &t
	}
	if !rv.ReviewedAt.IsZero() {
		t := rv.ReviewedAt.Time
		v.ReviewedAt = &t
	}

	return v, nil
}

type rawReferrals struct {
	Code          string      `json:"code"`
	ReferralCode  string      `json:"referral_code"`
	TotalReferred flexInt     `json:"total_referred"`
	Count         flexInt     `json:"count"`
	TotalEarned   flexDecimal `json:"total_earned"`
	Earnings      flexDecimal `json:"earnings"`
}

func decodeReferrals(raw json.RawMessage) (*model.ReferralSummary, error) {
	var rr rawReferrals
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &rr); err != nil {
			return nil, fmt.Errorf("decode referrals: %w", err)
		}
	}

	referred := rr.TotalReferred
	if referred == 0 {
		referred = rr.Count
	}

	return &model.ReferralSummary{
		Code:          firstString(rr.Code, rr.ReferralCode),
		TotalReferred: int(referred),
		TotalEarned:   firstDecimal(rr.TotalEarned, rr.Earnings),
	}, nil
}

type rawCard struct {
	ID         flexInt     `json:"id"`
	CardNumber string      `json:"card_number"`
	Holder     string      `json:"holder_name"`
	CardHolder string      `json:"card_holder"`
	ExpiryDate string      `json:"expiry_date"`
	Balance    flexDecimal `json:"balance"`
	Status     string      `json:"status"`
}

func decodeCards(raw json.RawMessage) ([]model.VirtualCard, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}

	res := make([]model.VirtualCard, 0, len(items))
	for _, item := range items {
		var rc rawCard
		if err := json.Unmarshal(item, &rc); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
		res = append(res, model.VirtualCard{
			ID:         int64(rc.ID),
			CardNumber: rc.CardNumber,
			Holder:     firstString(rc.Holder, rc.CardHolder),
			ExpiryDate: rc.ExpiryDate,
			Balance:    rc.Balance.Value,
			Status:     strings.ToLower(rc.Status),
		})
	}

	return res, nil
}

func firstDecimal(values ...flexDecimal) decimal.Decimal {
	for _, v := range values {
		if v.Valid {
			return v.Value
		}
	}
	return decimal.Zero
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonEmpty(values ...flexString) flexString {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
