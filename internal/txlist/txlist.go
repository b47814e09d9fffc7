// Package txlist реализует фильтрацию, поиск, сортировку и агрегаты по списку
// транзакций пользователя. Исходный список никогда не изменяется.
package txlist

import (
	"net/url"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/investdash/internal/model"
)

// All означает отсутствие фильтра по типу или статусу.
const All = "all"

// SortField задаёт поле сортировки.
type SortField string

const (
	SortByDate   SortField = "date"
	SortByAmount SortField = "amount"
)

// Order задаёт направление сортировки.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Query описывает параметры отбора списка транзакций.
type Query struct {
	Type   string    `json:"type"`
	Status string    `json:"status"`
	Search string    `json:"search"`
	SortBy SortField `json:"sort"`
	Order  Order     `json:"order"`
}

// DefaultQuery возвращает параметры по умолчанию: все транзакции, новые сверху.
func DefaultQuery() Query {
	return Query{Type: All, Status: All, SortBy: SortByDate, Order: Desc}
}

// ParseQuery читает параметры type, status, q, sort и order из строки запроса.
// Неизвестные значения заменяются значениями по умолчанию.
func ParseQuery(v url.Values) Query {
	q := DefaultQuery()

	switch t := strings.ToLower(v.Get("type")); t {
	case string(model.TransactionDeposit), string(model.TransactionWithdrawal):
		q.Type = t
	}

	switch s := strings.ToLower(v.Get("status")); s {
	case string(model.TransactionPending), string(model.TransactionApproved), string(model.TransactionRejected):
		q.Status = s
	}

	q.Search = strings.TrimSpace(v.Get("q"))

	if SortField(strings.ToLower(v.Get("sort"))) == SortByAmount {
		q.SortBy = SortByAmount
	}
	if Order(strings.ToLower(v.Get("order"))) == Asc {
		q.Order = Asc
	}

	return q
}

// Apply возвращает новый список: фильтр по типу, затем по статусу, затем поиск,
// затем сортировка. При равных ключах по возрастанию сохраняется исходный
// порядок; сортировка по убыванию даёт точное обращение сортировки по возрастанию.
func Apply(list []model.Transaction, q Query) []model.Transaction {
	res := make([]model.Transaction, 0, len(list))
	needle := strings.ToLower(q.Search)

	for _, tx := range list {
		if q.Type != "" && q.Type != All && string(tx.Type) != q.Type {
			continue
		}
		if q.Status != "" && q.Status != All && string(tx.Status) != q.Status {
			continue
		}
		if needle != "" && !matches(tx, needle) {
			continue
		}
		res = append(res, tx)
	}

	slices.SortStableFunc(res, compareFunc(q.SortBy))
	if q.Order != Asc {
		slices.Reverse(res)
	}

	return res
}

func matches(tx model.Transaction, needle string) bool {
	for _, field := range []string{tx.ID, tx.Reference, tx.Method, tx.TxHash} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func compareFunc(field SortField) func(a, b model.Transaction) int {
	if field == SortByAmount {
		return func(a, b model.Transaction) int {
			return a.Amount.Cmp(b.Amount)
		}
	}
	return func(a, b model.Transaction) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// Stats содержит агрегаты, вычисляемые по уже полученному списку.
type Stats struct {
	ApprovedDeposits    decimal.Decimal
	ApprovedWithdrawals decimal.Decimal
	PendingCount        int
	Count               int
}

// ComputeStats суммирует одобренные пополнения и выводы и считает ожидающие транзакции.
func ComputeStats(list []model.Transaction) Stats {
	st := Stats{
		ApprovedDeposits:    decimal.Zero,
		ApprovedWithdrawals: decimal.Zero,
		Count:               len(list),
	}

	for _, tx := range list {
		switch {
		case tx.Status == model.TransactionPending:
			st.PendingCount++
		case tx.Status == model.TransactionApproved && tx.Type == model.TransactionDeposit:
			st.ApprovedDeposits = st.ApprovedDeposits.Add(tx.Amount)
		case tx.Status == model.TransactionApproved && tx.Type == model.TransactionWithdrawal:
			st.ApprovedWithdrawals = st.ApprovedWithdrawals.Add(tx.Amount)
		}
	}

	return st
}
