package service

import (
	"github.com/mmeshcher/investdash/internal/finance"
	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/model"
	"github.com/mmeshcher/investdash/internal/txlist"
)

// NavItem описывает пункт навигации личного кабинета.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

var (
	userNavigation = []NavItem{
		{Label: "Overview", Path: "/dashboard"},
		{Label: "Investments", Path: "/dashboard/investments"},
		{Label: "Transactions", Path: "/dashboard/transactions"},
		{Label: "Wallet", Path: "/dashboard/wallet"},
		{Label: "Verification", Path: "/dashboard/kyc"},
		{Label: "Virtual cards", Path: "/dashboard/cards"},
	}
	adminNavigation = []NavItem{
		{Label: "KYC review", Path: "/api/admin/kyc/"},
		{Label: "Transaction review", Path: "/api/admin/transactions/"},
	}
)

// Navigation возвращает пункты меню. Административные пункты видны только сотрудникам.
func Navigation(u *model.User) []NavItem {
	items := make([]NavItem, 0, len(userNavigation)+len(adminNavigation))
	items = append(items, userNavigation...)
	if u.IsAdmin() {
		items = append(items, adminNavigation...)
	}
	return items
}

// Shell содержит общую оболочку страниц: пользователя, навигацию и баннер.
type Shell struct {
	User         *model.User `json:"user"`
	Navigation   []NavItem   `json:"navigation"`
	Banner       gate.Banner `json:"banner"`
	Verification gate.Result `json:"verification"`
}

// Card описывает карточку сводки с уже отформатированным значением.
type Card struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// StatsView содержит агрегаты по транзакциям в виде для отображения.
type StatsView struct {
	ApprovedDeposits    string `json:"approved_deposits"`
	ApprovedWithdrawals string `json:"approved_withdrawals"`
	PendingCount        int    `json:"pending_count"`
	Count               int    `json:"count"`
}

func statsView(st txlist.Stats) StatsView {
	return StatsView{
		ApprovedDeposits:    finance.FormatUSD(st.ApprovedDeposits),
		ApprovedWithdrawals: finance.FormatUSD(st.ApprovedWithdrawals),
		PendingCount:        st.PendingCount,
		Count:               st.Count,
	}
}

// Overview описывает главную страницу личного кабинета.
type Overview struct {
	Shell
	Cards              []Card                      `json:"cards"`
	Investments        []finance.InvestmentSummary `json:"investments"`
	RecentTransactions []model.Transaction         `json:"recent_transactions"`
	TransactionStats   StatsView                   `json:"transaction_stats"`
	Referrals          *model.ReferralSummary      `json:"referrals,omitempty"`
	EmptyState         string                      `json:"empty_state,omitempty"`
	// Errors содержит сообщения об ошибках по разделам страницы.
	Errors map[string]string `json:"errors,omitempty"`
}

// InvestmentsPage описывает страницу инвестиций.
type InvestmentsPage struct {
	Shell
	Cards       []Card                      `json:"cards"`
	Investments []finance.InvestmentSummary `json:"investments"`
	EmptyState  string                      `json:"empty_state,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

// TransactionsPage описывает страницу транзакций с применёнными фильтрами.
type TransactionsPage struct {
	Shell
	Query        txlist.Query        `json:"query"`
	Transactions []model.Transaction `json:"transactions"`
	Stats        StatsView           `json:"stats"`
	Error        string              `json:"error,omitempty"`
}

// WalletPage описывает страницу кошелька.
type WalletPage struct {
	Shell
	Cards         []Card   `json:"cards"`
	InvalidFields []string `json:"invalid_fields,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// KYCPage описывает страницу верификации.
type KYCPage struct {
	Shell
	Record *model.Verification `json:"record,omitempty"`
	Error  string              `json:"error,omitempty"`
}

// CardView описывает виртуальную карту с замаскированным номером.
type CardView struct {
	ID          int64  `json:"id"`
	MaskedPAN   string `json:"masked_number"`
	ValidNumber bool   `json:"valid_number"`
	Holder      string `json:"holder_name"`
	ExpiryDate  string `json:"expiry_date"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
}

// CardsPage описывает страницу виртуальных карт.
type CardsPage struct {
	Shell
	Cards []CardView `json:"cards"`
	Error string     `json:"error,omitempty"`
}
