package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/model"
	"github.com/mmeshcher/investdash/internal/txlist"
)

type stubAPI struct {
	wallet    *model.Wallet
	walletErr error

	investments    []model.Investment
	investmentsErr error

	transactions    []model.Transaction
	transactionsErr error

	kyc    *model.Verification
	kycErr error

	referrals    *model.ReferralSummary
	referralsErr error

	cards    []model.VirtualCard
	cardsErr error
}

func (s *stubAPI) Wallet(ctx context.Context, auth backend.Auth) (*model.Wallet, error) {
	return s.wallet, s.walletErr
}

func (s *stubAPI) Investments(ctx context.Context, auth backend.Auth) ([]model.Investment, error) {
	return s.investments, s.investmentsErr
}

func (s *stubAPI) Transactions(ctx context.Context, auth backend.Auth) ([]model.Transaction, error) {
	return s.transactions, s.transactionsErr
}

func (s *stubAPI) KYC(ctx context.Context, auth backend.Auth) (*model.Verification, error) {
	return s.kyc, s.kycErr
}

func (s *stubAPI) Referrals(ctx context.Context, auth backend.Auth) (*model.ReferralSummary, error) {
	return s.referrals, s.referralsErr
}

func (s *stubAPI) VirtualCards(ctx context.Context, auth backend.Auth) ([]model.VirtualCard, error) {
	return s.cards, s.cardsErr
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newDashboard(api API) *Dashboard {
	d := NewDashboard(api, zap.NewNop())
	d.now = func() time.Time { return fixedNow }
	return d
}

func principal(u *model.User) *gate.Principal {
	return &gate.Principal{User: u, Auth: backend.Auth{Token: "tok"}}
}

func tx(id string, typ model.TransactionType, status model.TransactionStatus, amount string, at time.Time) model.Transaction {
	return model.Transaction{
		ID:        id,
		Type:      typ,
		Status:    status,
		Amount:    decimal.RequireFromString(amount),
		CreatedAt: at,
	}
}

func TestOverview_EmptyAccount(t *testing.T) {
	api := &stubAPI{
		wallet: &model.Wallet{Balance: "0.00"},
		kyc:    &model.Verification{Status: model.VerificationApproved},
	}
	d := newDashboard(api)

	view, err := d.Overview(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)

	for _, c := range view.Cards {
		assert.Equal(t, "$0.00", c.Value, c.Key)
	}
	assert.Equal(t, EmptyInvestmentsPrompt, view.EmptyState)
	assert.Empty(t, view.Errors)
	assert.Empty(t, view.Investments)
	assert.Empty(t, view.RecentTransactions)
	assert.Equal(t, gate.BannerHidden, view.Banner)
}

func TestOverview_SectionFailuresAreIndependent(t *testing.T) {
	api := &stubAPI{
		wallet:         &model.Wallet{Balance: "1500.5", TotalDeposits: "2000", TotalWithdrawals: "499.5"},
		investmentsErr: errors.New("boom"),
		transactions: []model.Transaction{
			tx("1", model.TransactionDeposit, model.TransactionApproved, "2000", fixedNow.Add(-time.Hour)),
		},
		referralsErr: &backend.StatusError{Code: 500},
	}
	d := newDashboard(api)

	view, err := d.Overview(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)

	assert.Contains(t, view.Errors, SectionInvestments)
	assert.Contains(t, view.Errors, SectionReferrals)
	assert.NotContains(t, view.Errors, SectionWallet)
	assert.NotContains(t, view.Errors, SectionTransactions)
	assert.Empty(t, view.EmptyState, "no prompt when investments failed to load")

	assert.Equal(t, "$1,500.50", view.Cards[0].Value)
	assert.Len(t, view.RecentTransactions, 1)
	assert.Equal(t, "$2,000.00", view.TransactionStats.ApprovedDeposits)
}

func TestOverview_RecentTransactionsNewestFirst(t *testing.T) {
	var txs []model.Transaction
	for i := 0; i < 8; i++ {
		txs = append(txs, tx(string(rune('a'+i)), model.TransactionDeposit, model.TransactionPending, "10", fixedNow.Add(time.Duration(i)*time.Hour)))
	}
	d := newDashboard(&stubAPI{transactions: txs})

	view, err := d.Overview(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)

	require.Len(t, view.RecentTransactions, RecentLimit)
	assert.Equal(t, "h", view.RecentTransactions[0].ID)
	assert.Equal(t, 8, view.TransactionStats.PendingCount)
}

func TestOverview_InvestmentSummaries(t *testing.T) {
	start := fixedNow.AddDate(0, 0, -10)
	inv := model.Investment{
		ID:        7,
		Amount:    decimal.RequireFromString("1000"),
		Plan:      model.Plan{Name: "Gold", DailyROIPercent: decimal.RequireFromString("1.5"), DurationDays: 30},
		Status:    model.InvestmentActive,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 30),
	}
	d := newDashboard(&stubAPI{wallet: &model.Wallet{Balance: "0"}, investments: []model.Investment{inv}})

	view, err := d.Overview(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)

	require.Len(t, view.Investments, 1)
	assert.Equal(t, 20, view.Investments[0].DaysLeft)
	assert.Equal(t, "$15.00", view.Investments[0].DailyReturn)
	assert.Empty(t, view.EmptyState)
	assert.Equal(t, "$1,000.00", view.Cards[3].Value)
	assert.Equal(t, "$15.00", view.Cards[5].Value)
}

func TestOverview_CancelledContextDropsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	view, err := newDashboard(&stubAPI{}).Overview(ctx, principal(&model.User{ID: 1}))
	assert.Nil(t, view)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNavigation(t *testing.T) {
	assert.Len(t, Navigation(&model.User{}), len(userNavigation))
	assert.Len(t, Navigation(&model.User{IsStaff: true}), len(userNavigation)+len(adminNavigation))
	assert.Len(t, Navigation(&model.User{IsSuperuser: true}), len(userNavigation)+len(adminNavigation))
	assert.Len(t, Navigation(nil), len(userNavigation))
}

func TestShellBanner(t *testing.T) {
	required := true
	completed := false
	user := &model.User{ID: 1, KYCRequired: &required, KYCCompleted: &completed}

	tests := []struct {
		name string
		api  *stubAPI
		want gate.Banner
	}{
		{
			name: "pending with required override",
			api:  &stubAPI{kyc: &model.Verification{Status: model.VerificationPending}},
			want: gate.BannerShown,
		},
		{
			name: "approved",
			api:  &stubAPI{kyc: &model.Verification{Status: model.VerificationApproved}},
			want: gate.BannerHidden,
		},
		{
			name: "fetch failure fails open",
			api:  &stubAPI{kycErr: backend.ErrUnauthorized},
			want: gate.BannerHidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := newDashboard(tt.api).Wallet(context.Background(), principal(user))
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Banner)
		})
	}
}

func TestTransactionsPage(t *testing.T) {
	api := &stubAPI{transactions: []model.Transaction{
		tx("1", model.TransactionDeposit, model.TransactionApproved, "100", fixedNow.Add(-3*time.Hour)),
		tx("2", model.TransactionWithdrawal, model.TransactionApproved, "40", fixedNow.Add(-2*time.Hour)),
		tx("3", model.TransactionDeposit, model.TransactionPending, "70", fixedNow.Add(-time.Hour)),
	}}
	q := txlist.DefaultQuery()
	q.Type = string(model.TransactionDeposit)

	page, err := newDashboard(api).Transactions(context.Background(), principal(&model.User{ID: 1}), q)
	require.NoError(t, err)

	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "3", page.Transactions[0].ID)
	assert.Equal(t, 3, page.Stats.Count)
	assert.Equal(t, "$40.00", page.Stats.ApprovedWithdrawals)
	assert.Empty(t, page.Error)
}

func TestTransactionsPage_Error(t *testing.T) {
	api := &stubAPI{transactionsErr: errors.New("down")}

	page, err := newDashboard(api).Transactions(context.Background(), principal(&model.User{ID: 1}), txlist.DefaultQuery())
	require.NoError(t, err)
	assert.NotEmpty(t, page.Error)
	assert.Empty(t, page.Transactions)
	assert.Equal(t, "$0.00", page.Stats.ApprovedDeposits)
}

func TestWalletPage_InvalidAmounts(t *testing.T) {
	api := &stubAPI{wallet: &model.Wallet{Balance: "abc", TotalDeposits: "10"}}

	page, err := newDashboard(api).Wallet(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)
	assert.Equal(t, []string{"balance"}, page.InvalidFields)
	assert.Equal(t, "$0.00", page.Cards[0].Value)
	assert.Equal(t, "$10.00", page.Cards[1].Value)
}

func TestKYCPage(t *testing.T) {
	api := &stubAPI{kyc: &model.Verification{ID: 3, Status: model.VerificationRejected, RejectionReason: "blurry"}}

	page, err := newDashboard(api).KYC(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)
	require.NotNil(t, page.Record)
	assert.Equal(t, "blurry", page.Record.RejectionReason)
	assert.Equal(t, gate.BannerHidden, page.Banner)
}

func TestCardsPage_MasksNumbers(t *testing.T) {
	api := &stubAPI{cards: []model.VirtualCard{
		{ID: 1, CardNumber: "4111 1111 1111 1111", Balance: decimal.RequireFromString("25.5")},
		{ID: 2, CardNumber: "4111 1111 1111 1112"},
	}}

	page, err := newDashboard(api).Cards(context.Background(), principal(&model.User{ID: 1}))
	require.NoError(t, err)
	require.Len(t, page.Cards, 2)

	assert.Equal(t, "**** **** **** 1111", page.Cards[0].MaskedPAN)
	assert.True(t, page.Cards[0].ValidNumber)
	assert.Equal(t, "$25.50", page.Cards[0].Balance)
	assert.False(t, page.Cards[1].ValidNumber)
}
