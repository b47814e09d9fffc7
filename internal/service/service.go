// Package service собирает страницы личного кабинета из данных бэкенда.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/finance"
	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/model"
	"github.com/mmeshcher/investdash/internal/txlist"
	"github.com/mmeshcher/investdash/internal/validation"
)

// RecentLimit задаёт число последних транзакций на главной странице.
const RecentLimit = 5

// EmptyInvestmentsPrompt показывается, если у пользователя нет инвестиций.
const EmptyInvestmentsPrompt = "You have no investments yet. Choose a plan to start earning."

const (
	SectionWallet       = "wallet"
	SectionInvestments  = "investments"
	SectionTransactions = "transactions"
	SectionReferrals    = "referrals"
	SectionCards        = "cards"
	SectionKYC          = "kyc"
)

// API описывает запросы к бэкенду, из которых собираются страницы.
type API interface {
	Wallet(ctx context.Context, auth backend.Auth) (*model.Wallet, error)
	Investments(ctx context.Context, auth backend.Auth) ([]model.Investment, error)
	Transactions(ctx context.Context, auth backend.Auth) ([]model.Transaction, error)
	KYC(ctx context.Context, auth backend.Auth) (*model.Verification, error)
	Referrals(ctx context.Context, auth backend.Auth) (*model.ReferralSummary, error)
	VirtualCards(ctx context.Context, auth backend.Auth) ([]model.VirtualCard, error)
}

// Dashboard собирает модели представления страниц личного кабинета.
type Dashboard struct {
	api    API
	gate   *gate.VerificationGate
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboard создаёт сборщик страниц. Баннер верификации вычисляется через тот же API.
func NewDashboard(api API, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		api:    api,
		gate:   gate.NewVerificationGate(api, logger),
		logger: logger,
		now:    time.Now,
	}
}

func sectionError(section string) string {
	return "Failed to load " + section + "."
}

func (d *Dashboard) logSection(section string, err error) {
	d.logger.Warn("dashboard section failed", zap.String("section", section), zap.Error(err))
}

func (d *Dashboard) shell(ctx context.Context, p *gate.Principal) Shell {
	res := d.gate.Evaluate(ctx, p.Auth, gate.OverrideFromUser(p.User))
	return Shell{
		User:         p.User,
		Navigation:   Navigation(p.User),
		Banner:       res.Banner(),
		Verification: res,
	}
}

// Overview собирает главную страницу. Все разделы запрашиваются параллельно,
// ошибка одного раздела не мешает остальным. Если контекст запроса отменён,
// результаты отбрасываются.
func (d *Dashboard) Overview(ctx context.Context, p *gate.Principal) (*Overview, error) {
	var (
		shell     Shell
		wallet    *model.Wallet
		invs      []model.Investment
		txs       []model.Transaction
		referrals *model.ReferralSummary

		walletErr, invsErr, txsErr, refErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		wallet, walletErr = d.api.Wallet(ctx, p.Auth)
		return nil
	})
	g.Go(func() error {
		invs, invsErr = d.api.Investments(ctx, p.Auth)
		return nil
	})
	g.Go(func() error {
		txs, txsErr = d.api.Transactions(ctx, p.Auth)
		return nil
	})
	g.Go(func() error {
		referrals, refErr = d.api.Referrals(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := d.now()
	view := &Overview{
		Shell:              shell,
		Investments:        []finance.InvestmentSummary{},
		RecentTransactions: []model.Transaction{},
		Errors:             map[string]string{},
	}

	var ws finance.WalletSummary
	if walletErr != nil {
		d.logSection(SectionWallet, walletErr)
		view.Errors[SectionWallet] = sectionError(SectionWallet)
	} else if wallet != nil {
		ws = finance.ParseWallet(*wallet)
		logInvalid(d.logger, ws.Invalid)
	}

	if invsErr != nil {
		d.logSection(SectionInvestments, invsErr)
		view.Errors[SectionInvestments] = sectionError(SectionInvestments)
	} else {
		for _, inv := range invs {
			view.Investments = append(view.Investments, finance.Summarize(inv, now))
		}
		if len(invs) == 0 {
			view.EmptyState = EmptyInvestmentsPrompt
		}
	}
	portfolio := finance.SummarizePortfolio(invs, now)

	view.Cards = []Card{
		{Key: "balance", Title: "Balance", Value: finance.FormatUSD(ws.Balance)},
		{Key: "total_deposits", Title: "Total deposits", Value: finance.FormatUSD(ws.TotalDeposits)},
		{Key: "total_withdrawals", Title: "Total withdrawals", Value: finance.FormatUSD(ws.TotalWithdrawals)},
		{Key: "total_invested", Title: "Total invested", Value: finance.FormatUSD(portfolio.TotalInvested)},
		{Key: "total_earned", Title: "Total earned", Value: finance.FormatUSD(portfolio.TotalEarned)},
		{Key: "daily_income", Title: "Daily income", Value: finance.FormatUSD(portfolio.DailyIncome)},
	}

	if txsErr != nil {
		d.logSection(SectionTransactions, txsErr)
		view.Errors[SectionTransactions] = sectionError(SectionTransactions)
	} else {
		recent := txlist.Apply(txs, txlist.DefaultQuery())
		if len(recent) > RecentLimit {
			recent = recent[:RecentLimit]
		}
		view.RecentTransactions = recent
	}
	view.TransactionStats = statsView(txlist.ComputeStats(txs))

	if refErr != nil {
		d.logSection(SectionReferrals, refErr)
		view.Errors[SectionReferrals] = sectionError(SectionReferrals)
	} else {
		view.Referrals = referrals
	}

	return view, nil
}

// Investments собирает страницу инвестиций.
func (d *Dashboard) Investments(ctx context.Context, p *gate.Principal) (*InvestmentsPage, error) {
	var (
		shell Shell
		invs  []model.Investment
		err   error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		invs, err = d.api.Investments(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	page := &InvestmentsPage{Shell: shell, Investments: []finance.InvestmentSummary{}}
	if err != nil {
		d.logSection(SectionInvestments, err)
		page.Error = sectionError(SectionInvestments)
		return page, nil
	}

	now := d.now()
	for _, inv := range invs {
		page.Investments = append(page.Investments, finance.Summarize(inv, now))
	}
	if len(invs) == 0 {
		page.EmptyState = EmptyInvestmentsPrompt
	}

	portfolio := finance.SummarizePortfolio(invs, now)
	page.Cards = []Card{
		{Key: "total_invested", Title: "Total invested", Value: finance.FormatUSD(portfolio.TotalInvested)},
		{Key: "total_earned", Title: "Total earned", Value: finance.FormatUSD(portfolio.TotalEarned)},
		{Key: "daily_income", Title: "Daily income", Value: finance.FormatUSD(portfolio.DailyIncome)},
	}

	return page, nil
}

// Transactions собирает страницу транзакций с фильтрами и сортировкой из q.
// Агрегаты считаются по полному списку, а не по отфильтрованному.
func (d *Dashboard) Transactions(ctx context.Context, p *gate.Principal, q txlist.Query) (*TransactionsPage, error) {
	var (
		shell Shell
		txs   []model.Transaction
		err   error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		txs, err = d.api.Transactions(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	page := &TransactionsPage{Shell: shell, Query: q, Transactions: []model.Transaction{}}
	if err != nil {
		d.logSection(SectionTransactions, err)
		page.Error = sectionError(SectionTransactions)
		page.Stats = statsView(txlist.ComputeStats(nil))
		return page, nil
	}

	page.Transactions = txlist.Apply(txs, q)
	page.Stats = statsView(txlist.ComputeStats(txs))
	return page, nil
}

// Wallet собирает страницу кошелька.
func (d *Dashboard) Wallet(ctx context.Context, p *gate.Principal) (*WalletPage, error) {
	var (
		shell  Shell
		wallet *model.Wallet
		err    error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		wallet, err = d.api.Wallet(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	page := &WalletPage{Shell: shell}
	var ws finance.WalletSummary
	if err != nil {
		d.logSection(SectionWallet, err)
		page.Error = sectionError(SectionWallet)
	} else if wallet != nil {
		ws = finance.ParseWallet(*wallet)
		logInvalid(d.logger, ws.Invalid)
		page.InvalidFields = ws.Invalid
	}

	page.Cards = []Card{
		{Key: "balance", Title: "Balance", Value: finance.FormatUSD(ws.Balance)},
		{Key: "total_deposits", Title: "Total deposits", Value: finance.FormatUSD(ws.TotalDeposits)},
		{Key: "total_withdrawals", Title: "Total withdrawals", Value: finance.FormatUSD(ws.TotalWithdrawals)},
	}
	return page, nil
}

// KYC собирает страницу верификации. Запись запрашивается отдельно от баннера,
// чтобы ошибка одного не скрывала другое.
func (d *Dashboard) KYC(ctx context.Context, p *gate.Principal) (*KYCPage, error) {
	var (
		shell  Shell
		record *model.Verification
		err    error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		record, err = d.api.KYC(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	page := &KYCPage{Shell: shell, Record: record}
	if err != nil {
		d.logSection(SectionKYC, err)
		page.Error = sectionError("verification status")
	}
	return page, nil
}

// Cards собирает страницу виртуальных карт. Номера карт маскируются.
func (d *Dashboard) Cards(ctx context.Context, p *gate.Principal) (*CardsPage, error) {
	var (
		shell Shell
		cards []model.VirtualCard
		err   error
	)

	var g errgroup.Group
	g.Go(func() error {
		shell = d.shell(ctx, p)
		return nil
	})
	g.Go(func() error {
		cards, err = d.api.VirtualCards(ctx, p.Auth)
		return nil
	})
	_ = g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	page := &CardsPage{Shell: shell, Cards: []CardView{}}
	if err != nil {
		d.logSection(SectionCards, err)
		page.Error = sectionError(SectionCards)
		return page, nil
	}

	for _, c := range cards {
		page.Cards = append(page.Cards, CardView{
			ID:          c.ID,
			MaskedPAN:   validation.MaskCardNumber(c.CardNumber),
			ValidNumber: validation.IsValidCardNumber(c.CardNumber),
			Holder:      c.Holder,
			ExpiryDate:  c.ExpiryDate,
			Balance:     finance.FormatUSD(c.Balance),
			Status:      c.Status,
		})
	}
	return page, nil
}

func logInvalid(logger *zap.Logger, fields []string) {
	if len(fields) > 0 {
		logger.Warn("wallet contains unparsable amounts", zap.Strings("fields", fields))
	}
}
