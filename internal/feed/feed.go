// Package feed отдаёт публичную ленту последних транзакций. Источник ленты
// необязателен; при любой его ошибке используется статический набор.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/metrics"
	"github.com/mmeshcher/investdash/internal/model"
)

const (
	defaultTimeout = 5 * time.Second
	maxFeedBody    = 1 << 20
)

// Origin указывает, откуда взяты данные ленты.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// Snapshot содержит ответ ленты вместе с источником данных.
type Snapshot struct {
	Source       Origin                  `json:"source"`
	Transactions []model.FeedTransaction `json:"transactions"`
}

// Source получает ленту с внешнего адреса.
type Source struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewSource создаёт источник ленты. Пустой url означает, что всегда
// используется статический набор.
func NewSource(url string, logger *zap.Logger) *Source {
	return &Source{
		url: url,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot возвращает ленту. Метод никогда не возвращает ошибку: при сбое
// внешнего источника отдаётся статический набор.
func (s *Source) Snapshot(ctx context.Context) Snapshot {
	if s.url == "" {
		metrics.FeedFallbacks.WithLabelValues("unset").Inc()
		return s.fallback()
	}

	txs, err := s.fetch(ctx)
	if err != nil {
		metrics.FeedFallbacks.WithLabelValues("error").Inc()
		s.logger.Warn("live feed unavailable, serving fallback", zap.Error(err))
		return s.fallback()
	}
	if len(txs) == 0 {
		metrics.FeedFallbacks.WithLabelValues("empty").Inc()
		return s.fallback()
	}

	return Snapshot{Source: OriginLive, Transactions: txs}
}

func (s *Source) fetch(ctx context.Context) ([]model.FeedTransaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return decode(body)
}

func decode(body []byte) ([]model.FeedTransaction, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var envelope struct {
			Transactions []model.FeedTransaction `json:"transactions"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		return envelope.Transactions, nil
	}

	var txs []model.FeedTransaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return txs, nil
}

// fallback строит статический анонимизированный набор. Время записей
// отсчитывается от текущего момента, чтобы лента выглядела свежей.
func (s *Source) fallback() Snapshot {
	now := s.now().UTC().Truncate(time.Minute)

	txs := make([]model.FeedTransaction, 0, len(fallbackSet))
	for _, f := range fallbackSet {
		txs = append(txs, model.FeedTransaction{
			User:      f.user,
			Type:      f.typ,
			Amount:    decimal.RequireFromString(f.amount),
			Currency:  f.currency,
			CreatedAt: now.Add(-f.ago),
		})
	}

	return Snapshot{Source: OriginFallback, Transactions: txs}
}

type fallbackItem struct {
	user     string
	typ      model.TransactionType
	amount   string
	currency string
	ago      time.Duration
}

var fallbackSet = []fallbackItem{
	{user: "j***n", typ: model.TransactionDeposit, amount: "1500.00", currency: "USDT", ago: 2 * time.Minute},
	{user: "m***a", typ: model.TransactionWithdrawal, amount: "320.50", currency: "BTC", ago: 7 * time.Minute},
	{user: "a***x", typ: model.TransactionDeposit, amount: "5000.00", currency: "ETH", ago: 13 * time.Minute},
	{user: "s***h", typ: model.TransactionDeposit, amount: "250.00", currency: "USDT", ago: 21 * time.Minute},
	{user: "k***e", typ: model.TransactionWithdrawal, amount: "1200.00", currency: "USDT", ago: 34 * time.Minute},
	{user: "d***d", typ: model.TransactionDeposit, amount: "750.00", currency: "BTC", ago: 48 * time.Minute},
	{user: "r***o", typ: model.TransactionWithdrawal, amount: "95.75", currency: "ETH", ago: 62 * time.Minute},
	{user: "l***a", typ: model.TransactionDeposit, amount: "10000.00", currency: "USDT", ago: 95 * time.Minute},
}
