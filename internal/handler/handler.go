// Package handler содержит HTTP-обработчики личного кабинета инвестора.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/feed"
	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/ratelimit"
	"github.com/mmeshcher/investdash/internal/service"
	"github.com/mmeshcher/investdash/internal/session"
	"github.com/mmeshcher/investdash/internal/txlist"
)

// maxBodySize ограничивает размер тела запроса, пересылаемого на бэкенд.
const maxBodySize = 1 << 20

// Backend определяет запросы к бэкенду, выполняемые обработчиками напрямую.
type Backend interface {
	Login(ctx context.Context, creds backend.LoginRequest, cookies []*http.Cookie) (*backend.LoginResult, error)
	Logout(ctx context.Context, auth backend.Auth) error
	Forward(ctx context.Context, method, path string, query url.Values, auth backend.Auth, body []byte, contentType string) (*backend.ProxyResponse, error)
}

// Dashboard определяет сборку страниц личного кабинета.
type Dashboard interface {
	Overview(ctx context.Context, p *gate.Principal) (*service.Overview, error)
	Investments(ctx context.Context, p *gate.Principal) (*service.InvestmentsPage, error)
	Transactions(ctx context.Context, p *gate.Principal, q txlist.Query) (*service.TransactionsPage, error)
	Wallet(ctx context.Context, p *gate.Principal) (*service.WalletPage, error)
	KYC(ctx context.Context, p *gate.Principal) (*service.KYCPage, error)
	Cards(ctx context.Context, p *gate.Principal) (*service.CardsPage, error)
}

// Feed отдаёт публичную ленту транзакций.
type Feed interface {
	Snapshot(ctx context.Context) feed.Snapshot
}

// Deps содержит зависимости обработчиков.
type Deps struct {
	Backend   Backend
	Dashboard Dashboard
	Feed      Feed
	Sessions  *session.Manager
	Guard     *gate.Guard
	Limiter   ratelimit.Limiter
	// Metrics выдаётся на /metrics только сотрудникам. Nil отключает маршрут,
	// например когда метрики обслуживает отдельный адрес.
	Metrics http.Handler
	Logger  *zap.Logger
}

// Handler реализует HTTP-обработчики личного кабинета.
type Handler struct {
	backend   Backend
	dashboard Dashboard
	feed      Feed
	sessions  *session.Manager
	guard     *gate.Guard
	limiter   ratelimit.Limiter
	metrics   http.Handler
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(d Deps) *Handler {
	return &Handler{
		backend:   d.Backend,
		dashboard: d.Dashboard,
		feed:      d.Feed,
		sessions:  d.Sessions,
		guard:     d.Guard,
		limiter:   d.Limiter,
		metrics:   d.Metrics,
		logger:    d.Logger,
		now:       time.Now,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

type loginResponse struct {
	User     any    `json:"user,omitempty"`
	Redirect string `json:"redirect"`
}

// Login проверяет учётные данные на бэкенде и открывает сессию.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.allowLogin(w, r) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	res, err := h.backend.Login(r.Context(), backend.LoginRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, h.sessions.Auth(r, nil).Cookies)
	if err != nil {
		var se *backend.StatusError
		if errors.Is(err, backend.ErrUnauthorized) || (errors.As(err, &se) && se.Code == http.StatusBadRequest) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Warn("clear previous session", zap.Error(err))
	}
	if _, err := h.sessions.Start(r.Context(), w, res.Token); err != nil {
		h.logger.Error("start session error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := loginResponse{Redirect: SafeNext(req.Next)}
	if res.User != nil {
		resp.User = res.User
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// allowLogin применяет ограничение частоты попыток входа. Ошибка
// ограничителя не блокирует вход.
func (h *Handler) allowLogin(w http.ResponseWriter, r *http.Request) bool {
	if h.limiter == nil {
		return true
	}

	allowed, retryAfter, err := h.limiter.Allow(r.Context(), clientIP(r), h.now())
	if err != nil {
		h.logger.Warn("login rate limiter unavailable", zap.Error(err))
		return true
	}
	if !allowed {
		secs := int(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return false
	}
	return true
}

// Logout инвалидирует токен на бэкенде и удаляет сессию. Сбой бэкенда
// не мешает удалению локальной сессии.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.sessions.Load(r); err == nil {
		if err := h.backend.Logout(r.Context(), h.sessions.Auth(r, sess)); err != nil {
			h.logger.Warn("backend logout error", zap.Error(err))
		}
	}

	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Error("clear session error", zap.Error(err))
	}
	w.WriteHeader(http.StatusOK)
}

// LoginPage сообщает клиенту адрес входа и безопасное значение next.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"login": "/api/auth/login/",
		"next":  SafeNext(r.URL.Query().Get("next")),
	})
}

// Me возвращает профиль текущего пользователя, полученный при проверке сессии.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := gate.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	h.writeJSON(w, http.StatusOK, p.User)
}

// PublicTransactions отдаёт публичную ленту. Ответ всегда 200.
func (h *Handler) PublicTransactions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.feed.Snapshot(r.Context()))
}

// Healthz сообщает, что процесс работает.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// SafeNext возвращает next, только если это локальный путь; иначе /dashboard.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard"
	}
	return next
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
