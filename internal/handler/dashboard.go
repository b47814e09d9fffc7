package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/txlist"
)

// page выполняет сборку страницы для текущего пользователя. Если клиент
// ушёл до завершения сборки, ответ не пишется.
func (h *Handler) page(w http.ResponseWriter, r *http.Request, name string, build func(p *gate.Principal) (any, error)) {
	p, ok := gate.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	view, err := build(p)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("build page error", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, view)
}

// Overview отдаёт главную страницу личного кабинета.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "overview", func(p *gate.Principal) (any, error) {
		return h.dashboard.Overview(r.Context(), p)
	})
}

// Investments отдаёт страницу инвестиций.
func (h *Handler) Investments(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "investments", func(p *gate.Principal) (any, error) {
		return h.dashboard.Investments(r.Context(), p)
	})
}

// Transactions отдаёт страницу транзакций; фильтры читаются из строки запроса.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	q := txlist.ParseQuery(r.URL.Query())
	h.page(w, r, "transactions", func(p *gate.Principal) (any, error) {
		return h.dashboard.Transactions(r.Context(), p, q)
	})
}

// Wallet отдаёт страницу кошелька.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "wallet", func(p *gate.Principal) (any, error) {
		return h.dashboard.Wallet(r.Context(), p)
	})
}

// KYC отдаёт страницу верификации.
func (h *Handler) KYC(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "kyc", func(p *gate.Principal) (any, error) {
		return h.dashboard.KYC(r.Context(), p)
	})
}

// Cards отдаёт страницу виртуальных карт.
func (h *Handler) Cards(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, "cards", func(p *gate.Principal) (any, error) {
		return h.dashboard.Cards(r.Context(), p)
	})
}
