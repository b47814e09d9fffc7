package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/investdash/internal/gate"
	custommiddleware "github.com/mmeshcher/investdash/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware личного кабинета.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.RequestID)
	r.Use(custommiddleware.Recoverer(h.logger))
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Healthz)
	r.Get(gate.DefaultLoginPath, h.LoginPage)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login/", h.Login)
		r.Post("/auth/logout/", h.Logout)
		r.Get("/public/transactions", h.PublicTransactions)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Middleware)

			r.Get("/auth/me/", h.Me)

			r.Post("/investments/", h.CreateInvestment)
			r.Post("/transactions/", h.CreateTransaction)

			r.Get("/virtual-cards/", h.Forward)
			r.Post("/virtual-cards/", h.Forward)
			r.Get("/virtual-cards/{id:[0-9]+}/", h.Forward)

			r.Route("/admin", func(r chi.Router) {
				r.Use(gate.RequireStaff)

				r.Get("/kyc/{id:[0-9]+}/", h.Forward)
				r.Patch("/kyc/{id:[0-9]+}/", h.Forward)
				r.Get("/transactions/", h.Forward)
				r.Patch("/transactions/", h.Forward)
			})
		})
	})

	if h.metrics != nil {
		r.With(h.guard.Middleware, gate.RequireStaff).Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/dashboard", func(r chi.Router) {
		r.Use(h.guard.Middleware)

		r.Get("/", h.Overview)
		r.Get("/investments", h.Investments)
		r.Get("/transactions", h.Transactions)
		r.Get("/wallet", h.Wallet)
		r.Get("/kyc", h.KYC)
		r.Get("/cards", h.Cards)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
