package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/gate"
	"github.com/mmeshcher/investdash/internal/model"
	"github.com/mmeshcher/investdash/internal/validation"
)

// proxy пересылает запрос на тот же путь бэкенда с учётными данными сессии
// и возвращает клиенту ответ бэкенда без изменений.
func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, body []byte) {
	p, ok := gate.PrincipalFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if !cleanPath(r.URL.Path) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	resp, err := h.backend.Forward(r.Context(), r.Method, r.URL.Path, r.URL.Query(), p.Auth, body, r.Header.Get("Content-Type"))
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("proxy error", zap.Error(err), zap.String("method", r.Method), zap.String("path", r.URL.Path))
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			h.logger.Warn("write proxy response", zap.Error(err))
		}
	}
}

// cleanPath сообщает, что путь не содержит сегментов "." и ".." и повторных
// слэшей, то есть бэкенд получит тот же ресурс, что проверил маршрутизатор.
func cleanPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return false
	}
	return path.Clean(p) == strings.TrimSuffix(p, "/") || p == "/"
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return body, true
}

// Forward пересылает запрос без проверки тела.
func (h *Handler) Forward(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	h.proxy(w, r, body)
}

type amountField struct {
	Amount json.Number `json:"amount"`
}

// checkAmount проверяет, что в теле есть положительная сумма не более чем
// с двумя знаками после запятой. Сумма может быть числом или строкой.
func checkAmount(body []byte) bool {
	var f amountField
	if err := json.Unmarshal(body, &f); err != nil || f.Amount == "" {
		return false
	}

	_, valid := validation.ParseAmount(f.Amount.String())
	return valid
}

// CreateInvestment проверяет сумму и пересылает создание инвестиции на бэкенд.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	if !checkAmount(body) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.proxy(w, r, body)
}

type transactionRequest struct {
	Type model.TransactionType `json:"type"`
}

// CreateTransaction проверяет тип и сумму пополнения или вывода и пересылает
// запрос на бэкенд.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Type != model.TransactionDeposit && req.Type != model.TransactionWithdrawal {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if !checkAmount(body) {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.proxy(w, r, body)
}
