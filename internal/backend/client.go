// Package backend предоставляет клиент для внешнего REST API платформы.
// Все операции, изменяющие состояние, выполняются бэкендом; клиент лишь
// строит запросы, прикладывает учётные данные и нормализует ответы.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mmeshcher/investdash/internal/metrics"
	"github.com/mmeshcher/investdash/internal/model"
)

// ErrUnauthorized соответствует ответам 401 и 403 бэкенда.
var ErrUnauthorized = errors.New("backend: unauthorized")

// maxErrorBody ограничивает объём тела ответа, сохраняемого в StatusError.
const maxErrorBody = 4 << 10

// StatusError возвращается, когда бэкенд ответил статусом вне диапазона 2xx.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Is позволяет сопоставлять ответы 401/403 с ErrUnauthorized через errors.Is.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden)
}

// Auth содержит учётные данные, прикладываемые к запросу к бэкенду.
type Auth struct {
	Token   string
	Cookies []*http.Cookie
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент бэкенда по указанному базовому адресу.
// Таймаут не задаётся: действуют таймауты транспорта и контекст запроса.
func NewClient(baseURL string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{},
	}
}

// URL строит абсолютный адрес эндпоинта бэкенда.
func (c *Client) URL(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, auth Auth, body io.Reader) (*http.Request, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("backend client not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if auth.Token != "" {
		req.Header.Set("Authorization", "Token "+auth.Token)
	}
	for _, ck := range auth.Cookies {
		req.AddCookie(ck)
	}

	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(req.Method, "error").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	metrics.BackendRequests.WithLabelValues(req.Method, statusClass(resp.StatusCode)).Inc()
	return resp, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, auth Auth, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, nil, auth, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) getRaw(ctx context.Context, path string, auth Auth) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.sendJSON(ctx, http.MethodGet, path, auth, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// LoginRequest содержит учётные данные для входа.
type LoginRequest struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// LoginResult содержит выданный бэкендом токен и, если он был прислан, профиль.
type LoginResult struct {
	Token string
	User  *model.User
}

type loginResponse struct {
	Token string      `json:"token"`
	Key   string      `json:"key"`
	User  *model.User `json:"user"`
}

// Login выполняет вход через POST /api/auth/login/.
func (c *Client) Login(ctx context.Context, creds LoginRequest, cookies []*http.Cookie) (*LoginResult, error) {
	var resp loginResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/api/auth/login/", Auth{Cookies: cookies}, creds, &resp); err != nil {
		return nil, err
	}

	token := resp.Token
	if token == "" {
		token = resp.Key
	}
	if token == "" {
		return nil, errors.New("login response without token")
	}

	return &LoginResult{Token: token, User: resp.User}, nil
}

// Logout инвалидирует токен на стороне бэкенда.
func (c *Client) Logout(ctx context.Context, auth Auth) error {
	return c.sendJSON(ctx, http.MethodPost, "/api/auth/logout/", auth, nil, nil)
}

// Me запрашивает профиль текущего пользователя через GET /api/auth/me/.
func (c *Client) Me(ctx context.Context, auth Auth) (*model.User, error) {
	var u model.User
	if err := c.sendJSON(ctx, http.MethodGet, "/api/auth/me/", auth, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Wallet запрашивает снимок кошелька.
func (c *Client) Wallet(ctx context.Context, auth Auth) (*model.Wallet, error) {
	raw, err := c.getRaw(ctx, "/api/wallet/", auth)
	if err != nil {
		return nil, err
	}
	return decodeWallet(raw)
}

// Investments запрашивает список инвестиций и нормализует их форму.
func (c *Client) Investments(ctx context.Context, auth Auth) ([]model.Investment, error) {
	raw, err := c.getRaw(ctx, "/api/investments/", auth)
	if err != nil {
		return nil, err
	}
	return decodeInvestments(raw)
}

// Transactions запрашивает список транзакций пользователя.
func (c *Client) Transactions(ctx context.Context, auth Auth) ([]model.Transaction, error) {
	raw, err := c.getRaw(ctx, "/api/transactions/", auth)
	if err != nil {
		return nil, err
	}
	return decodeTransactions(raw)
}

// KYC запрашивает статус верификации. Текущей считается первая запись списка
// или единственный объект. При отсутствии записей возвращается nil без ошибки.
func (c *Client) KYC(ctx context.Context, auth Auth) (*model.Verification, error) {
	raw, err := c.getRaw(ctx, "/api/kyc/", auth)
	if err != nil {
		return nil, err
	}
	return decodeVerification(raw)
}

// Referrals запрашивает сводку по реферальной программе.
func (c *Client) Referrals(ctx context.Context, auth Auth) (*model.ReferralSummary, error) {
	raw, err := c.getRaw(ctx, "/api/referrals/summary/", auth)
	if err != nil {
		return nil, err
	}
	return decodeReferrals(raw)
}

// VirtualCards запрашивает список виртуальных карт.
func (c *Client) VirtualCards(ctx context.Context, auth Auth) ([]model.VirtualCard, error) {
	raw, err := c.getRaw(ctx, "/api/virtual-cards/", auth)
	if err != nil {
		return nil, err
	}
	return decodeCards(raw)
}

// ProxyResponse содержит ответ бэкенда, пересылаемый клиенту без изменений.
type ProxyResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Forward пересылает запрос на бэкенд как есть. Ошибка возвращается только
// при сбое транспорта; любые статусы бэкенда передаются в ProxyResponse.
func (c *Client) Forward(ctx context.Context, method, path string, query url.Values, auth Auth, body []byte, contentType string) (*ProxyResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := c.newRequest(ctx, method, path, query, auth, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" && reader != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &ProxyResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
