// Package gate содержит две проверки защищённых страниц личного кабинета.
//
// Guard проверяет сессию через эндпоинт идентификации и при любой ошибке
// закрывает доступ: учётные данные удаляются, пользователь отправляется на
// страницу входа. VerificationGate вычисляет необходимость баннера KYC и при
// любой ошибке, наоборот, открывает доступ: баннер не показывается.
package gate

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/mmeshcher/investdash/internal/backend"
	"github.com/mmeshcher/investdash/internal/metrics"
	"github.com/mmeshcher/investdash/internal/model"
	"github.com/mmeshcher/investdash/internal/session"
)

// DefaultLoginPath задаёт маршрут страницы входа для перенаправлений.
const DefaultLoginPath = "/login"

type contextKey string

const principalKey contextKey = "principal"

// Principal описывает аутентифицированного пользователя текущего запроса.
type Principal struct {
	User    *model.User
	Session *session.Session
	Auth    backend.Auth
}

// IdentityClient запрашивает профиль текущего пользователя.
type IdentityClient interface {
	Me(ctx context.Context, auth backend.Auth) (*model.User, error)
}

// Guard пропускает запрос дальше только после успешной проверки сессии.
type Guard struct {
	sessions  *session.Manager
	identity  IdentityClient
	logger    *zap.Logger
	loginPath string
}

// NewGuard создаёт проверку сессии с маршрутом входа по умолчанию.
func NewGuard(sessions *session.Manager, identity IdentityClient, logger *zap.Logger) *Guard {
	return &Guard{
		sessions:  sessions,
		identity:  identity,
		logger:    logger,
		loginPath: DefaultLoginPath,
	}
}

// Middleware проверяет сессию одним запросом к бэкенду, без повторов.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := g.sessions.Load(r)
		if err != nil {
			g.reject(w, r, "no session", err)
			return
		}

		auth := g.sessions.Auth(r, sess)
		user, err := g.identity.Me(r.Context(), auth)
		if err != nil {
			// Клиент ушёл раньше ответа: состояние не трогаем.
			if r.Context().Err() != nil {
				return
			}
			g.reject(w, r, "identity check failed", err)
			return
		}

		ctx := WithPrincipal(r.Context(), &Principal{User: user, Session: sess, Auth: auth})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) reject(w http.ResponseWriter, r *http.Request, reason string, cause error) {
	if err := g.sessions.Clear(w, r); err != nil {
		g.logger.Warn("clear session", zap.Error(err))
	}

	metrics.GuardRejections.Inc()
	g.logger.Info("session guard rejected request",
		zap.String("reason", reason),
		zap.String("path", r.URL.Path),
		zap.Error(cause),
	)

	http.Redirect(w, r, LoginRedirect(g.loginPath, r), http.StatusFound)
}

// LoginRedirect строит адрес страницы входа с исходным путём в параметре next.
func LoginRedirect(loginPath string, r *http.Request) string {
	return loginPath + "?" + url.Values{"next": {r.URL.RequestURI()}}.Encode()
}

// RequireStaff пропускает только сотрудников и суперпользователей.
// Должен стоять после Guard.Middleware.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || !p.User.IsAdmin() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal сохраняет пользователя в контексте запроса.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext извлекает пользователя из контекста запроса.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}
