// Package session читает и записывает учётные данные пользователя.
// Токен бэкенда хранится на стороне сервера, браузер получает только
// подписанный идентификатор сессии в cookie.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/investdash/internal/backend"
)

const (
	// CookieName задаёт имя cookie с подписанным идентификатором сессии.
	CookieName = "investdash_session"
	// TTL задаёт время жизни сессии и cookie.
	TTL = 7 * 24 * time.Hour
)

var (
	// ErrNotFound возвращается хранилищем, если сессия отсутствует или истекла.
	ErrNotFound = errors.New("session not found")
	// ErrNoSession возвращается, если в запросе нет действительной cookie сессии.
	ErrNoSession = errors.New("no session cookie")
)

// Session связывает идентификатор сессии браузера с токеном бэкенда.
type Session struct {
	ID        string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store описывает хранилище сессий.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Manager читает, создаёт и удаляет сессии. Весь прочий код получает токен
// только через Manager.
type Manager struct {
	store     Store
	secretKey []byte
	secure    bool
	now       func() time.Time
}

// NewManager создаёт менеджер сессий. При пустом секрете генерируется
// случайный ключ, и сессии не переживают перезапуск процесса.
func NewManager(store Store, secret string, secure bool) (*Manager, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}

	return &Manager{
		store:     store,
		secretKey: key,
		secure:    secure,
		now:       time.Now,
	}, nil
}

// Start создаёт сессию для выданного бэкендом токена и устанавливает cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, token string) (*Session, error) {
	now := m.now().UTC()
	s := &Session{
		ID:        uuid.NewString(),
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(s.ID),
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return s, nil
}

// Load возвращает сессию текущего запроса. Cookie с неверной подписью
// считается отсутствующей.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}

	id, ok := m.verify(cookie.Value)
	if !ok {
		return nil, ErrNoSession
	}

	s, err := m.store.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if s.Expired(m.now()) {
		_ = m.store.Delete(r.Context(), id)
		return nil, ErrNotFound
	}

	return s, nil
}

// Clear удаляет запись сессии и стирает cookie в браузере.
// Ошибки хранилища возвращаются, но cookie стирается в любом случае.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	id, ok := m.verify(cookie.Value)
	if !ok {
		return nil
	}

	if err := m.store.Delete(r.Context(), id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Auth собирает учётные данные для запроса к бэкенду: токен сессии и cookie
// браузера, кроме cookie самой сессии.
func (m *Manager) Auth(r *http.Request, s *Session) backend.Auth {
	auth := backend.Auth{}
	if s != nil {
		auth.Token = s.Token
	}
	for _, ck := range r.Cookies() {
		if ck.Name == CookieName {
			continue
		}
		auth.Cookies = append(auth.Cookies, ck)
	}
	return auth
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secretKey)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func (m *Manager) verify(value string) (string, bool) {
	id, signature, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}

	expected := m.sign(id)
	if !hmac.Equal([]byte(id+"."+signature), []byte(expected)) {
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}

	return id, true
}
