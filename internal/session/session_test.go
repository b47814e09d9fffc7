package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newManager(t *testing.T, store Store, secret string) *Manager {
	t.Helper()
	m, err := NewManager(store, secret, false)
	require.NoError(t, err)
	return m
}

func startSession(t *testing.T, m *Manager, token string) (*Session, *http.Cookie) {
	t.Helper()

	w := httptest.NewRecorder()
	s, err := m.Start(context.Background(), w, token)
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	return s, cookies[0]
}

func TestManager_StartAndLoad(t *testing.T) {
	m := newManager(t, NewMemoryStore(), "test-secret")
	s, cookie := startSession(t, m, "tok-1")

	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	r.AddCookie(cookie)

	loaded, err := m.Load(r)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "tok-1", loaded.Token)
}

func TestManager_LoadWithoutCookie(t *testing.T) {
	m := newManager(t, NewMemoryStore(), "test-secret")

	_, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RejectsForgedCookie(t *testing.T) {
	m := newManager(t, NewMemoryStore(), "test-secret")
	_, cookie := startSession(t, m, "tok-1")

	other := newManager(t, NewMemoryStore(), "other-secret")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	_, err := other.Load(r)
	assert.ErrorIs(t, err, ErrNoSession)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: cookie.Value + "00"})
	_, err = m.Load(r)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_EmptySecretGeneratesKey(t *testing.T) {
	first := newManager(t, NewMemoryStore(), "")
	second := newManager(t, NewMemoryStore(), "")

	require.Len(t, first.secretKey, 32)
	assert.NotEqual(t, first.secretKey, second.secretKey)

	s, cookie := startSession(t, first, "tok-1")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	loaded, err := first.Load(r)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)

	_, err = second.Load(r)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestManager_ClearRemovesRecordAndCookie(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(t, store, "test-secret")
	_, cookie := startSession(t, m, "tok-1")
	require.Equal(t, 1, store.Len())

	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout/", nil)
	r.AddCookie(cookie)
	w := httptest.NewRecorder()

	require.NoError(t, m.Clear(w, r))
	assert.Equal(t, 0, store.Len())

	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, CookieName, cleared[0].Name)
	assert.Equal(t, "", cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)

	_, err := m.Load(r)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_ExpiredSession(t *testing.T) {
	store := NewMemoryStore()
	m := newManager(t, store, "test-secret")
	_, cookie := startSession(t, m, "tok-1")

	later := time.Now().Add(TTL + time.Minute)
	m.now = func() time.Time { return later }
	store.now = func() time.Time { return later }

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	_, err := m.Load(r)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManager_AuthSkipsSessionCookie(t *testing.T) {
	m := newManager(t, NewMemoryStore(), "test-secret")
	s, cookie := startSession(t, m, "tok-1")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookie)
	r.AddCookie(&http.Cookie{Name: "csrftoken", Value: "abc"})

	auth := m.Auth(r, s)
	assert.Equal(t, "tok-1", auth.Token)
	require.Len(t, auth.Cookies, 1)
	assert.Equal(t, "csrftoken", auth.Cookies[0].Name)
}

func TestMemoryStore_Purge(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "a", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Save(ctx, &Session{ID: "b", ExpiresAt: now.Add(time.Hour)}))

	n, err := store.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, store.Len())
}

func TestRunPurge_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		RunPurge(ctx, NewMemoryStore(), 10*time.Millisecond, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("RunPurge did not return after context cancellation")
	}
}
