package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshot_Live(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"transactions": [
			{"user": "x***y", "type": "deposit", "amount": "42.00", "currency": "USDT", "created_at": "2026-10-01T10:00:00Z"}
		]}`)
	}))
	defer ts.Close()

	snap := NewSource(ts.URL, zap.NewNop()).Snapshot(context.Background())
	assert.Equal(t, OriginLive, snap.Source)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, "x***y", snap.Transactions[0].User)
}

func TestSnapshot_BareArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"user": "a", "type": "withdrawal", "amount": 1, "currency": "BTC"}]`)
	}))
	defer ts.Close()

	snap := NewSource(ts.URL, zap.NewNop()).Snapshot(context.Background())
	assert.Equal(t, OriginLive, snap.Source)
	assert.Len(t, snap.Transactions, 1)
}

func TestSnapshot_FallbackCases(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `<html>oops</html>`)
			},
		},
		{
			name: "empty list",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `[]`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			snap := NewSource(ts.URL, zap.NewNop()).Snapshot(context.Background())
			assert.Equal(t, OriginFallback, snap.Source)
			assert.Len(t, snap.Transactions, len(fallbackSet))
		})
	}
}

func TestSnapshot_UnsetURL(t *testing.T) {
	src := NewSource("", zap.NewNop())
	fixed := time.Date(2026, 10, 19, 12, 0, 30, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	snap := src.Snapshot(context.Background())
	assert.Equal(t, OriginFallback, snap.Source)
	require.NotEmpty(t, snap.Transactions)
	assert.Equal(t, time.Date(2026, 10, 19, 11, 58, 0, 0, time.UTC), snap.Transactions[0].CreatedAt)
}

func TestSnapshot_UnreachableURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	snap := NewSource(url, zap.NewNop()).Snapshot(context.Background())
	assert.Equal(t, OriginFallback, snap.Source)
}
