// Package ratelimit ограничивает частоту попыток входа с одного адреса.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter решает, можно ли выполнить очередную попытку для ключа.
// При отказе возвращается время до открытия следующего окна.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}

type window struct {
	start time.Time
	count int
}

// MemoryLimiter хранит фиксированные окна в памяти процесса.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*window
}

// NewMemoryLimiter создаёт ограничитель на limit попыток за окно.
func NewMemoryLimiter(limit int, windowSize time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  windowSize,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		l.gc(now)
		w = &window{start: now}
		l.windows[key] = w
	}

	w.count++
	if w.count > l.limit {
		return false, w.start.Add(l.window).Sub(now), nil
	}
	return true, 0, nil
}

// gc удаляет устаревшие окна. Вызывается под мьютексом.
func (l *MemoryLimiter) gc(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}
