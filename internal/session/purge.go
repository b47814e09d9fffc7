package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger удаляет истёкшие сессии из хранилища.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// RunPurge периодически удаляет истёкшие сессии до отмены контекста.
func RunPurge(ctx context.Context, p Purger, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				logger.Warn("purge expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions purged", zap.Int("count", n))
			}
		}
	}
}
