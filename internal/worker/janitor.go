package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionPurger удаляет истекшие сессии и возвращает их количество.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int, error)
}

// Janitor периодически чистит истекшие сессии в фоне.
type Janitor struct {
	purger   SessionPurger
	logger   *zap.Logger
	interval time.Duration
	wg       sync.WaitGroup
	stop     chan struct{}
	once     sync.Once
}

func NewJanitor(purger SessionPurger, logger *zap.Logger, interval time.Duration) *Janitor {
	return &Janitor{
		purger:   purger,
		logger:   logger,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting session janitor", zap.Duration("interval", j.interval))

	j.wg.Add(1)
	go j.run(ctx)
}

// Stop дожидается завершения текущего прохода. Повторный вызов безопасен.
func (j *Janitor) Stop() {
	j.once.Do(func() {
		j.logger.Info("Stopping session janitor...")
		close(j.stop)
	})
	j.wg.Wait()
	j.logger.Info("Session janitor stopped")
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	removed, err := j.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		if ctx.Err() == nil {
			j.logger.Error("session purge failed", zap.Error(err))
		}
		return
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", zap.Int("count", removed))
	}
}
