package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type cachePurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type purgeTicker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

type tickerFactory func(time.Duration) purgeTicker

func startCachePurgeWorker(ctx context.Context, logger *slog.Logger, cache cachePurger, interval time.Duration) func() {
	return startCachePurgeWorkerWithTicker(ctx, logger, cache, interval, func(d time.Duration) purgeTicker {
		return timeTicker{ticker: time.NewTicker(d)}
	})
}

func startCachePurgeWorkerWithTicker(
	ctx context.Context,
	logger *slog.Logger,
	cache cachePurger,
	interval time.Duration,
	newTicker tickerFactory,
) func() {
	if cache == nil || interval <= 0 {
		return func() {}
	}
	workerCtx, cancel := context.WithCancel(ctx)
	ticker := newTicker(interval)
	done := make(chan struct{})
	go func() {
		defer func() {
			ticker.Stop()
			close(done)
		}()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C():
				removed, err := cache.PurgeExpired(workerCtx)
				if err != nil {
					if logger != nil {
						logger.Error("failed to purge expired token cache entries", "error", err)
					}
					continue
				}
				if removed > 0 && logger != nil {
					logger.Debug("purged expired token cache entries", "removed", removed)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
