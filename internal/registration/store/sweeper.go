package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired entries so abandoned registrations do
// not accumulate. Expiry is still enforced on read without it.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	nowF     func() time.Time
}

// NewSweeper returns a Sweeper over s. A nil logger discards output.
func NewSweeper(s Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		store:    s,
		interval: interval,
		logger:   logger,
		nowF:     func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps every interval until ctx is done. It returns immediately when
// interval is not positive.
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and logs the outcome.
func (w *Sweeper) SweepOnce(ctx context.Context) int {
	n, err := w.store.Sweep(ctx, w.nowF())
	if err != nil {
		w.logger.WarnContext(ctx, "pending sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		w.logger.DebugContext(ctx, "pending sweep", "removed", n)
	}
	return n
}
