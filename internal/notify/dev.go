package notify

import (
	"context"
	"log/slog"
	"time"

	"auth-gateway/backend/internal/devotp"
)

// DevNotifier stores codes in a devotp.Store instead of sending them.
type DevNotifier struct {
	store  devotp.Store
	logger *slog.Logger
}

// NewDevNotifier returns a notifier for local environments.
func NewDevNotifier(store devotp.Store, logger *slog.Logger) *DevNotifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DevNotifier{store: store, logger: logger}
}

// SendOTP stores code for email until the registration expires.
func (n *DevNotifier) SendOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	n.store.Put(ctx, email, code, expiresAt)
	n.logger.InfoContext(ctx, "dev otp stored", "email", email)
	return nil
}
