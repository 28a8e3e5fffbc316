package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Delivery outcomes reported by Worker.
const (
	OutcomeSent    = "sent"
	OutcomeExpired = "expired"
	OutcomeFailed  = "failed"
	OutcomeInvalid = "invalid"
)

// MessageReader is the subset of *kafka.Reader used by Worker.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// DeliveryLog records one delivery attempt, e.g. to Loki. The line never
// contains the code.
type DeliveryLog func(ctx context.Context, at time.Time, line string, labels map[string]string) error

// Worker drains queued Dispatch messages into a Notifier (normally SMTP).
type Worker struct {
	reader   MessageReader
	notifier Notifier
	logf     DeliveryLog
	logger   *slog.Logger
	nowF     func() time.Time
}

// NewWorker returns a worker. logf may be nil.
func NewWorker(reader MessageReader, notifier Notifier, logf DeliveryLog, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{reader: reader, notifier: notifier, logf: logf, logger: logger, nowF: time.Now}
}

// Run reads until ctx is cancelled. Read errors are logged and retried.
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("kafka read failed", "error", err)
			continue
		}
		w.Handle(ctx, msg.Value)
	}
}

// Handle delivers one raw Dispatch and returns its outcome. Expired codes
// are skipped since they can no longer be confirmed.
func (w *Worker) Handle(ctx context.Context, raw []byte) string {
	var d Dispatch
	if err := json.Unmarshal(raw, &d); err != nil || d.Email == "" || d.Code == "" {
		w.logger.Warn("invalid otp dispatch dropped", "error", err)
		w.record(ctx, "", OutcomeInvalid)
		return OutcomeInvalid
	}
	if d.Expired(w.nowF()) {
		w.logger.Info("expired otp dispatch skipped", "email", d.Email)
		w.record(ctx, d.Email, OutcomeExpired)
		return OutcomeExpired
	}
	if err := w.notifier.SendOTP(ctx, d.Email, d.Code, d.ExpiresAt); err != nil {
		w.logger.Error("otp delivery failed", "email", d.Email, "error", err)
		w.record(ctx, d.Email, OutcomeFailed)
		return OutcomeFailed
	}
	w.record(ctx, d.Email, OutcomeSent)
	return OutcomeSent
}

func (w *Worker) record(ctx context.Context, email, outcome string) {
	if w.logf == nil {
		return
	}
	line, _ := json.Marshal(map[string]string{"email": email, "outcome": outcome})
	pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	labels := map[string]string{"event_type": "otp_delivery", "outcome": outcome}
	if err := w.logf(pushCtx, w.nowF().UTC(), string(line), labels); err != nil {
		w.logger.Warn("delivery log push failed", "error", fmt.Errorf("%s: %w", outcome, err))
	}
}
