package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "auth-gateway"

// Metrics holds the counters recorded by the registration coordinator.
// A nil *Metrics records nothing.
type Metrics struct {
	registrations  metric.Int64Counter
	confirmations  metric.Int64Counter
	logins         metric.Int64Counter
	directoryCalls metric.Int64Counter
}

// NewMetrics creates the instruments from mp. A nil mp uses a no-op provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	m := mp.Meter(meterName)
	reg, err := m.Int64Counter("auth.registrations",
		metric.WithDescription("Registration requests by outcome."))
	if err != nil {
		return nil, err
	}
	conf, err := m.Int64Counter("auth.registration_confirmations",
		metric.WithDescription("Registration confirmations by outcome."))
	if err != nil {
		return nil, err
	}
	login, err := m.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome."))
	if err != nil {
		return nil, err
	}
	dir, err := m.Int64Counter("auth.directory_calls",
		metric.WithDescription("User-directory calls by operation and outcome."))
	if err != nil {
		return nil, err
	}
	return &Metrics{registrations: reg, confirmations: conf, logins: login, directoryCalls: dir}, nil
}

// Registration counts one register call.
func (m *Metrics) Registration(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Confirmation counts one confirm call.
func (m *Metrics) Confirmation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Login counts one login call.
func (m *Metrics) Login(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// DirectoryCall counts one directory call.
func (m *Metrics) DirectoryCall(ctx context.Context, op, outcome string) {
	if m == nil {
		return
	}
	m.directoryCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}
