package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				out[m.Name+"/"+outcome.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.Registration(ctx, "pending")
	m.Registration(ctx, "pending")
	m.Confirmation(ctx, "invalid_code")
	m.Login(ctx, "success")
	m.DirectoryCall(ctx, "by_email", "not_found")

	got := collect(t, reader)
	want := map[string]int64{
		"auth.registrations/pending":                   2,
		"auth.registration_confirmations/invalid_code": 1,
		"auth.logins/success":                          1,
		"auth.directory_calls/not_found":               1,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %d, want %d (all: %v)", k, got[k], v, got)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.Registration(context.Background(), "x")
	m.Login(context.Background(), "x")

	noopM, err := NewMetrics(nil)
	if err != nil {
		t.Fatalf("NewMetrics(nil): %v", err)
	}
	noopM.Confirmation(context.Background(), "x")
}
