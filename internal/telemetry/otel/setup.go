// Package otel provides OpenTelemetry TracerProvider, MeterProvider, and LoggerProvider
// configured with OTLP gRPC exporters for the auth gateway.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"google.golang.org/grpc/credentials"
)

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// Endpoint is a parsed OTLP gRPC target.
type Endpoint struct {
	Target   string
	Insecure bool
}

// ParseEndpoint normalizes endpoint to host:port. A path is ignored. https
// endpoints use TLS unless insecureOverride is set (OTEL_EXPORTER_OTLP_INSECURE).
func ParseEndpoint(endpoint string, insecureOverride bool) (Endpoint, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return Endpoint{Target: u.Host, Insecure: insecureOverride || u.Scheme != "https"}, nil
}

// Settings configures the exporters. An empty Endpoint disables export.
type Settings struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	// Environment is recorded as deployment.environment.name when set.
	Environment string
	// MetricInterval is the export period; zero means 10s.
	MetricInterval time.Duration
}

// NewProviders creates providers exporting via OTLP to s.Endpoint. If the endpoint is empty,
// SDK providers without exporters are returned and Shutdown is a no-op.
func NewProviders(ctx context.Context, s Settings, logger *slog.Logger) (*Providers, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	res := gatewayResource(s)
	if strings.TrimSpace(s.Endpoint) == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res)),
			MeterProvider:  metric.NewMeterProvider(metric.WithResource(res)),
			LoggerProvider: sdklog.NewLoggerProvider(sdklog.WithResource(res)),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}
	ep, err := ParseEndpoint(s.Endpoint, s.Insecure)
	if err != nil {
		return nil, err
	}
	conn := exporterConn(ep)

	var shutdownFns []func(context.Context) error
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdownFns) - 1; i >= 0; i-- {
			if err := shutdownFns[i](ctx); err != nil {
				logger.Warn("telemetry: shutdown", "error", err)
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Providers, error) {
		_ = shutdown(ctx)
		return nil, err
	}

	traceExp, err := otlptracegrpc.New(ctx, conn.trace...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
	shutdownFns = append(shutdownFns, tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, conn.metric...)
	if err != nil {
		return fail(fmt.Errorf("otlp metric exporter: %w", err))
	}
	interval := s.MetricInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(interval))),
	)
	shutdownFns = append(shutdownFns, mp.Shutdown)

	logExp, err := otlploggrpc.New(ctx, conn.log...)
	if err != nil {
		return fail(fmt.Errorf("otlp log exporter: %w", err))
	}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)), sdklog.WithResource(res))
	shutdownFns = append(shutdownFns, lp.Shutdown)

	logger.Info("telemetry: exporting via OTLP", "endpoint", ep.Target, "insecure", ep.Insecure)
	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       shutdown,
	}, nil
}

func gatewayResource(s Settings) *resource.Resource {
	name := s.ServiceName
	if name == "" {
		name = "auth-gateway"
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(name)}
	if env := strings.TrimSpace(s.Environment); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentNameKey.String(env))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

type exporterOptions struct {
	trace  []otlptracegrpc.Option
	metric []otlpmetricgrpc.Option
	log    []otlploggrpc.Option
}

// exporterConn returns the endpoint and transport security options for all three exporters.
func exporterConn(ep Endpoint) exporterOptions {
	o := exporterOptions{
		trace:  []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(ep.Target)},
		metric: []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(ep.Target)},
		log:    []otlploggrpc.Option{otlploggrpc.WithEndpoint(ep.Target)},
	}
	if ep.Insecure {
		o.trace = append(o.trace, otlptracegrpc.WithInsecure())
		o.metric = append(o.metric, otlpmetricgrpc.WithInsecure())
		o.log = append(o.log, otlploggrpc.WithInsecure())
		return o
	}
	creds := credentials.NewClientTLSFromCert(nil, "")
	o.trace = append(o.trace, otlptracegrpc.WithTLSCredentials(creds))
	o.metric = append(o.metric, otlpmetricgrpc.WithTLSCredentials(creds))
	o.log = append(o.log, otlploggrpc.WithTLSCredentials(creds))
	return o
}

// SetGlobal sets the global TracerProvider and MeterProvider used by the directory client spans
// and coordinator counters. The LoggerProvider is passed explicitly to the audit emitter.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
