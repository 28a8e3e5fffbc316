// Worker consumes queued one-time codes from Kafka and mails them over SMTP.
// Set KAFKA_BROKERS, OTP_KAFKA_TOPIC, KAFKA_GROUP_ID and SMTP_*; LOKI_URL optionally ships a
// delivery log line per message.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-gateway/backend/internal/config"
	"auth-gateway/backend/internal/logging"
	"auth-gateway/backend/internal/notify"
	"auth-gateway/backend/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel).With("component", "otp-worker")
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokersList(),
		Topic:          cfg.OTPKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	var deliveryLog notify.DeliveryLog
	if cfg.LokiURL != "" {
		lc := loki.NewClient(cfg.LokiURL)
		lc.TenantID = cfg.LokiTenantID
		deliveryLog = lc.Push
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("consuming otp dispatches", "topic", cfg.OTPKafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL != "")
	if err := notify.NewWorker(reader, mailer, deliveryLog, logger).Run(ctx); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
