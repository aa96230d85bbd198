// Command notifier consumes booking lifecycle events from RabbitMQ and
// appends an audit line per event to a log file.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/config"
	"github.com/iliyamo/block-seat-reservation/internal/logger"
	"github.com/iliyamo/block-seat-reservation/internal/queue"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.Setup(cfg.Log, "notifier")

	f, err := queue.OpenAuditLog(cfg.AuditLog)
	if err != nil {
		log.WithError(err).Fatal("open audit log")
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("audit_log", cfg.AuditLog).Info("notifier started")
	c := queue.NewConsumer(cfg.RabbitMQ.URL, f, log)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("consumer stopped")
	}
	log.Info("notifier stopped")
}
