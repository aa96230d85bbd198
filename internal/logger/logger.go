// Package logger configures the process-wide logrus logger.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/block-seat-reservation/internal/config"
)

// Setup applies cfg to the standard logrus logger and returns it.  Unknown
// levels fall back to info.
func Setup(cfg config.LogConfig, service string) *logrus.Logger {
	return configure(logrus.StandardLogger(), cfg, os.Stdout, service)
}

func configure(l *logrus.Logger, cfg config.LogConfig, out io.Writer, service string) *logrus.Logger {
	if cfg.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetOutput(out)
	if service != "" {
		l.AddHook(serviceHook(service))
	}
	return l
}

// serviceHook stamps every entry with the emitting binary.
type serviceHook string

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = string(h)
	}
	return nil
}
