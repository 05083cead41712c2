package config

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitLogger configures the global logrus logger. A log file that cannot be opened falls
// back to stdout with a warning.
func InitLogger(cfg LoggingConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.File == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		logrus.Warnf("Failed to create log directory for %s: %v", cfg.File, err)
		return
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logrus.Warnf("Failed to open log file %s, logging to stdout: %v", cfg.File, err)
		return
	}
	logrus.SetOutput(file)
}
