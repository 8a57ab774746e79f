package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New does not read the config file: logging has to work before the config is
// loaded, so it is driven by LOG_FORMAT and LOG_LEVEL only.
//
// Defaults to level info and json format.
func New() *logrus.Logger {
	return NewWithEnv(os.Getenv, os.Stderr)
}

func NewWithEnv(getenv func(string) string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if getenv("LOG_FORMAT") != "text" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	switch getenv("LOG_LEVEL") {
	case "trace":
		logger.SetLevel(logrus.TraceLevel)
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	return logger
}
