// Package logging holds the shared logrus logger used across taskpool.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logger *logrus.Logger

func init() {
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	SetLevel(os.Getenv("LOG_LEVEL"))
}

// GetLogger returns the shared logger instance.
func GetLogger() *logrus.Logger {
	return logger
}

// For returns an entry tagged with the given component name.
func For(component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// SetLevel applies a level name such as "debug" or "WARN".
// Empty or unknown names fall back to info.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// SetOutput redirects log output, e.g. away from the terminal while the board is open.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}
