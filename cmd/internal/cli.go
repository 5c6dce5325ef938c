package internal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Fatal reports err and exits with code 1.
// Pass a nil logger when logging isn't configured yet, and the message goes straight to stderr.
func Fatal(log logrus.FieldLogger, err error, msg string) {
	if log != nil {
		log.WithError(err).Error(msg)
		os.Exit(1)
	}
	Echo("%s: %v", msg, err)
	os.Exit(1)
}

// Echo will emit the given message to stderr without any logging formatting.
func Echo(msg string, args ...any) {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, _ = fmt.Fprintf(os.Stderr, msg, args...)
}

// NewLogger creates the process logger, writing timestamped text lines to out.
func NewLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log, nil
}
