package mixer

import (
	"crypto"
	"crypto/sha256"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultIterations takes around half a second on commodity hardware.
	DefaultIterations = 512 * 1024

	hardenPrefix byte = 0xF0
	hardenSuffix byte = 0x0F
)

var (
	ErrEmptyPassphrase = errors.New("cannot use an empty passphrase")
	ErrHashUnavailable = errors.New("SHA-256 hash primitive is unavailable")
)

var hashAvailable = crypto.SHA256.Available

// BaseKey is the process-wide secret derived from a passphrase with a Hardener.
// It must be treated as read-only once created.
type BaseKey []byte

type Hardener struct {
	iterations int
	log        logrus.FieldLogger
}

type HardenerOpt = func(*Hardener) error

// SetIterations overrides DefaultIterations.
// Both relays of a pair must use the same iteration count, so only use this option if you know what you're doing.
func SetIterations(iterations int) HardenerOpt {
	return func(h *Hardener) error {
		if iterations < 1 {
			return errors.New("iterations must be at least 1")
		}
		h.iterations = iterations
		return nil
	}
}

// SetLogger sets the logger used to report hardening time.
func SetLogger(log logrus.FieldLogger) HardenerOpt {
	return func(h *Hardener) error {
		if log == nil {
			return errors.New("nil logger")
		}
		h.log = log
		return nil
	}
}

// NewHardener creates a Hardener using DefaultIterations unless overridden by a HardenerOpt.
func NewHardener(opts ...HardenerOpt) (*Hardener, error) {
	h := &Hardener{
		iterations: DefaultIterations,
		log:        discardLogger(),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Harden stretches the passphrase into a BaseKey.
// Each round hashes 0xF0, the decimal round number, the previous round's output, and 0x0F.
// The passphrase itself is the input to the first round.
func (h *Hardener) Harden(pass string) (BaseKey, error) {
	if len(pass) == 0 {
		return nil, ErrEmptyPassphrase
	}
	if !hashAvailable() {
		return nil, ErrHashUnavailable
	}
	start := time.Now()
	var (
		key = []byte(pass)
		buf = make([]byte, 0, len(pass)+32)
	)
	for i := 0; i < h.iterations; i++ {
		buf = append(buf[:0], hardenPrefix)
		buf = strconv.AppendInt(buf, int64(i), 10)
		buf = append(buf, key...)
		buf = append(buf, hardenSuffix)
		sum := sha256.Sum256(buf)
		key = sum[:]
	}
	h.log.WithField("elapsed", time.Since(start)).Info("Prepared base key")
	return key, nil
}

// HardenKey hardens the passphrase with default settings.
func HardenKey(pass string) (BaseKey, error) {
	h, err := NewHardener()
	if err != nil {
		return nil, err
	}
	return h.Harden(pass)
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
