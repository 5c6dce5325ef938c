package mixer

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// ClientSuffix is appended to the BaseKey for the Mixer that writes toward the accepted (client) side.
	ClientSuffix = ""
	// DestSuffix is appended to the BaseKey for the Mixer that writes toward the dialed (destination) side.
	// A paired relay's client side faces this relay's destination side, so both use the same convention.
	DestSuffix = "_cli"
)

type keyringEntry struct {
	suffix string
	window int64
}

// Keyring holds a BaseKey and hands out Mixers for the current window.
// Derived key bytes are cached per suffix and window, so sessions started in the same window share them.
// Each Mixer still has its own cursor.
type Keyring struct {
	base BaseKey
	now  func() time.Time
	log  logrus.FieldLogger

	mux  sync.Mutex
	keys map[keyringEntry][]byte
}

type KeyringOpt = func(*Keyring) error

// WithClock replaces time.Now as the source of the current window.
func WithClock(now func() time.Time) KeyringOpt {
	return func(k *Keyring) error {
		if now == nil {
			return errors.New("nil clock")
		}
		k.now = now
		return nil
	}
}

// WithLogger sets the logger used to report key derivation.
func WithLogger(log logrus.FieldLogger) KeyringOpt {
	return func(k *Keyring) error {
		if log == nil {
			return errors.New("nil logger")
		}
		k.log = log
		return nil
	}
}

func NewKeyring(base BaseKey, opts ...KeyringOpt) (*Keyring, error) {
	if len(base) == 0 {
		return nil, errors.New("cannot use an empty base key")
	}
	k := &Keyring{
		base: base,
		now:  time.Now,
		log:  discardLogger(),
		keys: map[keyringEntry][]byte{},
	}
	for _, opt := range opts {
		if err := opt(k); err != nil {
			return nil, err
		}
	}
	return k, nil
}

// Mixer returns a new Mixer for the BaseKey followed by suffix, in the current window.
func (k *Keyring) Mixer(suffix string) *Mixer {
	return k.MixerAt(suffix, k.now())
}

// MixerAt returns a new Mixer for the BaseKey followed by suffix, in the window containing t.
func (k *Keyring) MixerAt(suffix string, t time.Time) *Mixer {
	window := WindowIndex(t)
	return newMixer(window, k.key(suffix, window))
}

func (k *Keyring) key(suffix string, window int64) []byte {
	k.mux.Lock()
	defer k.mux.Unlock()
	entry := keyringEntry{suffix: suffix, window: window}
	if key, ok := k.keys[entry]; ok {
		return key
	}

	// Sessions started in older windows keep their own reference.
	for e := range k.keys {
		if e.window < window-1 {
			delete(k.keys, e)
		}
	}

	start := time.Now()
	seed := make([]byte, 0, len(k.base)+len(suffix))
	seed = append(seed, k.base...)
	seed = append(seed, suffix...)
	key := deriveKey(seed, window)
	k.keys[entry] = key
	k.log.WithFields(logrus.Fields{
		"window":  window,
		"length":  len(key),
		"elapsed": time.Since(start),
	}).Debug("Derived keystream")
	return key
}

func (k *Keyring) cached() int {
	k.mux.Lock()
	defer k.mux.Unlock()
	return len(k.keys)
}
