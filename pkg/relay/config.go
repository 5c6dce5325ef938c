package relay

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
)

const (
	DefaultInitialDelay   = time.Second
	DefaultMaxDelay       = 10 * time.Second
	DefaultDialTimeout    = 30 * time.Second
	DefaultReadBufferSize = 64 * 1024
)

// Config is built once at startup and passed by value to everything that needs it.
type Config struct {
	DestHost string
	DestPort int
	// ListenPort may be 0 to pick any free port.
	ListenPort int

	InitialDelay   time.Duration
	MaxDelay       time.Duration
	DialTimeout    time.Duration
	ReadBufferSize int
}

type ConfigOpt = func(*Config) error

// WithInitialDelay sets the first reconnect delay, before it's grown by the backoff factor.
func WithInitialDelay(delay time.Duration) ConfigOpt {
	return func(c *Config) error {
		c.InitialDelay = delay
		return nil
	}
}

// WithMaxDelay caps the reconnect delay.
func WithMaxDelay(delay time.Duration) ConfigOpt {
	return func(c *Config) error {
		c.MaxDelay = delay
		return nil
	}
}

func WithDialTimeout(timeout time.Duration) ConfigOpt {
	return func(c *Config) error {
		c.DialTimeout = timeout
		return nil
	}
}

func WithReadBufferSize(size int) ConfigOpt {
	return func(c *Config) error {
		c.ReadBufferSize = size
		return nil
	}
}

// NewConfig creates a validated Config.
func NewConfig(destHost string, destPort, listenPort int, opts ...ConfigOpt) (Config, error) {
	cfg := Config{
		DestHost:       strings.TrimSpace(destHost),
		DestPort:       destPort,
		ListenPort:     listenPort,
		InitialDelay:   DefaultInitialDelay,
		MaxDelay:       DefaultMaxDelay,
		DialTimeout:    DefaultDialTimeout,
		ReadBufferSize: DefaultReadBufferSize,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	errs := oops.In("config")
	switch {
	case len(c.DestHost) == 0:
		return errs.Errorf("destination host is required")
	case c.DestPort < 1 || c.DestPort > 65535:
		return errs.With("port", c.DestPort).Errorf("destination port %d out of range", c.DestPort)
	case c.ListenPort < 0 || c.ListenPort > 65535:
		return errs.With("port", c.ListenPort).Errorf("listen port %d out of range", c.ListenPort)
	case c.InitialDelay <= 0:
		return errs.Errorf("initial reconnect delay must be positive")
	case c.MaxDelay < c.InitialDelay:
		return errs.Errorf("max reconnect delay %s is less than the initial delay %s", c.MaxDelay, c.InitialDelay)
	case c.DialTimeout <= 0:
		return errs.Errorf("dial timeout must be positive")
	case c.ReadBufferSize <= 0:
		return errs.Errorf("read buffer size must be positive")
	}
	return nil
}

// DestAddr is the host:port dialed for every session.
func (c Config) DestAddr() string {
	return net.JoinHostPort(c.DestHost, strconv.Itoa(c.DestPort))
}

// ListenAddr binds all IPv4 interfaces.
func (c Config) ListenAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.ListenPort))
}
