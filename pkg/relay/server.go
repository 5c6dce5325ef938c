package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/saylorsolutions/baryssh/pkg/mixer"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	acceptRetryInterval = 100 * time.Millisecond
	acceptRetryBurst    = 5
)

// Server accepts client connections and starts a Session for each.
// There's no limit on the number of concurrent sessions.
type Server struct {
	cfg     Config
	keys    *mixer.Keyring
	log     logrus.FieldLogger
	limiter *rate.Limiter

	wg        sync.WaitGroup
	mux       sync.Mutex
	sessions  map[string]*Session
	addr      net.Addr
	ready     chan struct{}
	readyOnce sync.Once
}

type ServerOpt = func(*Server) error

// WithServerLogger sets the logger shared by the Server and its Sessions.
func WithServerLogger(log logrus.FieldLogger) ServerOpt {
	return func(s *Server) error {
		if log == nil {
			return errors.New("nil logger")
		}
		s.log = log
		return nil
	}
}

func NewServer(cfg Config, keys *mixer.Keyring, opts ...ServerOpt) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, errors.New("nil keyring")
	}
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)
	s := &Server{
		cfg:      cfg,
		keys:     keys,
		log:      quiet,
		limiter:  rate.NewLimiter(rate.Every(acceptRetryInterval), acceptRetryBurst),
		sessions: map[string]*Session{},
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Listen binds the configured listen port on all interfaces.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return nil, oops.In("relay").With("addr", s.cfg.ListenAddr()).Wrapf(err, "failed to listen")
	}
	return ln, nil
}

// ListenAndServe binds the listen port and serves until ctx is done.
// A bind failure is returned immediately.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is done or ln is closed.
// When ctx is done, Serve also waits for active Sessions to finish tearing down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mux.Lock()
	s.addr = ln.Addr()
	s.mux.Unlock()
	s.readyOnce.Do(func() {
		close(s.ready)
	})
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.log.WithField("addr", ln.Addr().String()).Info("Listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.WithError(err).Warn("Failed to accept connection")
			if err := s.limiter.Wait(ctx); err != nil {
				s.wg.Wait()
				return nil
			}
			continue
		}
		s.start(ctx, conn)
	}
}

// start runs a Session for conn in its own goroutine.
// Deriving keys can take a moment at the start of a window, so it happens off the accept loop.
func (s *Server) start(ctx context.Context, conn net.Conn) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess := NewSession(s.cfg, s.keys, conn, s.log)
		s.mux.Lock()
		s.sessions[sess.ID()] = sess
		s.mux.Unlock()
		defer func() {
			s.mux.Lock()
			delete(s.sessions, sess.ID())
			s.mux.Unlock()
		}()
		if err := sess.Serve(ctx); err != nil {
			s.log.WithError(err).Warn("Session failed")
		}
	}()
}

// Active returns the number of running Sessions.
func (s *Server) Active() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.sessions)
}

// Addr returns the listener address once Serve has started.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		s.mux.Lock()
		defer s.mux.Unlock()
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
