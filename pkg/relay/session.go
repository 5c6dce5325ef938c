package relay

import (
	"bytes"
	"context"
	"net"

	"github.com/google/uuid"
	"github.com/saylorsolutions/baryssh/pkg/mixer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Session relays one accepted connection to the destination.
type Session struct {
	id       string
	cfg      Config
	conn     net.Conn
	log      logrus.FieldLogger
	toDest   *queue
	toClient *queue
	mix      *mixer.Mixer
	dialer   *Dialer
}

// NewSession creates a Session for an accepted connection.
// Both Mixers are derived here, once, from the window current at accept time.
func NewSession(cfg Config, keys *mixer.Keyring, conn net.Conn, log logrus.FieldLogger) *Session {
	id := uuid.NewString()
	log = log.WithFields(logrus.Fields{
		"session": id,
		"client":  conn.RemoteAddr().String(),
	})
	s := &Session{
		id:       id,
		cfg:      cfg,
		conn:     conn,
		log:      log,
		toDest:   newQueue(),
		toClient: newQueue(),
		mix:      keys.Mixer(mixer.ClientSuffix),
	}
	s.dialer = newDialer(cfg, keys.Mixer(mixer.DestSuffix), s.toDest, s.toClient, log)
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Serve runs the Session until both sides are torn down.
// Cancelling ctx tears the Session down early.
func (s *Session) Serve(ctx context.Context) error {
	s.log.Info("Client connected")
	var group errgroup.Group
	group.Go(func() error {
		return s.dialer.Run(ctx)
	})
	group.Go(s.readClient)
	group.Go(func() error {
		return s.drain(ctx)
	})
	err := group.Wait()
	s.log.Info("Session closed")
	return err
}

// readClient queues raw client chunks toward the destination.
// Mixing happens in the Dialer, so the cursor only advances for bytes that are actually sent.
func (s *Session) readClient() error {
	defer s.toDest.Close()
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			s.toDest.Put(bytes.Clone(buf[:n]))
		}
		if err != nil {
			if IsExpectedCloseError(err) {
				s.log.WithError(err).Debug("Client disconnected")
			} else {
				s.log.WithError(err).Warn("Client read failed")
			}
			return nil
		}
	}
}

// drain mixes chunks from the destination and writes them to the client, until the close marker arrives.
func (s *Session) drain(ctx context.Context) error {
	defer func() {
		s.dialer.StopRetrying()
		_ = s.conn.Close()
	}()
	w, err := mixer.NewWriter(s.conn, s.mix)
	if err != nil {
		return err
	}
	failed := false
	for {
		c, err := s.toClient.Get(ctx)
		if err != nil {
			return nil
		}
		if c.closed {
			s.log.Debug("Closing client connection")
			return nil
		}
		if failed {
			continue
		}
		if _, err := w.Write(c.data); err != nil {
			// Closing unblocks readClient, which queues the close marker toward the destination.
			s.log.WithError(err).Debug("Client write failed")
			failed = true
			_ = s.conn.Close()
		}
	}
}
