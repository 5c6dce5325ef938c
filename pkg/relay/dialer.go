package relay

import (
	"bytes"
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saylorsolutions/baryssh/pkg/mixer"
	"github.com/sirupsen/logrus"
)

var errDialerStopped = errors.New("dialer stopped")

// Dialer owns the destination side of a Session.
// It keeps reconnecting until the client side goes away or retrying is stopped.
type Dialer struct {
	cfg      Config
	log      logrus.FieldLogger
	mix      *mixer.Mixer
	toDest   *queue
	toClient *queue
	backoff  *Backoff
	net      net.Dialer

	retrying atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	// pending holds mixed bytes that haven't been written yet.
	// They've already advanced the cursor, so they're never mixed again.
	pending []byte
	dials   atomic.Int64
}

func newDialer(cfg Config, mix *mixer.Mixer, toDest, toClient *queue, log logrus.FieldLogger) *Dialer {
	d := &Dialer{
		cfg:      cfg,
		log:      log.WithField("dest", cfg.DestAddr()),
		mix:      mix,
		toDest:   toDest,
		toClient: toClient,
		backoff:  newBackoff(cfg.InitialDelay, cfg.MaxDelay),
		net:      net.Dialer{Timeout: cfg.DialTimeout},
		stop:     make(chan struct{}),
	}
	d.retrying.Store(true)
	return d
}

// StopRetrying prevents any further connection attempts.
// A connection that's already established is left alone.
func (d *Dialer) StopRetrying() {
	d.stopOnce.Do(func() {
		d.retrying.Store(false)
		close(d.stop)
	})
}

func (d *Dialer) Retrying() bool {
	return d.retrying.Load()
}

// stopped reports whether the client side has closed or retrying was stopped.
func (d *Dialer) stopped() bool {
	select {
	case <-d.toDest.Done():
		return true
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Run connects to the destination and relays until the client side closes, retrying is stopped, or ctx is done.
// The close marker is always queued toward the client when Run returns.
func (d *Dialer) Run(ctx context.Context) error {
	defer d.toClient.Close()
	for {
		conn, err := d.connect(ctx)
		switch {
		case err == nil:
			d.backoff.Reset()
			if d.serve(ctx, conn) {
				d.log.Info("Disconnected from destination")
				return nil
			}
			if ctx.Err() == nil {
				d.log.Warn("Destination disconnected unexpectedly")
			}
		case d.stopped():
			d.log.Info("Client closed while connecting")
			return nil
		case ctx.Err() == nil:
			d.log.WithError(err).Warn("Failed to connect to destination")
		}
		if !d.wait(ctx) {
			return nil
		}
	}
}

// connect dials the destination.
// The attempt is abandoned as soon as the close marker is queued or retrying is stopped.
func (d *Dialer) connect(ctx context.Context) (net.Conn, error) {
	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-d.toDest.Done():
		case <-d.stop:
		case <-dialCtx.Done():
		}
		cancel()
	}()

	attempt := d.dials.Add(1)
	d.log.WithField("attempt", attempt).Debug("Connecting to destination")
	conn, err := d.net.DialContext(dialCtx, "tcp", d.cfg.DestAddr())
	if err != nil {
		return nil, err
	}
	if d.stopped() {
		_ = conn.Close()
		return nil, errDialerStopped
	}
	d.log.WithField("local", conn.LocalAddr().String()).Info("Connected to destination")
	return conn, nil
}

// wait sleeps for the next backoff delay, and reports whether another attempt should be made.
// The close marker ends the wait even if data is still queued ahead of it.
func (d *Dialer) wait(ctx context.Context) bool {
	if !d.Retrying() {
		return false
	}
	delay := d.backoff.Next()
	d.log.WithFields(logrus.Fields{
		"attempt": d.backoff.Attempts(),
		"delay":   delay,
	}).Info("Reconnecting to destination")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return d.Retrying()
	case <-d.toDest.Done():
		d.log.Info("Client closed while waiting to reconnect")
		return false
	case <-d.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// serve relays over one destination connection, and reports whether the close marker was reached.
func (d *Dialer) serve(ctx context.Context, conn net.Conn) bool {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	received := make(chan struct{})
	go func() {
		defer close(received)
		defer cancel()
		d.receive(conn)
	}()

	closed := d.send(connCtx, conn)
	_ = conn.Close()
	<-received
	return closed
}

func (d *Dialer) send(ctx context.Context, conn net.Conn) bool {
	for {
		if len(d.pending) > 0 {
			n, err := conn.Write(d.pending)
			d.pending = d.pending[n:]
			if err != nil {
				d.logIOError(err, "Failed to write to destination")
				return false
			}
		}
		c, err := d.toDest.Get(ctx)
		if err != nil {
			return false
		}
		if c.closed {
			return true
		}
		d.pending = d.mix.Mix(c.data)
	}
}

func (d *Dialer) receive(conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	buf := make([]byte, d.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			d.toClient.Put(bytes.Clone(buf[:n]))
		}
		if err != nil {
			d.logIOError(err, "Destination read ended")
			return
		}
	}
}

func (d *Dialer) logIOError(err error, msg string) {
	if IsExpectedCloseError(err) {
		d.log.WithError(err).Debug(msg)
		return
	}
	d.log.WithError(err).Warn(msg)
}
