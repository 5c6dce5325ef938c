package relay

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAcceptFailed = errors.New("too many open files")

// flakyListener fails every Accept until failures is reached, then reports itself closed.
type flakyListener struct {
	failures int32
	accepts  atomic.Int32
}

func (l *flakyListener) Accept() (net.Conn, error) {
	if l.accepts.Add(1) <= l.failures {
		return nil, errAcceptFailed
	}
	return nil, net.ErrClosed
}

func (l *flakyListener) Close() error {
	return nil
}

func (l *flakyListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1}
}

func testServer(t *testing.T) (*Server, *test.Hook) {
	t.Helper()
	cfg, err := NewConfig("127.0.0.1", 22, 0)
	require.NoError(t, err)
	log, hook := test.NewNullLogger()
	srv, err := NewServer(cfg, testKeyring(t, "accept test"), WithServerLogger(log))
	require.NoError(t, err)
	return srv, hook
}

func TestServer_AcceptErrorsArePaced(t *testing.T) {
	srv, hook := testServer(t)
	ln := &flakyListener{failures: acceptRetryBurst + 3}

	start := time.Now()
	require.NoError(t, srv.Serve(context.Background(), ln))
	elapsed := time.Since(start)

	assert.Equal(t, ln.failures+1, ln.accepts.Load())
	assert.GreaterOrEqual(t, elapsed, 250*time.Millisecond, "retries past the burst should wait for the limiter")
	failed := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to accept connection" {
			failed++
		}
	}
	assert.Equal(t, int(ln.failures), failed)
}

func TestServer_AcceptErrorsStopOnCancel(t *testing.T) {
	srv, _ := testServer(t)
	ln := &flakyListener{failures: 1_000_000}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	require.NoError(t, srv.Serve(ctx, ln))
	assert.Less(t, ln.accepts.Load(), int32(20), "Serve must not spin on accept errors")
}
