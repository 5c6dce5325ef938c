package relay

import (
	"context"
	"io"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/saylorsolutions/baryssh/pkg/mixer"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDialer(t *testing.T, destPort int) (*Dialer, *queue, *queue) {
	t.Helper()
	cfg, err := NewConfig("127.0.0.1", destPort, 0,
		WithInitialDelay(20*time.Millisecond),
		WithMaxDelay(100*time.Millisecond),
		WithDialTimeout(time.Minute),
	)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	toDest, toClient := newQueue(), newQueue()
	d := newDialer(cfg, mixer.New([]byte("dialer test"), testTime), toDest, toClient, log)
	return d, toDest, toClient
}

func runDialer(d *Dialer) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- d.Run(context.Background())
	}()
	return done
}

func assertClientClosed(t *testing.T, toClient *queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	c, err := toClient.Get(ctx)
	require.NoError(t, err)
	assert.True(t, c.closed)
}

func TestDialer_AbandonsDialInProgress(t *testing.T) {
	tests := map[string]func(d *Dialer, toDest *queue){
		"Client closed": func(_ *Dialer, toDest *queue) {
			toDest.Close()
		},
		"Retrying stopped": func(d *Dialer, _ *queue) {
			d.StopRetrying()
		},
	}

	for name, stop := range tests {
		t.Run(name, func(t *testing.T) {
			dest := listenDestination(t, "127.0.0.1:0")
			d, toDest, toClient := testDialer(t, dest.port())
			dialing := make(chan struct{})
			var once sync.Once
			d.net.ControlContext = func(ctx context.Context, _, _ string, _ syscall.RawConn) error {
				once.Do(func() {
					close(dialing)
				})
				<-ctx.Done()
				return ctx.Err()
			}
			toDest.Put([]byte("abandoned"))
			done := runDialer(d)
			select {
			case <-dialing:
			case <-time.After(ioTimeout):
				t.Fatal("dial never started")
			}

			stop(d, toDest)
			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(time.Second):
				t.Fatal("dial was not abandoned")
			}
			assertClientClosed(t, toClient)
			assert.Equal(t, int64(1), d.dials.Load())
			time.Sleep(100 * time.Millisecond)
			assert.Equal(t, int32(0), dest.accepts.Load())
		})
	}
}

func TestDialer_LateConnectSendsNothing(t *testing.T) {
	dest := listenDestination(t, "127.0.0.1:0")
	d, toDest, toClient := testDialer(t, dest.port())
	d.net.ControlContext = func(_ context.Context, _, _ string, _ syscall.RawConn) error {
		<-toDest.Done()
		return nil
	}
	toDest.Put([]byte("abandoned"))
	done := runDialer(d)
	toDest.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dialer kept running after the client closed")
	}
	assertClientClosed(t, toClient)
	assert.Equal(t, int64(1), d.dials.Load())

	select {
	case conn := <-dest.conns:
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(ioTimeout)))
		data, err := io.ReadAll(conn)
		assert.NoError(t, err)
		assert.Empty(t, data, "queued bytes must not reach a connection made after the client closed")
	case <-time.After(200 * time.Millisecond):
	}
}
