package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dashboard-portfolios/internal/storage"

	"github.com/stretchr/testify/require"
)

var errConnClosed = errors.New("use of closed connection")

// fakeConn is an in-memory Conn: tests push inbound frames and inspect sends.
type fakeConn struct {
	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	sent     [][]byte
	pings    int
	closes   int
	writeErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read() ([]byte, error) {
	select {
	case raw := <-c.inbound:
		return raw, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.drop()
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() {
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *fakeConn) push(frame string) {
	c.inbound <- []byte(frame)
}

func (c *fakeConn) sends() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	dials int
	fail  error
	block chan struct{}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	fail, block := d.fail, d.block
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

type memJournal struct {
	mu      sync.Mutex
	entries []storage.Entry
}

func (j *memJournal) Record(e storage.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) all() []storage.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]storage.Entry(nil), j.entries...)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://feed.test/ws"
	cfg.PingInterval = 0
	cfg.Reconnect = false
	return cfg
}

func newTestSession(t *testing.T, cfg Config, opts ...Option) (*Session, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	s := New(cfg, append([]Option{WithDialer(dialer)}, opts...)...)
	t.Cleanup(s.Close)
	return s, dialer
}

func waitState(t *testing.T, s *Session, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == want },
		2*time.Second, 5*time.Millisecond, "session never reached %s", want)
}

// openSession connects and returns the live fake connection.
func openSession(t *testing.T, s *Session, d *fakeDialer) *fakeConn {
	t.Helper()
	s.Connect()
	waitState(t, s, Open)
	conn := d.last()
	require.NotNil(t, conn)
	return conn
}
