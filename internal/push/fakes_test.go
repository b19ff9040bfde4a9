package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"courier/internal/transport"
)

var errReset = errors.New("connection reset by peer")

type replyFunc func(req *transport.Request) (*transport.Reply, error)

func statusReply(status int, body string) replyFunc {
	return func(*transport.Request) (*transport.Reply, error) {
		h := http.Header{}
		h.Set("apns-id", "id-"+http.StatusText(status))
		return &transport.Reply{Status: status, Header: h, Body: []byte(body)}, nil
	}
}

type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	pingErr  error
	reply    replyFunc
	requests []*transport.Request
}

func (c *fakeConn) RoundTrip(_ context.Context, req *transport.Request) (*transport.Reply, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	closed := c.closed
	reply := c.reply
	c.mu.Unlock()
	if closed {
		return nil, transport.ErrClosed
	}
	if reply == nil {
		return statusReply(http.StatusOK, "")(req)
	}
	return reply(req)
}

func (c *fakeConn) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	return c.pingErr
}

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) sent() []*transport.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*transport.Request(nil), c.requests...)
}

// fakeDialer hands out fakeConns. behaviours[n] drives the nth dialled conn;
// dials beyond failAfter (when >= 0) fail.
type fakeDialer struct {
	mu         sync.Mutex
	behaviours []replyFunc
	failAfter  int
	conns      []*fakeConn
	endpoints  []transport.Endpoint
}

func newFakeDialer(behaviours ...replyFunc) *fakeDialer {
	return &fakeDialer{behaviours: behaviours, failAfter: -1}
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint transport.Endpoint) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.endpoints = append(d.endpoints, endpoint)
	if d.failAfter >= 0 && len(d.conns) >= d.failAfter {
		return nil, errors.New("dial tcp: connection refused")
	}
	conn := &fakeConn{}
	if idx := len(d.conns); idx < len(d.behaviours) {
		conn.reply = d.behaviours[idx]
	}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.endpoints)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// failOn answers 200 until the nth request on the conn, then fails with a
// transport error for that and every later request.
func failOn(n int) replyFunc {
	var mu sync.Mutex
	count := 0
	return func(req *transport.Request) (*transport.Reply, error) {
		mu.Lock()
		count++
		current := count
		mu.Unlock()
		if current >= n {
			return nil, errReset
		}
		return statusReply(http.StatusOK, "")(req)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingRecorder struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (r *recordingRecorder) Record(_ context.Context, d Delivery) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, d)
	r.mu.Unlock()
	return nil
}

type countingMetrics struct {
	mu                                  sync.Mutex
	created, reused, discarded, retries int
	aborted                             int
	statuses                            []int
}

func (m *countingMetrics) StreamCreated(string) { m.mu.Lock(); m.created++; m.mu.Unlock() }
func (m *countingMetrics) StreamReused(string)  { m.mu.Lock(); m.reused++; m.mu.Unlock() }
func (m *countingMetrics) StreamDiscarded(string, string) {
	m.mu.Lock()
	m.discarded++
	m.mu.Unlock()
}
func (m *countingMetrics) RequestCompleted(_ string, status int, _ time.Duration) {
	m.mu.Lock()
	m.statuses = append(m.statuses, status)
	m.mu.Unlock()
}
func (m *countingMetrics) TransportRetried(string) { m.mu.Lock(); m.retries++; m.mu.Unlock() }
func (m *countingMetrics) DeliveryAborted(string)  { m.mu.Lock(); m.aborted++; m.mu.Unlock() }
