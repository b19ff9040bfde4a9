package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier/internal/logging"
	"courier/internal/transport"
)

func newTestPool(dialer *fakeDialer, policy PoolPolicy, clock *fakeClock) *pool {
	var next uint64
	return &pool{
		name:     "local",
		endpoint: transport.Endpoint{Host: "127.0.0.1", Port: 8443},
		dialer:   dialer,
		policy:   policy,
		nextID:   func() uint64 { next++; return next },
		now:      clock.Now,
		metrics:  nopMetrics{},
		logger:   logging.NewNop(),
	}
}

func TestPoolReusesMostRecentlyReleased(t *testing.T) {
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{}, &fakeClock{now: time.Unix(1000, 0)})
	ctx := context.Background()

	first, err := p.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := p.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.id == second.id {
		t.Fatal("expected distinct streams while both are in use")
	}
	p.release(first)
	p.release(second)

	got, err := p.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got != second {
		t.Fatalf("expected LIFO reuse of stream %d, got %d", second.id, got.id)
	}
	got2, _ := p.acquire(ctx)
	if got2 != first {
		t.Fatalf("expected stream %d next, got %d", first.id, got2.id)
	}
	stats := p.snapshot()
	if stats.Created != 2 || stats.Reused != 2 || stats.Idle != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPoolDiscardsDisconnectedOnRelease(t *testing.T) {
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{}, &fakeClock{now: time.Unix(1000, 0)})
	ctx := context.Background()

	s, _ := p.acquire(ctx)
	_ = s.conn.Close()
	p.release(s)

	fresh, err := p.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if fresh.id <= s.id {
		t.Fatalf("expected a new identifier above %d, got %d", s.id, fresh.id)
	}
	if stats := p.snapshot(); stats.Discarded != 1 || stats.Created != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestPoolDiscardsStreamsFailingPing(t *testing.T) {
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{}, &fakeClock{now: time.Unix(1000, 0)})
	ctx := context.Background()

	s, _ := p.acquire(ctx)
	p.release(s)
	dialer.conn(0).mu.Lock()
	dialer.conn(0).pingErr = errors.New("ping timeout")
	dialer.conn(0).mu.Unlock()

	got, err := p.acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got == s {
		t.Fatal("expected the unresponsive stream to be replaced")
	}
	if dialer.conn(0).Connected() {
		t.Fatal("expected the unresponsive stream to be closed")
	}
}

func TestPoolIdleTimeoutEvicts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{IdleTimeout: time.Minute}, clock)
	ctx := context.Background()

	s, _ := p.acquire(ctx)
	p.release(s)
	clock.Advance(30 * time.Second)
	if got, _ := p.acquire(ctx); got != s {
		t.Fatal("expected reuse inside the idle timeout")
	}
	p.release(s)
	clock.Advance(2 * time.Minute)
	if got, _ := p.acquire(ctx); got == s {
		t.Fatal("expected eviction after the idle timeout")
	}
	if dialer.dialed() != 2 {
		t.Fatalf("expected two dials, got %d", dialer.dialed())
	}
}

func TestPoolMaxIdle(t *testing.T) {
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{MaxIdle: 1}, &fakeClock{now: time.Unix(1000, 0)})
	ctx := context.Background()

	a, _ := p.acquire(ctx)
	b, _ := p.acquire(ctx)
	p.release(a)
	p.release(b)

	stats := p.snapshot()
	if stats.Idle != 1 || stats.Discarded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if b.conn.Connected() {
		t.Fatal("expected the overflow stream to be closed")
	}
}

func TestPoolDialFailureIsTransportError(t *testing.T) {
	dialer := newFakeDialer()
	dialer.failAfter = 0
	p := newTestPool(dialer, PoolPolicy{}, &fakeClock{now: time.Unix(1000, 0)})

	_, err := p.acquire(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if stats := p.snapshot(); stats.Created != 0 {
		t.Fatalf("expected no stream created, got %+v", stats)
	}
}

func TestPoolCloseClosesIdleAndLateReleases(t *testing.T) {
	dialer := newFakeDialer()
	p := newTestPool(dialer, PoolPolicy{}, &fakeClock{now: time.Unix(1000, 0)})
	ctx := context.Background()

	idle, _ := p.acquire(ctx)
	busy, _ := p.acquire(ctx)
	p.release(idle)
	p.close()
	if idle.conn.Connected() {
		t.Fatal("expected idle stream closed")
	}
	p.release(busy)
	if busy.conn.Connected() {
		t.Fatal("expected stream released after close to be closed")
	}
	if stats := p.snapshot(); stats.Idle != 0 || stats.Discarded != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
