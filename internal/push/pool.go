package push

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"courier/internal/logging"
	"courier/internal/transport"
)

const defaultPingTimeout = 5 * time.Second

// PoolPolicy bounds idle streams. The zero value keeps every released stream
// forever.
type PoolPolicy struct {
	// MaxIdle caps the idle list; streams released into a full pool are
	// closed. Zero means unbounded.
	MaxIdle int
	// IdleTimeout closes streams that sat idle longer than this instead of
	// probing them. Zero disables eviction.
	IdleTimeout time.Duration
	// PingTimeout bounds the liveness probe on reuse.
	PingTimeout time.Duration
}

// PoolStats are cumulative counters for one configuration's pool.
type PoolStats struct {
	Created   uint64
	Reused    uint64
	Discarded uint64
	Idle      int
}

type stream struct {
	id         uint64
	conn       transport.Conn
	inUse      bool
	releasedAt time.Time
}

type pool struct {
	name     string
	endpoint transport.Endpoint
	dialer   transport.Dialer
	policy   PoolPolicy
	nextID   func() uint64
	now      func() time.Time
	metrics  Metrics
	logger   *slog.Logger

	mu     sync.Mutex
	idle   []*stream
	stats  PoolStats
	closed bool
}

// acquire pops the most recently released stream that still answers a ping,
// or dials a new one.
func (p *pool) acquire(ctx context.Context) (*stream, error) {
	for {
		s := p.pop()
		if s == nil {
			break
		}
		if p.policy.IdleTimeout > 0 && p.now().Sub(s.releasedAt) > p.policy.IdleTimeout {
			p.discard(s, "idle timeout")
			continue
		}
		if err := p.probe(ctx, s); err != nil {
			p.logger.Debug("idle stream failed liveness probe", logging.StreamID(s.id), logging.Error(err))
			p.discard(s, "ping failed")
			continue
		}
		p.mu.Lock()
		p.stats.Reused++
		p.mu.Unlock()
		p.metrics.StreamReused(p.name)
		p.logger.Debug("stream reused", logging.StreamID(s.id))
		return s, nil
	}

	id := p.nextID()
	conn, err := p.dialer.Dial(ctx, p.endpoint)
	if err != nil {
		return nil, Wrap(ErrTransport, "pool", "connect", p.endpoint.Address(), err)
	}
	s := &stream{id: id, conn: conn, inUse: true}
	p.mu.Lock()
	p.stats.Created++
	p.mu.Unlock()
	p.metrics.StreamCreated(p.name)
	p.logger.Debug("stream created", logging.StreamID(id), logging.String("address", p.endpoint.Address()))
	return s, nil
}

func (p *pool) pop() *stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) > 0 {
		last := len(p.idle) - 1
		s := p.idle[last]
		p.idle[last] = nil
		p.idle = p.idle[:last]
		if s.inUse {
			continue
		}
		s.inUse = true
		return s
	}
	return nil
}

func (p *pool) probe(ctx context.Context, s *stream) error {
	timeout := p.policy.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.conn.Ping(pingCtx); err != nil {
		return err
	}
	if !s.conn.Connected() {
		return transport.ErrClosed
	}
	return nil
}

// release returns s to the idle list when it is still connected and the pool
// has room; otherwise the stream is closed.
func (p *pool) release(s *stream) {
	if s == nil {
		return
	}
	if !s.conn.Connected() {
		p.discard(s, "disconnected")
		return
	}
	p.mu.Lock()
	if p.closed || (p.policy.MaxIdle > 0 && len(p.idle) >= p.policy.MaxIdle) {
		p.mu.Unlock()
		p.discard(s, "pool full")
		return
	}
	s.inUse = false
	s.releasedAt = p.now()
	p.idle = append(p.idle, s)
	p.mu.Unlock()
}

func (p *pool) discard(s *stream, reason string) {
	s.inUse = false
	_ = s.conn.Close()
	p.mu.Lock()
	p.stats.Discarded++
	p.mu.Unlock()
	p.metrics.StreamDiscarded(p.name, reason)
	p.logger.Debug("stream discarded", logging.StreamID(s.id), logging.String("reason", reason))
}

func (p *pool) snapshot() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.stats
	stats.Idle = len(p.idle)
	return stats
}

// close closes every idle stream. Streams checked out at the time are closed
// when they are released.
func (p *pool) close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()
	for _, s := range idle {
		p.discard(s, "pool closed")
	}
}
