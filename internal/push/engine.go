package push

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"courier/internal/logging"
	"courier/internal/payload"
	"courier/internal/token"
	"courier/internal/transport"
)

// Option customises Engine construction.
type Option func(*Engine)

// WithDialer replaces the HTTP/2 dialer.
func WithDialer(dialer transport.Dialer) Option {
	return func(e *Engine) {
		if dialer != nil {
			e.dialer = dialer
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(metrics Metrics) Option {
	return func(e *Engine) {
		if metrics != nil {
			e.metrics = metrics
		}
	}
}

// WithRecorder attaches a delivery recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithPoolPolicy sets the idle stream policy for every configuration.
func WithPoolPolicy(policy PoolPolicy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithClock overrides the time source used for headers, token refresh and
// idle eviction (used in tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithKeyLoader overrides how token-mode private keys are read (used in tests).
func WithKeyLoader(loader token.KeyLoader) Option {
	return func(e *Engine) {
		e.keyLoader = loader
	}
}

// Engine owns the configuration registry, every connection pool, and the
// stream identifier counter.
type Engine struct {
	dialer    transport.Dialer
	logger    *slog.Logger
	metrics   Metrics
	recorder  Recorder
	policy    PoolPolicy
	now       func() time.Time
	keyLoader token.KeyLoader

	streamIDs atomic.Uint64

	mu      sync.RWMutex
	configs map[string]*configuration
}

type configuration struct {
	settings Configuration
	pool     *pool
	tokens   *token.Cache
	limiter  *rate.Limiter
}

// New returns an engine with no configurations.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:  logging.NewNop(),
		metrics: nopMetrics{},
		now:     time.Now,
		configs: make(map[string]*configuration),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.dialer == nil {
		e.dialer = transport.NewHTTP2Dialer()
	}
	return e
}

// Register stores cfg under its name, replacing any previous configuration
// with that name. Missing or unloadable credentials yield an error wrapping
// ErrConfiguration.
func (e *Engine) Register(cfg Configuration) error {
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return err
	}

	logger := e.logger.With(logging.Configuration(cfg.Name))
	entry := &configuration{
		settings: cfg,
		limiter:  cfg.limiter(),
		pool: &pool{
			name:     cfg.Name,
			endpoint: endpoint,
			dialer:   e.dialer,
			policy:   e.policy,
			nextID:   func() uint64 { return e.streamIDs.Add(1) },
			now:      e.now,
			metrics:  e.metrics,
			logger:   logging.NewComponentLogger(logger, "push.pool"),
		},
	}
	if cfg.Auth == AuthToken {
		opts := []token.CacheOption{
			token.WithClock(e.now),
			token.WithLogger(logger),
			token.WithSignatureFormat(cfg.SignatureFormat),
		}
		if e.keyLoader != nil {
			opts = append(opts, token.WithKeyLoader(e.keyLoader))
		}
		entry.tokens = token.NewCache(cfg.KeyID, cfg.TeamID, cfg.PrivateKeyPath, opts...)
	}

	e.mu.Lock()
	previous := e.configs[cfg.Name]
	e.configs[cfg.Name] = entry
	e.mu.Unlock()

	if previous != nil {
		previous.pool.close()
	}
	logging.NewComponentLogger(logger, "push.registry").Info("configuration registered",
		logging.String("auth", cfg.Auth.String()),
		logging.String("environment", cfg.Environment.String()),
		logging.Bool("replaced", previous != nil),
	)
	return nil
}

// MustRegister is Register that panics on error.
func (e *Engine) MustRegister(cfg Configuration) {
	if err := e.Register(cfg); err != nil {
		panic(err)
	}
}

func (e *Engine) lookup(name string) (*configuration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entry, ok := e.configs[name]
	return entry, ok
}

// Resolve returns the settings registered under name.
func (e *Engine) Resolve(name string) (Configuration, bool) {
	entry, ok := e.lookup(name)
	if !ok {
		return Configuration{}, false
	}
	return entry.settings, true
}

// Names lists registered configurations in lexical order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	names := make([]string, 0, len(e.configs))
	for name := range e.configs {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)
	return names
}

// PoolStats reports the pool counters of a configuration.
func (e *Engine) PoolStats(name string) (PoolStats, bool) {
	entry, ok := e.lookup(name)
	if !ok {
		return PoolStats{}, false
	}
	return entry.pool.snapshot(), true
}

// Token returns the current provider token of a token-mode configuration.
func (e *Engine) Token(name string) (string, error) {
	entry, ok := e.lookup(name)
	if !ok {
		return "", Wrap(ErrUnknownConfiguration, "registry", "token", name, nil)
	}
	if entry.tokens == nil {
		return "", Wrap(ErrConfiguration, "registry", "token", name+" does not use token auth", nil)
	}
	tok, ok := entry.tokens.Token()
	if !ok {
		return "", Wrap(ErrSigning, "token", "sign", name, nil)
	}
	return tok, nil
}

// Close closes the idle streams of every configuration.
func (e *Engine) Close() error {
	e.mu.RLock()
	entries := make([]*configuration, 0, len(e.configs))
	for _, entry := range e.configs {
		entries = append(entries, entry)
	}
	e.mu.RUnlock()
	for _, entry := range entries {
		entry.pool.close()
	}
	return nil
}

// Push sends the notification built from items to every recipient using the
// named configuration. It returns one Response per recipient in input order,
// or a single aggregate failure when the call could not be carried out.
func (e *Engine) Push(ctx context.Context, name string, recipients []string, note Notification, items []payload.Item) []Response {
	if len(recipients) == 0 {
		return []Response{}
	}
	body := payload.Render(items)
	started := e.now()
	id := uuid.NewString()
	ctx = logging.WithDeliveryID(logging.WithConfiguration(ctx, name), id)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(e.logger, "push.pipeline"))

	var responses []Response
	entry, ok := e.lookup(name)
	if !ok {
		responses = []Response{aggregateFailure(Wrap(ErrAggregate, "pipeline", "resolve", name, ErrUnknownConfiguration))}
	} else {
		d := &delivery{
			engine:  e,
			entry:   entry,
			note:    note,
			payload: body,
			logger:  logger,
		}
		responses = d.run(ctx, recipients)
	}

	elapsed := e.now().Sub(started)
	e.report(ctx, logger, Delivery{
		ID:            id,
		Configuration: name,
		Topic:         note.Topic,
		PushType:      note.PushType,
		Payload:       body,
		Recipients:    recipients,
		Responses:     responses,
		StartedAt:     started,
		Duration:      elapsed,
	})
	return responses
}

// PushOne sends to a single recipient.
func (e *Engine) PushOne(ctx context.Context, name, recipient string, note Notification, items []payload.Item) Response {
	return e.Push(ctx, name, []string{recipient}, note, items)[0]
}

// Job is one delivery call for PushAll.
type Job struct {
	Configuration string
	Recipients    []string
	Notification  Notification
	Items         []payload.Item
}

// PushAll runs jobs concurrently, at most limit at a time (unbounded when
// limit <= 0), and returns their responses in job order.
func (e *Engine) PushAll(ctx context.Context, jobs []Job, limit int) [][]Response {
	results := make([][]Response, len(jobs))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = e.Push(ctx, job.Configuration, job.Recipients, job.Notification, job.Items)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) report(ctx context.Context, logger *slog.Logger, d Delivery) {
	delivered, failed := 0, 0
	for _, resp := range d.Responses {
		if resp.OK() {
			delivered++
		} else {
			failed++
		}
	}
	attrs := []logging.Attr{
		logging.Int("recipients", len(d.Recipients)),
		logging.Int("delivered", delivered),
		logging.Int("failed", failed),
		logging.Duration("elapsed", d.Duration),
	}
	if d.Aggregated() {
		logging.WarnWithContext(logger, "delivery failed", "delivery_failed", append(attrs,
			logging.Error(d.Responses[0].Err),
			logging.String(logging.FieldErrorHint, "check the configuration name and gateway connectivity"),
			logging.String(logging.FieldImpact, "no recipient was notified"),
		)...)
	} else {
		logger.Info("delivery complete", logging.Args(attrs...)...)
	}

	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), d); err != nil {
		logging.WarnWithContext(logger, "delivery log write failed", "delivery_log_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check delivery_log.path permissions"),
			logging.String(logging.FieldImpact, "this delivery is missing from history"),
		)
	}
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
