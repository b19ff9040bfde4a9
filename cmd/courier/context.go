package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/deliverylog"
	"courier/internal/logging"
	"courier/internal/metrics"
	"courier/internal/push"
	"courier/internal/transport"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// runtime is everything a delivery command needs. close releases it in
// reverse order of construction.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *push.Engine
	history *deliverylog.Store
	metrics *metrics.Collector
	cancel  context.CancelFunc
}

func (r *runtime) close() {
	if r.engine != nil {
		_ = r.engine.Close()
	}
	if r.history != nil {
		_ = r.history.Close()
	}
	if r.cancel != nil {
		r.cancel()
	}
}

// withRuntime builds the logger, delivery log, metrics listener and engine,
// registering every [[apns]] entry. A configuration that fails to register
// aborts the command.
func (c *commandContext) withRuntime(cmd *cobra.Command, metricsBind string, fn func(*runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger}
	defer rt.close()

	opts := []push.Option{
		push.WithLogger(logger),
		push.WithDialer(transport.NewHTTP2Dialer(
			transport.WithConnectTimeout(time.Duration(cfg.Pool.ConnectTimeoutSeconds) * time.Second),
		)),
		push.WithPoolPolicy(push.PoolPolicy{
			MaxIdle:     cfg.Pool.MaxIdle,
			IdleTimeout: time.Duration(cfg.Pool.IdleTimeoutSeconds) * time.Second,
			PingTimeout: time.Duration(cfg.Pool.PingTimeoutSeconds) * time.Second,
		}),
	}

	if cfg.DeliveryLog.Enabled {
		store, err := deliverylog.Open(cfg)
		if err != nil {
			return fmt.Errorf("open delivery log: %w", err)
		}
		rt.history = store
		opts = append(opts, push.WithRecorder(store))
	}

	bind := strings.TrimSpace(metricsBind)
	if bind == "" && cfg.Metrics.Enabled {
		bind = cfg.Metrics.Bind
	}
	if bind != "" {
		collector := metrics.New()
		serveCtx, cancel := context.WithCancel(cmd.Context())
		rt.cancel = cancel
		if _, err := collector.Serve(serveCtx, bind, logging.NewComponentLogger(logger, "metrics")); err != nil {
			return fmt.Errorf("start metrics listener: %w", err)
		}
		rt.metrics = collector
		opts = append(opts, push.WithMetrics(collector))
	}

	rt.engine = push.New(opts...)
	for _, entry := range cfg.APNs {
		pcfg, err := push.FromConfig(entry)
		if err != nil {
			return err
		}
		if err := rt.engine.Register(pcfg); err != nil {
			return err
		}
	}
	return fn(rt)
}

// withHistory opens the delivery log without building an engine.
func (c *commandContext) withHistory(fn func(*deliverylog.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.DeliveryLog.Enabled {
		return fmt.Errorf("delivery log is disabled (set delivery_log.enabled = true)")
	}
	store, err := deliverylog.Open(cfg)
	if err != nil {
		return fmt.Errorf("open delivery log: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
