package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = base
	cfgVal.DeliveryLog.Path = filepath.Join(base, "deliveries.db")
	cfgVal.Metrics.Bind = "127.0.0.1:0"
	cfgVal.Push.Topic = "com.example.app"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGateway adds a test-environment [[apns]] entry named name that trusts
// and targets gw. The first entry added becomes the default configuration.
func WithGateway(name string, gw *Gateway) ConfigOption {
	return func(b *configBuilder) {
		b.add(config.APNs{
			Name:            name,
			Environment:     config.EnvironmentTest,
			Host:            gw.Host,
			Port:            gw.Port,
			CAFile:          gw.CAFile,
			SignatureFormat: "der",
		})
	}
}

// WithTokenGateway is WithGateway with token authentication and a freshly
// generated signing key.
func WithTokenGateway(name string, gw *Gateway) ConfigOption {
	return func(b *configBuilder) {
		b.add(config.APNs{
			Name:            name,
			Environment:     config.EnvironmentTest,
			Host:            gw.Host,
			Port:            gw.Port,
			CAFile:          gw.CAFile,
			KeyID:           "ABC123DEFG",
			TeamID:          "DEF123GHIJ",
			PrivateKeyPath:  WriteSigningKey(b.t, b.baseDir),
			SignatureFormat: "der",
		})
	}
}

// WithoutDeliveryLog disables the SQLite history.
func WithoutDeliveryLog() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DeliveryLog.Enabled = false
	}
}

func (b *configBuilder) add(entry config.APNs) {
	b.cfg.APNs = append(b.cfg.APNs, entry)
	if b.cfg.Push.DefaultConfiguration == "" {
		b.cfg.Push.DefaultConfiguration = entry.Name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.StateDir
}
