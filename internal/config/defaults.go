package config

const (
	defaultConfigPath            = "~/.config/courier/config.toml"
	defaultLogDir                = "~/.local/share/courier/logs"
	defaultStateDir              = "~/.local/share/courier"
	defaultDeliveryLogPath       = "~/.local/share/courier/deliveries.db"
	defaultDeliveryRetentionDays = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultPriority              = 10
	defaultConcurrency           = 4
	defaultConnectTimeoutSeconds = 5
	defaultPingTimeoutSeconds    = 5
	defaultMetricsBind           = "127.0.0.1:9464"
	defaultSignatureFormat       = "der"
	defaultTestPort              = 443
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Push: Push{
			Priority:    defaultPriority,
			Concurrency: defaultConcurrency,
		},
		Pool: Pool{
			ConnectTimeoutSeconds: defaultConnectTimeoutSeconds,
			PingTimeoutSeconds:    defaultPingTimeoutSeconds,
		},
		DeliveryLog: DeliveryLog{
			Enabled:       true,
			Path:          defaultDeliveryLogPath,
			RetentionDays: defaultDeliveryRetentionDays,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
	}
}
