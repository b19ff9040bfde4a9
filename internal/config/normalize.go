package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizePush()
	c.normalizePool()
	c.normalizeMetrics()
	return c.normalizeAPNs()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.DeliveryLog.Path) == "" {
		c.DeliveryLog.Path = defaultDeliveryLogPath
	}
	if c.DeliveryLog.Path, err = expandPath(c.DeliveryLog.Path); err != nil {
		return fmt.Errorf("delivery_log.path: %w", err)
	}
	if c.DeliveryLog.RetentionDays < 0 {
		c.DeliveryLog.RetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizePush() {
	c.Push.DefaultConfiguration = strings.TrimSpace(c.Push.DefaultConfiguration)
	c.Push.Topic = strings.TrimSpace(c.Push.Topic)
	c.Push.PushType = strings.ToLower(strings.TrimSpace(c.Push.PushType))
	c.Push.CollapseID = strings.TrimSpace(c.Push.CollapseID)
	if c.Push.Priority == 0 {
		c.Push.Priority = defaultPriority
	}
	if c.Push.Concurrency <= 0 {
		c.Push.Concurrency = defaultConcurrency
	}
	if c.Push.DefaultConfiguration == "" && len(c.APNs) == 1 {
		c.Push.DefaultConfiguration = strings.TrimSpace(c.APNs[0].Name)
	}
}

func (c *Config) normalizePool() {
	if c.Pool.ConnectTimeoutSeconds <= 0 {
		c.Pool.ConnectTimeoutSeconds = defaultConnectTimeoutSeconds
	}
	if c.Pool.PingTimeoutSeconds <= 0 {
		c.Pool.PingTimeoutSeconds = defaultPingTimeoutSeconds
	}
	if c.Pool.MaxIdle < 0 {
		c.Pool.MaxIdle = 0
	}
	if c.Pool.IdleTimeoutSeconds < 0 {
		c.Pool.IdleTimeoutSeconds = 0
	}
}

func (c *Config) normalizeMetrics() {
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
}

func (c *Config) normalizeAPNs() error {
	keyID, _ := os.LookupEnv("COURIER_KEY_ID")
	teamID, _ := os.LookupEnv("COURIER_TEAM_ID")

	for i := range c.APNs {
		entry := &c.APNs[i]
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Environment = strings.ToLower(strings.TrimSpace(entry.Environment))
		if entry.Environment == "" {
			entry.Environment = EnvironmentDevelopment
		}
		entry.Host = strings.TrimSpace(entry.Host)
		if entry.Environment == EnvironmentTest && entry.Port == 0 {
			entry.Port = defaultTestPort
		}
		entry.Topic = strings.TrimSpace(entry.Topic)
		entry.SignatureFormat = strings.ToLower(strings.TrimSpace(entry.SignatureFormat))
		if entry.SignatureFormat == "" {
			entry.SignatureFormat = defaultSignatureFormat
		}

		var err error
		if entry.CertificatePath, err = expandPath(strings.TrimSpace(entry.CertificatePath)); err != nil {
			return fmt.Errorf("apns[%s].certificate_path: %w", entry.Name, err)
		}
		if entry.PrivateKeyPath, err = expandPath(strings.TrimSpace(entry.PrivateKeyPath)); err != nil {
			return fmt.Errorf("apns[%s].private_key_path: %w", entry.Name, err)
		}
		if entry.CAFile, err = expandPath(strings.TrimSpace(entry.CAFile)); err != nil {
			return fmt.Errorf("apns[%s].ca_file: %w", entry.Name, err)
		}

		if entry.AuthMode() == AuthToken {
			entry.KeyID = strings.TrimSpace(entry.KeyID)
			entry.TeamID = strings.TrimSpace(entry.TeamID)
			if entry.KeyID == "" {
				entry.KeyID = strings.TrimSpace(keyID)
			}
			if entry.TeamID == "" {
				entry.TeamID = strings.TrimSpace(teamID)
			}
		}
		if entry.CertificatePassword == "" && entry.AuthMode() == AuthCertificate {
			if value, ok := os.LookupEnv("COURIER_CERTIFICATE_PASSWORD"); ok {
				entry.CertificatePassword = value
			}
		}
		if entry.RatePerSecond < 0 {
			entry.RatePerSecond = 0
		}
		if entry.RatePerSecond > 0 && entry.Burst <= 0 {
			entry.Burst = 1
		}
	}
	return nil
}
