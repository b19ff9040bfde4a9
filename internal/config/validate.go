package config

import (
	"errors"
	"fmt"
	"strings"
)

// Gateway environments accepted in [[apns]] entries.
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
	EnvironmentTest        = "test"
)

var validPushTypes = map[string]struct{}{
	"":             {},
	"alert":        {},
	"background":   {},
	"voip":         {},
	"complication": {},
	"fileprovider": {},
	"mdm":          {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validatePush(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	return c.validateAPNs()
}

func (c *Config) validateLogging() error {
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

func (c *Config) validatePush() error {
	if c.Push.Priority != 5 && c.Push.Priority != 10 {
		return fmt.Errorf("push.priority must be 5 or 10, got %d", c.Push.Priority)
	}
	if c.Push.ExpirationSeconds < 0 {
		return errors.New("push.expiration_seconds must be >= 0")
	}
	if _, ok := validPushTypes[c.Push.PushType]; !ok {
		return fmt.Errorf("push.push_type %q is not a known push type", c.Push.PushType)
	}
	if len(c.Push.CollapseID) > 64 {
		return errors.New("push.collapse_id must be at most 64 bytes")
	}
	if c.Push.DefaultConfiguration != "" {
		if _, ok := c.Lookup(c.Push.DefaultConfiguration); !ok {
			return fmt.Errorf("push.default_configuration %q does not match any [[apns]] entry", c.Push.DefaultConfiguration)
		}
	}
	return nil
}

func (c *Config) validatePool() error {
	return ensurePositiveMap(map[string]int{
		"pool.connect_timeout_seconds": c.Pool.ConnectTimeoutSeconds,
		"pool.ping_timeout_seconds":    c.Pool.PingTimeoutSeconds,
	})
}

func (c *Config) validateMetrics() error {
	if c.Metrics.Enabled && !strings.Contains(c.Metrics.Bind, ":") {
		return fmt.Errorf("metrics.bind %q must be host:port", c.Metrics.Bind)
	}
	return nil
}

func (c *Config) validateAPNs() error {
	seen := make(map[string]struct{}, len(c.APNs))
	for idx, entry := range c.APNs {
		if entry.Name == "" {
			return fmt.Errorf("apns[%d].name must be set", idx)
		}
		if _, dup := seen[entry.Name]; dup {
			return fmt.Errorf("apns[%s] is defined more than once", entry.Name)
		}
		seen[entry.Name] = struct{}{}

		switch entry.Environment {
		case EnvironmentDevelopment, EnvironmentProduction:
		case EnvironmentTest:
			if entry.Host == "" {
				return fmt.Errorf("apns[%s].host must be set for the test environment", entry.Name)
			}
		default:
			return fmt.Errorf("apns[%s].environment %q must be development, production, or test", entry.Name, entry.Environment)
		}
		if entry.Port < 0 || entry.Port > 65535 {
			return fmt.Errorf("apns[%s].port %d is out of range", entry.Name, entry.Port)
		}

		if entry.CertificatePath != "" && entry.PrivateKeyPath != "" {
			return fmt.Errorf("apns[%s] sets both certificate_path and private_key_path", entry.Name)
		}
		switch entry.AuthMode() {
		case AuthToken:
			if entry.KeyID == "" {
				return fmt.Errorf("apns[%s].key_id is required for token auth (or set COURIER_KEY_ID)", entry.Name)
			}
			if entry.TeamID == "" {
				return fmt.Errorf("apns[%s].team_id is required for token auth (or set COURIER_TEAM_ID)", entry.Name)
			}
		case AuthNone:
			if entry.Environment != EnvironmentTest {
				return fmt.Errorf("apns[%s] needs certificate_path or private_key_path outside the test environment", entry.Name)
			}
		}
		if entry.SignatureFormat != "der" && entry.SignatureFormat != "jws" {
			return fmt.Errorf("apns[%s].signature_format %q must be der or jws", entry.Name, entry.SignatureFormat)
		}
		if entry.Burst < 0 {
			return fmt.Errorf("apns[%s].burst must be >= 0", entry.Name)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
