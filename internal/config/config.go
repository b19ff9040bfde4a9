package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Push contains per-call notification defaults applied by the CLI.
type Push struct {
	DefaultConfiguration string `toml:"default_configuration"`
	Topic                string `toml:"topic"`
	Priority             int    `toml:"priority"`
	ExpirationSeconds    int64  `toml:"expiration_seconds"`
	PushType             string `toml:"push_type"`
	CollapseID           string `toml:"collapse_id"`
	GenerateIDs          bool   `toml:"generate_ids"`
	Concurrency          int    `toml:"concurrency"`
}

// Pool contains connection pool policy shared by every configuration.
type Pool struct {
	MaxIdle               int `toml:"max_idle"`
	IdleTimeoutSeconds    int `toml:"idle_timeout_seconds"`
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
	PingTimeoutSeconds    int `toml:"ping_timeout_seconds"`
}

// DeliveryLog contains configuration for the SQLite delivery history.
type DeliveryLog struct {
	Enabled       bool   `toml:"enabled"`
	Path          string `toml:"path"`
	RetentionDays int    `toml:"retention_days"`
}

// Metrics contains configuration for the Prometheus listener.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// APNs describes one named gateway configuration.
//
// Exactly one credential style applies: certificate_path for client
// certificates, private_key_path for signed provider tokens, or neither for
// the test environment.
type APNs struct {
	Name                string  `toml:"name"`
	Environment         string  `toml:"environment"`
	Host                string  `toml:"host"`
	Port                int     `toml:"port"`
	Topic               string  `toml:"topic"`
	CertificatePath     string  `toml:"certificate_path"`
	CertificatePassword string  `toml:"certificate_password"`
	KeyID               string  `toml:"key_id"`
	TeamID              string  `toml:"team_id"`
	PrivateKeyPath      string  `toml:"private_key_path"`
	SignatureFormat     string  `toml:"signature_format"`
	CAFile              string  `toml:"ca_file"`
	RatePerSecond       float64 `toml:"rate_per_second"`
	Burst               int     `toml:"burst"`
}

// Auth modes reported by APNs.AuthMode.
const (
	AuthCertificate = "certificate"
	AuthToken       = "token"
	AuthNone        = "none"
)

// AuthMode reports which credential style the entry uses.
func (a APNs) AuthMode() string {
	switch {
	case strings.TrimSpace(a.PrivateKeyPath) != "":
		return AuthToken
	case strings.TrimSpace(a.CertificatePath) != "":
		return AuthCertificate
	default:
		return AuthNone
	}
}

// Config encapsulates all configuration values for courier.
//
// Configuration sections:
//   - Paths: log and state directories
//   - Logging: log format and level
//   - Push: notification defaults for the send command
//   - Pool: idle stream policy and connect timeout
//   - DeliveryLog: SQLite history of every response
//   - Metrics: Prometheus listener
//   - APNs: named gateway configurations
type Config struct {
	Paths       Paths       `toml:"paths"`
	Logging     Logging     `toml:"logging"`
	Push        Push        `toml:"push"`
	Pool        Pool        `toml:"pool"`
	DeliveryLog DeliveryLog `toml:"delivery_log"`
	Metrics     Metrics     `toml:"metrics"`
	APNs        []APNs      `toml:"apns"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("courier.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.DeliveryLog.Enabled {
		if err := os.MkdirAll(filepath.Dir(c.DeliveryLog.Path), 0o755); err != nil {
			return fmt.Errorf("create delivery log directory: %w", err)
		}
	}
	return nil
}

// Lookup returns the gateway configuration named name.
func (c *Config) Lookup(name string) (APNs, bool) {
	for _, entry := range c.APNs {
		if entry.Name == name {
			return entry, true
		}
	}
	return APNs{}, false
}

// Names lists configured gateway names in file order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.APNs))
	for _, entry := range c.APNs {
		names = append(names, entry.Name)
	}
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
