package push

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"
	"software.sslmate.com/src/go-pkcs12"

	"courier/internal/config"
	"courier/internal/token"
	"courier/internal/transport"
)

// Environment selects the gateway a configuration talks to.
type Environment int

const (
	Development Environment = iota
	Production
	// Test points at a caller-supplied host and port, typically a local
	// HTTP/2 server.
	Test
)

func (e Environment) String() string {
	switch e {
	case Production:
		return "production"
	case Test:
		return "test"
	default:
		return "development"
	}
}

// ParseEnvironment maps a configuration value onto an Environment.
func ParseEnvironment(raw string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "development", "sandbox":
		return Development, nil
	case "production":
		return Production, nil
	case "test":
		return Test, nil
	default:
		return Development, fmt.Errorf("unknown environment %q", raw)
	}
}

// Gateway hosts.
const (
	DevelopmentHost = "api.development.push.apple.com"
	ProductionHost  = "api.push.apple.com"
	DefaultPort     = 443
)

// AuthMode is how requests on a configuration are authenticated.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthCertificate
	AuthToken
)

func (m AuthMode) String() string {
	switch m {
	case AuthCertificate:
		return "certificate"
	case AuthToken:
		return "token"
	default:
		return "none"
	}
}

// Configuration describes one named gateway configuration.
type Configuration struct {
	Name        string
	Environment Environment
	Auth        AuthMode

	// Host and Port apply to the Test environment only.
	Host string
	Port int

	// Certificate mode: a PKCS#12 bundle (.p12, .pfx) or a PEM file holding
	// both certificate and key.
	CertificatePath     string
	CertificatePassword string

	// Token mode.
	KeyID           string
	TeamID          string
	PrivateKeyPath  string
	SignatureFormat token.SignatureFormat

	// CAFile adds PEM roots to the system pool, for test servers.
	CAFile string
	// ConfigureTLS customises the client TLS configuration before any
	// connection is made.
	ConfigureTLS func(*tls.Config) error

	// RatePerSecond caps sends on this configuration; zero disables it.
	RatePerSecond float64
	Burst         int
}

// CertificateConfiguration returns a client-certificate configuration.
func CertificateConfiguration(name string, env Environment, certificatePath, password string) Configuration {
	return Configuration{
		Name:                name,
		Environment:         env,
		Auth:                AuthCertificate,
		CertificatePath:     certificatePath,
		CertificatePassword: password,
	}
}

// TokenConfiguration returns a signed-token configuration.
func TokenConfiguration(name string, env Environment, keyID, teamID, privateKeyPath string) Configuration {
	return Configuration{
		Name:           name,
		Environment:    env,
		Auth:           AuthToken,
		KeyID:          keyID,
		TeamID:         teamID,
		PrivateKeyPath: privateKeyPath,
	}
}

// TestConfiguration returns an unauthenticated configuration for any HTTP/2
// server at host:port.
func TestConfiguration(name, host string, port int) Configuration {
	return Configuration{Name: name, Environment: Test, Host: host, Port: port}
}

// Address returns the gateway host and port.
func (c Configuration) Address() (string, int) {
	switch c.Environment {
	case Production:
		return ProductionHost, DefaultPort
	case Test:
		port := c.Port
		if port == 0 {
			port = DefaultPort
		}
		return c.Host, port
	default:
		return DevelopmentHost, DefaultPort
	}
}

func (c Configuration) endpoint(tlsConfig *tls.Config) transport.Endpoint {
	host, port := c.Address()
	return transport.Endpoint{Host: host, Port: port, TLS: tlsConfig}
}

func (c Configuration) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Wrap(ErrConfiguration, "registry", "register", "configuration name is empty", nil)
	}
	if c.Environment == Test && strings.TrimSpace(c.Host) == "" {
		return Wrap(ErrConfiguration, "registry", "register", c.Name+": test environment needs a host", nil)
	}
	switch c.Auth {
	case AuthCertificate:
		if _, err := os.Stat(c.CertificatePath); err != nil {
			return Wrap(ErrConfiguration, "registry", "register", c.Name+": certificate not found", err)
		}
	case AuthToken:
		if c.KeyID == "" || c.TeamID == "" {
			return Wrap(ErrConfiguration, "registry", "register", c.Name+": token auth needs key id and team id", nil)
		}
		if _, err := os.Stat(c.PrivateKeyPath); err != nil {
			return Wrap(ErrConfiguration, "registry", "register", c.Name+": private key not found", err)
		}
	}
	if c.RatePerSecond < 0 || c.Burst < 0 {
		return Wrap(ErrConfiguration, "registry", "register", c.Name+": rate limits must not be negative", nil)
	}
	return nil
}

func (c Configuration) tlsConfig() (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.Auth == AuthCertificate {
		cert, err := loadClientCertificate(c.CertificatePath, c.CertificatePassword)
		if err != nil {
			return nil, Wrap(ErrConfiguration, "registry", "load certificate", c.Name, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if c.CAFile != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		data, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, Wrap(ErrConfiguration, "registry", "load ca file", c.Name, err)
		}
		if !pool.AppendCertsFromPEM(data) {
			return nil, Wrap(ErrConfiguration, "registry", "load ca file", c.Name+": no PEM certificates in "+c.CAFile, nil)
		}
		cfg.RootCAs = pool
	}
	if c.ConfigureTLS != nil {
		if err := c.ConfigureTLS(cfg); err != nil {
			return nil, Wrap(ErrConfiguration, "registry", "configure tls", c.Name, err)
		}
	}
	return cfg, nil
}

func (c Configuration) limiter() *rate.Limiter {
	if c.RatePerSecond <= 0 {
		return nil
	}
	burst := c.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.RatePerSecond), burst)
}

func loadClientCertificate(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		key, leaf, chain, err := pkcs12.DecodeChain(data, password)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("decode pkcs12: %w", err)
		}
		cert := tls.Certificate{PrivateKey: key, Leaf: leaf, Certificate: [][]byte{leaf.Raw}}
		for _, ca := range chain {
			cert.Certificate = append(cert.Certificate, ca.Raw)
		}
		return cert, nil
	default:
		cert, err := tls.X509KeyPair(data, data)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("parse pem certificate: %w", err)
		}
		return cert, nil
	}
}

// Endpoint validates c and returns the address and client TLS settings its
// streams dial.
func (c Configuration) Endpoint() (transport.Endpoint, error) {
	if err := c.validate(); err != nil {
		return transport.Endpoint{}, err
	}
	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return transport.Endpoint{}, err
	}
	return c.endpoint(tlsConfig), nil
}

// FromConfig maps one [[apns]] entry onto a Configuration.
func FromConfig(entry config.APNs) (Configuration, error) {
	env, err := ParseEnvironment(entry.Environment)
	if err != nil {
		return Configuration{}, Wrap(ErrConfiguration, "registry", "load", entry.Name, err)
	}
	format, err := token.ParseSignatureFormat(entry.SignatureFormat)
	if err != nil {
		return Configuration{}, Wrap(ErrConfiguration, "registry", "load", entry.Name, err)
	}

	var cfg Configuration
	switch entry.AuthMode() {
	case config.AuthToken:
		cfg = TokenConfiguration(entry.Name, env, entry.KeyID, entry.TeamID, entry.PrivateKeyPath)
		cfg.SignatureFormat = format
	case config.AuthCertificate:
		cfg = CertificateConfiguration(entry.Name, env, entry.CertificatePath, entry.CertificatePassword)
	default:
		cfg = Configuration{Name: entry.Name, Environment: env}
	}
	cfg.Host = entry.Host
	cfg.Port = entry.Port
	cfg.CAFile = entry.CAFile
	cfg.RatePerSecond = entry.RatePerSecond
	cfg.Burst = entry.Burst
	return cfg, nil
}
