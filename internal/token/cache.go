package token

import (
	"crypto/ecdsa"
	"log/slog"
	"sync"
	"time"

	"courier/internal/logging"
)

// RefreshInterval is the age at which a cached token is re-signed.
const RefreshInterval = time.Hour

// KeyLoader reads the private key used to sign tokens.
type KeyLoader func(path string) (*ecdsa.PrivateKey, error)

// CacheOption customises Cache construction.
type CacheOption func(*Cache)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeyLoader overrides how key material is read.
func WithKeyLoader(loader KeyLoader) CacheOption {
	return func(c *Cache) {
		if loader != nil {
			c.loadKey = loader
		}
	}
}

// WithLogger attaches a logger for refresh failures.
func WithLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "token")
	}
}

// WithSignatureFormat selects the signature layout of minted tokens.
func WithSignatureFormat(format SignatureFormat) CacheOption {
	return func(c *Cache) {
		if format != "" {
			c.format = format
		}
	}
}

// Cache holds the current provider token for one configuration.
type Cache struct {
	keyID   string
	teamID  string
	keyPath string
	format  SignatureFormat

	now     func() time.Time
	loadKey KeyLoader
	logger  *slog.Logger

	mu       sync.Mutex
	token    string
	issuedAt int64
}

// NewCache returns an empty cache. The first Token call signs a fresh token.
func NewCache(keyID, teamID, keyPath string, opts ...CacheOption) *Cache {
	c := &Cache{
		keyID:   keyID,
		teamID:  teamID,
		keyPath: keyPath,
		format:  FormatDER,
		now:     time.Now,
		loadKey: LoadPrivateKey,
		logger:  logging.NewComponentLogger(nil, "token"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token, re-signing it once the last attempt is at
// least RefreshInterval old. A failed attempt still moves the baseline, so
// ok stays false until the next interval rather than retrying every call.
func (c *Cache) Token() (token string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().Unix()
	if c.issuedAt != 0 && now-c.issuedAt < int64(RefreshInterval/time.Second) {
		return c.token, c.token != ""
	}

	c.issuedAt = now
	minted, err := c.mint(time.Unix(now, 0))
	if err != nil {
		c.token = ""
		logging.WarnWithContext(c.logger, "provider token refresh failed", "token_refresh_failed",
			logging.String("key_id", c.keyID),
			logging.String("team_id", c.teamID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check private_key_path, key_id and team_id"),
			logging.String(logging.FieldImpact, "requests are sent without authorization until the next refresh"),
		)
		return "", false
	}
	c.token = minted
	return minted, true
}

// IssuedAt reports when the cached token was last (re)signed, or the zero
// time when no attempt has been made.
func (c *Cache) IssuedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.issuedAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.issuedAt, 0)
}

// Invalidate forces the next Token call to re-sign.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = ""
	c.issuedAt = 0
	c.mu.Unlock()
}

func (c *Cache) mint(issuedAt time.Time) (string, error) {
	key, err := c.loadKey(c.keyPath)
	if err != nil {
		return "", err
	}
	signer, err := NewECDSASigner(key, c.format)
	if err != nil {
		return "", err
	}
	return Make(c.keyID, c.teamID, issuedAt, signer)
}
