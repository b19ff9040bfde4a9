package token

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrKeyMissing is returned when no private key material is available.
	ErrKeyMissing = errors.New("token: private key missing")
	// ErrUnsupportedCurve is returned for keys that are not on P-256.
	ErrUnsupportedCurve = errors.New("token: private key is not a P-256 key")
)

// SignatureFormat selects how the ECDSA signature is laid out in the third
// token segment.
type SignatureFormat string

const (
	// FormatDER encodes the signature as an ASN.1 DER sequence.
	FormatDER SignatureFormat = "der"
	// FormatJWS encodes the signature as the fixed-width r||s pair from RFC 7518.
	FormatJWS SignatureFormat = "jws"
)

// ParseSignatureFormat maps a configuration value onto a SignatureFormat.
func ParseSignatureFormat(raw string) (SignatureFormat, error) {
	switch SignatureFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatDER:
		return FormatDER, nil
	case FormatJWS:
		return FormatJWS, nil
	default:
		return "", fmt.Errorf("token: unknown signature format %q", raw)
	}
}

// Signer produces the encoded signature segment for a signing input
// ("header.claims").
type Signer interface {
	Sign(signingInput string) (string, error)
}

// ECDSASigner signs with a P-256 private key.
type ECDSASigner struct {
	key    *ecdsa.PrivateKey
	format SignatureFormat
}

// NewECDSASigner wraps key. The key must be on P-256.
func NewECDSASigner(key *ecdsa.PrivateKey, format SignatureFormat) (*ECDSASigner, error) {
	if key == nil {
		return nil, ErrKeyMissing
	}
	if key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	if format == "" {
		format = FormatDER
	}
	return &ECDSASigner{key: key, format: format}, nil
}

// Sign implements Signer.
func (s *ECDSASigner) Sign(signingInput string) (string, error) {
	switch s.format {
	case FormatJWS:
		sig, err := jwt.SigningMethodES256.Sign(signingInput, s.key)
		if err != nil {
			return "", fmt.Errorf("token: sign: %w", err)
		}
		return sig, nil
	default:
		digest := sha256.Sum256([]byte(signingInput))
		der, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
		if err != nil {
			return "", fmt.Errorf("token: sign: %w", err)
		}
		return EncodeSegment(der), nil
	}
}

// LoadPrivateKey reads a PEM encoded P-256 key (PKCS#8 or SEC 1) from path.
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrKeyMissing
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("token: read private key %s: %w", path, err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("token: parse private key %s: %w", path, err)
	}
	if key.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	return key, nil
}
