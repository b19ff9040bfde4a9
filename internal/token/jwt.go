package token

import (
	"encoding/json"
	"fmt"
	"time"
)

const algorithmES256 = "ES256"

type header struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid"`
	Type      string `json:"typ"`
}

type claims struct {
	Issuer   string `json:"iss"`
	IssuedAt int64  `json:"iat"`
}

// Make builds a signed provider token for keyID and teamID issued at issuedAt.
func Make(keyID, teamID string, issuedAt time.Time, signer Signer) (string, error) {
	if signer == nil {
		return "", ErrKeyMissing
	}
	headerJSON, err := json.Marshal(header{Algorithm: algorithmES256, KeyID: keyID, Type: "JWT"})
	if err != nil {
		return "", fmt.Errorf("token: encode header: %w", err)
	}
	claimsJSON, err := json.Marshal(claims{Issuer: teamID, IssuedAt: issuedAt.Unix()})
	if err != nil {
		return "", fmt.Errorf("token: encode claims: %w", err)
	}
	signingInput := EncodeSegment(headerJSON) + "." + EncodeSegment(claimsJSON)
	signature, err := signer.Sign(signingInput)
	if err != nil {
		return "", err
	}
	return signingInput + "." + signature, nil
}
