package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AssertionLifetime is how long a signed assertion, and the token minted from it, lives.
const AssertionLifetime = time.Hour

// assertionClaims are the claims of a JWT bearer grant assertion. The audience is
// a single string, not an array.
type assertionClaims struct {
	Issuer   string `json:"iss"`
	Scope    string `json:"scope"`
	Audience string `json:"aud"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
}

// Valid implements jwt.Claims.
func (c assertionClaims) Valid() error {
	if c.Expiry <= c.IssuedAt {
		return errors.New("assertion expires before it is issued")
	}
	return nil
}

// SignAssertion builds an RS256 JWT asserting the service account's identity for
// scope, addressed to the token endpoint audience.
func (sa *ServiceAccount) SignAssertion(audience, scope string, now time.Time) (string, error) {
	if sa.key == nil {
		return "", fmt.Errorf("%w: private key not loaded", ErrInvalidServiceAccount)
	}

	claims := assertionClaims{
		Issuer:   sa.ClientEmail,
		Scope:    scope,
		Audience: audience,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(AssertionLifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if sa.PrivateKeyID != "" {
		token.Header["kid"] = sa.PrivateKeyID
	}

	signed, err := token.SignedString(sa.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	return signed, nil
}
