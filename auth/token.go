// Package auth mints and validates chat-session tokens.
// A token binds a participant address to one domain negotiation; the
// engine itself never validates wallet signatures.
package auth

import (
	"time"

	"deal-lab/domain"
	liberrors "deal-lab/errors"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims defines the data stored inside a session JWT.
type SessionClaims struct {
	Address string `json:"address"`
	Domain  string `json:"domain"`
	jwt.RegisteredClaims
}

type TokenIssuer struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenIssuer(secret string, lifetime time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), lifetime: lifetime}
}

// Generate creates a signed session token for a participant address on
// one domain key, using HS256.
func (i *TokenIssuer) Generate(address string, key domain.DomainKey) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Address: address,
		Domain:  key.Canonical().Name(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "deal-lab",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses and verifies the signature and expiration of a
// session token string.
func (i *TokenIssuer) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, liberrors.ErrInvalidToken
}
