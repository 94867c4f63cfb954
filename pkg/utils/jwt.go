package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// AnalystClaimsKey is the fiber locals key the auth middleware stores claims under.
const AnalystClaimsKey contextKey = "analyst_claims"

const tokenIssuer = "chainwatch"

var ErrEmptySecret = errors.New("jwt secret is empty")

type AnalystClaims struct {
	AnalystID string   `json:"analyst_id"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates analyst tokens with one HMAC secret.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &TokenIssuer{secret: []byte(secret)}, nil
}

func (t *TokenIssuer) Issue(analystID string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AnalystClaims{
		AnalystID: analystID,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   analystID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

func (t *TokenIssuer) Validate(tokenString string) (*AnalystClaims, error) {
	claims := &AnalystClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
