// ABOUTME: JWT issuance and verification for workspace control tokens
// ABOUTME: Uses HS256 signing with a configurable secret and token lifetime

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrShortSecret  = errors.New("jwt secret too short")
)

// MinSecretLength is the minimum HS256 secret length in bytes
const MinSecretLength = 32

// SystemAccountEmail identifies tokens issued to the migration tool itself
const SystemAccountEmail = "system@coven.local"

// Extra claim keys understood by the control channel
const (
	ExtraAdmin = "admin"
	ExtraMode  = "mode"
	ExtraModel = "model"
)

// Claims is the payload of a workspace token
type Claims struct {
	Email     string            `json:"email"`
	Workspace string            `json:"workspace"`
	Extra     map[string]string `json:"extra,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants privileged access
func (c *Claims) IsAdmin() bool {
	return c.Extra[ExtraAdmin] == "true"
}

// TokenSigner issues workspace tokens
type TokenSigner interface {
	Generate(email, workspace string, extra map[string]string) (string, error)
}

// TokenVerifier validates workspace tokens
type TokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

// JWTSigner implements TokenSigner and TokenVerifier with HS256
type JWTSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewJWTSigner creates a signer. A zero ttl issues tokens without expiry.
func NewJWTSigner(secret []byte, ttl time.Duration) (*JWTSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrShortSecret, MinSecretLength, len(secret))
	}
	return &JWTSigner{secret: secret, ttl: ttl}, nil
}

// Generate signs a token for email in workspace carrying extra claims
func (s *JWTSigner) Generate(email, workspace string, extra map[string]string) (string, error) {
	return s.GenerateWithTTL(email, workspace, extra, s.ttl)
}

// GenerateWithTTL is Generate with an explicit lifetime. Negative values
// produce already expired tokens.
func (s *JWTSigner) GenerateWithTTL(email, workspace string, extra map[string]string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     email,
		Workspace: workspace,
		Extra:     extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  email,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify validates the token and returns its claims. Email and workspace are required.
func (s *JWTSigner) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingClaim)
	}
	if claims.Workspace == "" {
		return nil, fmt.Errorf("%w: workspace", ErrMissingClaim)
	}
	return claims, nil
}

// UpgradeExtra returns the extra claims of a privileged upgrade connection
func UpgradeExtra() map[string]string {
	return map[string]string{
		ExtraMode:  "backup",
		ExtraModel: "upgrade",
		ExtraAdmin: "true",
	}
}
