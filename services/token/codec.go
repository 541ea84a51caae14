// Package token issues and decodes the signed bearer tokens carried in the
// Authorization header.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature is returned when the signature does not match the payload
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrUnparseableToken is returned when the token is not a decodable three-segment JWT
	ErrUnparseableToken = errors.New("unparseable token")

	// ErrMalformedToken is returned when a verified token lacks a required claim
	ErrMalformedToken = errors.New("malformed token")

	// ErrExpired is returned when the token's expiry is at or before the current time
	ErrExpired = errors.New("token expired")

	// ErrWrongTokenType is returned when a refresh token is presented as an access credential
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrInvalidClaims is returned by Issue when the claims cannot form a valid token
	ErrInvalidClaims = errors.New("invalid claims")
)

// Type distinguishes access tokens from refresh tokens
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

// Claims are the assertions carried by a token
type Claims struct {
	Subject      string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Email        string
	Type         Type
	Scopes       []string
	IsPrivileged bool
}

// Expired reports whether the claims are expired at now
func (c *Claims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// wireClaims is the JSON payload layout
type wireClaims struct {
	jwt.RegisteredClaims
	Email       string   `json:"email,omitempty"`
	Type        string   `json:"type,omitempty"`
	Scopes      []string `json:"scopes,omitempty"`
	IsSuperuser bool     `json:"is_superuser,omitempty"`
}

// Config holds codec settings
type Config struct {
	SigningKey string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Option configures a Codec
type Option func(*Codec)

// WithClock overrides the time source used for defaults and expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// Codec signs and verifies tokens with a shared symmetric key.
// The key is read-only after construction so a Codec is safe for concurrent use.
type Codec struct {
	key        []byte
	method     *jwt.SigningMethodHMAC
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
	now        func() time.Time
}

// NewCodec creates a Codec. An empty key or a non-HMAC algorithm is a configuration error.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("signing key is required")
	}
	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm: %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("access token lifetime must be positive")
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = cfg.AccessTTL
	}

	c := &Codec{
		key:        []byte(cfg.SigningKey),
		method:     method,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		parser:     jwt.NewParser(jwt.WithoutClaimsValidation()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the default access token lifetime
func (c *Codec) AccessTTL() time.Duration {
	return c.accessTTL
}

// Issue signs claims into a compact token.
// Zero IssuedAt defaults to now, zero ExpiresAt to IssuedAt plus the lifetime
// for the token type, and an empty Type to access.
func (c *Codec) Issue(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrInvalidClaims)
	}
	if claims.Type == "" {
		claims.Type = TypeAccess
	}
	if claims.IssuedAt.IsZero() {
		claims.IssuedAt = c.now()
	}
	if claims.ExpiresAt.IsZero() {
		ttl := c.accessTTL
		if claims.Type == TypeRefresh {
			ttl = c.refreshTTL
		}
		claims.ExpiresAt = claims.IssuedAt.Add(ttl)
	}

	// NumericDate has second precision on the wire
	claims.IssuedAt = claims.IssuedAt.Truncate(time.Second)
	claims.ExpiresAt = claims.ExpiresAt.Truncate(time.Second)
	if !claims.ExpiresAt.After(claims.IssuedAt) {
		return "", fmt.Errorf("%w: expiry must be after issue time", ErrInvalidClaims)
	}

	wire := wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
		Email:       claims.Email,
		Type:        string(claims.Type),
		Scopes:      claims.Scopes,
		IsSuperuser: claims.IsPrivileged,
	}

	signed, err := jwt.NewWithClaims(c.method, wire).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// IssueAccess issues an access token for subject with the default lifetime
func (c *Codec) IssueAccess(subject, email string, scopes []string, privileged bool) (string, error) {
	return c.Issue(Claims{
		Subject:      subject,
		Email:        email,
		Type:         TypeAccess,
		Scopes:       scopes,
		IsPrivileged: privileged,
	})
}

// IssueRefresh issues a refresh token for subject with the refresh lifetime
func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.Issue(Claims{Subject: subject, Type: TypeRefresh})
}

// Decode verifies and parses a token. Checks run in a fixed order:
// signature, required claims (sub, exp, iat), then expiry. The first
// failing check determines the returned error.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token must have three segments", ErrUnparseableToken)
	}

	if err := c.verifySignature(parts); err != nil {
		return nil, err
	}

	wire := &wireClaims{}
	parsed, _, err := c.parser.ParseUnverified(tokenString, wire)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnparseableToken, err)
	}
	if parsed.Method.Alg() != c.method.Alg() {
		return nil, fmt.Errorf("%w: unexpected signing method %s", ErrInvalidSignature, parsed.Method.Alg())
	}

	switch {
	case wire.Subject == "":
		return nil, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	case wire.ExpiresAt == nil:
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	case wire.IssuedAt == nil:
		return nil, fmt.Errorf("%w: missing iat claim", ErrMalformedToken)
	}

	claims := &Claims{
		Subject:      wire.Subject,
		IssuedAt:     wire.IssuedAt.Time,
		ExpiresAt:    wire.ExpiresAt.Time,
		Email:        wire.Email,
		Type:         Type(wire.Type),
		Scopes:       wire.Scopes,
		IsPrivileged: wire.IsSuperuser,
	}
	if claims.Type == "" {
		claims.Type = TypeAccess
	}
	if claims.Scopes == nil {
		claims.Scopes = []string{}
	}

	if claims.Expired(c.now()) {
		return nil, ErrExpired
	}

	return claims, nil
}

// DecodeAccess decodes a token and additionally rejects refresh tokens.
// Any other type value is accepted.
func (c *Codec) DecodeAccess(tokenString string) (*Claims, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type == TypeRefresh {
		return nil, fmt.Errorf("%w: %s", ErrWrongTokenType, claims.Type)
	}
	return claims, nil
}

// verifySignature checks the HMAC over the raw header and payload segments
// before any claim is interpreted
func (c *Codec) verifySignature(parts []string) error {
	sig, err := c.parser.DecodeSegment(parts[2])
	if err != nil {
		return fmt.Errorf("%w: undecodable signature", ErrInvalidSignature)
	}
	if err := c.method.Verify(parts[0]+"."+parts[1], sig, c.key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
