// Package tokens issues and verifies the signed bearer credentials used by the
// API: short lived access tokens, long lived refresh tokens carrying a session
// id, and recovery tokens that authorize a single password change.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	KindAccess   Kind = "access"
	KindRefresh  Kind = "refresh"
	KindRecovery Kind = "recovery"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrWrongKind        = errors.New("wrong token kind")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
	ErrUnknownKind      = errors.New("unknown token kind")
)

// tracked kinds carry a jti that the server records so the token can be
// revoked or spent.
func (k Kind) tracked() bool {
	return k == KindRefresh || k == KindRecovery
}

type Claims struct {
	Kind  Kind              `json:"token_type"`
	Extra map[string]string `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// SessionID is the jti of refresh and recovery tokens; empty for access tokens.
func (c *Claims) SessionID() string {
	return c.ID
}

type Issued struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewCodec(accessSecret, refreshSecret []byte) *Codec {
	return &Codec{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		now:           time.Now,
	}
}

// WithClock returns a copy of the codec reading time from now.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) secret(kind Kind) ([]byte, error) {
	switch kind {
	case KindAccess, KindRecovery:
		return c.accessSecret, nil
	case KindRefresh:
		return c.refreshSecret, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func (c *Codec) Issue(subject string, kind Kind, ttl time.Duration) (Issued, error) {
	return c.IssueWithClaims(subject, kind, nil, ttl)
}

func (c *Codec) IssueWithClaims(subject string, kind Kind, extra map[string]string, ttl time.Duration) (Issued, error) {
	secret, err := c.secret(kind)
	if err != nil {
		return Issued{}, err
	}
	if subject == "" {
		return Issued{}, fmt.Errorf("%w: empty subject", ErrMalformed)
	}

	now := c.now()
	exp := now.Add(ttl)
	claims := Claims{
		Kind:  kind,
		Extra: extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	if kind.tracked() {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, fmt.Errorf("sign %s token: %w", kind, err)
	}

	return Issued{
		Token:     signed,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks the MAC with the secret of expected, then expiry and the
// embedded kind tag. Every failure wraps ErrInvalidToken.
func (c *Codec) Verify(raw string, expected Kind) (*Claims, error) {
	secret, err := c.secret(expected)
	if err != nil {
		return nil, err
	}

	var claims Claims
	_, err = jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	switch {
	case claims.Kind == "" || claims.Subject == "":
		return nil, invalid(ErrMalformed)
	case claims.Kind != expected:
		return nil, invalid(ErrWrongKind)
	case expected.tracked() && claims.ID == "":
		return nil, invalid(ErrMalformed)
	}

	return &claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return invalid(ErrInvalidSignature)
	case errors.Is(err, jwt.ErrTokenExpired):
		return invalid(ErrExpired)
	default:
		return fmt.Errorf("%w: %w: %v", ErrInvalidToken, ErrMalformed, err)
	}
}

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrInvalidToken, reason)
}
