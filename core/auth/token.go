// Package auth issues and verifies the signed session tokens handed to clients at login.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 24 * time.Hour

var (
	// ErrInvalidToken is returned for every token that fails verification,
	// whatever the reason (malformed, bad signature, wrong algorithm, expired).
	ErrInvalidToken = errors.New("invalid token")

	errEmptySecret = errors.New("token secret must not be empty")
)

// Identity is the authenticated principal carried by a token.
type Identity struct {
	ID        int64  `json:"sub"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

// HasRole reports whether the identity holds one of roles.
func (id Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if id.Role == r {
			return true
		}
	}
	return false
}

// claims is the JWT payload. The top-level `sub` shadows RegisteredClaims.Subject,
// keeping the user id numeric on the wire.
type claims struct {
	UserID int64  `json:"sub"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenService returns a TokenService; a ttl <= 0 falls back to DefaultTTL.
func NewTokenService(secret []byte, ttl time.Duration) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		// expiry is checked against the service clock in Verify
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (svc *TokenService) TTL() time.Duration { return svc.ttl }

// Issue signs a token for id, valid for the service TTL.
func (svc *TokenService) Issue(id Identity) (string, error) {
	now := svc.now()
	c := claims{
		UserID: id.ID,
		Name:   id.Name,
		Role:   id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(svc.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(svc.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// Verify checks the token signature and expiry and returns the carried Identity.
func (svc *TokenService) Verify(token string) (Identity, error) {
	var c claims
	tok, err := svc.parser.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return svc.secret, nil
	})
	if err != nil || !tok.Valid {
		return Identity{}, ErrInvalidToken
	}
	if !c.VerifyExpiresAt(svc.now(), true) || c.UserID <= 0 || c.Role == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		ID:        c.UserID,
		Name:      c.Name,
		Role:      c.Role,
		ExpiresAt: c.ExpiresAt.Unix(),
	}, nil
}
