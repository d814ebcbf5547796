package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("s3cr3t-for-tests")

func newTestService(t *testing.T, now time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestNewTokenService(t *testing.T) {
	_, err := NewTokenService(nil, time.Hour)
	assert.Error(t, err)

	svc, err := NewTokenService(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.TTL())
}

func TestTokenService_IssueVerify(t *testing.T) {
	now := time.Date(2024, 7, 17, 8, 0, 0, 0, time.UTC)
	svc := newTestService(t, now)
	id := Identity{ID: 7, Name: "Bu Sari", Role: "guru"}

	token, err := svc.Issue(id)
	require.NoError(t, err)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id.ID, got.ID)
	assert.Equal(t, id.Name, got.Name)
	assert.Equal(t, id.Role, got.Role)
	assert.Equal(t, now.Add(DefaultTTL).Unix(), got.ExpiresAt)

	// same identity twice yields distinct tokens (jti)
	token2, err := svc.Issue(id)
	require.NoError(t, err)
	assert.NotEqual(t, token, token2)
}

func TestTokenService_Verify(t *testing.T) {
	issuedAt := time.Date(2024, 7, 17, 8, 0, 0, 0, time.UTC)
	issuer := newTestService(t, issuedAt)
	token, err := issuer.Issue(Identity{ID: 1, Name: "Admin", Role: "admin"})
	require.NoError(t, err)

	otherSecret, err := NewTokenService([]byte("another-secret"), 0)
	require.NoError(t, err)
	otherSecret.now = issuer.now

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512Token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims{
		UserID:           1,
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour))},
	}).SignedString(testSecret)
	require.NoError(t, err)

	noExpToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{UserID: 1, Role: "admin"}).SignedString(testSecret)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	tests := []struct {
		name    string
		svc     *TokenService
		at      time.Time
		token   string
		wantErr bool
	}{
		{name: "valid", svc: issuer, at: issuedAt.Add(time.Hour), token: token},
		{name: "just before expiry", svc: issuer, at: issuedAt.Add(DefaultTTL - time.Second), token: token},
		{name: "expired", svc: issuer, at: issuedAt.Add(DefaultTTL + time.Second), token: token, wantErr: true},
		{name: "wrong secret", svc: otherSecret, at: issuedAt, token: token, wantErr: true},
		{name: "tampered signature", svc: issuer, at: issuedAt, token: tampered, wantErr: true},
		{name: "alg none", svc: issuer, at: issuedAt, token: noneToken, wantErr: true},
		{name: "other hmac alg", svc: issuer, at: issuedAt, token: hs512Token, wantErr: true},
		{name: "missing exp", svc: issuer, at: issuedAt, token: noExpToken, wantErr: true},
		{name: "malformed", svc: issuer, at: issuedAt, token: "not.a.token", wantErr: true},
		{name: "empty", svc: issuer, at: issuedAt, token: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			tt.svc.now = func() time.Time { return at }

			id, err := tt.svc.Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				assert.Zero(t, id)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, int64(1), id.ID)
		})
	}
}

func TestIdentity_HasRole(t *testing.T) {
	id := Identity{ID: 3, Role: "guru"}
	assert.True(t, id.HasRole("admin", "guru"))
	assert.False(t, id.HasRole("admin"))
	assert.False(t, id.HasRole())
}
