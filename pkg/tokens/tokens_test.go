package tokens

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)

func newTestCodec(now *time.Time) *Codec {
	return NewCodec([]byte("test-jwt-secret"), []byte("test-refresh-secret")).
		WithClock(func() time.Time { return *now })
}

func TestIssue_AccessClaims(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	iss, err := c.Issue("42", KindAccess, 30*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, iss.Token)
	assert.Empty(t, iss.SessionID)
	assert.Equal(t, epoch.Add(30*time.Minute), iss.ExpiresAt)

	claims, err := c.Verify(iss.Token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Empty(t, claims.SessionID())
}

func TestIssue_RefreshCarriesFreshSessionID(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	a, err := c.Issue("7", KindRefresh, 3*time.Hour)
	require.NoError(t, err)
	b, err := c.Issue("7", KindRefresh, 3*time.Hour)
	require.NoError(t, err)

	require.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)

	claims, err := c.Verify(a.Token, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, a.SessionID, claims.SessionID())
}

func TestIssue_ExtraClaims(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	iss, err := c.IssueWithClaims("9", KindRecovery, map[string]string{"email": "a@b.c"}, 10*time.Minute)
	require.NoError(t, err)

	require.NotEmpty(t, iss.SessionID)

	claims, err := c.Verify(iss.Token, KindRecovery)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", claims.Extra["email"])
	assert.Equal(t, iss.SessionID, claims.SessionID())
}

func TestVerify_RecoveryWithoutID(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "1",
		"token_type": "recovery",
		"exp":        epoch.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-jwt-secret"))
	require.NoError(t, err)

	_, err = c.Verify(raw, KindRecovery)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestIssue_Rejects(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	_, err := c.Issue("", KindAccess, time.Minute)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Issue("1", Kind("session"), time.Minute)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestVerify_KindMismatch(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	access, err := c.Issue("1", KindAccess, time.Minute)
	require.NoError(t, err)
	refresh, err := c.Issue("1", KindRefresh, time.Hour)
	require.NoError(t, err)
	recovery, err := c.Issue("1", KindRecovery, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		expected Kind
		want     error
	}{
		{name: "access as refresh", token: access.Token, expected: KindRefresh, want: ErrInvalidSignature},
		{name: "refresh as access", token: refresh.Token, expected: KindAccess, want: ErrInvalidSignature},
		{name: "recovery as access", token: recovery.Token, expected: KindAccess, want: ErrWrongKind},
		{name: "access as recovery", token: access.Token, expected: KindRecovery, want: ErrWrongKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := c.Verify(tt.token, tt.expected)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_Expiry(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	iss, err := c.Issue("1", KindAccess, time.Minute)
	require.NoError(t, err)

	now = epoch.Add(59 * time.Second)
	_, err = c.Verify(iss.Token, KindAccess)
	require.NoError(t, err)

	now = epoch.Add(time.Minute)
	_, err = c.Verify(iss.Token, KindAccess)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_TamperedSignature(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	iss, err := c.Issue("1", KindAccess, time.Minute)
	require.NoError(t, err)

	parts := strings.Split(iss.Token, ".")
	require.Len(t, parts, 3)
	forged, err := NewCodec([]byte("other"), []byte("other")).WithClock(func() time.Time { return now }).Issue("2", KindAccess, time.Minute)
	require.NoError(t, err)
	forgedParts := strings.Split(forged.Token, ".")

	mixed := parts[0] + "." + forgedParts[1] + "." + parts[2]
	_, err = c.Verify(mixed, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)
	secret := []byte("test-jwt-secret")

	sign := func(claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-valid-jwt"},
		{name: "missing kind", token: sign(jwt.MapClaims{"sub": "1", "exp": epoch.Add(time.Hour).Unix()})},
		{name: "missing subject", token: sign(jwt.MapClaims{"token_type": "access", "exp": epoch.Add(time.Hour).Unix()})},
		{name: "missing expiry", token: sign(jwt.MapClaims{"sub": "1", "token_type": "access"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Verify(tt.token, KindAccess)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestVerify_RefreshWithoutSessionID(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "1",
		"token_type": "refresh",
		"exp":        epoch.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-refresh-secret"))
	require.NoError(t, err)

	_, err = c.Verify(raw, KindRefresh)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	now := epoch
	c := newTestCodec(&now)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub":        "1",
		"token_type": "access",
		"exp":        epoch.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-jwt-secret"))
	require.NoError(t, err)

	_, err = c.Verify(raw, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
