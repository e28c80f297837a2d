package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellicog/records/pkg/tokens"
)

func TestRequireAuth(t *testing.T) {
	t.Parallel()

	codec := tokens.NewCodec([]byte("access"), []byte("refresh"))
	access, err := codec.Issue("7", tokens.KindAccess, time.Minute)
	require.NoError(t, err)
	refresh, err := codec.Issue("7", tokens.KindRefresh, time.Minute)
	require.NoError(t, err)
	recovery, err := codec.Issue("7", tokens.KindRecovery, time.Minute)
	require.NoError(t, err)

	mw := NewBearerAuth(codec)
	e := echo.New()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"access token", "Bearer " + access.Token, http.StatusOK},
		{"lowercase scheme", "bearer " + access.Token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic abc", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh.Token, http.StatusUnauthorized},
		{"recovery token", "Bearer " + recovery.Token, http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen uint
			err := mw.RequireAuth(func(c echo.Context) error {
				seen, _ = UserID(c)
				return c.NoContent(http.StatusOK)
			})(c)

			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, uint(7), seen)
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.want, he.Code)
			assert.Zero(t, seen)
		})
	}
}

func TestUserID_Unset(t *testing.T) {
	t.Parallel()

	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := UserID(c)
	assert.False(t, ok)
}
