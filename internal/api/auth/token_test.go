package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_IssueVerify(t *testing.T) {
	tokens := NewTokens("0123456789abcdef", time.Hour)

	signed, err := tokens.Issue("session-1")
	require.NoError(t, err)

	sub, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "session-1", sub)

	assert.NoError(t, tokens.VerifyFor(signed, "session-1"))
	assert.ErrorIs(t, tokens.VerifyFor(signed, "session-2"), ErrInvalidToken)
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("0123456789abcdef", time.Hour)

	expired := NewTokens("0123456789abcdef", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.Issue("s")
	require.NoError(t, err)

	otherKey, err := NewTokens("fedcba9876543210", time.Hour).Issue("s")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "s", Issuer: issuer}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "Garbage", token: "not-a-jwt"},
		{name: "Expired", token: expiredToken},
		{name: "Wrong key", token: otherKey},
		{name: "Unsigned", token: none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestRequireSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := NewTokens("0123456789abcdef", time.Hour)
	good, err := tokens.Issue("abc")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/sessions/:id", tokens.RequireSession(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{name: "Valid token", path: "/sessions/abc", header: "Bearer " + good, want: http.StatusNoContent},
		{name: "Missing header", path: "/sessions/abc", want: http.StatusUnauthorized},
		{name: "Not bearer", path: "/sessions/abc", header: good, want: http.StatusUnauthorized},
		{name: "Other session", path: "/sessions/xyz", header: "Bearer " + good, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
