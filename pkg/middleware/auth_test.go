package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"serialfic-monetization/pkg/config"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret, subject string, expiry time.Time) string {
	t.Helper()

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: []byte(secret)}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)

	raw, err := jwt.Signed(signer).Claims(jwt.Claims{
		Subject: subject,
		Issuer:  "accounts",
		Expiry:  jwt.NewNumericDate(expiry),
	}).Serialize()
	require.NoError(t, err)
	return raw
}

func newRouter() *gin.Engine {
	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret
	cfg.Auth.Issuer = "accounts"
	auth := NewAuthenticator(cfg)

	r := gin.New()
	r.Use(RequestIDMiddleware(), Error())
	r.GET("/private", auth.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	r.GET("/public", auth.OptionalAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, "user="+UserID(c))
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	r := newRouter()

	w := do(r, "/private", signToken(t, testSecret, "reader-1", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "reader-1", w.Body.String())
	require.NotEmpty(t, w.Header().Get(HeaderRequestID))

	w = do(r, "/private", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "LOGIN_REQUIRED")

	w = do(r, "/private", signToken(t, testSecret, "reader-1", time.Now().Add(-time.Hour)))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/private", signToken(t, "ffffffffffffffffffffffffffffffff", "reader-1", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter()

	w := do(r, "/public", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user=", w.Body.String())

	w = do(r, "/public", signToken(t, testSecret, "reader-2", time.Now().Add(time.Hour)))
	require.Equal(t, "user=reader-2", w.Body.String())

	w = do(r, "/public", "garbage")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "user=", w.Body.String())
}
