package middleware

import (
	"strings"
	"time"

	"serialfic-monetization/pkg/config"
	"serialfic-monetization/pkg/errutil"

	"github.com/gin-gonic/gin"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// Authenticator verifies HS256 bearer tokens issued by the account service.
// Only the subject claim is used; it is the reader or writer ID.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.Auth.JWTSecret),
		issuer: cfg.Auth.Issuer,
		leeway: time.Minute,
	}
}

func (a *Authenticator) verify(raw string) (string, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", err
	}

	var claims jwt.Claims
	if err := tok.Claims(a.secret, &claims); err != nil {
		return "", err
	}

	if err := claims.ValidateWithLeeway(jwt.Expected{Issuer: a.issuer, Time: time.Now()}, a.leeway); err != nil {
		return "", err
	}

	if claims.Subject == "" {
		return "", jwt.ErrInvalidClaims
	}
	return claims.Subject, nil
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth rejects requests without a valid token.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			_ = c.Error(errutil.Unauthorized("please login", nil, errutil.WithReason(errutil.ReasonLoginRequired)))
			c.Abort()
			return
		}

		userID, err := a.verify(raw)
		if err != nil {
			zap.L().Debug("rejected token", zap.String("request_id", RequestID(c)), zap.Error(err))
			_ = c.Error(errutil.Unauthorized("invalid token", err, errutil.WithReason(errutil.ReasonLoginRequired)))
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			if userID, err := a.verify(raw); err == nil {
				c.Set(userIDKey, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user or "" for anonymous requests.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
