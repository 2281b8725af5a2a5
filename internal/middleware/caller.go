package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	callerLocal  = "caller"
	callerHeader = "X-Caller-Identity"
)

// CallerConfig configures CallerIdentity.
type CallerConfig struct {
	// Secret verifies HS256 bearer tokens issued by the authenticating collaborator.
	Secret string
	// TrustHeader accepts X-Caller-Identity when no bearer token is sent.
	// Only meant for local development without an auth collaborator.
	TrustHeader bool
}

// CallerIdentity resolves the caller address for every request. Requests
// without a resolvable identity continue anonymously; handlers that need a
// caller reject them.
func CallerIdentity(cfg CallerConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			if cfg.Secret == "" {
				return fiber.NewError(http.StatusUnauthorized, "bearer tokens are not accepted")
			}
			sub, err := verifyCallerToken(strings.TrimSpace(authz[len("Bearer "):]), []byte(cfg.Secret))
			if err != nil {
				return fiber.NewError(http.StatusUnauthorized, "invalid token")
			}
			c.Locals(callerLocal, sub)
			return c.Next()
		}

		if cfg.TrustHeader {
			if id := strings.TrimSpace(c.Get(callerHeader)); id != "" {
				c.Locals(callerLocal, id)
			}
		}
		return c.Next()
	}
}

// Caller returns the identity resolved by CallerIdentity, or "".
func Caller(c *fiber.Ctx) string {
	id, _ := c.Locals(callerLocal).(string)
	return id
}

func verifyCallerToken(raw string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
