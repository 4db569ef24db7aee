package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/logging"
	"github.com/mirrorstack/mirror_server/internal/token"
)

const identityKey = "identity"

type Auth struct {
	Validator *token.Validator
	// AppSentinel is the uname claim value internal app tokens must
	// carry, from config.
	AppSentinel string
}

// RequireUser validates the bearer token and stores the decoded
// identity plus the raw token on the request context. A missing header
// is a 403, anything else a 401, matching the error contract of the
// token layer.
func (a *Auth) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		header := c.Request().Header.Get(echo.HeaderAuthorization)

		identity, err := a.Validator.Validate(ctx, header)
		if err != nil {
			l := logging.FromContext(ctx).With("middleware", "require_user")
			switch {
			case errors.Is(err, token.ErrMissingToken):
				l.Warn("auth_failed", "status", 403, "reason", "missing_token")
				return echo.NewHTTPError(http.StatusForbidden, "a token is required for authentication")
			case errors.Is(err, token.ErrMalformedHeader),
				errors.Is(err, token.ErrRevoked),
				errors.Is(err, token.ErrUnauthorized):
				l.Warn("auth_failed", "status", 401, "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid user bearer token, please login again")
			default:
				l.Error("auth_failed", "status", 500, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
			}
		}

		c.Set(identityKey, identity)
		c.Set("rawToken", rawFromHeader(header))
		return next(c)
	}
}

// RequireAdmin runs RequireUser and then gates on the admin role.
func (a *Auth) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return a.RequireUser(func(c echo.Context) error {
		identity := IdentityFrom(c)
		if !identity.IsAdmin() {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token, must be administrator")
		}
		return next(c)
	})
}

// RequireApp accepts only internal application tokens, used by mirror
// devices rather than logged-in users.
func (a *Auth) RequireApp(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw := rawFromHeader(header)
		if raw == "" {
			return echo.NewHTTPError(http.StatusForbidden, "a token is required for authentication")
		}
		if !a.Validator.Codec.VerifyAppToken(raw, a.AppSentinel) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid application token")
		}
		return next(c)
	}
}

// IdentityFrom returns the identity RequireUser stored on the context.
func IdentityFrom(c echo.Context) token.Identity {
	if v, ok := c.Get(identityKey).(token.Identity); ok {
		return v
	}
	return token.Identity{}
}

// RawTokenFrom returns the raw bearer token of the current request.
func RawTokenFrom(c echo.Context) string {
	if v, ok := c.Get("rawToken").(string); ok {
		return v
	}
	return ""
}

func rawFromHeader(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
