package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

// principalKey is the echo context key the verified principal is stored
// under. Handlers retrieve it with PrincipalFrom.
const principalKey = "principal"

// Authenticate verifies the bearer access token and attaches the resulting
// principal to the request context.
func Authenticate(issuer ports.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			principal, err := issuer.VerifyAccess(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired access token")
			}

			c.Set(principalKey, *principal)
			return next(c)
		}
	}
}

// PrincipalFrom extracts the principal attached by Authenticate. The second
// return is false when the middleware did not run.
func PrincipalFrom(c echo.Context) (domain.Principal, bool) {
	p, ok := c.Get(principalKey).(domain.Principal)
	return p, ok
}
