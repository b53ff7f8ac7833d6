package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const masterRole = "admin"

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Unauthorized"})
}

// AuthMiddleware accepts the master API key or a JWT verified against the
// JWKS of AUTH_URL. Without either configured every request passes.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		app := ac.App
		if !app.AuthEnabled() {
			return next(c)
		}

		authHeader := c.Request().Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c)
		}

		// Master API Key bypass
		if app.APIKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(app.APIKey)) == 1 {
			ac.User = &AppUser{Subject: "api-key", Role: masterRole}
			return next(c)
		}

		if app.Key == nil {
			return unauthorized(c)
		}

		k := *app.Key
		parsed, err := jwt.Parse(token, k.Keyfunc)
		if err != nil || !parsed.Valid {
			return unauthorized(c)
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c)
		}
		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			if id, ok := claims["id"].(string); ok {
				subject = id
			} else {
				return c.JSON(http.StatusUnauthorized, map[string]string{"detail": "Invalid user ID"})
			}
		}

		role := "user"
		if roleClaim, ok := claims["role"].(string); ok {
			role = roleClaim
		}

		ac.User = &AppUser{Subject: subject, Role: role}
		return next(c)
	}
}

// RequireAdmin rejects authenticated callers without the admin role. It is a
// no-op when auth is disabled.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		if !ac.App.AuthEnabled() {
			return next(c)
		}
		if ac.User == nil {
			return unauthorized(c)
		}
		if ac.User.Role != masterRole {
			return c.JSON(http.StatusForbidden, map[string]string{"detail": "Forbidden"})
		}
		return next(c)
	}
}
