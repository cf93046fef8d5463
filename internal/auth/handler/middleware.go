package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/adityarizkyr/session-service/internal/auth/domain"
	"github.com/adityarizkyr/session-service/internal/auth/service"
	autherror "github.com/adityarizkyr/session-service/internal/errors"
	"github.com/adityarizkyr/session-service/internal/ratelimit"
)

const localsAuthContext = "auth_context"

// AuthFromCtx returns the authenticated context placed by RequireAuth, or
// nil on unauthenticated requests.
func AuthFromCtx(c *fiber.Ctx) *service.AuthenticatedContext {
	actx, _ := c.Locals(localsAuthContext).(*service.AuthenticatedContext)
	return actx
}

// RequireAuth validates the bearer token against the live identity and
// stores the resulting AuthenticatedContext for downstream handlers. The
// 401 body names the exact reason so clients can distinguish an expired
// token from an invalidated session.
func (h *AuthHandler) RequireAuth(c *fiber.Ctx) error {
	actx, err := h.guard.Authenticate(c.UserContext(), bearerToken(c))
	if err != nil {
		if isAuthFailure(err) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  "unauthorized",
				"reason": authFailureReason(err),
			})
		}
		// Repository failure: deny, never fail open.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	c.Locals(localsAuthContext, actx)

	return c.Next()
}

// RequireRole gates a route on the ordered role comparator. Must run
// after RequireAuth.
func (h *AuthHandler) RequireRole(required domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actx := AuthFromCtx(c)
		if actx == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		if !actx.Role.Satisfies(required) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "insufficient role"})
		}
		return c.Next()
	}
}

// RateLimitByEmail applies a fixed-window budget keyed by client address
// plus the submitted email. Limiter store failures deny the request.
func RateLimitByEmail(limiter *ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body struct {
			Email string `json:"email"`
		}
		// Body parse failures fall through with an empty email key; the
		// handler will reject the malformed body itself.
		_ = c.BodyParser(&body)

		key := c.IP() + ":" + domain.NormalizeEmail(body.Email)

		decision, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service unavailable"})
		}
		if !decision.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(decision.RetryAfterSeconds()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": autherror.ErrTooManyRequests.Error(),
			})
		}

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func authFailureReason(err error) string {
	switch {
	case errors.Is(err, autherror.ErrTokenMissing):
		return "missing"
	case errors.Is(err, autherror.ErrTokenExpired):
		return "expired"
	case errors.Is(err, autherror.ErrSessionInvalidated):
		return "session-invalidated"
	case errors.Is(err, autherror.ErrPasswordChanged):
		return "password-changed"
	case errors.Is(err, autherror.ErrAccountInactive):
		return "inactive"
	default:
		return "invalid"
	}
}
