package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/adityarizkyr/session-service/internal/auth/dto"
	"github.com/adityarizkyr/session-service/internal/auth/service"
	autherror "github.com/adityarizkyr/session-service/internal/errors"
)

type AuthHandler struct {
	userService  *service.UserService
	resetService *service.ResetService
	guard        *service.SessionGuard
}

func NewAuthHandler(userService *service.UserService, resetService *service.ResetService, guard *service.SessionGuard) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		resetService: resetService,
		guard:        guard,
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input dto.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	user, err := h.userService.Register(c.UserContext(), input)
	if err != nil {
		switch {
		case errors.Is(err, autherror.ErrEmailAlreadyInUse), errors.Is(err, autherror.ErrWeakPassword):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    user.ID,
		"email": user.Email,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	input.IPAddress = c.IP()

	tokenPair, err := h.userService.Login(c.UserContext(), input)
	if err != nil {
		var locked *autherror.LockedError
		var creds *autherror.CredentialsError

		switch {
		case errors.As(err, &locked):
			return c.Status(fiber.StatusLocked).JSON(fiber.Map{
				"error":      autherror.ErrAccountLocked.Error(),
				"lock_until": locked.LockUntil,
			})
		case errors.As(err, &creds):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":         autherror.ErrInvalidCredentials.Error(),
				"attempts_left": creds.AttemptsLeft,
			})
		case errors.Is(err, autherror.ErrInvalidCredentials):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": autherror.ErrInvalidCredentials.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(tokenPair)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()

	tokens, err := h.userService.Refresh(c.UserContext(), input)
	if err != nil {
		if isAuthFailure(err) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var input dto.ForgotPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()

	if err := h.resetService.RequestReset(c.UserContext(), input); err != nil {
		var locked *autherror.LockedError

		switch {
		case errors.Is(err, autherror.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, autherror.ErrAccountInactive):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
		case errors.As(err, &locked):
			return c.Status(fiber.StatusLocked).JSON(fiber.Map{
				"error":      autherror.ErrAccountLocked.Error(),
				"lock_until": locked.LockUntil,
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to send reset code"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "a reset code has been sent",
	})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var input dto.ResetPasswordInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()

	if err := h.resetService.ConfirmReset(c.UserContext(), input); err != nil {
		switch {
		case errors.Is(err, autherror.ErrOTPNotRequested),
			errors.Is(err, autherror.ErrOTPExpired),
			errors.Is(err, autherror.ErrOTPMismatch),
			errors.Is(err, autherror.ErrWeakPassword):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "password has been reset",
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	actx := AuthFromCtx(c)
	if actx == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":    actx.IdentityID,
		"email": actx.Email,
		"role":  actx.Role.String(),
	})
}

// ForceLogout invalidates all sessions of the target identity by bumping
// its session epoch. Admin only.
func (h *AuthHandler) ForceLogout(c *fiber.Ctx) error {
	id := c.Params("id")

	if err := h.userService.ForceLogout(c.UserContext(), id); err != nil {
		if errors.Is(err, autherror.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func isAuthFailure(err error) bool {
	return errors.Is(err, autherror.ErrTokenMissing) ||
		errors.Is(err, autherror.ErrTokenMalformed) ||
		errors.Is(err, autherror.ErrTokenSignature) ||
		errors.Is(err, autherror.ErrTokenExpired) ||
		errors.Is(err, autherror.ErrSessionInvalidated) ||
		errors.Is(err, autherror.ErrPasswordChanged) ||
		errors.Is(err, autherror.ErrAccountInactive)
}
