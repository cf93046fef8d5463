package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/adityarizkyr/session-service/config"
	"github.com/adityarizkyr/session-service/internal/auth/domain"
	"github.com/adityarizkyr/session-service/internal/auth/handler"
	"github.com/adityarizkyr/session-service/internal/auth/service"
	"github.com/adityarizkyr/session-service/internal/mocks"
	"github.com/adityarizkyr/session-service/internal/ratelimit"
)

type testEnv struct {
	app    *fiber.App
	repo   *mocks.MockIdentityRepository
	mailer *mocks.MockEmailSender
	tokens *service.TokenService
}

func newTestEnv(t *testing.T, ctrl *gomock.Controller, loginBudget int) *testEnv {
	t.Helper()

	cfg := &config.Config{
		LoginMaxAttempts:      5,
		LoginAttemptWindowMin: 15,
		LockDurationMin:       30,
		OTPExpiryMin:          10,
	}

	repo := mocks.NewMockIdentityRepository(ctrl)
	sender := mocks.NewMockEmailSender(ctrl)
	tokens := service.NewTokenService("test-access-secret", "test-refresh-secret", 15, 1440)

	userService := service.NewUserService(repo, tokens, cfg, nil)
	resetService := service.NewResetService(repo, sender, cfg, nil)
	guard := service.NewSessionGuard(repo, tokens)

	h := handler.NewAuthHandler(userService, resetService, guard)

	store := ratelimit.NewMemoryStore()
	loginLimiter := ratelimit.New(store, "login", time.Minute, int64(loginBudget))
	forgotLimiter := ratelimit.New(store, "forgot", time.Minute, 100)

	app := fiber.New()
	handler.RegisterRoutes(app, h, loginLimiter, forgotLimiter)

	return &testEnv{app: app, repo: repo, mailer: sender, tokens: tokens}
}

func (e *testEnv) postJSON(t *testing.T, path string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func storedIdentity(t *testing.T, password string) *domain.Identity {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.Identity{
		ID:                "user-123",
		Email:             "test@example.com",
		PasswordHash:      string(hash),
		Role:              domain.RoleViewer,
		IsActive:          true,
		SessionVersion:    1,
		PasswordChangedAt: time.Now().Add(-time.Hour),
	}
}

func TestLoginEndpoint_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)
	env.repo.EXPECT().CompareAndSwapUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	resp := env.postJSON(t, "/api/v1/login", fiber.Map{
		"email":    "test@example.com",
		"password": "password123",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-123", user["id"])
}

func TestLoginEndpoint_WrongPasswordExposesAttemptsLeft(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)
	env.repo.EXPECT().CompareAndSwapUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	resp := env.postJSON(t, "/api/v1/login", fiber.Map{
		"email":    "test@example.com",
		"password": "wrong",
	})

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "invalid credentials", body["error"])
	assert.Equal(t, float64(4), body["attempts_left"])
}

func TestLoginEndpoint_UnknownEmailOmitsAttemptsLeft(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	env.repo.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").Return(nil, nil)

	resp := env.postJSON(t, "/api/v1/login", fiber.Map{
		"email":    "nobody@example.com",
		"password": "whatever",
	})

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "invalid credentials", body["error"])
	_, present := body["attempts_left"]
	assert.False(t, present)
}

func TestLoginEndpoint_LockedAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	lockUntil := time.Now().Add(10 * time.Minute)
	identity.LockUntil = &lockUntil

	env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)

	resp := env.postJSON(t, "/api/v1/login", fiber.Map{
		"email":    "test@example.com",
		"password": "password123",
	})

	assert.Equal(t, fiber.StatusLocked, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "account temporarily locked", body["error"])
	assert.NotEmpty(t, body["lock_until"])
}

func TestLoginEndpoint_MalformedBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoginEndpoint_RateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 1)

	env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(nil, nil)

	payload := fiber.Map{"email": "test@example.com", "password": "whatever"}

	resp := env.postJSON(t, "/api/v1/login", payload)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Budget exhausted: rejected before credentials are even looked at.
	resp = env.postJSON(t, "/api/v1/login", payload)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	retryAfter := resp.Header.Get(fiber.HeaderRetryAfter)
	require.NotEmpty(t, retryAfter)
	assert.NotEqual(t, "0", retryAfter)
	body := decodeBody(t, resp)
	assert.Equal(t, "too many requests", body["error"])
}

func TestLoginEndpoint_RateLimitKeyedPerEmail(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 1)

	env.repo.EXPECT().GetByEmail(gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	resp := env.postJSON(t, "/api/v1/login", fiber.Map{"email": "a@example.com", "password": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// A different email from the same address has its own budget.
	resp = env.postJSON(t, "/api/v1/login", fiber.Map{"email": "b@example.com", "password": "x"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	t.Run("created", func(t *testing.T) {
		env.repo.EXPECT().GetByEmail(gomock.Any(), "new@example.com").Return(nil, nil)
		env.repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		resp := env.postJSON(t, "/api/v1/register", fiber.Map{
			"email":    "new@example.com",
			"password": "password123",
		})

		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "new@example.com", body["email"])
		assert.NotEmpty(t, body["id"])
	})

	t.Run("duplicate email", func(t *testing.T) {
		env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(storedIdentity(t, "x"), nil)

		resp := env.postJSON(t, "/api/v1/register", fiber.Map{
			"email":    "test@example.com",
			"password": "password123",
		})

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("weak password", func(t *testing.T) {
		env.repo.EXPECT().GetByEmail(gomock.Any(), "new@example.com").Return(nil, nil)

		resp := env.postJSON(t, "/api/v1/register", fiber.Map{
			"email":    "new@example.com",
			"password": "short",
		})

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestRefreshEndpoint_StaleEpochRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	_, refreshToken, _, err := env.tokens.Generate(identity)
	require.NoError(t, err)

	// A later login advanced the stored epoch past the token's.
	current := storedIdentity(t, "password123")
	current.SessionVersion = identity.SessionVersion + 1
	env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(current, nil)

	resp := env.postJSON(t, "/api/v1/refresh", fiber.Map{"refresh_token": refreshToken})

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshEndpoint_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	_, refreshToken, _, err := env.tokens.Generate(identity)
	require.NoError(t, err)

	env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(identity, nil)

	resp := env.postJSON(t, "/api/v1/refresh", fiber.Map{"refresh_token": refreshToken})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
}

func TestForgotPasswordEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	t.Run("sends code", func(t *testing.T) {
		identity := storedIdentity(t, "password123")
		env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)
		env.repo.EXPECT().CompareAndSwapUpdate(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
		env.mailer.EXPECT().SendOTP(gomock.Any(), "test@example.com", gomock.Any(), gomock.Any()).Return(nil)

		resp := env.postJSON(t, "/api/v1/forgot-password", fiber.Map{"email": "test@example.com"})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("unknown email", func(t *testing.T) {
		env.repo.EXPECT().GetByEmail(gomock.Any(), "nobody@example.com").Return(nil, nil)

		resp := env.postJSON(t, "/api/v1/forgot-password", fiber.Map{"email": "nobody@example.com"})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("locked account", func(t *testing.T) {
		identity := storedIdentity(t, "password123")
		lockUntil := time.Now().Add(10 * time.Minute)
		identity.LockUntil = &lockUntil
		env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)

		resp := env.postJSON(t, "/api/v1/forgot-password", fiber.Map{"email": "test@example.com"})
		assert.Equal(t, fiber.StatusLocked, resp.StatusCode)
	})
}

func TestResetPasswordEndpoint_BadCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	domain.IssueOTP(identity, "482913", time.Now(), 10*time.Minute)
	env.repo.EXPECT().GetByEmail(gomock.Any(), "test@example.com").Return(identity, nil)

	resp := env.postJSON(t, "/api/v1/reset-password", fiber.Map{
		"email":        "test@example.com",
		"otp":          "000000",
		"new_password": "new-password-1",
	})

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "one-time code mismatch", body["error"])
}

func TestMeEndpoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	identity := storedIdentity(t, "password123")
	accessToken, _, _, err := env.tokens.Generate(identity)
	require.NoError(t, err)

	t.Run("authenticated", func(t *testing.T) {
		env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(identity, nil)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
		resp, err := env.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "user-123", body["id"])
		assert.Equal(t, "viewer", body["role"])
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/me", nil)
		resp, err := env.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "missing", body["reason"])
	})

	t.Run("invalidated by newer login", func(t *testing.T) {
		current := storedIdentity(t, "password123")
		current.SessionVersion = identity.SessionVersion + 1
		env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(current, nil)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
		resp, err := env.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "session-invalidated", body["reason"])
	})

	t.Run("password changed after issuance", func(t *testing.T) {
		current := storedIdentity(t, "password123")
		current.PasswordChangedAt = time.Now().Add(time.Hour)
		env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(current, nil)

		req := httptest.NewRequest(fiber.MethodGet, "/api/v1/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
		resp, err := env.app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "password-changed", body["reason"])
	})
}

func TestForceLogoutEndpoint_RequiresAdmin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	viewer := storedIdentity(t, "password123")
	accessToken, _, _, err := env.tokens.Generate(viewer)
	require.NoError(t, err)

	env.repo.EXPECT().GetByID(gomock.Any(), "user-123").Return(viewer, nil)

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/admin/user/user-456/sessions", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestForceLogoutEndpoint_AdminBumpsTargetEpoch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	env := newTestEnv(t, ctrl, 100)

	admin := storedIdentity(t, "password123")
	admin.ID = "admin-1"
	admin.Role = domain.RoleAdmin
	accessToken, _, _, err := env.tokens.Generate(admin)
	require.NoError(t, err)

	target := storedIdentity(t, "password123")
	target.ID = "user-456"

	env.repo.EXPECT().GetByID(gomock.Any(), "admin-1").Return(admin, nil)
	env.repo.EXPECT().GetByID(gomock.Any(), "user-456").Return(target, nil)
	env.repo.EXPECT().CompareAndSwapUpdate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, updated, expected *domain.Identity) (bool, error) {
			assert.Equal(t, expected.SessionVersion+1, updated.SessionVersion)
			return true, nil
		})

	req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/admin/user/user-456/sessions", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+accessToken)
	resp, err := env.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
