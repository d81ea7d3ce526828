package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, email, password, accountType string) (*domain.Account, error)
	loginFn    func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	resetFn    func(ctx context.Context, token, newPassword string) error
	forgotFn   func(ctx context.Context, email string) (string, error)
}

func (s *stubAuthService) Register(ctx context.Context, email, password, accountType string) (*domain.Account, error) {
	return s.registerFn(ctx, email, password, accountType)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) Refresh(context.Context, string) (*ports.TokenPair, error) {
	return nil, domain.ErrInvalidToken
}

func (s *stubAuthService) Logout(context.Context, string) error { return nil }

func (s *stubAuthService) GenerateResetToken(ctx context.Context, email string) (string, error) {
	return s.forgotFn(ctx, email)
}

func (s *stubAuthService) ResetPasswordWithToken(ctx context.Context, token, newPassword string) error {
	return s.resetFn(ctx, token, newPassword)
}

func newTestContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, email, password string) (*ports.LoginResult, error) {
			if email != "alice@example.com" || password != "s3cret-pass" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return &ports.LoginResult{
				Account: &domain.Account{ID: "acc_1", Email: email, Type: domain.TypeCustomer},
				Tokens:  &ports.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 900},
			}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newTestContext(t, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"s3cret-pass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Tokens.AccessToken != "a" || resp.Account.ID != "acc_1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Login_ValidationRejectsBadEmail(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (*ports.LoginResult, error) {
			t.Fatalf("service must not be called on invalid input")
			return nil, nil
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"x"}`)
	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Login_ErrorPassthrough(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (*ports.LoginResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"wrong-pass"}`)
	if err := h.Login(c); err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials to propagate, got %v", err)
	}
}

func TestAuthHandler_ForgotPassword_DoesNotLeakExistence(t *testing.T) {
	for name, forgot := range map[string]func(context.Context, string) (string, error){
		"known account":   func(context.Context, string) (string, error) { return "token", nil },
		"unknown account": func(context.Context, string) (string, error) { return "", domain.ErrAccountNotFound },
	} {
		h := NewAuthHandler(&stubAuthService{forgotFn: forgot})

		c, rec := newTestContext(t, http.MethodPost, "/auth/forgot-password", `{"email":"a@example.com"}`)
		if err := h.ForgotPassword(c); err != nil {
			t.Fatalf("%s: handler error: %v", name, err)
		}
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: expected 202, got %d", name, rec.Code)
		}
		// The reset token must never appear in the response body.
		if strings.Contains(rec.Body.String(), "token") {
			t.Fatalf("%s: token leaked in response: %s", name, rec.Body.String())
		}
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		resetFn: func(_ context.Context, token, newPassword string) error {
			if token != "tok" || newPassword != "new-password-1" {
				t.Fatalf("unexpected args: %s %s", token, newPassword)
			}
			return nil
		},
	})

	c, rec := newTestContext(t, http.MethodPost, "/auth/reset-password", `{"token":"tok","new_password":"new-password-1"}`)
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestAuthHandler_Register_ShortPasswordRejected(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		registerFn: func(context.Context, string, string, string) (*domain.Account, error) {
			t.Fatalf("service must not be called on invalid input")
			return nil, nil
		},
	})

	c, _ := newTestContext(t, http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"short"}`)
	err := h.Register(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
