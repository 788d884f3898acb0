package service

import (
	"context"
	"errors"
	"testing"

	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
)

func TestAuth_Login(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{user: model.User{ID: 1, Username: "anna"}}
	sess := &fakeSession{}
	s := NewAuthService(api, sess, nil)
	ctx := context.Background()

	if _, err := s.Login(ctx, "  ", "pw"); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if api.count("login") != 0 {
		t.Fatalf("validation must happen before the request")
	}

	api.loginErr = &errs.APIError{Status: 401, Message: "invalid email or password"}
	if _, err := s.Login(ctx, "a@x.io", "bad"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if sess.Authenticated(ctx) {
		t.Fatalf("failed login must not store a session")
	}
	api.loginErr = nil

	u, err := s.Login(ctx, " a@x.io ", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Username != "anna" {
		t.Fatalf("bad user: %+v", u)
	}
	if sess.tokens.AccessToken != "acc-a@x.io" || sess.tokens.RefreshToken != "ref-a@x.io" {
		t.Fatalf("tokens not stored: %+v", sess.tokens)
	}

	sess.setErr = errBoom
	if _, err := s.Login(ctx, "a@x.io", "pw"); !errors.Is(err, errBoom) {
		t.Fatalf("want store error, got %v", err)
	}
}

func TestAuth_Register(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	sess := &fakeSession{}
	s := NewAuthService(api, sess, nil)
	ctx := context.Background()

	if _, err := s.Register(ctx, model.RegisterRequest{Email: "a@x.io"}); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}

	api.regErr = &errs.APIError{Status: 409, Message: "user with this email or username already exists"}
	if _, err := s.Register(ctx, model.RegisterRequest{Email: "a@x.io", Username: "anna", Password: "secret1"}); err == nil {
		t.Fatalf("want conflict error")
	}
	api.regErr = nil

	u, err := s.Register(ctx, model.RegisterRequest{Email: "a@x.io", Username: "anna", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Username != "anna" || sess.sets != 1 {
		t.Fatalf("register did not store the session: %+v sets=%d", u, sess.sets)
	}
}

func TestAuth_LogoutAlwaysClears(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{logoutErr: errBoom}
	sess := &fakeSession{tokens: model.Tokens{AccessToken: "a", RefreshToken: "r"}}
	s := NewAuthService(api, sess, nil)
	ctx := context.Background()

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("server failure must be ignored, got %v", err)
	}
	if sess.Authenticated(ctx) || sess.clears != 1 {
		t.Fatalf("session not cleared")
	}
	if api.count("logout") != 1 {
		t.Fatalf("server logout not attempted")
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if api.count("logout") != 1 {
		t.Fatalf("no refresh token means no server call")
	}

	sess.clearErr = errBoom
	if err := s.Logout(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("want clear error, got %v", err)
	}
}

func TestAuth_MeWithoutSession(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{user: model.User{ID: 3}}
	sess := &fakeSession{}
	s := NewAuthService(api, sess, nil)
	ctx := context.Background()

	if _, err := s.Me(ctx); !errors.Is(err, errs.ErrNotAuthenticated) {
		t.Fatalf("want ErrNotAuthenticated, got %v", err)
	}
	if api.count("me") != 0 {
		t.Fatalf("Me must not hit the network without a token")
	}

	sess.tokens = model.Tokens{AccessToken: "a"}
	u, err := s.Me(ctx)
	if err != nil || u.ID != 3 {
		t.Fatalf("Me: %+v %v", u, err)
	}
}
