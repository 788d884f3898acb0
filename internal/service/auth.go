// Package service contains the client flows built on top of the API accessors:
// authentication, posts, comments and home page statistics.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/travelblog/internal/errs"
	"github.com/and161185/travelblog/internal/model"
)

// AuthService defines login, registration and logout flows.
type AuthService interface {
	// Login authenticates and stores the returned token pair.
	Login(ctx context.Context, email, password string) (model.User, error)
	// Register creates an account and stores the returned token pair.
	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	// Logout revokes the refresh token (best-effort) and always clears the local session.
	Logout(ctx context.Context) error
	// Me returns the current user.
	Me(ctx context.Context) (model.User, error)
}

type AuthServiceImpl struct {
	api     AuthAPI
	session Session
	log     *zap.Logger
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(api AuthAPI, session Session, log *zap.Logger) *AuthServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthServiceImpl{api: api, session: session, log: log}
}

// Login validates input, calls the API and persists the session.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.User{}, fmt.Errorf("%w: email and password are required", errs.ErrInvalidInput)
	}
	resp, err := s.api.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		return model.User{}, err
	}
	if err := s.store(ctx, resp.Tokens()); err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

// Register validates input, calls the API and persists the session.
func (s *AuthServiceImpl) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" || req.Password == "" {
		return model.User{}, fmt.Errorf("%w: email, username and password are required", errs.ErrInvalidInput)
	}
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		return model.User{}, err
	}
	if err := s.store(ctx, resp.Tokens()); err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

func (s *AuthServiceImpl) store(ctx context.Context, t model.Tokens) error {
	if err := s.session.SetSession(ctx, t.AccessToken, t.RefreshToken); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Logout tells the server first; its failure is logged and ignored.
func (s *AuthServiceImpl) Logout(ctx context.Context) error {
	if refresh := s.session.RefreshToken(ctx); refresh != "" {
		if err := s.api.Logout(ctx, refresh); err != nil {
			s.log.Warn("server logout failed", zap.Error(err))
		}
	}
	return s.session.ClearSession(ctx)
}

// Me skips the network when no token is stored.
func (s *AuthServiceImpl) Me(ctx context.Context) (model.User, error) {
	if !s.session.Authenticated(ctx) {
		return model.User{}, errs.ErrNotAuthenticated
	}
	return s.api.Me(ctx)
}
