// Package auth implements login, signup and logout against the remote service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verte-zerg/gainview/internal/api"
	"github.com/verte-zerg/gainview/internal/model"
)

// ErrMissingField is returned when a required credential is blank.
var ErrMissingField = errors.New("missing required field")

// ProtectedMessage is shown when an unauthenticated user opens a protected view.
const ProtectedMessage = "It is a protected route, login to access"

// Remote is the subset of the API client used for authentication.
type Remote interface {
	Login(ctx context.Context, email, password string) (api.AuthResult, error)
	Signup(ctx context.Context, name, email, password string) (api.AuthResult, error)
}

// SessionWriter stores the outcome of a successful authentication.
type SessionWriter interface {
	Login(ctx context.Context, user model.User, token string) error
	Logout(ctx context.Context) error
}

// Service runs the auth workflow.
type Service struct {
	remote  Remote
	session SessionWriter
	log     *slog.Logger
}

// NewService constructs a Service. log may be nil.
func NewService(remote Remote, session SessionWriter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{remote: remote, session: session, log: log}
}

// Login authenticates with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (model.User, error) {
	if err := required(map[string]string{"email": email, "password": password}, "email", "password"); err != nil {
		return model.User{}, err
	}
	res, err := s.remote.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.log.Error("login failed", "email", email, "error", err)
		return model.User{}, &Failure{Action: "Login", Err: err}
	}
	return s.store(ctx, res)
}

// Signup creates an account and logs it in.
func (s *Service) Signup(ctx context.Context, name, email, password string) (model.User, error) {
	fields := map[string]string{"name": name, "email": email, "password": password}
	if err := required(fields, "name", "email", "password"); err != nil {
		return model.User{}, err
	}
	res, err := s.remote.Signup(ctx, strings.TrimSpace(name), strings.TrimSpace(email), password)
	if err != nil {
		s.log.Error("signup failed", "email", email, "error", err)
		return model.User{}, &Failure{Action: "Signup", Err: err}
	}
	return s.store(ctx, res)
}

// Logout clears the stored session.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func (s *Service) store(ctx context.Context, res api.AuthResult) (model.User, error) {
	if err := s.session.Login(ctx, res.User, res.Token); err != nil {
		return model.User{}, err
	}
	s.log.Info("authenticated", "user", res.User.ID)
	return res.User, nil
}

func required(values map[string]string, order ...string) error {
	for _, name := range order {
		if strings.TrimSpace(values[name]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, name)
		}
	}
	return nil
}

// Failure is a rejected login or signup.
type Failure struct {
	Action string
	Err    error
}

// Error renders the alert text shown to the user.
func (f *Failure) Error() string {
	detail := api.ServerMessage(f.Err)
	if detail == "" {
		detail = f.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", f.Action, detail)
}

// Unwrap returns the underlying error.
func (f *Failure) Unwrap() error {
	return f.Err
}
