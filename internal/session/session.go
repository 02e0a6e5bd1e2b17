// Package session keeps the authenticated user and token, persisted across runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/gainview/internal/model"
	"github.com/verte-zerg/gainview/internal/store"
)

// Storage keys.
const (
	StateKey = "auth-storage"
	TokenKey = "token"
)

// Backend is the durable key/value storage a Provider persists into.
type Backend interface {
	GetState(ctx context.Context, key string) (string, error)
	PutState(ctx context.Context, key, value string) error
	DeleteState(ctx context.Context, key string) error
}

// Provider is the single source of truth for authentication state.
// It is the only writer of the persisted session record.
type Provider struct {
	backend Backend

	mu      sync.RWMutex
	current model.Session
	token   string
	nextID  int
	subs    map[int]func(model.Session)
}

// Open loads the persisted session, if any.
func Open(ctx context.Context, backend Backend) (*Provider, error) {
	p := &Provider{
		backend: backend,
		subs:    map[int]func(model.Session){},
	}
	raw, err := backend.GetState(ctx, StateKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return p, nil
	case err != nil:
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.IsAuthenticated && sess.User == nil {
		sess.IsAuthenticated = false
	}
	p.current = sess

	token, err := backend.GetState(ctx, TokenKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	p.token = token
	return p, nil
}

// State returns a copy of the current session.
func (p *Provider) State() model.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copySession(p.current)
}

// IsAuthenticated reports whether a user is logged in.
func (p *Provider) IsAuthenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.IsAuthenticated
}

// Token returns the bearer token, or "" when logged out.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Subscribe registers fn to be called after every change. The returned func unsubscribes.
func (p *Provider) Subscribe(fn func(model.Session)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Login stores user and token and marks the session authenticated.
func (p *Provider) Login(ctx context.Context, user model.User, token string) error {
	sess := model.Session{IsAuthenticated: true, User: &user}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	// The token is written first: a token without a session record loads as logged out.
	if err := p.backend.PutState(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	if err := p.backend.PutState(ctx, StateKey, string(payload)); err != nil {
		// Best-effort cleanup of the orphaned token.
		_ = p.backend.DeleteState(ctx, TokenKey)
		return fmt.Errorf("failed to save session: %w", err)
	}
	p.set(sess, token)
	return nil
}

// Logout clears the session. The in-memory state is cleared even when
// removing the persisted record fails.
func (p *Provider) Logout(ctx context.Context) error {
	p.set(model.Session{}, "")
	var errs []error
	if err := p.backend.DeleteState(ctx, StateKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear session: %w", err))
	}
	if err := p.backend.DeleteState(ctx, TokenKey); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear token: %w", err))
	}
	return errors.Join(errs...)
}

func (p *Provider) set(sess model.Session, token string) {
	p.mu.Lock()
	p.current = sess
	p.token = token
	subs := make([]func(model.Session), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(copySession(sess))
	}
}

func copySession(s model.Session) model.Session {
	if s.User == nil {
		return s
	}
	u := *s.User
	s.User = &u
	return s
}
