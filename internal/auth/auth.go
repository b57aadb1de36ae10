// Package auth is the boundary to the authentication collaborator: who is
// signed in, and how that changes over time.
package auth

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("auth source closed")

// Principal is an authenticated user as reported by the identity provider.
type Principal struct {
	UID         string
	DisplayName string
	Email       string
}

// Name prefers the display name and falls back to the email.
func (p Principal) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

// Source emits the current principal, or nil when signed out, on every
// session transition.
type Source interface {
	Changes() <-chan *Principal
	SignOut(ctx context.Context) error
}

// Session is an in-process Source driven by explicit SignIn / SignOut
// calls. The server binds one to each signed-in user.
type Session struct {
	mu      sync.Mutex
	changes chan *Principal
	current *Principal
	closed  bool
}

var _ Source = (*Session)(nil)

func NewSession() *Session {
	return &Session{changes: make(chan *Principal, 8)}
}

func (s *Session) Changes() <-chan *Principal {
	return s.changes
}

func (s *Session) SignIn(ctx context.Context, p Principal) error {
	return s.emit(ctx, &p)
}

func (s *Session) SignOut(ctx context.Context) error {
	return s.emit(ctx, nil)
}

// Current returns the last emitted principal.
func (s *Session) Current() *Principal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close ends the stream. Further transitions fail with ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.changes)
	}
}

func (s *Session) emit(ctx context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.changes <- p:
		s.current = p
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
