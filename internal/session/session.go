// Package session owns the client's authenticated identity. It is the only
// code that reads or writes the persisted token and user id keys.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rtms/taskboard/pkg/models"
)

// Persisted keys, kept compatible with the web client.
const (
	KeyToken  = "token"
	KeyUserID = "userId"
)

// ErrNoSession is returned when no usable session is stored.
var ErrNoSession = errors.New("no session")

// KV is the persisted client state the manager writes through to.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Event is delivered to subscribers when the session changes.
type Event struct {
	Session models.Session
	// Cleared is true for logout and for an expired token.
	Cleared bool
}

// Manager serialises access to the session and notifies subscribers.
type Manager struct {
	kv     KV
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current models.Session
	loaded  bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewManager creates a manager backed by kv.
func NewManager(kv KV, logger *slog.Logger) *Manager {
	return &Manager{
		kv:     kv,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]func(Event)),
	}
}

// Get returns the current session, loading it from the store on first use.
// It returns ErrNoSession when either key is missing or the token has expired.
// An expired session is cleared, which notifies subscribers.
func (m *Manager) Get(ctx context.Context) (models.Session, error) {
	m.mu.RLock()
	if m.loaded {
		s := m.current
		m.mu.RUnlock()
		return m.usable(ctx, s)
	}
	m.mu.RUnlock()

	token, _, err := m.kv.Get(ctx, KeyToken)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	userID, _, err := m.kv.Get(ctx, KeyUserID)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to load session: %w", err)
	}

	s := models.Session{Token: token, UserID: userID}
	m.mu.Lock()
	m.current = s
	m.loaded = true
	m.mu.Unlock()

	return m.usable(ctx, s)
}

func (m *Manager) usable(ctx context.Context, s models.Session) (models.Session, error) {
	if !s.Valid() {
		return models.Session{}, ErrNoSession
	}
	if Expired(s.Token, m.now()) {
		m.logger.Info("session token expired", "user", s.UserID)
		m.Clear(ctx)
		return models.Session{}, ErrNoSession
	}
	return s, nil
}

// Set persists s. Both keys are written before subscribers are notified.
func (m *Manager) Set(ctx context.Context, s models.Session) error {
	if !s.Valid() {
		return fmt.Errorf("refusing to store incomplete session: %w", ErrNoSession)
	}
	if err := m.kv.Set(ctx, KeyToken, s.Token); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, KeyUserID, s.UserID); err != nil {
		// Don't leave a token without a user id behind
		_ = m.kv.Delete(ctx, KeyToken)
		return err
	}

	m.mu.Lock()
	m.current = s
	m.loaded = true
	m.mu.Unlock()

	m.notify(Event{Session: s})
	return nil
}

// Clear removes the session. Store failures are logged, never returned:
// the in-memory session is dropped regardless so the user is logged out.
func (m *Manager) Clear(ctx context.Context) {
	for _, key := range []string{KeyToken, KeyUserID} {
		if err := m.kv.Delete(ctx, key); err != nil {
			m.logger.Error("failed to remove session key", "key", key, "error", err)
		}
	}

	m.mu.Lock()
	m.current = models.Session{}
	m.loaded = true
	m.mu.Unlock()

	m.notify(Event{Cleared: true})
}

// Subscribe registers fn for session changes and returns a function that
// removes it. The returned function is safe to call more than once.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func (m *Manager) notify(e Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// Expired reports whether token is a JWT whose exp claim is before now.
// Opaque tokens and JWTs without exp never expire client side; the API
// stays the authority.
func Expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
