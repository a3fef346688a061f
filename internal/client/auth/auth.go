// Package auth owns the client's bearer credential: a single mutable cell
// guarded against read-during-refresh races. All readers go through the
// Manager; concurrent refresh calls collapse into one shared flight.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/thelarryrutledge/nvlp-go/internal/logging"
)

// DefaultSkew is the safety margin before literal expiry within which a token
// is already treated as expired.
const DefaultSkew = 5 * time.Minute

var (
	// ErrNoSession means no credential is installed (anonymous client, or
	// signed out).
	ErrNoSession = errors.New("no active session")

	// ErrRefreshFailed means the refresh credential itself was rejected.
	// Matched with errors.Is; the transport cause stays wrapped inside.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credential is the client's authenticated identity: access token, the
// refresh token used to renew it, its expiry, and the principal it belongs to.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
}

// Refresher exchanges a refresh token for a fresh Credential. The façade
// provides an implementation backed by the identity endpoints.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*Credential, error)
}

// Manager is the single source of truth for the current Credential.
// All holders observe refreshes immediately because they read through the
// same Manager rather than keeping copies.
type Manager struct {
	mu        sync.RWMutex
	cred      *Credential
	refresher Refresher
	skew      time.Duration
	group     singleflight.Group
	log       logging.Logger
}

// NewManager constructs a Manager. A non-positive skew falls back to
// DefaultSkew; a nil logger is replaced with a no-op one.
func NewManager(refresher Refresher, skew time.Duration, log logging.Logger) *Manager {
	if skew <= 0 {
		skew = DefaultSkew
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Manager{refresher: refresher, skew: skew, log: log}
}

// Current returns a copy of the cached credential without blocking, or nil
// when the client is anonymous. It never triggers a refresh.
func (m *Manager) Current() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return nil
	}
	c := *m.cred
	return &c
}

// Set installs cred as the current credential (sign-in, successful refresh).
func (m *Manager) Set(cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = &cred
}

// Clear destroys the current credential (sign-out).
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = nil
}

// Skew returns the configured expiry safety margin.
func (m *Manager) Skew() time.Duration { return m.skew }

// Valid returns a credential guaranteed to be outside the expiry skew window,
// refreshing first when needed. The de-duplication in Refresh applies.
func (m *Manager) Valid(ctx context.Context) (*Credential, error) {
	cred := m.Current()
	if cred == nil {
		return nil, ErrNoSession
	}
	if !Expired(cred, m.skew) {
		return cred, nil
	}
	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new credential and installs it.
// Concurrent callers join the in-flight refresh and all receive its result;
// exactly one network refresh executes.
func (m *Manager) Refresh(ctx context.Context) (*Credential, error) {
	v, err, _ := m.group.Do("refresh", func() (any, error) {
		cred := m.Current()
		if cred == nil {
			return nil, ErrNoSession
		}
		if cred.RefreshToken == "" {
			return nil, fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
		}

		fresh, err := m.refresher.Refresh(ctx, cred.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		}

		m.Set(*fresh)
		m.log.Debug(ctx, "credential refreshed", "user_id", fresh.UserID, "expires_at", fresh.ExpiresAt)

		c := *fresh
		return &c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// Expired reports whether cred should be treated as expired: current time is
// within skew of the stated expiry, or past it. When ExpiresAt is unset the
// expiry is read from the access token's exp claim; a credential with no
// discoverable expiry is treated as non-expiring.
func Expired(cred *Credential, skew time.Duration) bool {
	exp := cred.ExpiresAt
	if exp.IsZero() {
		exp = expiryFromToken(cred.AccessToken)
	}
	if exp.IsZero() {
		return false
	}
	return !time.Now().Add(skew).Before(exp)
}
