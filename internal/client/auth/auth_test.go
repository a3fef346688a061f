package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// fakeRefresher implements Refresher for tests.
type fakeRefresher struct {
	cred  *Credential
	err   error
	delay time.Duration

	calls     atomic.Int32
	lastToken string
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	f.calls.Add(1)
	f.lastToken = refreshToken
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	c := *f.cred
	return &c, nil
}

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestExpired_SkewWindow(t *testing.T) {
	skew := 5 * time.Minute

	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"well in the future", time.Now().Add(time.Hour), false},
		{"inside the skew window", time.Now().Add(2 * time.Minute), true},
		{"already past", time.Now().Add(-time.Minute), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cred := &Credential{AccessToken: "opaque", ExpiresAt: tc.exp}
			require.Equal(t, tc.want, Expired(cred, skew))
		})
	}
}

func TestExpired_FallsBackToJWTClaim(t *testing.T) {
	fresh := &Credential{AccessToken: signedJWT(t, time.Now().Add(time.Hour))}
	require.False(t, Expired(fresh, 5*time.Minute))

	stale := &Credential{AccessToken: signedJWT(t, time.Now().Add(time.Minute))}
	require.True(t, Expired(stale, 5*time.Minute))
}

func TestExpired_UnknownExpiryTreatedAsNonExpiring(t *testing.T) {
	cred := &Credential{AccessToken: "not-a-jwt"}
	require.False(t, Expired(cred, 5*time.Minute))
}

func TestManager_CurrentReturnsCopy(t *testing.T) {
	m := NewManager(&fakeRefresher{}, 0, nil)
	require.Nil(t, m.Current())

	m.Set(Credential{AccessToken: "a", UserID: "u1"})

	got := m.Current()
	got.AccessToken = "mutated"
	require.Equal(t, "a", m.Current().AccessToken)

	m.Clear()
	require.Nil(t, m.Current())
}

func TestManager_ValidReturnsCachedWithoutRefresh(t *testing.T) {
	r := &fakeRefresher{}
	m := NewManager(r, 0, nil)
	m.Set(Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})

	cred, err := m.Valid(context.Background())
	require.NoError(t, err)
	require.Equal(t, "a", cred.AccessToken)
	require.EqualValues(t, 0, r.calls.Load())
}

func TestManager_ValidRefreshesInsideSkew(t *testing.T) {
	r := &fakeRefresher{cred: &Credential{
		AccessToken:  "new",
		RefreshToken: "r2",
		ExpiresAt:    time.Now().Add(time.Hour),
		UserID:       "u1",
	}}
	m := NewManager(r, 0, nil)
	m.Set(Credential{AccessToken: "old", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Minute)})

	cred, err := m.Valid(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new", cred.AccessToken)
	require.EqualValues(t, 1, r.calls.Load())
	require.Equal(t, "r1", r.lastToken)

	// The refreshed credential is observable by every holder of the manager.
	require.Equal(t, "new", m.Current().AccessToken)
	require.Equal(t, "r2", m.Current().RefreshToken)
}

func TestManager_ValidWithoutSession(t *testing.T) {
	m := NewManager(&fakeRefresher{}, 0, nil)
	_, err := m.Valid(context.Background())
	require.ErrorIs(t, err, ErrNoSession)
}

func TestManager_RefreshFailureIsDistinct(t *testing.T) {
	cause := errors.New("invalid_grant")
	m := NewManager(&fakeRefresher{err: cause}, 0, nil)
	m.Set(Credential{AccessToken: "a", RefreshToken: "r"})

	_, err := m.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.ErrorIs(t, err, cause)
}

func TestManager_RefreshWithoutRefreshToken(t *testing.T) {
	m := NewManager(&fakeRefresher{}, 0, nil)
	m.Set(Credential{AccessToken: "a"})

	_, err := m.Refresh(context.Background())
	require.ErrorIs(t, err, ErrRefreshFailed)
}

func TestManager_ConcurrentRefreshDeduplicated(t *testing.T) {
	r := &fakeRefresher{
		cred:  &Credential{AccessToken: "new", RefreshToken: "r2", ExpiresAt: time.Now().Add(time.Hour)},
		delay: 50 * time.Millisecond,
	}
	m := NewManager(r, 0, nil)
	m.Set(Credential{AccessToken: "old", RefreshToken: "r1"})

	const workers = 16
	var wg sync.WaitGroup
	results := make([]*Credential, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Refresh(context.Background())
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, r.calls.Load(), "exactly one underlying refresh")
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "new", results[i].AccessToken)
	}
}
