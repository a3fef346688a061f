package nvlp

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thelarryrutledge/nvlp-go/internal/client/auth"
	"github.com/thelarryrutledge/nvlp-go/internal/client/httpx"
)

// tokenResponse is the identity backend's token grant payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (t tokenResponse) credential() auth.Credential {
	cred := auth.Credential{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		UserID:       t.User.ID,
	}
	if t.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return cred
}

// identityRefresher exchanges refresh tokens against the identity endpoints.
type identityRefresher struct {
	engine *httpx.Engine
	base   string
}

func (r *identityRefresher) Refresh(ctx context.Context, refreshToken string) (*auth.Credential, error) {
	if r.base == "" {
		return nil, fmt.Errorf("auth base URL not configured")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	resp, err := r.engine.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    strings.TrimRight(r.base, "/") + "/token?grant_type=refresh_token",
		Body:   body,
		NoAuth: true,
	})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	cred := tr.credential()
	return &cred, nil
}

// tokenSource adapts the credential manager to the engine contract.
// Anonymous sessions yield an empty token so requests go out apikey-only.
type tokenSource struct {
	c *Client
}

func (t tokenSource) Token(ctx context.Context) (string, error) {
	cred := t.c.tokens.Current()
	if cred == nil {
		return "", nil
	}
	if !auth.Expired(cred, t.c.tokens.Skew()) {
		return cred.AccessToken, nil
	}
	fresh, err := t.c.tokens.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

func (t tokenSource) Refresh(ctx context.Context) (string, error) {
	fresh, err := t.c.tokens.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return fresh.AccessToken, nil
}

// SignIn performs a password grant against the identity endpoints and
// installs the resulting credential as the current session.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	if c.cfg.AuthURL == "" {
		return fmt.Errorf("auth base URL not configured")
	}

	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	resp, err := c.identity.Do(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(c.cfg.AuthURL, "/") + "/token?grant_type=password",
		Body:    body,
		Headers: c.withDeviceHeader(nil),
		NoAuth:  true,
	})
	if err != nil {
		return err
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}

	c.tokens.Set(tr.credential())
	c.resetInvalidation()
	c.log.Info(ctx, "signed in", "user_id", tr.User.ID)
	return nil
}

// SignOut revokes the session server-side on a best-effort basis and
// destroys the local credential either way.
func (c *Client) SignOut(ctx context.Context) error {
	cred := c.tokens.Current()
	defer c.tokens.Clear()

	if cred == nil || c.cfg.AuthURL == "" {
		return nil
	}

	_, err := c.identity.Do(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     strings.TrimRight(c.cfg.AuthURL, "/") + "/logout",
		Headers: map[string]string{"Authorization": "Bearer " + cred.AccessToken},
		NoAuth:  true,
	})
	if err != nil {
		c.log.Warn(ctx, "server-side sign-out failed", "error", err)
	}
	return nil
}

// RefreshSession forces a token refresh. Concurrent calls de-duplicate into
// one network refresh.
func (c *Client) RefreshSession(ctx context.Context) error {
	_, err := c.tokens.Refresh(ctx)
	return err
}

// Session returns a copy of the current credential, or nil when anonymous.
func (c *Client) Session() *auth.Credential {
	return c.tokens.Current()
}

// WithAuth ensures a valid (non-expired) session before running op, and on
// an authentication failure inside op performs exactly one refresh-and-retry
// before surfacing the error. An invalidated session means the engine already
// spent its refresh-retry; it is surfaced as-is, never refreshed again.
func (c *Client) WithAuth(ctx context.Context, op func(ctx context.Context) error) error {
	if _, err := c.tokens.Valid(ctx); err != nil {
		return err
	}

	err := op(ctx)
	if err == nil || httpx.IsSessionInvalidated(err) || httpx.StatusOf(err) != http.StatusUnauthorized {
		return err
	}

	if _, rerr := c.tokens.Refresh(ctx); rerr != nil {
		return rerr
	}
	return op(ctx)
}

// OnSessionInvalidated registers a listener for forced sign-outs. Listeners
// fire in registration order; a panicking listener does not stop the rest.
// The returned function unsubscribes.
func (c *Client) OnSessionInvalidated(fn func(InvalidatedEvent)) (unsubscribe func()) {
	return c.invalidated.Subscribe(fn)
}

// notifyInvalidated fires the invalidation event exactly once per distinct
// invalidation, however many requests fail concurrently for the same cause.
// The next successful SignIn re-arms it.
func (c *Client) notifyInvalidated() {
	c.invalidatedOnce.Lock()
	if c.invalidatedSet {
		c.invalidatedOnce.Unlock()
		return
	}
	c.invalidatedSet = true
	c.invalidatedOnce.Unlock()

	var userID string
	if cred := c.tokens.Current(); cred != nil {
		userID = cred.UserID
	}
	c.tokens.Clear()

	c.log.Warn(context.Background(), "session invalidated", "user_id", userID)
	c.invalidated.Emit(InvalidatedEvent{UserID: userID})
}

func (c *Client) resetInvalidation() {
	c.invalidatedOnce.Lock()
	c.invalidatedSet = false
	c.invalidatedOnce.Unlock()
}
