// Package client provides an http.RoundTripper that keeps a pairauth
// session alive: when a request comes back 401 session-expired, it calls
// the refresh endpoint once (shared across concurrent requests) and
// replays the original request.
package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultRefreshCooldown bounds how often a refresh may be attempted. A
// session-expired response arriving within the cooldown of a successful
// refresh means refreshing is not fixing anything, so the transport gives
// up and forces a logout instead of looping.
const DefaultRefreshCooldown = 5 * time.Second

// Transport wraps an http.RoundTripper with transparent session refresh.
type Transport struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// RefreshEndpoint is the absolute URL of the refresh route. Required.
	RefreshEndpoint string

	// RefreshClient performs the refresh POST. It must carry the same
	// cookie jar as the client this transport serves, since the refresh
	// route authenticates with cookies. Required.
	RefreshClient *http.Client

	// OnForcedLogout is called when refreshing cannot recover the session
	// and the user has to log in again. Optional.
	OnForcedLogout func()

	// RefreshCooldown overrides DefaultRefreshCooldown.
	RefreshCooldown time.Duration

	mu          sync.Mutex
	inflight    *refreshCall
	lastRefresh time.Time
}

// refreshCall is one shared refresh attempt; concurrent expired requests
// wait on done instead of racing their own refreshes.
type refreshCall struct {
	done chan struct{}
	ok   bool
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) cooldown() time.Duration {
	if t.RefreshCooldown > 0 {
		return t.RefreshCooldown
	}
	return DefaultRefreshCooldown
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil || !isSessionExpired(resp) {
		return resp, err
	}

	// A request can only be replayed if its body can be rebuilt.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	t.mu.Lock()
	cooling := !t.lastRefresh.IsZero() && time.Since(t.lastRefresh) < t.cooldown()
	t.mu.Unlock()
	if cooling {
		t.forceLogout()
		return resp, nil
	}

	if !t.refreshSession(req.Context()) {
		t.forceLogout()
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.base().RoundTrip(retry)
}

func isSessionExpired(resp *http.Response) bool {
	return resp.StatusCode == http.StatusUnauthorized &&
		resp.Header.Get("x-auth-error") == "session-expired"
}

// refreshSession runs at most one refresh at a time; latecomers wait for
// the in-flight attempt and share its result.
func (t *Transport) refreshSession(ctx context.Context) bool {
	t.mu.Lock()
	if call := t.inflight; call != nil {
		t.mu.Unlock()
		<-call.done
		return call.ok
	}

	call := &refreshCall{done: make(chan struct{})}
	t.inflight = call
	t.mu.Unlock()

	ok := t.doRefresh(ctx)

	t.mu.Lock()
	call.ok = ok
	t.inflight = nil
	if ok {
		t.lastRefresh = time.Now()
	}
	t.mu.Unlock()
	close(call.done)
	return ok
}

func (t *Transport) doRefresh(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.RefreshEndpoint, nil)
	if err != nil {
		return false
	}
	resp, err := t.RefreshClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.OK
}

func (t *Transport) forceLogout() {
	if t.OnForcedLogout != nil {
		t.OnForcedLogout()
	}
}
