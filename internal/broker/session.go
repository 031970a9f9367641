// session.go manages the broker access token.
//
// The token is fetched lazily on first use and refreshed proactively when
// within five minutes of expiry. Concurrent refreshers are coalesced through
// singleflight so only one token request is ever in flight. A 401 from any
// endpoint invalidates the cached token; the client layer retries once.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// refreshMargin is how long before expiry the session refreshes proactively.
const refreshMargin = 5 * time.Minute

// Session owns the access-token lifecycle for one set of credentials.
type Session struct {
	http      *resty.Client
	appKey    string
	appSecret string
	logger    *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	sf singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

// NewSession creates a token session against the given base URL.
func NewSession(httpClient *resty.Client, appKey, appSecret string, logger *slog.Logger) *Session {
	return &Session{
		http:      httpClient,
		appKey:    appKey,
		appSecret: appSecret,
		logger:    logger.With("component", "broker-session"),
		now:       time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns a valid access token, fetching or refreshing as needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	token, expiresAt := s.token, s.expiresAt
	s.mu.Unlock()

	if token != "" && s.now().Before(expiresAt.Add(-refreshMargin)) {
		return token, nil
	}
	return s.refresh(ctx)
}

// Invalidate clears the cached token. Called by the client on a 401.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// refresh coalesces concurrent refreshers into one network call.
func (s *Session) refresh(ctx context.Context) (string, error) {
	v, err, _ := s.sf.Do("token", func() (interface{}, error) {
		return s.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *Session) fetchToken(ctx context.Context) (string, error) {
	var result tokenResponse
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     s.appKey,
			"appsecret":  s.appSecret,
		}).
		SetResult(&result).
		Post("/oauth2/tokenP")
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", &AuthError{Msg: fmt.Sprintf("token issuance failed: status %d: %s", resp.StatusCode(), resp.String())}
	}
	if result.AccessToken == "" {
		return "", &AuthError{Msg: "token issuance returned empty access_token"}
	}

	expiresAt := s.now().Add(time.Duration(result.ExpiresIn) * time.Second)

	s.mu.Lock()
	s.token = result.AccessToken
	s.expiresAt = expiresAt
	s.mu.Unlock()

	s.logger.Info("access token refreshed", "expires_at", expiresAt)
	return result.AccessToken, nil
}
