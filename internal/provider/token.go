package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenSource fetches a fresh access token.
type TokenSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

type clientCredentialsSource struct {
	cfg clientcredentials.Config
}

// NewClientCredentialsSource returns a TokenSource using the OAuth2
// client-credentials grant.
func NewClientCredentialsSource(tokenURL, clientID, clientSecret string) TokenSource {
	return &clientCredentialsSource{cfg: clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}}
}

func (s *clientCredentialsSource) Token(ctx context.Context) (*oauth2.Token, error) {
	return s.cfg.Token(ctx)
}

// TokenCache holds a single bearer token and refreshes it shortly before it
// expires. The lock is held across the refresh, so concurrent callers wait
// for one outstanding request instead of racing their own.
type TokenCache struct {
	source TokenSource
	skew   time.Duration
	now    func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

func NewTokenCache(source TokenSource, skew time.Duration) *TokenCache {
	return &TokenCache{
		source: source,
		skew:   skew,
		now:    time.Now,
	}
}

// AccessToken returns a token valid for at least the configured skew.
func (c *TokenCache) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fresh() {
		return c.token.AccessToken, nil
	}

	tok, err := c.source.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch access token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", fmt.Errorf("failed to fetch access token: empty token")
	}

	c.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token, e.g. after the API rejected it.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *TokenCache) fresh() bool {
	if c.token == nil {
		return false
	}
	if c.token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(c.skew).Before(c.token.Expiry)
}
