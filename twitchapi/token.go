// Package twitchapi contains minimal helpers for the Twitch identity and
// Helix APIs: an app access token source for user-id resolution, and the user
// token grant/refresh flows backing the chat bot.
package twitchapi

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const tokenURL = "https://id.twitch.tv/oauth2/token"

// TokenSource wraps the client-credentials grant for a Twitch app access
// token. This token serves Helix API calls only; IRC chat requires a user
// token with chat scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string

	src oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	if ts.src == nil {
		cfg := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     tokenURL,
		}
		// ReuseTokenSource caches until expiry and refreshes under its own
		// lock, so concurrent Get calls never stampede the token endpoint.
		ts.src = oauth2.ReuseTokenSource(nil, cfg.TokenSource(ctx))
	}
	tok, err := ts.src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// Client returns an http.Client that injects the app token.
func (ts *TokenSource) Client(ctx context.Context) *http.Client {
	if ts.src == nil {
		// Token initializes src.
		_, _ = ts.Get(ctx)
	}
	return oauth2.NewClient(ctx, ts.src)
}
