package twitchapi

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

func TestTokenSourceGetUsesCachedToken(t *testing.T) {
	ts := &TokenSource{src: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "cached-app-token"})}

	for i := 0; i < 3; i++ {
		tok, err := ts.Get(context.Background())
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if tok != "cached-app-token" {
			t.Fatalf("Get = %q, want cached-app-token", tok)
		}
	}
}

func TestTokenSourceClient(t *testing.T) {
	ts := &TokenSource{src: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})}
	if ts.Client(context.Background()) == nil {
		t.Fatal("Client returned nil")
	}
}
