package registry

import (
	"context"
	"log/slog"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleAccessToken exchanges a long-lived Google OAuth refresh token for a
// short-lived access token, the way a gmail/google-provider tool needs it on
// the wire rather than the raw refresh token. Failures are non-fatal: the
// tool still receives GOOGLE_REFRESH_TOKEN and can refresh on its own.
func googleAccessToken(ctx context.Context, clientID, clientSecret, refreshToken string) (string, error) {
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return "", nil
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := ts.Token()
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// augmentGoogleCredentials mints a fresh GOOGLE_ACCESS_TOKEN when the
// resolved credential set looks like a Google OAuth triple. It mutates creds
// in place and never returns an error: a refresh failure just means the tool
// falls back to refreshing the token itself.
func augmentGoogleCredentials(ctx context.Context, creds map[string]string) {
	clientID, secret, refresh := creds["GOOGLE_CLIENT_ID"], creds["GOOGLE_CLIENT_SECRET"], creds["GOOGLE_REFRESH_TOKEN"]
	if clientID == "" && secret == "" && refresh == "" {
		return
	}
	token, err := googleAccessToken(ctx, clientID, secret, refresh)
	if err != nil {
		slog.Warn("registry: google token refresh failed", "error", err)
		return
	}
	if token != "" {
		creds["GOOGLE_ACCESS_TOKEN"] = token
	}
}
