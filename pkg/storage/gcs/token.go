package gcs

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const storageScope = "https://www.googleapis.com/auth/devstorage.read_write"

// newTokenSource signs with the service account key when one is supplied and
// falls back to the instance metadata server otherwise. Both sources cache
// the access token until shortly before expiry.
func newTokenSource(httpClient *http.Client, credsJSON []byte) (oauth2.TokenSource, error) {
	if len(credsJSON) == 0 {
		return google.ComputeTokenSource("", storageScope), nil
	}
	jwtCfg, err := google.JWTConfigFromJSON(credsJSON, storageScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return jwtCfg.TokenSource(ctx), nil
}

func accessToken(ts oauth2.TokenSource) (string, error) {
	tok, err := ts.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
