package driven

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenStore persists the OAuth token used by the Google connectors.
type TokenStore interface {
	// Load returns the stored token or domain.ErrNotFound.
	Load(ctx context.Context) (*oauth2.Token, error)

	// Save replaces the stored token.
	Save(ctx context.Context, token *oauth2.Token) error
}
