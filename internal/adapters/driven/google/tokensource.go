package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// OAuthConfig builds the OAuth2 client configuration for the connectors.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint:     googleoauth.Endpoint,
	}
}

// StoreTokenSource serves the token persisted in a TokenStore, refreshing it
// through the OAuth config when it expires and saving the refreshed token
// back so every process shares it.
type StoreTokenSource struct {
	ctx    context.Context
	config *oauth2.Config
	store  driven.TokenStore
	logger *slog.Logger

	mu      sync.Mutex
	current *oauth2.Token
}

// Verify interface compliance
var _ oauth2.TokenSource = (*StoreTokenSource)(nil)

// NewTokenSource creates a token source. ctx is used for store access and
// refresh requests for the lifetime of the source.
func NewTokenSource(ctx context.Context, config *oauth2.Config, store driven.TokenStore, logger *slog.Logger) *StoreTokenSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreTokenSource{ctx: ctx, config: config, store: store, logger: logger}
}

// Token implements oauth2.TokenSource.
func (s *StoreTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Valid() {
		return s.current, nil
	}

	stored, err := s.store.Load(s.ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrNotAuthorised
	}
	if err != nil {
		return nil, err
	}
	if stored.Valid() {
		s.current = stored
		return stored, nil
	}
	if stored.RefreshToken == "" {
		return nil, fmt.Errorf("%w: stored token expired without refresh token", ErrNotAuthorised)
	}

	refreshed, err := s.config.TokenSource(s.ctx, stored).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = stored.RefreshToken
	}
	if err := s.store.Save(s.ctx, refreshed); err != nil {
		s.logger.Warn("failed to persist refreshed token", "error", err)
	}

	s.current = refreshed
	s.logger.Debug("oauth token refreshed", "expiry", refreshed.Expiry)
	return refreshed, nil
}

// Exchange completes the OAuth login by trading the authorisation code for
// a token and storing it.
func Exchange(ctx context.Context, config *oauth2.Config, store driven.TokenStore, code string) error {
	token, err := config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}
	if err := store.Save(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Authorizer drives the interactive OAuth login for the HTTP layer.
type Authorizer struct {
	config *oauth2.Config
	store  driven.TokenStore
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(config *oauth2.Config, store driven.TokenStore) *Authorizer {
	return &Authorizer{config: config, store: store}
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// consent makes Google issue a refresh token every time.
func (a *Authorizer) AuthCodeURL(state string) string {
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange stores the token for an authorisation code.
func (a *Authorizer) Exchange(ctx context.Context, code string) error {
	return Exchange(ctx, a.config, a.store, code)
}
