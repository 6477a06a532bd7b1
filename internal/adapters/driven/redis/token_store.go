package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/thewatergategroups/info-vault/internal/core/domain"
	"github.com/thewatergategroups/info-vault/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.TokenStore = (*TokenStore)(nil)

// DefaultTokenKey holds the Google OAuth token shared by the connectors.
const DefaultTokenKey = "infovault:google_oauth_token"

// TokenStore keeps one OAuth token as JSON under a fixed key. The key has
// no TTL; the refresh token outlives the access token's expiry.
type TokenStore struct {
	client redis.UniversalClient
	key    string
	sealer *Sealer
}

// NewTokenStore creates a token store. An empty key uses DefaultTokenKey.
func NewTokenStore(client redis.UniversalClient, key string) *TokenStore {
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{client: client, key: key}
}

// WithSealer encrypts the stored token. Tokens saved without a sealer
// cannot be read once one is configured.
func (s *TokenStore) WithSealer(sealer *Sealer) *TokenStore {
	s.sealer = sealer
	return s
}

// Load returns the stored token or domain.ErrNotFound.
func (s *TokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Open(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// Save replaces the stored token.
func (s *TokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token is required", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
