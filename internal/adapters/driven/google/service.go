// Package google holds the plumbing shared by the Gmail and Drive
// connectors: OAuth token handling, service construction, rate limiting and
// API error mapping.
package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes requested at login. Both are read-only.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	drive.DriveReadonlyScope,
}

// NewGmailService creates a Gmail API service. Extra options come after the
// token source, so tests can override the endpoint.
func NewGmailService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*gmail.Service, error) {
	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return svc, nil
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, ts oauth2.TokenSource, opts ...option.ClientOption) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return svc, nil
}
