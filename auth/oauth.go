package auth

import (
	"context"
	"fmt"

	"github.com/reedcms/reed/security"
)

// OAuthProvider wraps the OIDC discovery/verification client for the
// OAuth-code credential kind (§4.8): the request pipeline exchanges an
// authorization code for an ID token, and AuthService resolves that token's
// subject/email to a local User, creating one on first login if none exists.
type OAuthProvider struct {
	provider *security.OIDCProvider
}

// NewOAuthProvider discovers and wraps an OIDC provider from OIDCSettings.
// Returns (nil, nil) if settings are empty — OAuth login is optional.
func NewOAuthProvider(ctx context.Context, settings OIDCSettings) (*OAuthProvider, error) {
	if settings.ProviderURL == "" {
		return nil, nil
	}
	provider, err := security.NewOIDCProvider(ctx, security.OIDCConfig{
		ProviderURL:  settings.ProviderURL,
		ClientID:     settings.ClientID,
		ClientSecret: settings.ClientSecret,
		RedirectURL:  settings.RedirectURL,
		Scopes:       settings.Scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("oauth provider discovery: %w", err)
	}
	return &OAuthProvider{provider: provider}, nil
}

// ExchangeAndVerify trades an authorization code for tokens and verifies
// the returned ID token, yielding the provider's claims about the user.
func (p *OAuthProvider) ExchangeAndVerify(ctx context.Context, code string) (*security.Claims, error) {
	oauth2Config := p.provider.OAuth2Config()
	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, ErrOAuthExchangeFailed
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, ErrOAuthExchangeFailed
	}

	claims, err := p.provider.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, ErrOAuthExchangeFailed
	}
	return claims, nil
}
