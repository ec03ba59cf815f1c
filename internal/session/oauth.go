package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/radar/internal/models"
	"github.com/desertthunder/radar/internal/shared"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// Scopes requested at login.
var Scopes = []string{
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserLibraryRead,
}

// OAuthExchanger implements [Exchanger] with the authorization-code grant.
type OAuthExchanger struct {
	config *oauth2.Config
}

// ExchangerOption configures an [OAuthExchanger].
type ExchangerOption func(*oauth2.Config)

// WithEndpoint points the exchanger at a different accounts service.
func WithEndpoint(authURL, tokenURL string) ExchangerOption {
	return func(c *oauth2.Config) {
		c.Endpoint = oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL}
	}
}

// WithScopes replaces the requested scopes.
func WithScopes(scopes ...string) ExchangerOption {
	return func(c *oauth2.Config) { c.Scopes = scopes }
}

// NewOAuthExchanger builds an exchanger from client credentials.
func NewOAuthExchanger(sc shared.SpotifyConfig, opts ...ExchangerOption) (*OAuthExchanger, error) {
	if sc.ClientID == "" || sc.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	config := &oauth2.Config{
		ClientID:     sc.ClientID,
		ClientSecret: sc.ClientSecret,
		RedirectURL:  sc.RedirectURI,
		Scopes:       append([]string(nil), Scopes...),
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
	for _, opt := range opts {
		opt(config)
	}
	return &OAuthExchanger{config: config}, nil
}

// AuthCodeURL returns the consent page URL carrying state.
func (e *OAuthExchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state)
}

// Config exposes the underlying OAuth2 configuration.
func (e *OAuthExchanger) Config() *oauth2.Config {
	return e.config
}

// Exchange trades an authorization code for a credential.
func (e *OAuthExchanger) Exchange(ctx context.Context, code string) (models.Credential, error) {
	tok, err := e.config.Exchange(ctx, code)
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return credentialFromToken(tok), nil
}

// Refresh trades a refresh token for a new credential.
func (e *OAuthExchanger) Refresh(ctx context.Context, refreshToken string) (models.Credential, error) {
	if refreshToken == "" {
		return models.Credential{}, shared.ErrNoRefreshToken
	}

	tok, err := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return models.Credential{}, fmt.Errorf("failed to refresh token: %w", err)
	}
	return credentialFromToken(tok), nil
}

func credentialFromToken(tok *oauth2.Token) models.Credential {
	cred := models.Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scopes = strings.Fields(scope)
	}
	return cred
}
