// Package providers implements OAuth identity providers for pairauth.
// Each provider wraps a golang.org/x/oauth2 config and maps the
// provider's profile endpoint to the provider-agnostic pairauth.Profile.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/pairauth/pairauth"
)

// base carries the pieces every OAuth2 provider shares. Concrete
// providers embed it and add their profile fetch.
type base struct {
	config oauth2.Config
}

// LoginURL builds the provider's authorization URL carrying the CSRF
// state.
func (b *base) LoginURL(state string) string {
	return b.config.AuthCodeURL(state)
}

// ExchangeCode trades the callback code for tokens.
func (b *base) ExchangeCode(ctx context.Context, code string) (*pairauth.ProviderTokens, error) {
	token, err := b.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	idToken, _ := token.Extra("id_token").(string)
	scope, _ := token.Extra("scope").(string)
	return &pairauth.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      idToken,
		TokenType:    token.TokenType,
		Scope:        scope,
		ExpiresAt:    token.Expiry,
	}, nil
}

// getJSON fetches a provider API endpoint with a bearer token and decodes
// the JSON response into out.
func getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed getting user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("user info request failed: %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
