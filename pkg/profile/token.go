package profile

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// EDLAccessToken is an EarthData Login OAuth2 access token. Endpoint is the
// EDL path of the user record the token grants access to.
type EDLAccessToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	Endpoint     string    `json:"endpoint"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ClientAppID  string    `json:"-"`
	Created      time.Time `json:"-"`
}

// TokenFromOAuth2 converts the result of an authorization code exchange.
func TokenFromOAuth2(tok *oauth2.Token, clientAppID string) (*EDLAccessToken, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}
	endpoint, _ := tok.Extra("endpoint").(string)
	if endpoint == "" {
		return nil, fmt.Errorf("token response has no endpoint")
	}
	t := &EDLAccessToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		Endpoint:     endpoint,
		RefreshToken: tok.RefreshToken,
		ClientAppID:  clientAppID,
		Created:      time.Now(),
	}
	if t.TokenType == "" {
		t.TokenType = "Bearer"
	}
	if !tok.Expiry.IsZero() {
		t.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return t, nil
}

// BearerToken wraps a token presented by a client in an Authorization header.
func BearerToken(accessToken, clientAppID string) *EDLAccessToken {
	return &EDLAccessToken{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ClientAppID: clientAppID,
		Created:     time.Now(),
	}
}

// AuthorizationHeaderValue returns the value to send in an Authorization header.
func (t *EDLAccessToken) AuthorizationHeaderValue() string {
	scheme := t.TokenType
	if scheme == "" {
		scheme = "Bearer"
	} else if strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return scheme + " " + t.AccessToken
}

// EchoTokenValue returns the token formatted for the ECHO-Token header
// used by some NASA services.
func (t *EDLAccessToken) EchoTokenValue() string {
	return t.AccessToken + ":" + t.ClientAppID
}

// Remaining returns the time left before the token expires. Zero means the
// token has expired or carries no lifetime.
func (t *EDLAccessToken) Remaining() time.Duration {
	if t.ExpiresIn <= 0 {
		return 0
	}
	left := time.Until(t.Created.Add(time.Duration(t.ExpiresIn) * time.Second))
	if left < 0 {
		return 0
	}
	return left
}
