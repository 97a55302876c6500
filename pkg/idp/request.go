package idp

import (
	"context"
	"net/http"
	"strings"
)

// AuthorizationHeader is a parsed Authorization request header.
type AuthorizationHeader struct {
	Scheme      string
	Credentials string
}

// ParseAuthorizationHeader splits a header value into scheme and
// credentials. The scheme is returned in canonical case for known schemes.
func ParseAuthorizationHeader(value string) (AuthorizationHeader, bool) {
	value = strings.TrimSpace(value)
	scheme, creds, found := strings.Cut(value, " ")
	creds = strings.TrimSpace(creds)
	if !found || scheme == "" || creds == "" {
		return AuthorizationHeader{}, false
	}
	switch strings.ToLower(scheme) {
	case "bearer":
		scheme = "Bearer"
	case "basic":
		scheme = "Basic"
	}
	return AuthorizationHeader{Scheme: scheme, Credentials: creds}, true
}

// IsBearer reports whether the header uses the Bearer scheme.
func (h AuthorizationHeader) IsBearer() bool { return h.Scheme == "Bearer" }

// RequestURL reconstructs the absolute URL the client used, honoring the
// X-Forwarded-Proto and X-Forwarded-Host headers set by a fronting proxy.
func RequestURL(r *http.Request, withQuery bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}

	u := scheme + "://" + host + r.URL.EscapedPath()
	if withQuery && r.URL.RawQuery != "" {
		u += "?" + r.URL.RawQuery
	}
	return u
}

type principalKey struct{}

// WithContainerPrincipal marks ctx as authenticated as name by the hosting
// environment, for embedders whose own middleware authenticates users.
func WithContainerPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, name)
}

// ContainerPrincipal returns the principal established by the hosting
// environment: first one placed in the request context, then the value of
// the trusted header (when header is non-empty).
func ContainerPrincipal(r *http.Request, header string) (string, bool) {
	if name, ok := r.Context().Value(principalKey{}).(string); ok && name != "" {
		return name, true
	}
	if header == "" {
		return "", false
	}
	if name := strings.TrimSpace(r.Header.Get(header)); name != "" {
		return name, true
	}
	return "", false
}
