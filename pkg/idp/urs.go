package idp

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/httpclient"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/profile"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/OPENDAP/hyrax-auth/pkg/validation"
	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// EarthData Login service paths.
const (
	URSAuthContext   = "urs"
	ursAuthorizePath = "/oauth/authorize"
	ursTokenPath     = "/oauth/token"
	ursUserIDPath    = "/oauth/tokens/user"
)

// URSProvider authenticates users against NASA EarthData Login (URS) with
// the OAuth2 authorization code flow, and API clients with EDL bearer tokens.
//
// The browser flow spans three requests to the login endpoint:
//
//  1. no code: redirect to the EDL authorize page
//  2. code: exchange it for a token, fetch the user record, store the profile
//  3. redirect back to the return-to URL
type URSProvider struct {
	Base
	ursURL            string
	clientID          string
	clientAuthCode    string
	rejectUnsupported bool
	client            *resty.Client
	oauth             oauth2.Config
}

func newURSFromConfig(cfg config.ProviderConfig, ep Endpoints, deps Dependencies) (IdentityProvider, error) {
	if cfg.URSURL == "" {
		return nil, configError("URS provider requires urs_url")
	}
	if _, err := validation.ValidateEndpointURL(cfg.URSURL); err != nil {
		return nil, configError("URS provider: %v", err)
	}
	if cfg.ClientID == "" {
		return nil, configError("URS provider requires client_id")
	}
	if cfg.ClientAuthCode == "" {
		return nil, configError("URS provider requires client_auth_code")
	}

	client := deps.HTTPClient
	if client == nil {
		client = httpclient.New(deps.Timeout, deps.Logger)
	}

	p := &URSProvider{
		Base:              newBase(cfg, URSAuthContext, "EarthData Login", ep, deps.Logger),
		ursURL:            strings.TrimRight(cfg.URSURL, "/"),
		clientID:          cfg.ClientID,
		clientAuthCode:    cfg.ClientAuthCode,
		rejectUnsupported: cfg.RejectUnsupportedAuthzSchemes,
		client:            client,
	}
	p.oauth = oauth2.Config{
		ClientID: p.clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.ursURL + ursAuthorizePath,
			TokenURL:  p.ursURL + ursTokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if !validation.IsSecureURL(p.ursURL) {
		p.logger.Warn("URS service URL does not use https", logging.F("urs_url", p.ursURL))
	}
	return p, nil
}

// DoLogin advances the EarthData Login interaction.
func (p *URSProvider) DoLogin(w http.ResponseWriter, r *http.Request) (bool, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return false, ErrNoSession
	}

	if h := r.Header.Get("Authorization"); h != "" {
		up, err := p.AuthenticateHeader(r, h)
		if err != nil {
			return false, err
		}
		if up != nil {
			p.complete(w, r, sess, up)
			return true, nil
		}
	}

	code := r.URL.Query().Get("code")
	redirectURI := RequestURL(r, false)
	if code == "" {
		target := p.authorizeURL(redirectURI)
		p.logger.Info("Redirecting to EarthData Login", logging.F("redirect_uri", redirectURI))
		http.Redirect(w, r, target, http.StatusFound)
		return false, nil
	}

	token, err := p.exchange(r.Context(), code, redirectURI)
	if err != nil {
		return false, err
	}
	up, err := p.fetchProfile(r.Context(), token)
	if err != nil {
		return false, err
	}
	p.complete(w, r, sess, up)
	return true, nil
}

// AuthenticateHeader validates an EDL bearer token with the URS service
// and returns a profile for its owner. Headers using another scheme are
// ignored, or rejected with ErrUnsupportedScheme when so configured.
func (p *URSProvider) AuthenticateHeader(r *http.Request, header string) (*profile.UserProfile, error) {
	h, ok := ParseAuthorizationHeader(header)
	if !ok || !h.IsBearer() {
		if p.rejectUnsupported {
			p.logger.Warn("Rejecting request with unsupported Authorization scheme",
				logging.F("scheme", h.Scheme))
			return nil, ErrUnsupportedScheme
		}
		p.logger.Debug("Ignoring Authorization header with unsupported scheme",
			logging.F("scheme", h.Scheme))
		return nil, nil
	}

	uid, err := p.userIDForToken(r.Context(), h.Credentials)
	if err != nil {
		return nil, err
	}
	up := profile.New(uid, p.authContext)
	up.SetToken(profile.BearerToken(h.Credentials, p.clientID))
	return up, nil
}

func (p *URSProvider) authorizeURL(redirectURI string) string {
	cfg := p.oauth
	cfg.RedirectURL = redirectURI
	return cfg.AuthCodeURL("")
}

// exchange trades an authorization code for an access token. EDL expects
// the pre-shared client credential as HTTP Basic authorization.
func (p *URSProvider) exchange(ctx context.Context, code, redirectURI string) (*profile.EDLAccessToken, error) {
	cfg := p.oauth
	cfg.RedirectURL = redirectURI

	base := p.client.GetClient()
	hc := &http.Client{
		Timeout:   base.Timeout,
		Transport: &basicAuthTransport{authCode: p.clientAuthCode, base: base},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("EarthData Login token exchange failed: %w", scrub(err))
	}
	edl, err := profile.TokenFromOAuth2(tok, p.clientID)
	if err != nil {
		return nil, fmt.Errorf("EarthData Login token exchange failed: %w", err)
	}
	p.logger.Debug("EarthData Login token received", logging.F("endpoint", edl.Endpoint))
	return edl, nil
}

func (p *URSProvider) fetchProfile(ctx context.Context, token *profile.EDLAccessToken) (*profile.UserProfile, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", token.AuthorizationHeaderValue()).
		SetQueryParam("client_id", p.clientID).
		Get(p.ursURL + "/" + strings.TrimLeft(token.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("EarthData Login profile request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("EarthData Login profile request returned %d", resp.StatusCode())
	}

	up := profile.New("", p.authContext)
	if err := up.IngestJSON(resp.Body()); err != nil {
		return nil, err
	}
	if !up.HasUID() {
		return nil, fmt.Errorf("EarthData Login profile has no uid")
	}
	up.SetToken(token)
	return up, nil
}

type userIDResponse struct {
	UID string `json:"uid"`
}

func (p *URSProvider) userIDForToken(ctx context.Context, accessToken string) (string, error) {
	var out userIDResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Basic "+p.clientAuthCode).
		SetFormData(map[string]string{"token": accessToken}).
		SetResult(&out).
		Post(p.ursURL + ursUserIDPath)
	if err != nil {
		return "", fmt.Errorf("EarthData Login token validation failed: %w", err)
	}
	if !resp.IsSuccess() {
		return "", fmt.Errorf("EarthData Login rejected bearer token with status %d", resp.StatusCode())
	}
	if out.UID == "" {
		return "", fmt.Errorf("EarthData Login token validation returned no uid")
	}
	return out.UID, nil
}

// basicAuthTransport adds the client credential to token requests.
type basicAuthTransport struct {
	authCode string
	base     *http.Client
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Basic "+t.authCode)
	rt := t.base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	return rt.RoundTrip(req)
}

// scrub drops the response body from token errors, which may echo the code.
func scrub(err error) error {
	if re, ok := err.(*oauth2.RetrieveError); ok {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		return fmt.Errorf("token endpoint returned %d %s", status, re.ErrorCode)
	}
	return err
}
