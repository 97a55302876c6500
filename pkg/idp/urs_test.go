package idp

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/httpclient"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURS = "https://urs.example.org"

func newTestURS(t *testing.T, reject bool) *URSProvider {
	t.Helper()
	client := httpclient.New(0, logging.DiscardLogger())
	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	p, err := newURSFromConfig(config.ProviderConfig{
		Default:                       true,
		URSURL:                        testURS + "/",
		ClientID:                      "hyrax-app",
		ClientAuthCode:                "aHlyYXgtYXBwOnNlY3JldA==",
		RejectUnsupportedAuthzSchemes: reject,
	}, testEndpoints, Dependencies{Logger: logging.DiscardLogger(), HTTPClient: client})
	require.NoError(t, err)
	return p.(*URSProvider)
}

func TestURS_RedirectsToAuthorize(t *testing.T) {
	p := newTestURS(t, false)
	assert.Equal(t, "/opendap/login/urs", p.LoginEndpoint())

	req, sess := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs")
	w := httptest.NewRecorder()
	done, err := p.DoLogin(w, req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "urs.example.org", loc.Host)
	assert.Equal(t, "/oauth/authorize", loc.Path)
	assert.Equal(t, "hyrax-app", loc.Query().Get("client_id"))
	assert.Equal(t, "code", loc.Query().Get("response_type"))
	assert.Equal(t, "http://example.com/opendap/login/urs", loc.Query().Get("redirect_uri"))

	_, ok := ProfileFrom(sess)
	assert.False(t, ok)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestURS_CodeExchange(t *testing.T) {
	p := newTestURS(t, false)

	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/token",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Basic aHlyYXgtYXBwOnNlY3JldA==" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, "bad client"), nil
			}
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			if req.PostForm.Get("grant_type") != "authorization_code" ||
				req.PostForm.Get("code") != "c0de" ||
				req.PostForm.Get("redirect_uri") != "http://example.com/opendap/login/urs" {
				return httpmock.NewStringResponse(http.StatusBadRequest, "bad grant"), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"access_token":  "edl-token",
				"token_type":    "Bearer",
				"expires_in":    3600,
				"refresh_token": "refresh",
				"endpoint":      "/api/users/jhrg",
			})
		})
	httpmock.RegisterResponder(http.MethodGet, testURS+"/api/users/jhrg",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Bearer edl-token" ||
				req.URL.Query().Get("client_id") != "hyrax-app" {
				return httpmock.NewStringResponse(http.StatusForbidden, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
				"uid":           "jhrg",
				"first_name":    "James",
				"last_name":     "Gallagher",
				"email_address": "jhrg@example.org",
				"user_groups":   []string{},
			})
		})

	req, sess := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs?code=c0de")
	sess.Set(session.ReturnToURLKey, "http://example.com/opendap/data/sst.nc.dds")
	w := httptest.NewRecorder()
	done, err := p.DoLogin(w, req)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://example.com/opendap/data/sst.nc.dds", w.Header().Get("Location"))

	up, ok := ProfileFrom(sess)
	require.True(t, ok)
	assert.Equal(t, "jhrg", up.UID())
	assert.Equal(t, "urs", up.AuthContext())
	assert.Equal(t, "James", up.Attribute("first_name"))
	assert.Equal(t, "[]", up.Attribute("user_groups"))
	require.NotNil(t, up.Token())
	assert.Equal(t, "edl-token", up.Token().AccessToken)
	assert.Equal(t, "/api/users/jhrg", up.Token().Endpoint)
	assert.Equal(t, "urs", sess.GetString(session.IdentityProviderKey))
}

func TestURS_CodeExchangeRejected(t *testing.T) {
	p := newTestURS(t, false)
	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/token",
		httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"invalid_grant","error_description":"c0de"}`))

	req, sess := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs?code=c0de")
	done, err := p.DoLogin(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.False(t, done)
	assert.NotContains(t, err.Error(), "c0de")
	_, ok := ProfileFrom(sess)
	assert.False(t, ok)
}

func TestURS_ProfileFetchFails(t *testing.T) {
	p := newTestURS(t, false)
	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/token",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"access_token": "edl-token",
			"token_type":   "Bearer",
			"endpoint":     "/api/users/jhrg",
		}))
	httpmock.RegisterResponder(http.MethodGet, testURS+"/api/users/jhrg",
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	req, sess := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs?code=c0de")
	done, err := p.DoLogin(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.False(t, done)
	_, ok := ProfileFrom(sess)
	assert.False(t, ok)
}

func TestURS_TokenWithoutEndpoint(t *testing.T) {
	p := newTestURS(t, false)
	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/token",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]interface{}{
			"access_token": "edl-token",
			"token_type":   "Bearer",
		}))

	req, _ := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs?code=c0de")
	_, err := p.DoLogin(httptest.NewRecorder(), req)
	require.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestURS_BearerToken(t *testing.T) {
	p := newTestURS(t, false)
	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/tokens/user",
		func(req *http.Request) (*http.Response, error) {
			if req.Header.Get("Authorization") != "Basic aHlyYXgtYXBwOnNlY3JldA==" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			if err := req.ParseForm(); err != nil {
				return nil, err
			}
			if req.PostForm.Get("token") != "api-token" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"uid": "ndp"})
		})

	req := httptest.NewRequest(http.MethodGet, "/opendap/data/sst.nc.dds", nil)
	up, err := p.AuthenticateHeader(req, "Bearer api-token")
	require.NoError(t, err)
	require.NotNil(t, up)
	assert.Equal(t, "ndp", up.UID())
	assert.Equal(t, "urs", up.AuthContext())
	assert.Equal(t, "api-token:hyrax-app", up.Token().EchoTokenValue())

	_, err = p.AuthenticateHeader(req, "Bearer stolen")
	assert.Error(t, err)
}

func TestURS_BearerLoginCompletesImmediately(t *testing.T) {
	p := newTestURS(t, false)
	httpmock.RegisterResponder(http.MethodPost, testURS+"/oauth/tokens/user",
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"uid": "ndp"}))

	req, sess := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs")
	req.Header.Set("Authorization", "Bearer api-token")
	w := httptest.NewRecorder()
	done, err := p.DoLogin(w, req)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "/opendap", w.Header().Get("Location"))
	up, ok := ProfileFrom(sess)
	require.True(t, ok)
	assert.Equal(t, "ndp", up.UID())
}

func TestURS_UnsupportedScheme(t *testing.T) {
	tests := []struct {
		name    string
		reject  bool
		wantErr error
	}{
		{"ignored", false, nil},
		{"rejected", true, ErrUnsupportedScheme},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestURS(t, tt.reject)
			req := httptest.NewRequest(http.MethodGet, "/opendap/data/", nil)
			up, err := p.AuthenticateHeader(req, "Basic dXNlcjpwdw==")
			assert.Nil(t, up)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, 0, httpmock.GetTotalCallCount())
		})
	}
}

func TestURS_BasicHeaderFallsThroughToRedirect(t *testing.T) {
	p := newTestURS(t, false)
	req, _ := requestWithSession(t, http.MethodGet, "http://example.com/opendap/login/urs")
	req.Header.Set("Authorization", "Basic dXNlcjpwdw==")
	w := httptest.NewRecorder()
	done, err := p.DoLogin(w, req)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, http.StatusFound, w.Code)
}
