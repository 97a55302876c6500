package pdp

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/httpclient"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/membership"
	"github.com/OPENDAP/hyrax-auth/pkg/policy"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localConfig() config.PDPConfig {
	return config.PDPConfig{
		Class: "local",
		Policies: []config.PolicyConfig{
			{Class: "regex", Role: "users", Resource: "/opendap/data/.*", Actions: []string{"GET"}},
			{Class: "regex", Role: ".*", Resource: "/opendap/public/.*", Actions: []string{"GET", "HEAD"}},
		},
		Memberships: config.MembershipsConfig{
			Groups: []config.GroupConfig{
				{ID: "edl", Users: []config.UserRuleConfig{{IDPattern: ".*", AuthContext: "urs"}}},
			},
			Roles: []config.RoleConfig{{ID: "users", Groups: []string{"edl"}}},
		},
	}
}

func TestLocalPDP_Evaluate(t *testing.T) {
	p, err := New(localConfig(), Dependencies{Logger: logging.DiscardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "local", Kind(p))

	tests := []struct {
		name string
		req  Request
		want bool
	}{
		{"member reads data", Request{UserID: "alice", AuthContext: "urs", ResourceID: "/opendap/data/sst.nc", Action: "GET"}, true},
		{"member cannot post", Request{UserID: "alice", AuthContext: "urs", ResourceID: "/opendap/data/sst.nc", Action: "POST"}, false},
		{"other context denied", Request{UserID: "alice", AuthContext: "shib", ResourceID: "/opendap/data/sst.nc", Action: "GET"}, false},
		{"anonymous denied data", Request{ResourceID: "/opendap/data/sst.nc", Action: "GET"}, false},
		{"anonymous reads public", Request{ResourceID: "/opendap/public/readme.txt", Action: "HEAD"}, true},
		{"member reads public", Request{UserID: "alice", AuthContext: "urs", ResourceID: "/opendap/public/readme.txt", Action: "GET"}, true},
		{"no action", Request{ResourceID: "/opendap/public/readme.txt"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Evaluate(context.Background(), tt.req))
		})
	}
}

func TestLocalPDP_ConcurrentEvaluate(t *testing.T) {
	p, err := New(localConfig(), Dependencies{Logger: logging.DiscardLogger()})
	require.NoError(t, err)

	member := Request{UserID: "alice", AuthContext: "urs", ResourceID: "/opendap/data/sst.nc", Action: "GET"}
	stranger := Request{UserID: "alice", AuthContext: "shib", ResourceID: "/opendap/data/sst.nc", Action: "GET"}

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				req, want := member, true
				if (i+j)%2 == 1 {
					req, want = stranger, false
				}
				if got := p.Evaluate(context.Background(), req); got != want {
					errs <- req.AuthContext
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for ctx := range errs {
		t.Errorf("wrong decision for auth context %q", ctx)
	}
}

func TestLocalPDP_NoPoliciesDeniesEverything(t *testing.T) {
	p := NewLocalPDP(nil, nil, logging.DiscardLogger())
	assert.False(t, p.Evaluate(context.Background(), Request{UserID: "root", ResourceID: "/", Action: "GET"}))
}

type panickingPolicy struct{}

func (panickingPolicy) Evaluate(string, string, string, string) bool { panic("boom") }

func TestLocalPDP_PanicDenies(t *testing.T) {
	p := NewLocalPDP([]policy.Policy{panickingPolicy{}}, membership.NewResolver(), logging.DiscardLogger())
	assert.False(t, p.Evaluate(context.Background(), Request{ResourceID: "/", Action: "GET"}))
}

func TestNew_Errors(t *testing.T) {
	deps := Dependencies{Logger: logging.DiscardLogger()}

	_, err := New(config.PDPConfig{}, deps)
	assert.Error(t, err)

	_, err = New(config.PDPConfig{Class: "opendap.auth.XacmlPDP"}, deps)
	assert.Error(t, err)

	bad := localConfig()
	bad.Policies[0].Actions = nil
	_, err = New(bad, deps)
	assert.Error(t, err)

	bad = localConfig()
	bad.Memberships.Groups[0].Users = nil
	_, err = New(bad, deps)
	assert.Error(t, err)

	_, err = New(config.PDPConfig{Class: "remote", Endpoint: "not a url"}, deps)
	assert.Error(t, err)
}

func newMockedRemote(t *testing.T, endpoint string) *RemotePDP {
	t.Helper()
	client := httpclient.New(time.Second, logging.DiscardLogger())
	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	p, err := NewRemotePDP(endpoint, client, logging.DiscardLogger())
	require.NoError(t, err)
	return p
}

func TestRemotePDP_SendsTuple(t *testing.T) {
	const endpoint = "https://pdp.example.org/opendap/pdpService"
	p := newMockedRemote(t, endpoint)

	var got url.Values
	httpmock.RegisterResponder(http.MethodGet, endpoint, func(req *http.Request) (*http.Response, error) {
		got = req.URL.Query()
		return httpmock.NewStringResponse(200, "Yes. Affirmative. Absolutely. I do."), nil
	})

	allowed := p.Evaluate(context.Background(), Request{
		UserID:      "alice",
		AuthContext: "urs",
		ResourceID:  "/opendap/data/sst.nc",
		Query:       "dap4.ce=/sst&x=1",
		Action:      "GET",
	})
	assert.True(t, allowed)
	assert.Equal(t, "alice", got.Get("uid"))
	assert.Equal(t, "urs", got.Get("authContext"))
	assert.Equal(t, "/opendap/data/sst.nc", got.Get("resourceId"))
	assert.Equal(t, "dap4.ce=/sst&x=1", got.Get("query"))
	assert.Equal(t, "GET", got.Get("action"))
}

func TestRemotePDP_StatusMapping(t *testing.T) {
	const endpoint = "https://pdp.example.org/pdp"
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{204, true},
		{302, false},
		{401, false},
		{403, false},
		{500, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			p := newMockedRemote(t, endpoint)
			httpmock.RegisterResponder(http.MethodGet, endpoint, func(*http.Request) (*http.Response, error) {
				resp := httpmock.NewStringResponse(tt.status, "")
				if tt.status == 302 {
					resp.Header.Set("Location", "https://pdp.example.org/ok")
				}
				return resp, nil
			})
			httpmock.RegisterResponder(http.MethodGet, "https://pdp.example.org/ok",
				httpmock.NewStringResponder(200, "ok"))
			assert.Equal(t, tt.want, p.Evaluate(context.Background(), Request{ResourceID: "/x", Action: "GET"}))
		})
	}
}

func TestRemotePDP_TransportErrorDenies(t *testing.T) {
	const endpoint = "https://pdp.example.org/pdp"
	p := newMockedRemote(t, endpoint)
	httpmock.RegisterResponder(http.MethodGet, endpoint, httpmock.NewErrorResponder(assert.AnError))
	assert.False(t, p.Evaluate(context.Background(), Request{ResourceID: "/x", Action: "GET"}))
}

func TestRemotePDP_DefaultEndpoint(t *testing.T) {
	p, err := New(config.PDPConfig{Class: "opendap.auth.RemotePDP"}, Dependencies{Logger: logging.DiscardLogger()})
	require.NoError(t, err)
	assert.Equal(t, "remote", Kind(p))
	assert.Equal(t, DefaultRemoteEndpoint, p.(*RemotePDP).Endpoint())
}
