package idp

import (
	"net/http"
	"strings"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/profile"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
)

// Defaults for providers that trust the fronting server.
const (
	ApacheAuthContext      = "apache"
	ApacheLoginLocation    = "/Login"
	ApacheLogoutLocation   = "/Logout"
	ApacheRemoteUserHeader = "X-Remote-User"
	TomcatAuthContext      = "tomcat"
	TomcatRemoteUserHeader = "X-Forwarded-User"
	TomcatGroupsHeader     = "X-Forwarded-Groups"
)

// ContainerProvider trusts a principal established outside this process,
// by Apache httpd (mod_auth_*, mod_shib) or by a servlet-container realm
// fronting the server. It never makes network calls.
type ContainerProvider struct {
	Base
	userHeader   string
	groupsHeader string
}

func newApacheFromConfig(cfg config.ProviderConfig, ep Endpoints, deps Dependencies) (IdentityProvider, error) {
	if cfg.Login == "" {
		cfg.Login = ApacheLoginLocation
	}
	if cfg.Logout == "" {
		cfg.Logout = ApacheLogoutLocation
	}
	p := &ContainerProvider{
		Base:         newBase(cfg, ApacheAuthContext, "Apache Identity Provider", ep, deps.Logger),
		userHeader:   cfg.RemoteUserHeader,
		groupsHeader: cfg.GroupsHeader,
	}
	if p.userHeader == "" {
		p.userHeader = ApacheRemoteUserHeader
	}
	return p, nil
}

func newTomcatFromConfig(cfg config.ProviderConfig, ep Endpoints, deps Dependencies) (IdentityProvider, error) {
	p := &ContainerProvider{
		Base:         newBase(cfg, TomcatAuthContext, "Tomcat Realm Identity Provider", ep, deps.Logger),
		userHeader:   cfg.RemoteUserHeader,
		groupsHeader: cfg.GroupsHeader,
	}
	if p.userHeader == "" {
		p.userHeader = TomcatRemoteUserHeader
	}
	if p.groupsHeader == "" {
		p.groupsHeader = TomcatGroupsHeader
	}
	return p, nil
}

// DoLogin copies the fronting server's principal into a new profile and
// redirects to the return-to URL. A missing principal means the fronting
// server is not protecting the login endpoint, which is a deployment error.
func (p *ContainerProvider) DoLogin(w http.ResponseWriter, r *http.Request) (bool, error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return false, ErrNoSession
	}

	uid, ok := ContainerPrincipal(r, p.userHeader)
	if !ok {
		p.logger.Error("Login endpoint reached without an authenticated principal, check the fronting server's security configuration",
			logging.F("login_endpoint", p.loginEndpoint),
			logging.F("header", p.userHeader))
		return false, ErrNoPrincipal
	}

	up := profile.New(uid, p.authContext)
	if p.groupsHeader != "" {
		for _, g := range strings.Split(r.Header.Get(p.groupsHeader), ",") {
			if g = strings.TrimSpace(g); g != "" {
				up.AddGroups(g)
			}
		}
	}
	p.complete(w, r, sess, up)
	return true, nil
}
