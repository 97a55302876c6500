// Package idp implements identity providers: pluggable back ends that
// establish who the user is and record the result as a profile in the
// user's session.
//
// Providers are selected by class name from a compile-time table and are
// kept in a Registry keyed by auth-context. Every provider exposes a login
// endpoint that the authentication filter hands requests to, and a logout
// endpoint.
package idp

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/profile"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/go-resty/resty/v2"
)

var (
	// ErrConfiguration wraps every provider configuration failure.
	ErrConfiguration = errors.New("identity provider configuration error")
	// ErrUnsupportedScheme is returned for an Authorization header whose
	// scheme the provider does not accept.
	ErrUnsupportedScheme = errors.New("unsupported authorization scheme")
	// ErrNoDefaultProvider is returned when no provider is marked default.
	ErrNoDefaultProvider = errors.New("no default identity provider")
	// ErrNoPrincipal is returned when the fronting server did not
	// authenticate the request.
	ErrNoPrincipal = errors.New("request carries no authenticated principal")
	// ErrNoSession is returned when a login is attempted outside a session.
	ErrNoSession = errors.New("request has no session")
)

// IdentityProvider establishes user identity for one auth-context.
type IdentityProvider interface {
	AuthContext() string
	Description() string
	IsDefault() bool
	LoginEndpoint() string
	LogoutEndpoint() string

	// DoLogin advances the provider's login interaction for the request.
	// It writes a response (usually a redirect) and returns true once a
	// profile has been stored in the session. It returns false when the
	// user agent has been sent elsewhere to continue the interaction.
	DoLogin(w http.ResponseWriter, r *http.Request) (bool, error)

	// DoLogout ends the session and redirects the user agent.
	DoLogout(w http.ResponseWriter, r *http.Request)
}

// BearerAuthenticator is implemented by providers that can authenticate a
// request from its Authorization header alone, without user interaction.
type BearerAuthenticator interface {
	// AuthenticateHeader validates the header value and returns the
	// resulting profile. A nil profile with nil error means the header
	// was ignored.
	AuthenticateHeader(r *http.Request, header string) (*profile.UserProfile, error)
}

// Endpoints describes where the authentication controls live.
type Endpoints struct {
	// ContextPath is the application root, "" for the server root.
	ContextPath string
	LoginPath   string
	LogoutPath  string
}

// Root returns the application root path.
func (e Endpoints) Root() string {
	if e.ContextPath == "" {
		return "/"
	}
	return e.ContextPath
}

// Login returns the full path of the login landing page.
func (e Endpoints) Login() string { return e.ContextPath + e.LoginPath }

// Logout returns the full path of the logout control.
func (e Endpoints) Logout() string { return e.ContextPath + e.LogoutPath }

// Guest returns the full path of the guest login control.
func (e Endpoints) Guest() string { return e.ContextPath + "/guest" }

// ProviderLogin returns the login endpoint of the provider for authContext.
func (e Endpoints) ProviderLogin(authContext string) string {
	return e.Login() + "/" + authContext
}

// Dependencies are shared services handed to provider constructors.
type Dependencies struct {
	Logger     logging.Logger
	HTTPClient *resty.Client
	Timeout    time.Duration
}

// Factory builds a provider from its configuration.
type Factory func(cfg config.ProviderConfig, ep Endpoints, deps Dependencies) (IdentityProvider, error)

var factoryRegistry = make(map[string]Factory)

// RegisterFactory registers a provider constructor under a class name.
func RegisterFactory(class string, f Factory) {
	factoryRegistry[class] = f
}

// GetFactory returns the constructor registered for class.
func GetFactory(class string) (Factory, bool) {
	f, ok := factoryRegistry[class]
	return f, ok
}

func init() {
	RegisterFactory("apache", newApacheFromConfig)
	RegisterFactory("opendap.auth.ApacheIdP", newApacheFromConfig)
	RegisterFactory("tomcat", newTomcatFromConfig)
	RegisterFactory("opendap.auth.TomcatRealmIdP", newTomcatFromConfig)
	RegisterFactory("urs", newURSFromConfig)
	RegisterFactory("opendap.auth.UrsIdP", newURSFromConfig)
}

// Base carries the state and behavior shared by all providers.
type Base struct {
	authContext    string
	description    string
	isDefault      bool
	loginEndpoint  string
	logoutEndpoint string
	endpoints      Endpoints
	logger         logging.Logger
}

func newBase(cfg config.ProviderConfig, defaultContext, defaultDescription string, ep Endpoints, logger logging.Logger) Base {
	b := Base{
		authContext: cfg.AuthContext,
		description: cfg.Description,
		isDefault:   cfg.Default,
		endpoints:   ep,
		logger:      logger,
	}
	if b.authContext == "" {
		b.authContext = defaultContext
	}
	if b.description == "" {
		b.description = defaultDescription
	}
	b.loginEndpoint = ep.ProviderLogin(b.authContext)
	b.logoutEndpoint = ep.Logout()
	if cfg.Login != "" {
		b.loginEndpoint = cfg.Login
	}
	if cfg.Logout != "" {
		b.logoutEndpoint = cfg.Logout
	}
	if b.logger == nil {
		b.logger = logging.DefaultLogger()
	}
	b.logger = b.logger.With(logging.F("auth_context", b.authContext))
	return b
}

func (b *Base) AuthContext() string    { return b.authContext }
func (b *Base) Description() string    { return b.description }
func (b *Base) IsDefault() bool        { return b.isDefault }
func (b *Base) LoginEndpoint() string  { return b.loginEndpoint }
func (b *Base) LogoutEndpoint() string { return b.logoutEndpoint }

// returnTo returns the cached return-to URL or the application root.
func (b *Base) returnTo(sess *session.Session) string {
	if sess != nil {
		if u := sess.GetString(session.ReturnToURLKey); u != "" {
			return u
		}
	}
	return b.endpoints.Root()
}

// complete stores p in the session and sends the user agent back to where
// it was headed before login.
func (b *Base) complete(w http.ResponseWriter, r *http.Request, sess *session.Session, p *profile.UserProfile) {
	sess.Set(session.UserProfileKey, p)
	sess.Set(session.IdentityProviderKey, b.authContext)
	target := b.returnTo(sess)
	b.logger.Info("Login completed",
		logging.F("uid", p.UID()),
		logging.F("redirect", target))
	http.Redirect(w, r, target, http.StatusFound)
}

// DoLogout invalidates the session and redirects to the cached return-to
// URL, or the application root when there is none.
func (b *Base) DoLogout(w http.ResponseWriter, r *http.Request) {
	target := b.endpoints.Root()
	if sess, ok := session.FromContext(r.Context()); ok {
		target = b.returnTo(sess)
		if p, ok := ProfileFrom(sess); ok {
			b.logger.Info("Logging out", logging.F("uid", p.UID()))
		}
		sess.Invalidate()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ProfileFrom returns the user profile stored in sess.
func ProfileFrom(sess *session.Session) (*profile.UserProfile, bool) {
	if sess == nil {
		return nil, false
	}
	v, ok := sess.Get(session.UserProfileKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*profile.UserProfile)
	return p, ok && p != nil
}

func configError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
