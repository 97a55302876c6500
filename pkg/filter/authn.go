package filter

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/OPENDAP/hyrax-auth/pkg/idp"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/profile"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/gin-gonic/gin"
)

// AuthenticationFilter attaches a session to every request under the
// application root, runs the login, logout and guest controls, hands
// provider login endpoints to their provider, and bridges the session's
// profile into the request as its remote user.
type AuthenticationFilter struct {
	lazy   *Lazy
	opts   Options
	logger logging.Logger
}

// NewAuthenticationFilter creates the filter.
func NewAuthenticationFilter(lazy *Lazy, opts Options) *AuthenticationFilter {
	opts = opts.withDefaults()
	return &AuthenticationFilter{
		lazy:   lazy,
		opts:   opts,
		logger: opts.Logger.With(logging.F("filter", "authentication")),
	}
}

// Middleware returns the gin handler.
func (f *AuthenticationFilter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isPublic(path, f.opts.PublicPaths) {
			c.Next()
			return
		}

		s, err := f.lazy.Get()
		if err != nil {
			abortWithError(c, http.StatusServiceUnavailable, "authentication service is not available")
			return
		}

		ep := s.Endpoints
		loginProvider, isLogin := s.Registry.ByLoginEndpoint(path)
		logoutProvider := providerByLogout(s.Registry, path, ep.Logout())
		isControl := path == ep.Logout() || path == ep.Login() || (s.GuestEnabled && path == ep.Guest())
		if !isControl && !isLogin && logoutProvider == nil && !underContext(path, ep.ContextPath) {
			c.Next()
			return
		}

		sess, _, err := s.Sessions.GetOrCreate(c.Writer, c.Request)
		if err != nil {
			f.logger.Error("Failed to create session", logging.F("error", err.Error()))
			abortWithError(c, http.StatusInternalServerError, "failed to create session")
			return
		}
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))

		switch {
		case path == ep.Logout():
			f.logout(c, s, sess)
		case path == ep.Login():
			f.landingPage(c, s, sess)
		case s.GuestEnabled && path == ep.Guest():
			f.guest(c, s, sess)
		case isLogin:
			f.login(c, s, sess, loginProvider)
		case logoutProvider != nil:
			sess.Lock()
			logoutProvider.DoLogout(c.Writer, c.Request)
			sess.Unlock()
			c.Abort()
		default:
			f.proceed(c, s, sess)
		}
	}
}

// providerByLogout returns the provider owning a provider-specific logout
// endpoint. The shared logout endpoint is handled separately.
func providerByLogout(r *idp.Registry, path, shared string) idp.IdentityProvider {
	if path == shared {
		return nil
	}
	for _, p := range r.Providers() {
		if p.LogoutEndpoint() == path {
			return p
		}
	}
	return nil
}

// logout hands the request to the provider that logged the user in. Without
// one the session is simply discarded.
func (f *AuthenticationFilter) logout(c *gin.Context, s *Settings, sess *session.Session) {
	defer c.Abort()
	sess.Lock()
	defer sess.Unlock()
	if name := sess.GetString(session.IdentityProviderKey); name != "" {
		if p, ok := s.Registry.Provider(name); ok {
			p.DoLogout(c.Writer, c.Request)
			return
		}
	}
	f.logger.Debug("Logout without a provider, discarding session")
	sess.Invalidate()
	c.Redirect(http.StatusFound, s.Endpoints.Root())
}

// guest replaces the session with a new one carrying the guest profile and
// sends the user back to where they were going.
func (f *AuthenticationFilter) guest(c *gin.Context, s *Settings, sess *session.Session) {
	defer c.Abort()
	sess.Lock()
	defer sess.Unlock()
	target := sess.GetString(session.ReturnToURLKey)
	if target == "" {
		target = s.Endpoints.Root()
	}
	sess.Invalidate()

	fresh, err := s.Sessions.New(c.Writer)
	if err != nil {
		f.logger.Error("Failed to create guest session", logging.F("error", err.Error()))
		abortWithError(c, http.StatusInternalServerError, "failed to create session")
		return
	}
	fresh.Set(session.ReturnToURLKey, target)
	fresh.Set(session.UserProfileKey, profile.Guest())
	f.opts.Recorder.RecordLogin("guest", LoginSuccess)
	c.Redirect(http.StatusFound, target)
}

// login runs one step of a provider's login interaction while holding the
// session lock.
func (f *AuthenticationFilter) login(c *gin.Context, s *Settings, sess *session.Session, p idp.IdentityProvider) {
	defer c.Abort()
	sess.Lock()
	defer sess.Unlock()

	if pointsAt(sess.GetString(session.ReturnToURLKey), p.LoginEndpoint()) {
		sess.Set(session.ReturnToURLKey, s.Endpoints.Root())
	}

	done, err := p.DoLogin(c.Writer, c.Request)
	switch {
	case errors.Is(err, idp.ErrUnsupportedScheme):
		f.opts.Recorder.RecordLogin(p.AuthContext(), LoginFailure)
		abortWithError(c, http.StatusForbidden, "unsupported authorization scheme")
	case err != nil:
		f.opts.Recorder.RecordLogin(p.AuthContext(), LoginFailure)
		f.logger.Error("Login interaction failed",
			logging.F("auth_context", p.AuthContext()),
			logging.F("error", err.Error()))
		abortWithError(c, http.StatusUnauthorized, "login failed: "+err.Error())
	case done:
		f.opts.Recorder.RecordLogin(p.AuthContext(), LoginSuccess)
	default:
		f.opts.Recorder.RecordLogin(p.AuthContext(), LoginRedirect)
	}
}

// proceed handles an ordinary application request.
func (f *AuthenticationFilter) proceed(c *gin.Context, s *Settings, sess *session.Session) {
	sess.Lock()
	up, ok := idp.ProfileFrom(sess)
	if !ok {
		var err error
		up, err = f.authenticateBearer(c.Request, s, sess)
		if err != nil {
			sess.Unlock()
			if errors.Is(err, idp.ErrUnsupportedScheme) {
				abortWithError(c, http.StatusForbidden, "unsupported authorization scheme")
			} else {
				abortWithError(c, http.StatusUnauthorized, "bearer token was not accepted")
			}
			return
		}
	}
	if !isStaticAsset(c.Request.URL.Path, s.Endpoints.ContextPath) {
		sess.Set(session.ReturnToURLKey, idp.RequestURL(c.Request, true))
	}
	sess.Unlock()

	if up != nil && up.HasUID() {
		c.Request = c.Request.WithContext(withIdentity(c.Request.Context(), Identity{
			UID:         up.UID(),
			AuthContext: up.AuthContext(),
		}))
	}
	c.Next()
}

// authenticateBearer offers the request's Authorization header to every
// provider able to validate it, default provider first. The caller holds
// the session lock.
func (f *AuthenticationFilter) authenticateBearer(r *http.Request, s *Settings, sess *session.Session) (*profile.UserProfile, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}

	providers := s.Registry.Providers()
	if def, err := s.Registry.DefaultProvider(); err == nil {
		providers = append([]idp.IdentityProvider{def}, providers...)
	}
	tried := make(map[string]bool)
	for _, p := range providers {
		ba, ok := p.(idp.BearerAuthenticator)
		if !ok || tried[p.AuthContext()] {
			continue
		}
		tried[p.AuthContext()] = true

		up, err := ba.AuthenticateHeader(r, header)
		if err != nil {
			f.opts.Recorder.RecordLogin(p.AuthContext(), LoginFailure)
			f.logger.Warn("Authorization header rejected",
				logging.F("auth_context", p.AuthContext()),
				logging.F("error", err.Error()))
			return nil, err
		}
		if up != nil {
			sess.Set(session.UserProfileKey, up)
			sess.Set(session.IdentityProviderKey, p.AuthContext())
			f.opts.Recorder.RecordLogin(p.AuthContext(), LoginSuccess)
			f.logger.Info("Authenticated bearer token",
				logging.F("auth_context", p.AuthContext()),
				logging.F("uid", up.UID()))
			return up, nil
		}
	}
	return nil, nil
}

// pointsAt reports whether the cached return-to URL targets path.
func pointsAt(returnTo, path string) bool {
	if returnTo == "" {
		return false
	}
	u, err := url.Parse(returnTo)
	if err != nil {
		return false
	}
	return u.Path == path
}

// isStaticAsset reports whether path is a resource never worth returning
// to after login.
func isStaticAsset(path, contextPath string) bool {
	rel := strings.TrimPrefix(path, contextPath)
	for _, prefix := range []string{"/docs/", "/xsl/", "/js/", "/WebStart"} {
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return strings.HasSuffix(path, "/favicon.ico")
}
