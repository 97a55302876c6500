package filter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/idp"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/pdp"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/gin-gonic/gin"
)

// Responses sent when access is denied.
const (
	UnknownUserMessage = "We don't know who you are! Login and let us know, and then maybe you can have what you want."
	forbiddenFormat    = "I'm Sorry %s, But I'm Afraid You Can't Do That."
)

// AuthorizationFilter is the policy enforcement point. It must run after
// the AuthenticationFilter.
type AuthorizationFilter struct {
	lazy   *Lazy
	opts   Options
	logger logging.Logger
}

// NewAuthorizationFilter creates the filter.
func NewAuthorizationFilter(lazy *Lazy, opts Options) *AuthorizationFilter {
	opts = opts.withDefaults()
	return &AuthorizationFilter{
		lazy:   lazy,
		opts:   opts,
		logger: opts.Logger.With(logging.F("filter", "authorization")),
	}
}

// Middleware returns the gin handler.
func (f *AuthorizationFilter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if isPublic(path, f.opts.PublicPaths) {
			c.Next()
			return
		}

		s, err := f.lazy.Get()
		if err != nil {
			abortWithError(c, http.StatusServiceUnavailable, "authorization service is not available")
			return
		}
		if !underContext(path, s.Endpoints.ContextPath) {
			c.Next()
			return
		}

		id, known := f.identity(c.Request, s)
		if s.EveryoneMustHaveID && !known {
			f.logger.Debug("Request without identity refused", logging.F("path", path))
			f.challenge(c, s)
			return
		}

		req := pdp.Request{
			UserID:      id.UID,
			AuthContext: id.AuthContext,
			ResourceID:  c.Request.URL.EscapedPath(),
			Query:       c.Request.URL.RawQuery,
			Action:      c.Request.Method,
		}
		start := time.Now()
		allowed := s.PDP.Evaluate(c.Request.Context(), req)
		f.opts.Recorder.RecordDecision(allowed, time.Since(start))

		f.logger.Debug("Access decision",
			logging.F("uid", req.UserID),
			logging.F("auth_context", req.AuthContext),
			logging.F("resource", req.ResourceID),
			logging.F("action", req.Action),
			logging.F("allowed", allowed))

		switch {
		case allowed:
			c.Next()
		case !known:
			f.challenge(c, s)
		default:
			abortWithError(c, http.StatusForbidden, fmt.Sprintf(forbiddenFormat, id.UID))
		}
	}
}

// identity determines the caller: the session profile first, then the
// remote user bridged by the authentication filter, then a principal
// established by the fronting server.
func (f *AuthorizationFilter) identity(r *http.Request, s *Settings) (Identity, bool) {
	if sess, ok := session.FromContext(r.Context()); ok {
		if up, ok := idp.ProfileFrom(sess); ok && up.HasUID() {
			return Identity{UID: up.UID(), AuthContext: up.AuthContext()}, true
		}
	}
	if id, ok := IdentityFromRequest(r); ok {
		return id, true
	}
	if uid, ok := idp.ContainerPrincipal(r, s.TrustedRemoteUserHeader); ok {
		return Identity{UID: uid}, true
	}
	return Identity{}, false
}

// challenge asks an unidentified caller to log in.
func (f *AuthorizationFilter) challenge(c *gin.Context, s *Settings) {
	if s.DefaultLoginEndpoint != "" {
		c.Redirect(http.StatusFound, s.DefaultLoginEndpoint)
		c.Abort()
		return
	}
	abortWithError(c, http.StatusUnauthorized, UnknownUserMessage)
}
