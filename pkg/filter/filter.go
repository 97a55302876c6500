// Package filter provides the two gin middlewares that guard the data
// server: the authentication filter, which runs the login controls and
// attaches the caller's identity to the request, and the authorization
// filter, which asks a policy decision point whether the request may
// proceed.
//
// Both filters share one lazily built Settings value. Building it reads
// the provider, policy and membership configuration; a failure is logged
// and retried on the next request.
package filter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/httpclient"
	"github.com/OPENDAP/hyrax-auth/pkg/idp"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/pdp"
	"github.com/OPENDAP/hyrax-auth/pkg/session"
	"github.com/gin-gonic/gin"
)

// Recorder receives filter events for metrics.
type Recorder interface {
	RecordLogin(authContext, outcome string)
	RecordDecision(allowed bool, duration time.Duration)
	RecordSessionCreated()
}

// Login outcomes passed to Recorder.RecordLogin.
const (
	LoginSuccess  = "success"
	LoginRedirect = "redirect"
	LoginFailure  = "failure"
)

type nopRecorder struct{}

func (nopRecorder) RecordLogin(string, string)         {}
func (nopRecorder) RecordDecision(bool, time.Duration) {}
func (nopRecorder) RecordSessionCreated()              {}

// Options are shared by the filters and NewSettings.
type Options struct {
	Logger   logging.Logger
	Recorder Recorder
	// PublicPaths are path prefixes the filters pass through untouched.
	PublicPaths []string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = logging.DefaultLogger()
	}
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	return o
}

// Settings is the fully initialized state both filters work from.
type Settings struct {
	Endpoints idp.Endpoints
	Registry  *idp.Registry
	Sessions  *session.Store
	PDP       pdp.PolicyDecisionPoint

	LoginBanner  string
	GuestEnabled bool

	EveryoneMustHaveID bool
	// DefaultLoginEndpoint is where unauthenticated users are sent when
	// access is denied. Empty means respond 401 instead.
	DefaultLoginEndpoint string
	// TrustedRemoteUserHeader names a header set by a fronting server that
	// is accepted as the user id when no profile is present.
	TrustedRemoteUserHeader string
}

// NewSettings builds the identity provider registry, session store and
// policy decision point described by cfg.
func NewSettings(cfg *config.Config, opts Options) (*Settings, error) {
	opts = opts.withDefaults()

	ep := idp.Endpoints{
		ContextPath: cfg.Server.NormalizedContextPath(),
		LoginPath:   cfg.Authentication.LoginPath,
		LogoutPath:  cfg.Authentication.LogoutPath,
	}

	registry, err := idp.RegistryFromConfig(cfg.Authentication.Providers, ep, idp.Dependencies{
		Logger:     opts.Logger,
		HTTPClient: httpclient.New(cfg.HTTPClient.Timeout, opts.Logger),
		Timeout:    cfg.HTTPClient.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build identity providers: %w", err)
	}

	decisionPoint, err := pdp.New(cfg.Authorization.PDP, pdp.Dependencies{
		Logger:  opts.Logger,
		Timeout: cfg.HTTPClient.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build policy decision point: %w", err)
	}

	s := &Settings{
		Endpoints: ep,
		Registry:  registry,
		PDP:       decisionPoint,

		LoginBanner:  cfg.Authentication.LoginBanner,
		GuestEnabled: cfg.Authentication.GuestEnabled,

		EveryoneMustHaveID:      cfg.Authorization.EveryoneMustHaveID,
		DefaultLoginEndpoint:    cfg.Authorization.DefaultLoginEndpoint,
		TrustedRemoteUserHeader: cfg.Security.TrustedRemoteUserHeader,
	}
	if s.DefaultLoginEndpoint == "" {
		if p, err := registry.DefaultProvider(); err == nil {
			s.DefaultLoginEndpoint = p.LoginEndpoint()
		}
	}

	s.Sessions = session.NewStore(session.Options{
		CookieName:  cfg.Session.CookieName,
		TTL:         cfg.Session.Timeout,
		MaxSessions: cfg.Session.MaxSessions,
		HashKey:     []byte(cfg.Session.HashKey),
		BlockKey:    []byte(cfg.Session.BlockKey),
		Secure:      cfg.Session.Secure,
		Logger:      opts.Logger,
		OnCreate:    opts.Recorder.RecordSessionCreated,
	})
	return s, nil
}

// Initializer produces Settings on first use.
type Initializer func() (*Settings, error)

// FromConfig returns an Initializer building Settings from cfg.
func FromConfig(cfg *config.Config, opts Options) Initializer {
	return func() (*Settings, error) {
		return NewSettings(cfg, opts)
	}
}

// FromFile returns an Initializer that reads the configuration file at
// path each time it runs, so a broken file can be fixed without a restart.
func FromFile(path string, opts Options) Initializer {
	return func() (*Settings, error) {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return NewSettings(cfg, opts)
	}
}

// Lazy runs an Initializer once it succeeds, retrying after each failure.
type Lazy struct {
	mu       sync.Mutex
	init     Initializer
	settings atomic.Pointer[Settings]
	logger   logging.Logger
}

// NewLazy wraps init.
func NewLazy(init Initializer, logger logging.Logger) *Lazy {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Lazy{init: init, logger: logger}
}

// Get returns the settings, initializing them if necessary.
func (l *Lazy) Get() (*Settings, error) {
	if s := l.settings.Load(); s != nil {
		return s, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if s := l.settings.Load(); s != nil {
		return s, nil
	}

	s, err := l.init()
	if err != nil {
		l.logger.Error("Filter initialization failed, will retry on next request",
			logging.F("error", err.Error()))
		return nil, err
	}
	l.settings.Store(s)
	l.logger.Info("Filters initialized",
		logging.F("providers", s.Registry.Len()),
		logging.F("pdp", pdp.Kind(s.PDP)),
		logging.F("everyone_must_have_id", s.EveryoneMustHaveID))
	return s, nil
}

// Ready reports whether initialization has completed.
func (l *Lazy) Ready() bool {
	return l.settings.Load() != nil
}

// Identity is the authenticated caller as seen by downstream handlers.
type Identity struct {
	UID         string
	AuthContext string
}

type identityKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromRequest returns the identity the authentication filter
// attached to r.
func IdentityFromRequest(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey{}).(Identity)
	return id, ok && id.UID != ""
}

// RemoteUser returns the authenticated user id of r, or "".
func RemoteUser(r *http.Request) string {
	id, _ := IdentityFromRequest(r)
	return id.UID
}

func isPublic(path string, public []string) bool {
	for _, p := range public {
		p = strings.TrimRight(p, "/")
		if p == "" {
			continue
		}
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func underContext(path, contextPath string) bool {
	return contextPath == "" || path == contextPath || strings.HasPrefix(path, contextPath+"/")
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
