package idp

import (
	"sync"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
)

// Registry holds the configured identity providers keyed by auth-context,
// preserving registration order. At most one provider is the default.
type Registry struct {
	mu        sync.RWMutex
	endpoints Endpoints
	deps      Dependencies
	providers map[string]IdentityProvider
	order     []string
	def       IdentityProvider
}

// NewRegistry creates an empty registry whose providers share endpoints and deps.
func NewRegistry(ep Endpoints, deps Dependencies) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.DefaultLogger()
	}
	return &Registry{
		endpoints: ep,
		deps:      deps,
		providers: make(map[string]IdentityProvider),
	}
}

// RegistryFromConfig builds a registry holding every configured provider.
func RegistryFromConfig(providers []config.ProviderConfig, ep Endpoints, deps Dependencies) (*Registry, error) {
	r := NewRegistry(ep, deps)
	for _, pc := range providers {
		if _, err := r.AddProvider(pc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// AddProvider constructs the provider described by cfg and registers it.
// It fails when the class is missing or unknown, when the auth-context is
// already taken, or when a second provider claims to be the default. A
// failed call leaves the registry unchanged.
func (r *Registry) AddProvider(cfg config.ProviderConfig) (IdentityProvider, error) {
	if cfg.Class == "" {
		return nil, configError("identity provider definition must name a class")
	}
	f, ok := GetFactory(cfg.Class)
	if !ok {
		return nil, configError("unknown identity provider class %q", cfg.Class)
	}
	p, err := f(cfg, r.endpoints, r.deps)
	if err != nil {
		return nil, err
	}
	if err := r.Add(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Add registers an already constructed provider.
func (r *Registry) Add(p IdentityProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := p.AuthContext()
	if _, exists := r.providers[ctx]; exists {
		return configError("auth context %q is already registered", ctx)
	}
	if p.IsDefault() && r.def != nil {
		return configError("provider %q cannot be the default, %q already is",
			ctx, r.def.AuthContext())
	}

	r.providers[ctx] = p
	r.order = append(r.order, ctx)
	if p.IsDefault() {
		r.def = p
	}
	r.deps.Logger.Info("Identity provider registered",
		logging.F("auth_context", ctx),
		logging.F("description", p.Description()),
		logging.F("default", p.IsDefault()),
		logging.F("login_endpoint", p.LoginEndpoint()))
	return nil
}

// Provider returns the provider for authContext.
func (r *Registry) Provider(authContext string) (IdentityProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[authContext]
	return p, ok
}

// Providers returns all providers in registration order.
func (r *Registry) Providers() []IdentityProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]IdentityProvider, 0, len(r.order))
	for _, ctx := range r.order {
		out = append(out, r.providers[ctx])
	}
	return out
}

// HasDefaultProvider reports whether a default provider is registered.
func (r *Registry) HasDefaultProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.def != nil
}

// DefaultProvider returns the default provider or ErrNoDefaultProvider.
func (r *Registry) DefaultProvider() (IdentityProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.def == nil {
		return nil, ErrNoDefaultProvider
	}
	return r.def, nil
}

// ByLoginEndpoint returns the provider whose login endpoint is path.
func (r *Registry) ByLoginEndpoint(path string) (IdentityProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ctx := range r.order {
		if p := r.providers[ctx]; p.LoginEndpoint() == path {
			return p, true
		}
	}
	return nil, false
}

// Endpoints returns the shared authentication control paths.
func (r *Registry) Endpoints() Endpoints {
	return r.endpoints
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
