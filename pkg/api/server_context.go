package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/filter"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
)

// ServerContext holds the shared state for the API server.
//
// The identity providers, session store and policy decision point live in
// the filter settings, which are built lazily on first use; handlers reach
// them through Filters.
//
// The ServerContext always has a configured Logger for API operations. If none is provided
// during initialization, a default logger is used.
type ServerContext struct {
	mu          sync.RWMutex
	Filters     *filter.Lazy            // Shared filter settings (providers, sessions, PDP)
	StartedAt   time.Time               // Process start, reported by /status
	Logger      logging.Logger          // Logger for API operations (never nil)
	RateLimiter *RateLimiter            // Rate limiter for the PDP service endpoints (optional)
	Metrics     *Metrics                // Prometheus metrics (optional)
	BaseURL     string                  // External base URL (e.g., "https://data.example.org") for .well-known discovery
	ContextPath string                  // Application root guarded by the filters, "" for the server root
	PDPService  config.PDPServiceConfig // PDP service endpoint settings

	pdpRequests atomic.Uint64
}

// NewServerContext creates a ServerContext using logger, or the default
// logger when nil.
func NewServerContext(logger logging.Logger) *ServerContext {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &ServerContext{
		Logger:    logger,
		StartedAt: time.Now(),
	}
}

// Lock locks the ServerContext for writing.
func (s *ServerContext) Lock() {
	s.mu.Lock()
}

// Unlock unlocks the ServerContext after writing.
func (s *ServerContext) Unlock() {
	s.mu.Unlock()
}

// RLock locks the ServerContext for reading.
func (s *ServerContext) RLock() {
	s.mu.RLock()
}

// RUnlock unlocks the ServerContext after reading.
func (s *ServerContext) RUnlock() {
	s.mu.RUnlock()
}

// WithLogger returns a copy of the ServerContext with the specified logger.
// The copy shares the filter settings, rate limiter and metrics.
//
// Parameters:
//   - logger: The new logger to use for the ServerContext
//
// Returns:
//   - A new ServerContext instance with the same state but using the specified logger
func (s *ServerContext) WithLogger(logger logging.Logger) *ServerContext {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	s.RLock()
	defer s.RUnlock()

	return &ServerContext{
		Filters:     s.Filters,
		StartedAt:   s.StartedAt,
		Logger:      logger,
		RateLimiter: s.RateLimiter,
		Metrics:     s.Metrics,
		BaseURL:     s.BaseURL,
		ContextPath: s.ContextPath,
		PDPService:  s.PDPService,
	}
}

// PDPServicePath returns the full path of the PDP service endpoint.
func (s *ServerContext) PDPServicePath() string {
	s.RLock()
	defer s.RUnlock()
	return s.ContextPath + s.PDPService.Path
}

// nextPDPRequest returns a request number for log correlation.
func (s *ServerContext) nextPDPRequest() uint64 {
	return s.pdpRequests.Add(1)
}
