// Package pdp provides policy decision points: components that answer
// whether a user may perform an action on a resource.
//
// Decisions are plain booleans. Any failure while deciding, including a
// remote decision point being unreachable, results in a deny.
package pdp

import (
	"context"
	"fmt"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/go-resty/resty/v2"
)

// Request is the tuple a decision is made on. UserID and AuthContext are
// empty for anonymous users.
type Request struct {
	UserID      string
	AuthContext string
	ResourceID  string
	Query       string
	Action      string
}

// PolicyDecisionPoint decides access requests.
type PolicyDecisionPoint interface {
	// Evaluate returns true when the request is permitted. It never panics
	// and returns false on any internal failure.
	Evaluate(ctx context.Context, req Request) bool
}

// Dependencies are the shared services a decision point may need.
type Dependencies struct {
	Logger logging.Logger
	// HTTPClient is used by remote decision points.
	HTTPClient *resty.Client
	// Timeout bounds remote calls when HTTPClient is nil.
	Timeout time.Duration
}

// Factory builds a decision point from configuration.
type Factory func(cfg config.PDPConfig, deps Dependencies) (PolicyDecisionPoint, error)

var factoryRegistry = make(map[string]Factory)

// RegisterFactory registers a decision point constructor under a class name.
func RegisterFactory(class string, f Factory) {
	factoryRegistry[class] = f
}

// GetFactory returns the constructor registered for class.
func GetFactory(class string) (Factory, bool) {
	f, ok := factoryRegistry[class]
	return f, ok
}

func init() {
	RegisterFactory("local", newLocalFromConfig)
	RegisterFactory("simple", newLocalFromConfig)
	RegisterFactory("opendap.auth.SimplePDP", newLocalFromConfig)
	RegisterFactory("remote", newRemoteFromConfig)
	RegisterFactory("opendap.auth.RemotePDP", newRemoteFromConfig)
}

// New builds the decision point selected by cfg.Class.
func New(cfg config.PDPConfig, deps Dependencies) (PolicyDecisionPoint, error) {
	if cfg.Class == "" {
		return nil, fmt.Errorf("policy decision point is missing a class")
	}
	f, ok := GetFactory(cfg.Class)
	if !ok {
		return nil, fmt.Errorf("unknown policy decision point class %q", cfg.Class)
	}
	if deps.Logger == nil {
		deps.Logger = logging.DefaultLogger()
	}
	return f(cfg, deps)
}

// Kind returns a short name for the decision point's implementation.
func Kind(p PolicyDecisionPoint) string {
	switch p.(type) {
	case *LocalPDP:
		return "local"
	case *RemotePDP:
		return "remote"
	default:
		return fmt.Sprintf("%T", p)
	}
}
