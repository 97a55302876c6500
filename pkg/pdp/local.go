package pdp

import (
	"context"
	"fmt"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/OPENDAP/hyrax-auth/pkg/membership"
	"github.com/OPENDAP/hyrax-auth/pkg/policy"
)

// anonymousRole stands in for the role set of a user who holds no roles,
// so that policies with a permissive role pattern still apply to them.
const anonymousRole = ""

// LocalPDP evaluates an ordered list of policies against the roles the
// membership resolver assigns to the user.
type LocalPDP struct {
	policies []policy.Policy
	resolver *membership.Resolver
	logger   logging.Logger
}

// NewLocalPDP creates a LocalPDP. The policy slice is copied.
func NewLocalPDP(policies []policy.Policy, resolver *membership.Resolver, logger logging.Logger) *LocalPDP {
	if resolver == nil {
		resolver = membership.NewResolver()
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &LocalPDP{
		policies: append([]policy.Policy(nil), policies...),
		resolver: resolver,
		logger:   logger,
	}
}

func newLocalFromConfig(cfg config.PDPConfig, deps Dependencies) (PolicyDecisionPoint, error) {
	resolver, err := membership.FromConfig(cfg.Memberships)
	if err != nil {
		return nil, fmt.Errorf("invalid memberships: %w", err)
	}
	policies := make([]policy.Policy, 0, len(cfg.Policies))
	for i, pc := range cfg.Policies {
		p, err := policy.New(pc)
		if err != nil {
			return nil, fmt.Errorf("policy #%d: %w", i+1, err)
		}
		policies = append(policies, p)
	}
	deps.Logger.Info("Local policy decision point configured",
		logging.F("policies", len(policies)))
	return NewLocalPDP(policies, resolver, deps.Logger), nil
}

// Evaluate permits the request when any policy matches any of the user's roles.
func (p *LocalPDP) Evaluate(ctx context.Context, req Request) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Policy evaluation failed, denying",
				logging.F("panic", fmt.Sprint(r)),
				logging.F("resource", req.ResourceID))
			allowed = false
		}
	}()

	roles := p.resolver.UserRoles(req.UserID, req.AuthContext)
	if len(roles) == 0 {
		roles = []string{anonymousRole}
	}

	for _, role := range roles {
		for _, pol := range p.policies {
			if pol.Evaluate(role, req.ResourceID, req.Query, req.Action) {
				p.logger.Debug("Access permitted",
					logging.F("uid", req.UserID),
					logging.F("role", role),
					logging.F("resource", req.ResourceID),
					logging.F("action", req.Action))
				return true
			}
		}
	}

	p.logger.Debug("Access denied",
		logging.F("uid", req.UserID),
		logging.F("roles", roles),
		logging.F("resource", req.ResourceID),
		logging.F("action", req.Action))
	return false
}

// Resolver returns the membership resolver.
func (p *LocalPDP) Resolver() *membership.Resolver {
	return p.resolver
}
