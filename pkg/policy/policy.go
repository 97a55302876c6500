// Package policy defines access rules evaluated by the local policy
// decision point.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
)

// Policy decides whether a role may perform method on resource with query.
type Policy interface {
	Evaluate(role, resource, query, method string) bool
}

// Factory builds a Policy from its configuration.
type Factory func(cfg config.PolicyConfig) (Policy, error)

var factoryRegistry = make(map[string]Factory)

// RegisterFactory registers a policy constructor under a class name.
func RegisterFactory(class string, f Factory) {
	factoryRegistry[class] = f
}

// GetFactory returns the constructor registered for class.
func GetFactory(class string) (Factory, bool) {
	f, ok := factoryRegistry[class]
	return f, ok
}

func init() {
	RegisterFactory("regex", newRegexFromConfig)
	RegisterFactory("opendap.auth.RegexPolicy", newRegexFromConfig)
}

// New builds the policy selected by cfg.Class.
func New(cfg config.PolicyConfig) (Policy, error) {
	if cfg.Class == "" {
		return nil, fmt.Errorf("policy is missing a class")
	}
	f, ok := GetFactory(cfg.Class)
	if !ok {
		return nil, fmt.Errorf("unknown policy class %q", cfg.Class)
	}
	return f(cfg)
}

// RegexPolicy matches role, resource and query against full-match regular
// expressions and the method against an allowed set.
type RegexPolicy struct {
	role     *regexp.Regexp
	resource *regexp.Regexp
	query    *regexp.Regexp
	methods  map[string]struct{}
}

// NewRegexPolicy compiles a RegexPolicy. An empty query pattern matches any
// query string. At least one allowed method is required.
func NewRegexPolicy(role, resource, query string, methods []string) (*RegexPolicy, error) {
	if role == "" {
		return nil, fmt.Errorf("regex policy requires a role pattern")
	}
	if resource == "" {
		return nil, fmt.Errorf("regex policy requires a resource pattern")
	}
	if query == "" {
		query = ".*"
	}

	p := &RegexPolicy{methods: make(map[string]struct{})}
	var err error
	if p.role, err = compileFull(role); err != nil {
		return nil, fmt.Errorf("bad role pattern %q: %w", role, err)
	}
	if p.resource, err = compileFull(resource); err != nil {
		return nil, fmt.Errorf("bad resource pattern %q: %w", resource, err)
	}
	if p.query, err = compileFull(query); err != nil {
		return nil, fmt.Errorf("bad query pattern %q: %w", query, err)
	}
	for _, m := range methods {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			p.methods[m] = struct{}{}
		}
	}
	if len(p.methods) == 0 {
		return nil, fmt.Errorf("regex policy requires at least one allowed action")
	}
	return p, nil
}

func newRegexFromConfig(cfg config.PolicyConfig) (Policy, error) {
	return NewRegexPolicy(cfg.Role, cfg.Resource, cfg.Query, cfg.Actions)
}

// Evaluate implements Policy.
func (p *RegexPolicy) Evaluate(role, resource, query, method string) bool {
	if _, ok := p.methods[strings.ToUpper(method)]; !ok {
		return false
	}
	return p.role.MatchString(role) &&
		p.resource.MatchString(resource) &&
		p.query.MatchString(query)
}

// Methods returns the allowed methods in sorted order.
func (p *RegexPolicy) Methods() []string {
	out := make([]string, 0, len(p.methods))
	for m := range p.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// String describes the policy for logs.
func (p *RegexPolicy) String() string {
	return fmt.Sprintf("RegexPolicy{role=%s resource=%s query=%s actions=%s}",
		p.role, p.resource, p.query, strings.Join(p.Methods(), ","))
}

func compileFull(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}
