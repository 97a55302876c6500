// Package membership resolves which groups and roles a user holds.
//
// A group is a set of user rules. Each rule is a pair of patterns, one for
// the user id and one for the auth-context, and a user belongs to the group
// when both patterns match in full for at least one rule. Roles are named
// sets of groups.
package membership

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
)

type userRule struct {
	uidSource string
	ctxSource string
	uid       *regexp.Regexp
	ctx       *regexp.Regexp
}

// Group is a named set of user rules.
type Group struct {
	mu    sync.RWMutex
	name  string
	rules []userRule
}

// NewGroup creates an empty group.
func NewGroup(name string) *Group {
	return &Group{name: name}
}

// Name returns the group id.
func (g *Group) Name() string { return g.name }

// AddUserPattern adds a rule matching user ids against uidPattern and
// auth-contexts against authContextPattern. Adding an identical pair again
// is a no-op.
func (g *Group) AddUserPattern(uidPattern, authContextPattern string) error {
	uid, err := compileFull(uidPattern)
	if err != nil {
		return fmt.Errorf("group %s: bad user id pattern %q: %w", g.name, uidPattern, err)
	}
	ctx, err := compileFull(authContextPattern)
	if err != nil {
		return fmt.Errorf("group %s: bad auth context pattern %q: %w", g.name, authContextPattern, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.rules {
		if r.uidSource == uidPattern && r.ctxSource == authContextPattern {
			return nil
		}
	}
	g.rules = append(g.rules, userRule{uidSource: uidPattern, ctxSource: authContextPattern, uid: uid, ctx: ctx})
	return nil
}

// AddUser adds a rule matching exactly uid within exactly authContext.
func (g *Group) AddUser(uid, authContext string) error {
	return g.AddUserPattern(regexp.QuoteMeta(uid), regexp.QuoteMeta(authContext))
}

// IsMember reports whether some rule matches both uid and authContext in full.
func (g *Group) IsMember(uid, authContext string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, r := range g.rules {
		if r.uid.MatchString(uid) && r.ctx.MatchString(authContext) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct rules.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rules)
}

// Resolver maps users to groups and roles.
type Resolver struct {
	mu     sync.RWMutex
	groups map[string]*Group
	roles  map[string]map[string]struct{}
}

// NewResolver creates an empty resolver.
func NewResolver() *Resolver {
	return &Resolver{
		groups: make(map[string]*Group),
		roles:  make(map[string]map[string]struct{}),
	}
}

// FromConfig builds a resolver from membership configuration. Every group
// needs an id and at least one user. Every user rule needs exactly one of
// id/id_pattern and exactly one of auth_context/auth_context_pattern. Every
// role needs an id.
func FromConfig(cfg config.MembershipsConfig) (*Resolver, error) {
	r := NewResolver()

	for i, gc := range cfg.Groups {
		if gc.ID == "" {
			return nil, fmt.Errorf("group #%d is missing an id", i+1)
		}
		if len(gc.Users) == 0 {
			return nil, fmt.Errorf("group %s has no users", gc.ID)
		}
		g := r.group(gc.ID)
		for j, uc := range gc.Users {
			uidPattern, err := pick(uc.ID, uc.IDPattern, "id", "id_pattern")
			if err != nil {
				return nil, fmt.Errorf("group %s user #%d: %w", gc.ID, j+1, err)
			}
			ctxPattern, err := pick(uc.AuthContext, uc.AuthContextPattern, "auth_context", "auth_context_pattern")
			if err != nil {
				return nil, fmt.Errorf("group %s user #%d: %w", gc.ID, j+1, err)
			}
			if err := g.AddUserPattern(uidPattern, ctxPattern); err != nil {
				return nil, err
			}
		}
	}

	for i, rc := range cfg.Roles {
		if rc.ID == "" {
			return nil, fmt.Errorf("role #%d is missing an id", i+1)
		}
		r.AddRole(rc.ID, rc.Groups...)
	}

	return r, nil
}

// pick returns the single configured value as a pattern, quoting exact values.
func pick(exact, pattern, exactName, patternName string) (string, error) {
	switch {
	case exact != "" && pattern != "":
		return "", fmt.Errorf("only one of %s and %s may be set", exactName, patternName)
	case exact != "":
		return regexp.QuoteMeta(exact), nil
	case pattern != "":
		return pattern, nil
	default:
		return "", fmt.Errorf("one of %s or %s is required", exactName, patternName)
	}
}

func (r *Resolver) group(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		g = NewGroup(name)
		r.groups[name] = g
	}
	return g
}

// Group returns the named group, creating it when absent.
func (r *Resolver) Group(name string) *Group {
	return r.group(name)
}

// AddRole grants role to the given groups. Unknown group names are kept and
// simply never match.
func (r *Resolver) AddRole(role string, groups ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.roles[role]
	if !ok {
		set = make(map[string]struct{})
		r.roles[role] = set
	}
	for _, g := range groups {
		set[g] = struct{}{}
	}
}

// UserGroups returns the sorted ids of all groups uid belongs to in authContext.
func (r *Resolver) UserGroups(uid, authContext string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for name, g := range r.groups {
		if g.IsMember(uid, authContext) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// UserRoles returns the sorted ids of all roles held through uid's groups.
func (r *Resolver) UserRoles(uid, authContext string) []string {
	groups := r.UserGroups(uid, authContext)
	if len(groups) == 0 {
		return nil
	}
	member := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		member[g] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for role, set := range r.roles {
		for g := range set {
			if _, ok := member[g]; ok {
				out = append(out, role)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func compileFull(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}
