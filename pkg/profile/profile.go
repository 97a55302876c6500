// Package profile holds the authenticated user's identity as established by
// an identity provider.
package profile

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Guest identity values.
const (
	GuestUID         = "guest"
	GuestAuthContext = "guest"
)

// UserProfile is the identity record stored in a session after login.
// A profile with an empty UID is not authenticated.
type UserProfile struct {
	mu          sync.RWMutex
	uid         string
	authContext string
	groups      map[string]struct{}
	roles       map[string]struct{}
	attributes  map[string]string
	token       *EDLAccessToken
	created     time.Time
}

// New creates a profile for uid, established by the provider authContext.
func New(uid, authContext string) *UserProfile {
	return &UserProfile{
		uid:         uid,
		authContext: authContext,
		groups:      make(map[string]struct{}),
		roles:       make(map[string]struct{}),
		attributes:  make(map[string]string),
		created:     time.Now(),
	}
}

// Guest returns the anonymous guest profile.
func Guest() *UserProfile {
	p := New(GuestUID, GuestAuthContext)
	p.SetAttribute("first_name", "Guest")
	p.SetAttribute("last_name", "User")
	return p
}

// UID returns the user id.
func (p *UserProfile) UID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.uid
}

// SetUID sets the user id.
func (p *UserProfile) SetUID(uid string) {
	p.mu.Lock()
	p.uid = uid
	p.mu.Unlock()
}

// HasUID reports whether the profile identifies an authenticated user.
func (p *UserProfile) HasUID() bool {
	return p != nil && p.UID() != ""
}

// AuthContext returns the auth-context of the provider that created the profile.
func (p *UserProfile) AuthContext() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authContext
}

// IsGuest reports whether p is the guest profile.
func (p *UserProfile) IsGuest() bool {
	return p.UID() == GuestUID && p.AuthContext() == GuestAuthContext
}

// Created returns when the profile was made.
func (p *UserProfile) Created() time.Time { return p.created }

// Token returns the access token, if the provider issued one.
func (p *UserProfile) Token() *EDLAccessToken {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// SetToken records the access token used to obtain the profile.
func (p *UserProfile) SetToken(t *EDLAccessToken) {
	p.mu.Lock()
	p.token = t
	p.mu.Unlock()
}

// AddGroups adds group names to the profile.
func (p *UserProfile) AddGroups(groups ...string) {
	p.mu.Lock()
	for _, g := range groups {
		p.groups[g] = struct{}{}
	}
	p.mu.Unlock()
}

// Groups returns the group names in sorted order.
func (p *UserProfile) Groups() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.groups)
}

// AddRoles adds role names to the profile.
func (p *UserProfile) AddRoles(roles ...string) {
	p.mu.Lock()
	for _, r := range roles {
		p.roles[r] = struct{}{}
	}
	p.mu.Unlock()
}

// Roles returns the role names in sorted order.
func (p *UserProfile) Roles() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.roles)
}

// Attribute returns a provider-supplied attribute.
func (p *UserProfile) Attribute(name string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.attributes[name]
}

// SetAttribute sets a provider-supplied attribute.
func (p *UserProfile) SetAttribute(name, value string) {
	p.mu.Lock()
	p.attributes[name] = value
	p.mu.Unlock()
}

// Attributes returns a copy of all attributes.
func (p *UserProfile) Attributes() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.attributes))
	for k, v := range p.attributes {
		out[k] = v
	}
	return out
}

// IngestJSON merges a provider's JSON user record into the attributes.
// String values are stored as-is, anything else in its JSON form. The
// "uid" member, when present, becomes the profile UID.
func (p *UserProfile) IngestJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("user profile is not a JSON object: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			p.attributes[k] = s
		} else {
			p.attributes[k] = string(v)
		}
	}
	if uid := p.attributes["uid"]; uid != "" {
		p.uid = uid
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
