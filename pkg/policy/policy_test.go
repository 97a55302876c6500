package policy

import (
	"testing"

	"github.com/OPENDAP/hyrax-auth/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexPolicy_Evaluate(t *testing.T) {
	p, err := NewRegexPolicy("users|admins", "/opendap/data/.*\\.nc", "", []string{"get", "HEAD"})
	require.NoError(t, err)

	tests := []struct {
		name                     string
		role, res, query, method string
		want                     bool
	}{
		{"allowed", "users", "/opendap/data/sst.nc", "", "GET", true},
		{"method case", "admins", "/opendap/data/sst.nc", "dap4.ce=x", "head", true},
		{"any query by default", "users", "/opendap/data/sst.nc", "a=1&b=2", "GET", true},
		{"method not allowed", "users", "/opendap/data/sst.nc", "", "POST", false},
		{"empty method", "users", "/opendap/data/sst.nc", "", "", false},
		{"role partial match", "superusers", "/opendap/data/sst.nc", "", "GET", false},
		{"resource partial match", "users", "/opendap/data/sst.nc.das", "", "GET", false},
		{"empty role", "", "/opendap/data/sst.nc", "", "GET", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Evaluate(tt.role, tt.res, tt.query, tt.method))
		})
	}
}

func TestRegexPolicy_QueryPattern(t *testing.T) {
	p, err := NewRegexPolicy(".*", "/.*", "dap4\\.ce=.*", []string{"GET"})
	require.NoError(t, err)
	assert.True(t, p.Evaluate("", "/x", "dap4.ce=/sst", "GET"))
	assert.False(t, p.Evaluate("", "/x", "", "GET"))
}

func TestRegexPolicy_EmptyRoleMatchesOnlyPermissivePattern(t *testing.T) {
	anyone, err := NewRegexPolicy(".*", "/public/.*", "", []string{"GET"})
	require.NoError(t, err)
	assert.True(t, anyone.Evaluate("", "/public/readme", "", "GET"))
}

func TestNewRegexPolicy_Errors(t *testing.T) {
	_, err := NewRegexPolicy("", "/x", "", []string{"GET"})
	assert.Error(t, err)
	_, err = NewRegexPolicy("r", "", "", []string{"GET"})
	assert.Error(t, err)
	_, err = NewRegexPolicy("r", "/x", "", nil)
	assert.Error(t, err)
	_, err = NewRegexPolicy("r", "/x", "", []string{" "})
	assert.Error(t, err)
	_, err = NewRegexPolicy("(", "/x", "", []string{"GET"})
	assert.Error(t, err)
	_, err = NewRegexPolicy("r", "/x", "[", []string{"GET"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, class := range []string{"regex", "opendap.auth.RegexPolicy"} {
		p, err := New(config.PolicyConfig{Class: class, Role: "r", Resource: "/.*", Actions: []string{"GET"}})
		require.NoError(t, err, class)
		assert.True(t, p.Evaluate("r", "/a", "", "GET"))
	}

	_, err := New(config.PolicyConfig{Role: "r", Resource: "/.*", Actions: []string{"GET"}})
	assert.Error(t, err)
	_, err = New(config.PolicyConfig{Class: "opendap.auth.XacmlPolicy"})
	assert.Error(t, err)
}

func TestRegexPolicy_String(t *testing.T) {
	p, err := NewRegexPolicy("r", "/x", "", []string{"POST", "GET"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GET", "POST"}, p.Methods())
	assert.Contains(t, p.String(), "actions=GET,POST")
}
