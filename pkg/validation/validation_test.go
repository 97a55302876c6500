package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "auth.yaml")
	require.NoError(t, os.WriteFile(good, []byte("server: {}\n"), 0600))
	xml := filepath.Join(dir, "user-access.xml")
	require.NoError(t, os.WriteFile(xml, []byte("<AuthConfig/>"), 0600))
	txt := filepath.Join(dir, "auth.txt")
	require.NoError(t, os.WriteFile(txt, []byte(""), 0600))

	assert.NoError(t, ValidateConfigPath(good))
	assert.NoError(t, ValidateConfigPath(xml))
	assert.Error(t, ValidateConfigPath(""))
	assert.Error(t, ValidateConfigPath(txt))
	assert.Error(t, ValidateConfigPath(filepath.Join(dir, "missing.yaml")))
	assert.Error(t, ValidateConfigPath("../etc/auth.yaml"))

	sub := filepath.Join(dir, "conf.yaml")
	require.NoError(t, os.Mkdir(sub, 0700))
	assert.Error(t, ValidateConfigPath(sub))
}

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"https://urs.earthdata.nasa.gov", false},
		{"http://localhost:8080/opendap/pdpService", false},
		{"ftp://example.com", true},
		{"/relative/path", true},
		{"https://", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := ValidateEndpointURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsSecureURL(t *testing.T) {
	assert.True(t, IsSecureURL("https://example.com/pdp"))
	assert.True(t, IsSecureURL("HTTPS://example.com/pdp"))
	assert.False(t, IsSecureURL("http://example.com/pdp"))
	assert.False(t, IsSecureURL("::bad"))
}
