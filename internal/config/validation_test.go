package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile_Valid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minidp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	result, err := ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.IsValid(), "errors: %+v", result.Errors)
}

func TestValidateBytes(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantErrPath  string
		wantWarnPath string
	}{
		{
			name:        "invalid yaml",
			content:     "identityProvider: [",
			wantErrPath: "",
		},
		{
			name:        "missing identity provider",
			content:     "storage: {}\n",
			wantErrPath: "identityProvider",
		},
		{
			name: "missing client id",
			content: `
identityProvider:
  domain: auth.example.com
  redirectUris: [https://app.example.com/cb]
`,
			wantErrPath: "identityProvider.clientId",
		},
		{
			name: "relative redirect uri",
			content: `
identityProvider:
  domain: auth.example.com
  clientId: c
  redirectUris: [/cb]
`,
			wantErrPath: "identityProvider.redirectUris[0]",
		},
		{
			name: "bash style reference",
			content: `
identityProvider:
  domain: auth.example.com
  clientId: ${CLIENT_ID}
  redirectUris: [https://app.example.com/cb]
`,
			wantWarnPath: "identityProvider.clientId",
		},
		{
			name: "literal secret",
			content: `
identityProvider:
  domain: auth.example.com
  clientId: c
  redirectUris: [https://app.example.com/cb]
storage:
  durable:
    kind: redis
    redisUrl: redis://localhost:6379
`,
			wantWarnPath: "storage.durable.redisUrl",
		},
		{
			name: "unknown storage kind",
			content: `
identityProvider:
  domain: auth.example.com
  clientId: c
  redirectUris: [https://app.example.com/cb]
storage:
  durable:
    kind: s3
`,
			wantErrPath: "storage.durable.kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateBytes([]byte(tt.content))
			if tt.wantWarnPath != "" {
				assert.True(t, result.IsValid(), "errors: %+v", result.Errors)
				assert.True(t, hasPath(result.Warnings, tt.wantWarnPath), "warnings: %+v", result.Warnings)
				return
			}
			assert.False(t, result.IsValid())
			assert.True(t, hasPath(result.Errors, tt.wantErrPath), "errors: %+v", result.Errors)
		})
	}
}

func TestValidateBytes_EnvReferenceNotFlagged(t *testing.T) {
	content := `
identityProvider:
  domain: auth.example.com
  clientId: c
  redirectUris: [https://app.example.com/cb]
storage:
  durable:
    kind: redis
    redisUrl:
      $env: REDIS_URL
`
	result := ValidateBytes([]byte(content))
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings)
}

func hasPath(list []ValidationError, path string) bool {
	for _, e := range list {
		if e.Path == path {
			return true
		}
	}
	return false
}
