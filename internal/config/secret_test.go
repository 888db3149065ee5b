package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name   string
		secret Secret
		want   string
	}{
		{name: "non-empty secret", secret: Secret("super-secret-password"), want: "***"},
		{name: "empty secret", secret: Secret(""), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.secret.String())
			assert.Equal(t, "value: "+tt.want, fmt.Sprintf("value: %s", tt.secret))

			data, err := json.Marshal(map[string]Secret{"key": tt.secret})
			require.NoError(t, err)
			assert.JSONEq(t, fmt.Sprintf(`{"key":%q}`, tt.want), string(data))
		})
	}
}

func TestSecretInStruct(t *testing.T) {
	cfg := DurableStorageConfig{
		Kind:          StorageKindRedis,
		RedisURL:      "redis://:hunter2@localhost:6379/0",
		EncryptionKey: "0123456789abcdef0123456789abcdef",
	}

	out := fmt.Sprintf("%+v", cfg)
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "0123456789abcdef")

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hunter2")
}

func TestSecret_UnmarshalYAMLEnvReference(t *testing.T) {
	t.Setenv("MINIDP_TEST_KEY", "'quoted-value'")

	var out struct {
		Key Secret `yaml:"key"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("key:\n  $env: MINIDP_TEST_KEY\n"), &out))
	assert.Equal(t, Secret("quoted-value"), out.Key)

	require.NoError(t, yaml.Unmarshal([]byte("key: literal\n"), &out))
	assert.Equal(t, Secret("literal"), out.Key)
}

func TestSecret_UnmarshalYAMLMissingEnv(t *testing.T) {
	var out struct {
		Key Secret `yaml:"key"`
	}
	err := yaml.Unmarshal([]byte("key:\n  $env: MINIDP_DEFINITELY_UNSET\n"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINIDP_DEFINITELY_UNSET not set")
}

func TestSecret_UnmarshalJSON(t *testing.T) {
	t.Setenv("MINIDP_TEST_JSON", "from-env")

	var out struct {
		Key Secret `json:"key"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"key":{"$env":"MINIDP_TEST_JSON"}}`), &out))
	assert.Equal(t, Secret("from-env"), out.Key)

	err := json.Unmarshal([]byte(`{"key":{"$other":"X"}}`), &out)
	assert.Error(t, err)
}
