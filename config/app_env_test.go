package config

import (
	"testing"

	"github.com/akeren/go-waitlist/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAutoMigrateAllowed_AllowsDevLikeEnvs(t *testing.T) {
	allowed := []string{"", "dev", "development", "local", "test", "testing", "DEV", "  Local  "}

	for _, env := range allowed {
		t.Run(env, func(t *testing.T) {
			assert.NoError(t, ValidateAutoMigrateAllowed(env))
		})
	}
}

func TestValidateAutoMigrateAllowed_RejectsProdAndOtherEnvs(t *testing.T) {
	rejected := []string{"prod", "production", "staging", "preprod", " Production ", "qa"}

	for _, env := range rejected {
		t.Run(env, func(t *testing.T) {
			err := ValidateAutoMigrateAllowed(env)
			require.Error(t, err)
			assert.Contains(t, err.Error(), AppEnvKey)
		})
	}
}

func TestEnvironmentName(t *testing.T) {
	t.Setenv(AppEnvKey, "")
	assert.Equal(t, "development", EnvironmentName())

	t.Setenv(AppEnvKey, " Staging ")
	assert.Equal(t, "staging", EnvironmentName())
}

func TestGetValueFromEnvironmentVariable_KeepsExplicitEmpty(t *testing.T) {
	t.Setenv("WAITLIST_TEST_VALUE", "")
	assert.Equal(t, "", GetValueFromEnvironmentVariable("WAITLIST_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetValueFromEnvironmentVariable("WAITLIST_TEST_UNSET_VALUE", "fallback"))
}

func TestParseOTLPEndpoint(t *testing.T) {
	cases := map[string]otlpTarget{
		"http://collector:4318":          {hostport: "collector:4318", path: "/v1/traces", insecure: true},
		"https://otel.example.com/":      {hostport: "otel.example.com", path: "/v1/traces"},
		"https://otel.example.com/otlp/": {hostport: "otel.example.com", path: "/otlp/"},
		"localhost:4318":                 {hostport: "localhost:4318", path: "/v1/traces", insecure: true},
	}

	for raw, want := range cases {
		t.Run(raw, func(t *testing.T) {
			got, err := parseOTLPEndpoint(raw)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	for _, raw := range []string{"", "grpc://collector:4317", "localhost:4318/v1/traces", "http://"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, err := parseOTLPEndpoint(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, parseSampleRatio(""))
	assert.Equal(t, 0.25, parseSampleRatio("0.25"))
	assert.Equal(t, 0.0, parseSampleRatio("0"))
	assert.Equal(t, 1.0, parseSampleRatio("1.5"))
	assert.Equal(t, 1.0, parseSampleRatio("half"))
}

func TestNewCacheConfig(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_DB", "")

	cfg := NewCacheConfig()
	assert.False(t, cfg.IsConfigured())
	assert.Equal(t, "6379", cfg.Port)
	assert.Nil(t, cfg.NewCacheOrNil(log.NewDiscardLogger()))

	t.Setenv("REDIS_HOST", `"cache"`)
	t.Setenv("REDIS_DB", "4")
	cfg = NewCacheConfig()
	assert.True(t, cfg.IsConfigured())
	assert.Equal(t, "cache", cfg.Host)
	assert.Equal(t, 4, cfg.DB)

	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	assert.True(t, NewCacheConfig().IsConfigured())
}
