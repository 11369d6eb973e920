package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigOptions(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		opts, err := (&Config{Host: "cache", Password: "secret", DB: 2}).options()
		require.NoError(t, err)
		assert.Equal(t, "cache:6379", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 2, opts.DB)
	})

	t.Run("url wins", func(t *testing.T) {
		opts, err := (&Config{URL: "redis://:pw@redis.internal:6380/3", Host: "ignored"}).options()
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6380", opts.Addr)
		assert.Equal(t, "pw", opts.Password)
		assert.Equal(t, 3, opts.DB)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := (&Config{URL: "http://redis"}).options()
		assert.Error(t, err)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := (&Config{}).options()
		assert.Error(t, err)
	})
}

func TestNewRedisCache_UnreachableServer(t *testing.T) {
	// Port 1 on loopback refuses connections.
	_, err := NewRedisCache(&Config{Host: "127.0.0.1", Port: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "127.0.0.1:1")
}
