package infrastructure

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{CacheDSN: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewRedisClient_InvalidDSN(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{})
	assert.ErrorIs(t, err, ErrRedisDSNRequired)

	_, err = NewRedisClient(context.Background(), config.RedisConfig{CacheDSN: "http://localhost"})
	assert.Error(t, err)
}
