package redisdb

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), Config{
		ConnectionURL: "redis://" + mr.Addr() + "/0",
		RetryAttempts: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NoError(t, Healthcheck(client)(context.Background()))
}

func TestConnectErrors(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrEmptyConnectionURL)

	_, err = Connect(context.Background(), Config{ConnectionURL: "http://localhost:6379"})
	assert.ErrorIs(t, err, ErrFailedToParseRedisConnString)
}

func TestConnectGivesUp(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	start := time.Now()
	_, err := Connect(context.Background(), Config{
		ConnectionURL:  "redis://" + addr,
		RetryAttempts:  2,
		RetryInterval:  10 * time.Millisecond,
		ConnectTimeout: time.Second,
	})
	assert.ErrorIs(t, err, ErrRedisNotReady)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHealthcheckFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{ConnectionURL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	assert.ErrorIs(t, Healthcheck(client)(context.Background()), ErrHealthcheckFailed)
}
