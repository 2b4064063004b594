package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { rdb.Close() })
	return NewCache(rdb, "test:")
}

func TestGetConnectionErrorIsNotMiss(t *testing.T) {
	c := unreachableCache(t)

	var out map[string]string
	err := c.Get(context.Background(), "k", &out)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMiss))
	assert.Contains(t, err.Error(), "cache get k")
}

func TestSetRejectsUnencodableValue(t *testing.T) {
	c := unreachableCache(t)

	err := c.Set(context.Background(), "k", make(chan int), time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal value")
}
