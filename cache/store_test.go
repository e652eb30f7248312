package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/phishvars/store"
)

// newTestStore wraps a MemoryStore with a cache backed by miniredis.
func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := Config{Address: mr.Addr(), Prefix: "test:", TTL: time.Hour}
	s := NewStore(store.NewMemoryStore(), NewRedisCacheWithClient(cfg, client, nil))
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestRedisCacheGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	c := s.cache

	require.NoError(t, c.Set(ctx, "k", "v"))
	assert.True(t, mr.Exists("test:k"))
	assert.Equal(t, time.Hour, mr.TTL("test:k"))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestSummariesAreCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	f := &store.Field{UserID: 7, Name: "dept", Values: []store.FieldValue{{Email: "a@example.com", Value: "x"}}}
	require.NoError(t, s.CreateField(ctx, f))

	sums, err := s.FieldSummaries(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sums.Total)
	assert.True(t, mr.Exists("test:summary:fields:7"))

	// A second read is served from Redis.
	mr.Set("test:summary:fields:7", `{"total":42,"fields":[]}`)
	sums, err = s.FieldSummaries(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(42), sums.Total)

	f.Values = append(f.Values, store.FieldValue{Email: "b@example.com", Value: "y"})
	require.NoError(t, s.UpdateField(ctx, f))
	assert.False(t, mr.Exists("test:summary:fields:7"))

	sums, err = s.FieldSummaries(ctx, 7)
	require.NoError(t, err)
	require.Len(t, sums.Fields, 1)
	assert.Equal(t, int64(2), sums.Fields[0].NumValues)
}

func TestVariableWritesInvalidateOnlyVariables(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	_, err := s.FieldSummaries(ctx, 3)
	require.NoError(t, err)
	_, err = s.VariableSummaries(ctx, 3)
	require.NoError(t, err)

	v := &store.Variable{UserID: 3, Name: "tone", Type: store.VariableComplex,
		Conditions: []store.Condition{{Condition: `a == "b"`, Value: "c"}}}
	require.NoError(t, s.CreateVariable(ctx, v))

	assert.True(t, mr.Exists("test:summary:fields:3"))
	assert.False(t, mr.Exists("test:summary:variables:3"))
}

func TestRedisOutageFallsThrough(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	mr.Close()

	f := &store.Field{UserID: 1, Name: "dept", Values: []store.FieldValue{{Email: "a@example.com", Value: "x"}}}
	require.NoError(t, s.CreateField(ctx, f))

	sums, err := s.FieldSummaries(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sums.Total)
}
