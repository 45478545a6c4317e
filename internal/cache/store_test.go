package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "", ttl), mr
}

// storeContract runs the behavior every Store must share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	stored := time.Date(2025, 12, 11, 9, 0, 0, 0, time.UTC)

	got, err := s.Get(ctx, "service:missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set(ctx, "service:a", &Entry{Value: json.RawMessage(`{"title":"A"}`), StoredAt: stored}))
	require.NoError(t, s.Set(ctx, "service:b", &Entry{NoResult: true, StoredAt: stored}))
	require.NoError(t, s.Set(ctx, "project:c", &Entry{Value: json.RawMessage(`[1,2]`), StoredAt: stored}))

	got, err = s.Get(ctx, "service:a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"title":"A"}`, string(got.Value))
	assert.True(t, stored.Equal(got.StoredAt))

	got, err = s.Get(ctx, "service:b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NoResult)

	require.NoError(t, s.Delete(ctx, "service:a"))
	got, err = s.Get(ctx, "service:a")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.DeletePrefix(ctx, "service:"))
	got, err = s.Get(ctx, "service:b")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.Get(ctx, "project:c")
	require.NoError(t, err)
	assert.NotNil(t, got, "other prefixes survive")
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_NilEntry(t *testing.T) {
	assert.Error(t, NewMemoryStore().Set(context.Background(), "k", nil))
}

func TestRedisStore(t *testing.T) {
	s, _ := newRedisStore(t, 0)
	storeContract(t, s)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "service:a", &Entry{Value: json.RawMessage(`1`), StoredAt: time.Now()}))
	assert.Equal(t, time.Minute, mr.TTL(DefaultRedisPrefix+"service:a"))

	mr.FastForward(2 * time.Minute)
	got, err := s.Get(ctx, "service:a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_DeletePrefixEscapesGlob(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a*:1", &Entry{StoredAt: time.Now()}))
	require.NoError(t, s.Set(ctx, "ab:1", &Entry{StoredAt: time.Now()}))

	require.NoError(t, s.DeletePrefix(ctx, "a*"))
	assert.False(t, mr.Exists(DefaultRedisPrefix+"a*:1"))
	assert.True(t, mr.Exists(DefaultRedisPrefix+"ab:1"))
}

func TestRedisStore_CorruptEntry(t *testing.T) {
	s, mr := newRedisStore(t, 0)
	require.NoError(t, mr.Set(DefaultRedisPrefix+"service:x", "not json"))

	_, err := s.Get(context.Background(), "service:x")
	assert.Error(t, err)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyAddress)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestRedisStore_WithCached(t *testing.T) {
	s, _ := newRedisStore(t, time.Minute)
	up := &fakeUpstream{result: title{Title: "from redis"}}
	c := New(up, s)

	var got title
	require.NoError(t, c.Query(context.Background(), serviceQuery, nil, &got))
	require.NoError(t, c.Query(context.Background(), serviceQuery, nil, &got))
	assert.Equal(t, "from redis", got.Title)
	assert.Equal(t, int32(1), up.calls.Load())
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*RedisStore)(nil)
var _ Store = (*PostgresStore)(nil)
