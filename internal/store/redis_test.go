package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, maxMessages int) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, maxMessages), mr
}

func TestRedisStoreKeepsNewestLines(t *testing.T) {
	s, mr := newRedisStore(t, 3)
	appendAll(t, s, "sess-1", "1", "2", "3", "4")
	appendAll(t, s, "sess-2", "other")

	got, err := s.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, []string{"2", "3", "4"}, contents(got))
	require.Equal(t, RoleUser, got[1].Role)
	require.False(t, got[0].CreatedAt.IsZero())

	items, err := mr.List(redisKeyPrefix + "sess-1")
	require.NoError(t, err)
	require.Len(t, items, 3)

	got, err = s.Get(context.Background(), "sess-2")
	require.NoError(t, err)
	require.Equal(t, []string{"other"}, contents(got))
}

func TestRedisStoreExpiresIdleSessions(t *testing.T) {
	s, mr := newRedisStore(t, 10)
	appendAll(t, s, "sess-1", "hello")
	require.Equal(t, sessionTTL, mr.TTL(redisKeyPrefix+"sess-1"))

	// each append pushes the expiry out again
	mr.FastForward(sessionTTL / 2)
	appendAll(t, s, "sess-1", "again")
	require.Equal(t, sessionTTL, mr.TTL(redisKeyPrefix+"sess-1"))

	mr.FastForward(sessionTTL + time.Second)
	got, err := s.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRedisStoreRejectsCorruptEntries(t *testing.T) {
	s, mr := newRedisStore(t, 10)
	_, err := mr.RPush(redisKeyPrefix+"sess-1", "not json")
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "sess-1")
	require.ErrorContains(t, err, "decode transcript entry")
}

func TestRedisStoreRejectsEmptySession(t *testing.T) {
	s, _ := newRedisStore(t, 10)
	require.ErrorIs(t, s.Append(context.Background(), "", Message{}), ErrInvalidSession)
	_, err := s.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestNewRedisClientConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	mr.Close()
	_, err = NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.ErrorContains(t, err, "connect to redis")
}
