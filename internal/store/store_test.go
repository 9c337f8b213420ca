package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N int `json:"n"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "device", "store.json"))
	require.NoError(t, err)

	out := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		ns := "patapesa-test:" + strings.ReplaceAll(t.Name(), "/", "-")
		t.Cleanup(func() {
			keys, _ := rdb.Keys(context.Background(), ns+":*").Result()
			if len(keys) > 0 {
				rdb.Del(context.Background(), keys...)
			}
			rdb.Close()
		})
		out["redis"] = NewRedisStoreFromClient(rdb, ns)
	}
	return out
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, KeyCurrentUser)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, KeyCurrentUser, []byte(`{"id":"u1"}`)))
			v, err := s.Get(ctx, KeyCurrentUser)
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"u1"}`, string(v))

			require.NoError(t, s.Delete(ctx, KeyCurrentUser))
			_, err = s.Get(ctx, KeyCurrentUser)
			assert.ErrorIs(t, err, ErrNotFound)

			// deleting a missing record is fine
			assert.NoError(t, s.Delete(ctx, KeyCurrentUser))
		})
	}
}

func TestStore_UpdateJSON(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := UpdateJSON(ctx, s, KeyLedger, func(c *counter) error {
				assert.Equal(t, 0, c.N, "missing record starts from the zero value")
				c.N = 41
				return nil
			})
			require.NoError(t, err)

			require.NoError(t, UpdateJSON(ctx, s, KeyLedger, func(c *counter) error {
				c.N++
				return nil
			}))

			got, err := GetJSON[counter](ctx, s, KeyLedger)
			require.NoError(t, err)
			assert.Equal(t, 42, got.N)
		})
	}
}

func TestStore_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, SetJSON(ctx, s, KeyUsers, counter{N: 1}))
			err := UpdateJSON(ctx, s, KeyUsers, func(c *counter) error {
				c.N = 100
				return boom
			})
			assert.ErrorIs(t, err, boom)

			got, err := GetJSON[counter](ctx, s, KeyUsers)
			require.NoError(t, err)
			assert.Equal(t, 1, got.N)
		})
	}
}

func TestStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, UpdateJSON(ctx, s, KeyOnboarding, func(c *counter) error {
						c.N++
						return nil
					}))
				}()
			}
			wg.Wait()

			got, err := GetJSON[counter](ctx, s, KeyOnboarding)
			require.NoError(t, err)
			assert.Equal(t, 25, got.N)
		})
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, SetJSON(ctx, first, KeyRememberMe, true))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := GetJSON[bool](ctx, second, KeyRememberMe)
	require.NoError(t, err)
	assert.True(t, *got)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), KeyUsers)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
