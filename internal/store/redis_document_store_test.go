package store_test

import (
	"context"
	"testing"

	"go-ticket-reservation/config"
	"go-ticket-reservation/internal/database"
	"go-ticket-reservation/internal/store"
	apperrors "go-ticket-reservation/pkg/app_errors"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestRdb(t *testing.T) *redis.Client {
	t.Helper()
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		t.Skipf("test redis not available: %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisDocumentStore_RunTransaction(t *testing.T) {
	ctx := context.Background()
	rdb := getTestRdb(t)
	s := store.NewRedisDocumentStore(rdb, 10)

	t.Run("Success", func(t *testing.T) {
		defer rdb.Del(ctx, "test:doc")
		require.NoError(t, s.Set(ctx, "test:doc", []byte(`{"n":1}`)))

		applied, err := s.RunTransaction(ctx, "test:doc", func(current []byte) ([]byte, error) {
			assert.Equal(t, []byte(`{"n":1}`), current)
			return []byte(`{"n":2}`), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":2}`), applied)

		value, err := s.Get(ctx, "test:doc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":2}`), value)
	})

	t.Run("Abort - DocumentUnchanged", func(t *testing.T) {
		defer rdb.Del(ctx, "test:doc")
		require.NoError(t, s.Set(ctx, "test:doc", []byte(`{"n":1}`)))

		_, err := s.RunTransaction(ctx, "test:doc", func(current []byte) ([]byte, error) {
			return nil, apperrors.ErrInsufficientCapacity
		})
		assert.ErrorIs(t, err, apperrors.ErrInsufficientCapacity)

		value, err := s.Get(ctx, "test:doc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"n":1}`), value)
	})

	t.Run("Success - NilDeletesDocument", func(t *testing.T) {
		defer rdb.Del(ctx, "test:doc")
		require.NoError(t, s.Set(ctx, "test:doc", []byte(`{"n":1}`)))

		_, err := s.RunTransaction(ctx, "test:doc", func(current []byte) ([]byte, error) {
			return nil, nil
		})
		require.NoError(t, err)

		_, err = s.Get(ctx, "test:doc")
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
	})

	t.Run("Conflict - RetriesAndApplies", func(t *testing.T) {
		defer rdb.Del(ctx, "test:doc")
		require.NoError(t, s.Set(ctx, "test:doc", []byte(`0`)))

		// 第一次嘗試時用另一條連線改動 key，逼出 TxFailedErr 重試路徑
		attempts := 0
		other, err := database.InitRedis(&config.LoadTestConfig().Redis)
		require.NoError(t, err)
		defer other.Close()

		applied, err := s.RunTransaction(ctx, "test:doc", func(current []byte) ([]byte, error) {
			attempts++
			if attempts == 1 {
				require.NoError(t, other.Set(ctx, "test:doc", "99", 0).Err())
			}
			return []byte(`1`), nil
		})
		require.NoError(t, err)
		assert.Equal(t, []byte(`1`), applied)
		assert.GreaterOrEqual(t, attempts, 2)
	})
}
