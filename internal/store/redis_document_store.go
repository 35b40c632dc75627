package store

import (
	"context"
	"errors"

	apperrors "go-ticket-reservation/pkg/app_errors"
	"go-ticket-reservation/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTxMaxRetries = 10

// RedisDocumentStore 以 Redis WATCH/MULTI/EXEC 實作樂觀交易的 DocumentStore。
// 寫回時若被 WATCH 的 key 已被其他連線改動，EXEC 會失敗（redis.TxFailedErr），
// 此時重新讀取再重試，直到成功或超過重試上限。
type RedisDocumentStore struct {
	client     *redis.Client
	maxRetries int
}

func NewRedisDocumentStore(client *redis.Client, maxRetries int) *RedisDocumentStore {
	if maxRetries <= 0 {
		maxRetries = defaultTxMaxRetries
	}
	return &RedisDocumentStore{
		client:     client,
		maxRetries: maxRetries,
	}
}

func (s *RedisDocumentStore) Get(ctx context.Context, path string) ([]byte, error) {
	value, err := s.client.Get(ctx, path).Bytes()
	if err == redis.Nil {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *RedisDocumentStore) Set(ctx context.Context, path string, value []byte) error {
	return s.client.Set(ctx, path, value, 0).Err()
}

func (s *RedisDocumentStore) RunTransaction(ctx context.Context, path string, fn TxFunc) ([]byte, error) {
	var applied []byte

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, path).Bytes()
		if err == redis.Nil {
			current = nil
		} else if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			// 中止：不進入 MULTI，文件保持不變
			return err
		}
		applied = next

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, path)
			} else {
				pipe.Set(ctx, path, next, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, path)
		if err == nil {
			return applied, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// 樂觀鎖失敗：有其他交易先寫入，重讀再試
			continue
		}
		return nil, err
	}

	logger.WithComponent("store").Warn("transaction retries exhausted", zap.String("path", path), zap.Int("max_retries", s.maxRetries))
	return nil, apperrors.ErrTransactionConflict
}
