package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go-ticket-reservation/internal/model"
	"go-ticket-reservation/internal/repository"
	"go-ticket-reservation/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseService interface {
	// 派送購買紀錄：寫入資料庫並鏡像到 document store（append-only）
	DispatchPurchase(ctx context.Context, record *model.PurchaseRecord) error
	PurchaseList(ctx context.Context) ([]*model.PurchaseRecord, error)
	GetPurchaseByRecordID(ctx context.Context, recordID uuid.UUID) (*model.PurchaseRecord, error)
	ListByActorID(ctx context.Context, actorID string) ([]*model.PurchaseRecord, error)
}

type PurchaseServiceImpl struct {
	pool       *pgxpool.Pool
	repository repository.PurchaseRepository
	store      store.DocumentStore
}

func NewPurchaseService(pool *pgxpool.Pool, purchaseRepository repository.PurchaseRepository, documentStore store.DocumentStore) PurchaseService {
	return &PurchaseServiceImpl{
		pool:       pool,
		repository: purchaseRepository,
		store:      documentStore,
	}
}

func (s *PurchaseServiceImpl) DispatchPurchase(ctx context.Context, record *model.PurchaseRecord) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	created, err := s.repository.Create(ctx, tx, record)
	if err != nil {
		return err
	}

	// ID 為 0 表示紀錄已存在（worker 重試的重複派送），買家資料已寫過
	if created.ID != 0 {
		if err := s.repository.CreateBuyers(ctx, tx, created.ID, record.Buyers); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// 鏡像到 document store：新的 key，不會有併發寫入者
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal purchase record: %w", err)
	}
	return s.store.Set(ctx, record.DocumentPath(), value)
}

func (s *PurchaseServiceImpl) PurchaseList(ctx context.Context) ([]*model.PurchaseRecord, error) {
	return s.repository.List(ctx)
}

func (s *PurchaseServiceImpl) GetPurchaseByRecordID(ctx context.Context, recordID uuid.UUID) (*model.PurchaseRecord, error) {
	return s.repository.FindByRecordID(ctx, recordID)
}

func (s *PurchaseServiceImpl) ListByActorID(ctx context.Context, actorID string) ([]*model.PurchaseRecord, error) {
	return s.repository.FindByActorID(ctx, actorID)
}
