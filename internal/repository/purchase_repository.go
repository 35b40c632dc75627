package repository

import (
	"context"
	"fmt"
	"go-ticket-reservation/internal/model"
	apperrors "go-ticket-reservation/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PurchaseRepository interface {
	List(ctx context.Context) ([]*model.PurchaseRecord, error)
	FindByRecordID(ctx context.Context, recordID uuid.UUID) (*model.PurchaseRecord, error)
	FindByActorID(ctx context.Context, actorID string) ([]*model.PurchaseRecord, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, record *model.PurchaseRecord) (*model.PurchaseRecord, error)
	CreateBuyers(ctx context.Context, tx pgx.Tx, purchaseID int, buyers []model.BuyerInfo) error
}

type PurchaseRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepository(pool *pgxpool.Pool) PurchaseRepository {
	return &PurchaseRepositoryImpl{
		pool: pool,
	}
}

func (r *PurchaseRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, record *model.PurchaseRecord) (*model.PurchaseRecord, error) {
	query := `
		INSERT INTO purchases (
			record_id, actor_id, venue_id, event_date, event_name,
			ticket_type, quantity, unit_price, total_price
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (record_id) DO NOTHING
		RETURNING id, created_at
	`

	err := tx.QueryRow(ctx, query,
		record.RecordID, record.ActorID, record.VenueID, record.Date, record.EventName,
		record.TicketType, record.Quantity, record.UnitPrice, record.TotalPrice,
	).Scan(
		&record.ID,
		&record.CreatedAt,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			// 同一筆紀錄重複派送（worker 重試），視為已寫入
			return record, nil
		}
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepositoryImpl) CreateBuyers(ctx context.Context, tx pgx.Tx, purchaseID int, buyers []model.BuyerInfo) error {
	if len(buyers) == 0 {
		return nil
	}

	query := `
		INSERT INTO purchase_buyers (
			purchase_id, position, buyer_name, email, birth_date, social_opt_in
		)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (purchase_id, position) DO NOTHING
	`

	for i, buyer := range buyers {
		_, err := tx.Exec(ctx, query,
			purchaseID, i, buyer.Name, buyer.Email, buyer.BirthDate, buyer.SocialOptIn,
		)
		if err != nil {
			return fmt.Errorf("failed to create buyer %d: %w", i, err)
		}
	}

	return nil
}

func (r *PurchaseRepositoryImpl) List(ctx context.Context) ([]*model.PurchaseRecord, error) {
	query := `
		SELECT id, record_id, actor_id, venue_id, event_date, event_name,
		       ticket_type, quantity, unit_price, total_price, created_at
		FROM purchases
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.PurchaseRecord, 0)

	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, record := range records {
		buyers, err := r.listBuyers(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		record.Buyers = buyers
	}

	return records, nil
}

func (r *PurchaseRepositoryImpl) FindByRecordID(ctx context.Context, recordID uuid.UUID) (*model.PurchaseRecord, error) {
	query := `
		SELECT id, record_id, actor_id, venue_id, event_date, event_name,
		       ticket_type, quantity, unit_price, total_price, created_at
		FROM purchases
		WHERE record_id = $1
	`

	row := r.pool.QueryRow(ctx, query, recordID)
	record, err := scanPurchase(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrPurchaseNotFound
		}
		return nil, err
	}

	buyers, err := r.listBuyers(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	record.Buyers = buyers

	return record, nil
}

func (r *PurchaseRepositoryImpl) FindByActorID(ctx context.Context, actorID string) ([]*model.PurchaseRecord, error) {
	query := `
		SELECT id, record_id, actor_id, venue_id, event_date, event_name,
		       ticket_type, quantity, unit_price, total_price, created_at
		FROM purchases
		WHERE actor_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]*model.PurchaseRecord, 0)

	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, record := range records {
		buyers, err := r.listBuyers(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		record.Buyers = buyers
	}

	return records, nil
}

func (r *PurchaseRepositoryImpl) listBuyers(ctx context.Context, purchaseID int) ([]model.BuyerInfo, error) {
	query := `
		SELECT buyer_name, email, birth_date, social_opt_in
		FROM purchase_buyers
		WHERE purchase_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buyers := make([]model.BuyerInfo, 0)

	for rows.Next() {
		var buyer model.BuyerInfo
		err := rows.Scan(
			&buyer.Name,
			&buyer.Email,
			&buyer.BirthDate,
			&buyer.SocialOptIn,
		)
		if err != nil {
			return nil, err
		}
		// 確認信箱欄位只在結帳時有意義，讀回時補上相同值
		buyer.ConfirmEmail = buyer.Email
		buyers = append(buyers, buyer)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return buyers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row rowScanner) (*model.PurchaseRecord, error) {
	var record model.PurchaseRecord
	err := row.Scan(
		&record.ID,
		&record.RecordID,
		&record.ActorID,
		&record.VenueID,
		&record.Date,
		&record.EventName,
		&record.TicketType,
		&record.Quantity,
		&record.UnitPrice,
		&record.TotalPrice,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &record, nil
}
