package inventory

import (
	"context"
	"encoding/json"
	"fmt"

	"go-ticket-reservation/internal/model"
	"go-ticket-reservation/internal/store"
	apperrors "go-ticket-reservation/pkg/app_errors"
)

// InventoryManager 對共享庫存文件的所有操作。每個變更都走 DocumentStore 的
// 樂觀交易，兩個併發 hold 不可能把容量扣到負數：後到的交易會重讀新狀態，
// 容量不足時直接中止而不是蓋寫。
type InventoryManager interface {
	// 預熱：建立庫存文件
	Create(ctx context.Context, ref model.InventoryRef, capacity int, unitPrice float64) error
	// 獲取：讀取庫存文件
	Get(ctx context.Context, ref model.InventoryRef) (*model.EventInventory, error)
	// 開啟持有：原子地扣減容量並寫入 actor 的 reservation entry，回傳單價
	OpenHold(ctx context.Context, ref model.InventoryRef, actorID string, quantity int) (float64, error)
	// 回滾：把 actor 持有的數量補回容量並移除 entry；沒有 entry 時為 no-op
	Release(ctx context.Context, ref model.InventoryRef, actorID string) error
	// 提交：移除 actor 的 entry，容量不動（開 hold 時已扣）；entry 不存在或數量不符時中止
	Commit(ctx context.Context, ref model.InventoryRef, actorID string, quantity int) error
	// 補償：無條件把容量加回去，用於 commit 後下游失敗的補救
	Restore(ctx context.Context, ref model.InventoryRef, quantity int) error
}

type InventoryManagerImpl struct {
	store store.DocumentStore
}

func NewInventoryManager(documentStore store.DocumentStore) InventoryManager {
	return &InventoryManagerImpl{
		store: documentStore,
	}
}

func (m *InventoryManagerImpl) Create(ctx context.Context, ref model.InventoryRef, capacity int, unitPrice float64) error {
	if capacity < 0 {
		return apperrors.ErrInvalidInput
	}

	inv := model.EventInventory{
		Capacity:  capacity,
		UnitPrice: unitPrice,
	}
	value, err := json.Marshal(&inv)
	if err != nil {
		return fmt.Errorf("marshal inventory: %w", err)
	}
	return m.store.Set(ctx, ref.DocumentPath(), value)
}

func (m *InventoryManagerImpl) Get(ctx context.Context, ref model.InventoryRef) (*model.EventInventory, error) {
	value, err := m.store.Get(ctx, ref.DocumentPath())
	if err != nil {
		if err == store.ErrDocumentNotFound {
			return nil, apperrors.ErrInventoryNotFound
		}
		return nil, err
	}
	return decodeInventory(value)
}

func (m *InventoryManagerImpl) OpenHold(ctx context.Context, ref model.InventoryRef, actorID string, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, apperrors.ErrInvalidInput
	}

	var unitPrice float64
	_, err := m.store.RunTransaction(ctx, ref.DocumentPath(), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, apperrors.ErrInventoryNotFound
		}
		inv, err := decodeInventory(current)
		if err != nil {
			return nil, err
		}

		// 同一個 (actor, inventory) 最多一個未結束的 hold
		if inv.HeldQuantity(actorID) > 0 {
			return nil, apperrors.ErrHoldAlreadyExists
		}
		if inv.Capacity < quantity {
			return nil, apperrors.ErrInsufficientCapacity
		}

		inv.Capacity -= quantity
		if inv.Reservations == nil {
			inv.Reservations = make(map[string]model.ReservationEntry)
		}
		inv.Reservations[actorID] = model.ReservationEntry{ReservedQuantity: quantity}
		unitPrice = inv.UnitPrice

		return json.Marshal(inv)
	})
	if err != nil {
		return 0, err
	}
	return unitPrice, nil
}

func (m *InventoryManagerImpl) Release(ctx context.Context, ref model.InventoryRef, actorID string) error {
	_, err := m.store.RunTransaction(ctx, ref.DocumentPath(), func(current []byte) ([]byte, error) {
		if current == nil {
			// 文件不存在視同沒有 hold
			return nil, nil
		}
		inv, err := decodeInventory(current)
		if err != nil {
			return nil, err
		}

		entry, ok := inv.Reservations[actorID]
		if ok {
			inv.Capacity += entry.ReservedQuantity
			delete(inv.Reservations, actorID)
		}
		if len(inv.Reservations) == 0 {
			inv.Reservations = nil
		}

		return json.Marshal(inv)
	})
	return err
}

func (m *InventoryManagerImpl) Commit(ctx context.Context, ref model.InventoryRef, actorID string, quantity int) error {
	_, err := m.store.RunTransaction(ctx, ref.DocumentPath(), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, apperrors.ErrInventoryNotFound
		}
		inv, err := decodeInventory(current)
		if err != nil {
			return nil, err
		}

		entry, ok := inv.Reservations[actorID]
		if !ok || entry.ReservedQuantity != quantity {
			// 先前的扣減已不成立，中止而不污染庫存
			return nil, apperrors.ErrReservationStale
		}

		delete(inv.Reservations, actorID)
		if len(inv.Reservations) == 0 {
			inv.Reservations = nil
		}

		return json.Marshal(inv)
	})
	return err
}

func (m *InventoryManagerImpl) Restore(ctx context.Context, ref model.InventoryRef, quantity int) error {
	_, err := m.store.RunTransaction(ctx, ref.DocumentPath(), func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, apperrors.ErrInventoryNotFound
		}
		inv, err := decodeInventory(current)
		if err != nil {
			return nil, err
		}

		inv.Capacity += quantity
		return json.Marshal(inv)
	})
	return err
}

func decodeInventory(value []byte) (*model.EventInventory, error) {
	var inv model.EventInventory
	if err := json.Unmarshal(value, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return &inv, nil
}
