package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go-ticket-reservation/internal/inventory"
	"go-ticket-reservation/internal/model"
	"go-ticket-reservation/internal/queue"
	"go-ticket-reservation/internal/service"
	"go-ticket-reservation/internal/store"
	apperrors "go-ticket-reservation/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingQueue 模擬派送失敗，驗證補償路徑
type failingQueue struct{}

func (q *failingQueue) PublishPurchase(ctx context.Context, record *model.PurchaseRecord) error {
	return errors.New("queue unavailable")
}

func (q *failingQueue) SubscribePurchases(ctx context.Context) (<-chan queue.Delivery, error) {
	return nil, errors.New("queue unavailable")
}

type fixture struct {
	manager   inventory.InventoryManager
	service   service.ReservationService
	queue     queue.PurchaseQueue
	ref       model.InventoryRef
	documents *store.MemoryDocumentStore
}

func setupReservation(t *testing.T, capacity int, holdSeconds int) *fixture {
	t.Helper()
	documents := store.NewMemoryDocumentStore()
	manager := inventory.NewInventoryManager(documents)
	purchaseQueue := queue.NewPurchaseQueue(16)

	ref := model.InventoryRef{
		VenueID:    "venue-1",
		Date:       "2026-09-12",
		EventName:  "Neon Night",
		TicketType: "general",
	}
	require.NoError(t, manager.Create(context.Background(), ref, capacity, 45.0))

	// tick 間隔拉長到不會觸發，避免測試依賴真實時間；到期路徑另外用短間隔測
	tickInterval := time.Hour
	if holdSeconds <= 5 {
		tickInterval = time.Millisecond
	}
	svc := service.NewReservationService(
		manager,
		&service.StaticIdentityProvider{ActorID: "actor-1"},
		purchaseQueue,
		holdSeconds,
		tickInterval,
		time.Hour,
	)

	return &fixture{
		manager:   manager,
		service:   svc,
		queue:     purchaseQueue,
		ref:       ref,
		documents: documents,
	}
}

func validBuyers(n int) []model.BuyerInfo {
	buyers := make([]model.BuyerInfo, n)
	for i := range buyers {
		email := fmt.Sprintf("buyer%d@test.com", i)
		buyers[i] = model.BuyerInfo{
			Name:         fmt.Sprintf("Buyer %d", i),
			Email:        email,
			ConfirmEmail: email,
			BirthDate:    "1995-04-02",
			SocialOptIn:  i%2 == 0,
		}
	}
	return buyers
}

func (f *fixture) capacity(t *testing.T) int {
	t.Helper()
	inv, err := f.manager.Get(context.Background(), f.ref)
	require.NoError(t, err)
	return inv.Capacity
}

func (f *fixture) heldBy(t *testing.T, actorID string) int {
	t.Helper()
	inv, err := f.manager.Get(context.Background(), f.ref)
	require.NoError(t, err)
	return inv.HeldQuantity(actorID)
}

func (f *fixture) receivePublished(t *testing.T) *model.PurchaseRecord {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deliveries, err := f.queue.SubscribePurchases(ctx)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		d.Ack()
		return d.Data
	case <-ctx.Done():
		t.Fatal("no purchase record published")
		return nil
	}
}

func TestReservationService_OpenHold(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := setupReservation(t, 10, 300)

		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)
		defer f.service.Cancel(ctx, session.SessionID)

		assert.Equal(t, model.SessionStateRunning, session.State)
		assert.Equal(t, 2, session.Quantity)
		assert.Equal(t, 45.0, session.UnitPrice)
		assert.Len(t, session.Buyers, 2)
		assert.Equal(t, 300, session.RemainingSeconds)
		assert.Equal(t, "05:00", session.RemainingDisplay)

		// 容量在倒數開始前就已扣減
		assert.Equal(t, 8, f.capacity(t))
		assert.Equal(t, 2, f.heldBy(t, "actor-1"))
	})

	t.Run("Failed - Unauthenticated", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		svc := service.NewReservationService(
			f.manager,
			&service.StaticIdentityProvider{},
			f.queue,
			300,
			time.Hour,
			time.Hour,
		)

		_, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 1})
		assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		assert.Equal(t, 10, f.capacity(t))
	})

	t.Run("Failed - InsufficientCapacity", func(t *testing.T) {
		f := setupReservation(t, 1, 300)

		_, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		assert.ErrorIs(t, err, apperrors.ErrInsufficientCapacity)
		assert.Equal(t, 1, f.capacity(t))
	})

	t.Run("Failed - HoldAlreadyExists", func(t *testing.T) {
		f := setupReservation(t, 10, 300)

		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)
		defer f.service.Cancel(ctx, session.SessionID)

		_, err = f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 1})
		assert.ErrorIs(t, err, apperrors.ErrHoldAlreadyExists)
		assert.Equal(t, 8, f.capacity(t))
	})
}

func TestReservationService_ListSessions(t *testing.T) {
	ctx := context.Background()
	f := setupReservation(t, 10, 300)

	sessions, err := f.service.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	opened, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
	require.NoError(t, err)
	defer f.service.Cancel(ctx, opened.SessionID)

	sessions, err = f.service.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, opened.SessionID, sessions[0].SessionID)
	assert.Equal(t, model.SessionStateRunning, sessions[0].State)
}

// 情境 A：容量 10、數量 2 → 開 hold 後容量 8 → confirm 後容量仍 8、entry 移除、
// 產生一筆含兩位買家的購買紀錄
func TestReservationService_ConfirmPurchase_ScenarioA(t *testing.T) {
	ctx := context.Background()
	f := setupReservation(t, 10, 300)

	session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, f.capacity(t))
	assert.Equal(t, 2, f.heldBy(t, "actor-1"))

	record, err := f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(2))
	require.NoError(t, err)

	// commit 對容量中性
	assert.Equal(t, 8, f.capacity(t))
	assert.Equal(t, 0, f.heldBy(t, "actor-1"))

	assert.Equal(t, "actor-1", record.ActorID)
	assert.Equal(t, "Neon Night", record.EventName)
	assert.Equal(t, 2, record.Quantity)
	assert.Equal(t, 90.0, record.TotalPrice)
	assert.Len(t, record.Buyers, 2)

	published := f.receivePublished(t)
	assert.Equal(t, record.RecordID, published.RecordID)
	assert.Len(t, published.Buyers, 2)

	got, err := f.service.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateCommitted, got.State)
}

// 情境 B：容量 5、數量 5 → 倒數先歸零 → 容量恢復為 5、entry 移除、
// 沒有購買紀錄、session 狀態 Expired
func TestReservationService_Expiry_ScenarioB(t *testing.T) {
	ctx := context.Background()
	f := setupReservation(t, 5, 1) // 1 秒預算，1ms tick 間隔

	session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, f.capacity(t))

	require.Eventually(t, func() bool {
		got, err := f.service.GetSession(ctx, session.SessionID)
		return err == nil && got.State == model.SessionStateExpired
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 5, f.capacity(t))
	assert.Equal(t, 0, f.heldBy(t, "actor-1"))

	// 過期後 confirm 被拒絕
	_, err = f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(5))
	assert.ErrorIs(t, err, apperrors.ErrReservationExpired)
}

func TestReservationService_ConfirmPurchase_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("Failed - IncompleteBuyer", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)
		defer f.service.Cancel(ctx, session.SessionID)

		buyers := validBuyers(2)
		buyers[1].Name = ""

		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, buyers)
		ve, ok := apperrors.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, 1, ve.BuyerIndex)

		// 驗證失敗不碰庫存也不改狀態
		assert.Equal(t, 8, f.capacity(t))
		got, err := f.service.GetSession(ctx, session.SessionID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionStateRunning, got.State)
	})

	t.Run("Failed - EmailMismatch", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)
		defer f.service.Cancel(ctx, session.SessionID)

		buyers := validBuyers(2)
		buyers[0].ConfirmEmail = "other@test.com"

		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, buyers)
		ve, ok := apperrors.AsValidationError(err)
		require.True(t, ok)
		assert.Equal(t, 0, ve.BuyerIndex)
		assert.Equal(t, 8, f.capacity(t))
	})

	t.Run("Failed - WrongBuyerCount", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)
		defer f.service.Cancel(ctx, session.SessionID)

		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Equal(t, 8, f.capacity(t))
	})

	t.Run("Failed - RetryAfterValidationSucceeds", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)

		buyers := validBuyers(2)
		buyers[0].Email = ""
		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, buyers)
		require.Error(t, err)

		// 修正後重試成功
		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(2))
		require.NoError(t, err)
		assert.Equal(t, 8, f.capacity(t))
	})
}

func TestReservationService_ConfirmPurchase_TransactionAbort(t *testing.T) {
	ctx := context.Background()
	f := setupReservation(t, 10, 300)

	session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
	require.NoError(t, err)
	defer f.service.Cancel(ctx, session.SessionID)

	// 模擬 entry 在 confirm 前被外力清掉（stale）
	require.NoError(t, f.manager.Release(ctx, f.ref, "actor-1"))

	_, err = f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(2))
	assert.ErrorIs(t, err, apperrors.ErrReservationStale)

	// 交易中止後 session 留在 Running，可重試或放棄
	got, err := f.service.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateRunning, got.State)
}

func TestReservationService_ConfirmPurchase_PublishFailureCompensates(t *testing.T) {
	ctx := context.Background()
	f := setupReservation(t, 10, 300)

	svc := service.NewReservationService(
		f.manager,
		&service.StaticIdentityProvider{ActorID: "actor-1"},
		&failingQueue{},
		300,
		time.Hour,
		time.Hour,
	)

	session, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, f.capacity(t))

	_, err = svc.ConfirmPurchase(ctx, session.SessionID, validBuyers(2))
	assert.ErrorIs(t, err, apperrors.ErrInternalServerError)

	// 容量被補償回來，不會吃掉容量卻沒有紀錄
	assert.Equal(t, 10, f.capacity(t))
	assert.Equal(t, 0, f.heldBy(t, "actor-1"))
}

func TestReservationService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - RestoresCapacity", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 3})
		require.NoError(t, err)
		assert.Equal(t, 7, f.capacity(t))

		require.NoError(t, f.service.Cancel(ctx, session.SessionID))
		assert.Equal(t, 10, f.capacity(t))

		got, err := f.service.GetSession(ctx, session.SessionID)
		require.NoError(t, err)
		assert.Equal(t, model.SessionStateCancelled, got.State)
	})

	t.Run("Success - DoubleCancelRestoresOnce", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 3})
		require.NoError(t, err)

		require.NoError(t, f.service.Cancel(ctx, session.SessionID))
		require.NoError(t, f.service.Cancel(ctx, session.SessionID))
		assert.Equal(t, 10, f.capacity(t))
	})

	t.Run("Success - CancelAfterCommitIsNoop", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		session, err := f.service.OpenHold(ctx, model.OpenHoldRequest{Ref: f.ref, Quantity: 2})
		require.NoError(t, err)

		_, err = f.service.ConfirmPurchase(ctx, session.SessionID, validBuyers(2))
		require.NoError(t, err)

		require.NoError(t, f.service.Cancel(ctx, session.SessionID))
		// 已售出的容量不會被取消還原
		assert.Equal(t, 8, f.capacity(t))
	})

	t.Run("Failed - SessionNotFound", func(t *testing.T) {
		f := setupReservation(t, 10, 300)
		err := f.service.Cancel(ctx, "no-such-session")
		assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})
}

// 終態 session 保留期滿後從 map 移除：連續多次結帳不會讓 session 無限累積
func TestReservationService_TerminalSessionsEvicted(t *testing.T) {
	ctx := context.Background()
	documents := store.NewMemoryDocumentStore()
	manager := inventory.NewInventoryManager(documents)
	purchaseQueue := queue.NewPurchaseQueue(64)

	ref := model.InventoryRef{
		VenueID:    "venue-1",
		Date:       "2026-09-12",
		EventName:  "Neon Night",
		TicketType: "general",
	}
	require.NoError(t, manager.Create(ctx, ref, 10, 45.0))

	svc := service.NewReservationService(
		manager,
		&service.StaticIdentityProvider{ActorID: "actor-1"},
		purchaseQueue,
		300,
		time.Hour,
		20*time.Millisecond,
	)

	for i := 0; i < 10; i++ {
		session, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: ref, Quantity: 1})
		require.NoError(t, err)
		require.NoError(t, svc.Cancel(ctx, session.SessionID))
	}

	committed, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: ref, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.ConfirmPurchase(ctx, committed.SessionID, validBuyers(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		sessions, err := svc.ListSessions(ctx)
		return err == nil && len(sessions) == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.GetSession(ctx, committed.SessionID)
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

// flakyInventory 前 failures 次 Release 回傳暫時性錯誤
type flakyInventory struct {
	inventory.InventoryManager
	mu       sync.Mutex
	failures int
}

func (f *flakyInventory) Release(ctx context.Context, ref model.InventoryRef, actorID string) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("transient store error")
	}
	f.mu.Unlock()
	return f.InventoryManager.Release(ctx, ref, actorID)
}

// 到期回滾遇到暫時性失敗時會重試，容量最終仍被恢復
func TestReservationService_Expiry_ReleaseRetriesTransientFailure(t *testing.T) {
	ctx := context.Background()
	documents := store.NewMemoryDocumentStore()
	manager := &flakyInventory{
		InventoryManager: inventory.NewInventoryManager(documents),
		failures:         2,
	}

	ref := model.InventoryRef{
		VenueID:    "venue-1",
		Date:       "2026-09-12",
		EventName:  "Neon Night",
		TicketType: "general",
	}
	require.NoError(t, manager.Create(ctx, ref, 5, 45.0))

	svc := service.NewReservationService(
		manager,
		&service.StaticIdentityProvider{ActorID: "actor-1"},
		queue.NewPurchaseQueue(4),
		1,
		time.Millisecond,
		time.Hour,
	)

	_, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: ref, Quantity: 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		inv, err := manager.Get(ctx, ref)
		return err == nil && inv.Capacity == 5 && inv.TotalHeld() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

// 情境 C 的服務層版本：多個 actor 併發搶容量，已承諾與持有總量絕不超過初始容量
func TestReservationService_ConcurrentSessions_NoOversell(t *testing.T) {
	ctx := context.Background()
	totalCapacity := 10
	concurrentActors := 20

	documents := store.NewMemoryDocumentStore()
	manager := inventory.NewInventoryManager(documents)
	purchaseQueue := queue.NewPurchaseQueue(64)

	ref := model.InventoryRef{
		VenueID:    "venue-1",
		Date:       "2026-09-12",
		EventName:  "Neon Night",
		TicketType: "general",
	}
	require.NoError(t, manager.Create(ctx, ref, totalCapacity, 45.0))

	var wg sync.WaitGroup
	successCount := 0
	var mu sync.Mutex

	for i := 0; i < concurrentActors; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			svc := service.NewReservationService(
				manager,
				&service.StaticIdentityProvider{ActorID: fmt.Sprintf("actor-%d", idx)},
				purchaseQueue,
				300,
				time.Hour,
				time.Hour,
			)

			session, err := svc.OpenHold(ctx, model.OpenHoldRequest{Ref: ref, Quantity: 1})
			if err != nil {
				return
			}
			if _, err := svc.ConfirmPurchase(ctx, session.SessionID, validBuyers(1)); err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, totalCapacity, successCount)

	inv, err := manager.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, 0, inv.Capacity)
	assert.Equal(t, 0, inv.TotalHeld())
}
