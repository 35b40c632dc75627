package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-ticket-reservation/internal/inventory"
	"go-ticket-reservation/internal/model"
	"go-ticket-reservation/internal/queue"
	apperrors "go-ticket-reservation/pkg/app_errors"
	"go-ticket-reservation/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReservationService interface {
	// 開啟持有：原子扣減容量、寫入 reservation entry、啟動倒數
	OpenHold(ctx context.Context, req model.OpenHoldRequest) (*model.SessionResponse, error)
	// 查詢 session 狀態（含剩餘秒數）
	GetSession(ctx context.Context, sessionID string) (*model.SessionResponse, error)
	// 列出目前使用者的所有 session
	ListSessions(ctx context.Context) ([]*model.SessionResponse, error)
	// 確認購買：驗證買家資料、提交庫存交易、組裝並派送購買紀錄
	ConfirmPurchase(ctx context.Context, sessionID string, buyers []model.BuyerInfo) (*model.PurchaseRecord, error)
	// 取消：使用者離開結帳流程，回滾持有
	Cancel(ctx context.Context, sessionID string) error
}

const (
	// defaultSessionRetention 終態 session 的保留時間，期滿後從 map 移除
	defaultSessionRetention = 5 * time.Minute
	releaseRetryAttempts    = 3
	releaseRetryDelay       = 200 * time.Millisecond
)

// reservationSession 一次結帳流程的 in-memory 狀態，只存活於單次結帳
type reservationSession struct {
	mu        sync.Mutex
	id        string
	actorID   string
	ref       model.InventoryRef
	quantity  int
	unitPrice float64
	state     model.SessionState
	buyers    []model.BuyerInfo
	countdown *Countdown
}

type ReservationServiceImpl struct {
	inventory    inventory.InventoryManager
	identity     IdentityProvider
	purchaseQ    queue.PurchaseQueue
	holdSeconds  int
	tickInterval time.Duration
	retention    time.Duration

	mu       sync.RWMutex
	sessions map[string]*reservationSession
}

// NewReservationService 建立 Reservation Manager。tickInterval 預設 1 秒，測試可縮短。
// sessionRetention 為終態 session 的保留時間，讓客戶端還能讀到最終狀態；預設 5 分鐘。
func NewReservationService(
	inventoryManager inventory.InventoryManager,
	identityProvider IdentityProvider,
	purchaseQueue queue.PurchaseQueue,
	holdSeconds int,
	tickInterval time.Duration,
	sessionRetention time.Duration,
) ReservationService {
	if holdSeconds <= 0 {
		holdSeconds = 300
	}
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	if sessionRetention <= 0 {
		sessionRetention = defaultSessionRetention
	}
	return &ReservationServiceImpl{
		inventory:    inventoryManager,
		identity:     identityProvider,
		purchaseQ:    purchaseQueue,
		holdSeconds:  holdSeconds,
		tickInterval: tickInterval,
		retention:    sessionRetention,
		sessions:     make(map[string]*reservationSession),
	}
}

func (s *ReservationServiceImpl) OpenHold(ctx context.Context, req model.OpenHoldRequest) (*model.SessionResponse, error) {
	actorID, err := s.identity.CurrentActorID(ctx)
	if err != nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if req.Quantity <= 0 {
		return nil, apperrors.ErrInvalidInput
	}

	// 容量扣減在倒數開始前同步且原子地完成
	unitPrice, err := s.inventory.OpenHold(ctx, req.Ref, actorID, req.Quantity)
	if err != nil {
		return nil, err
	}

	sess := &reservationSession{
		id:        uuid.New().String(),
		actorID:   actorID,
		ref:       req.Ref,
		quantity:  req.Quantity,
		unitPrice: unitPrice,
		state:     model.SessionStateRunning,
		buyers:    make([]model.BuyerInfo, req.Quantity),
	}
	sess.countdown = NewCountdown(s.holdSeconds, s.tickInterval, func() {
		s.expireSession(sess)
	})

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.countdown.Start()

	logger.WithComponent("reservation").Info("hold opened",
		zap.String("session_id", sess.id),
		zap.String("actor_id", actorID),
		zap.String("inventory", req.Ref.DocumentPath()),
		zap.Int("quantity", req.Quantity),
	)

	return s.snapshot(sess), nil
}

func (s *ReservationServiceImpl) GetSession(ctx context.Context, sessionID string) (*model.SessionResponse, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(sess), nil
}

func (s *ReservationServiceImpl) ListSessions(ctx context.Context) ([]*model.SessionResponse, error) {
	actorID, err := s.identity.CurrentActorID(ctx)
	if err != nil {
		return nil, apperrors.ErrUnauthenticated
	}

	s.mu.RLock()
	matched := make([]*reservationSession, 0)
	for _, sess := range s.sessions {
		if sess.actorID == actorID {
			matched = append(matched, sess)
		}
	}
	s.mu.RUnlock()

	responses := make([]*model.SessionResponse, 0, len(matched))
	for _, sess := range matched {
		responses = append(responses, s.snapshot(sess))
	}
	return responses, nil
}

func (s *ReservationServiceImpl) ConfirmPurchase(ctx context.Context, sessionID string, buyers []model.BuyerInfo) (*model.PurchaseRecord, error) {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return nil, err
	}

	// session 鎖使 confirm、expiry 與 cancel 互斥；transaction 未解決前不會轉移狀態
	sess.mu.Lock()
	defer sess.mu.Unlock()

	switch sess.state {
	case model.SessionStateExpired:
		return nil, apperrors.ErrReservationExpired
	case model.SessionStateRunning:
		// continue
	default:
		return nil, apperrors.ErrSessionNotRunning
	}

	// 驗證失敗不碰庫存也不改狀態，倒數繼續，使用者可重試
	if err := validateBuyers(buyers, sess.quantity); err != nil {
		return nil, err
	}
	copy(sess.buyers, buyers)

	// 提交交易：entry 必須仍然存在且數量一致，否則中止、庫存不動
	if err := s.inventory.Commit(ctx, sess.ref, sess.actorID, sess.quantity); err != nil {
		logger.WithComponent("reservation").Warn("commit transaction aborted",
			zap.String("session_id", sess.id), zap.Error(err))
		return nil, err
	}

	sess.countdown.Stop()

	record := &model.PurchaseRecord{
		RecordID:   uuid.New(),
		ActorID:    sess.actorID,
		VenueID:    sess.ref.VenueID,
		Date:       sess.ref.Date,
		EventName:  sess.ref.EventName,
		TicketType: sess.ref.TicketType,
		Quantity:   sess.quantity,
		UnitPrice:  sess.unitPrice,
		TotalPrice: sess.unitPrice * float64(sess.quantity),
		Buyers:     append([]model.BuyerInfo(nil), buyers...),
		CreatedAt:  time.Now().UTC(),
	}

	// 派送失敗時補償容量，絕不能讓容量被吃掉卻沒有購買紀錄。
	// 補償用 context.Background() 傳遞，確保一定會執行。
	if err := s.purchaseQ.PublishPurchase(ctx, record); err != nil {
		logger.WithComponent("reservation").Error("publish purchase failed, restoring capacity",
			zap.String("session_id", sess.id), zap.Error(err))
		sess.state = model.SessionStateCancelled
		if restoreErr := s.inventory.Restore(context.Background(), sess.ref, sess.quantity); restoreErr != nil {
			// 容量沒補回來：session 留在 map 中供查詢與人工補救
			logger.WithComponent("reservation").Error("restore capacity failed",
				zap.String("session_id", sess.id), zap.Error(restoreErr))
			return nil, apperrors.ErrInternalServerError
		}
		s.scheduleRemoval(sess.id)
		return nil, apperrors.ErrInternalServerError
	}

	sess.state = model.SessionStateCommitted
	s.scheduleRemoval(sess.id)

	logger.WithComponent("reservation").Info("purchase committed",
		zap.String("session_id", sess.id),
		zap.String("record_id", record.RecordID.String()),
		zap.Int("quantity", record.Quantity),
	)

	return record, nil
}

func (s *ReservationServiceImpl) Cancel(ctx context.Context, sessionID string) error {
	sess, err := s.findSession(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.state != model.SessionStateRunning {
		// 已經 commit、過期或取消過：第二個到達的呼叫者為 no-op
		sess.mu.Unlock()
		return nil
	}
	sess.state = model.SessionStateCancelled
	sess.countdown.Stop()
	sess.mu.Unlock()

	if err := s.releaseWithRetry(sess); err != nil {
		// 容量沒補回來：session 留在 map 中供查詢與人工補救
		logger.WithComponent("reservation").Error("release on cancel failed",
			zap.String("session_id", sess.id), zap.Error(err))
		return err
	}
	s.scheduleRemoval(sess.id)

	logger.WithComponent("reservation").Info("hold cancelled",
		zap.String("session_id", sess.id))
	return nil
}

// expireSession 倒數歸零的回呼：回滾持有並通知使用者重新開始
func (s *ReservationServiceImpl) expireSession(sess *reservationSession) {
	sess.mu.Lock()
	if sess.state != model.SessionStateRunning {
		sess.mu.Unlock()
		return
	}
	sess.state = model.SessionStateExpired
	sess.mu.Unlock()

	if err := s.releaseWithRetry(sess); err != nil {
		// 容量沒補回來：session 留在 map 中供查詢與人工補救
		logger.WithComponent("reservation").Error("release on expiry failed",
			zap.String("session_id", sess.id), zap.Error(err))
		return
	}
	s.scheduleRemoval(sess.id)

	logger.WithComponent("reservation").Info("time expired, restart the purchase",
		zap.String("session_id", sess.id))
}

// releaseWithRetry 回滾持有。暫時性失敗時做有限次重試，避免到期回滾一次失敗就永久吃掉容量。
// 回滾用 context.Background()：即使請求已被放棄也要把容量還回去。
func (s *ReservationServiceImpl) releaseWithRetry(sess *reservationSession) error {
	var err error
	for attempt := 1; attempt <= releaseRetryAttempts; attempt++ {
		if err = s.inventory.Release(context.Background(), sess.ref, sess.actorID); err == nil {
			return nil
		}
		logger.WithComponent("reservation").Warn("release failed, retrying",
			zap.String("session_id", sess.id), zap.Int("attempt", attempt), zap.Error(err))
		if attempt < releaseRetryAttempts {
			time.Sleep(releaseRetryDelay)
		}
	}
	return err
}

// scheduleRemoval 終態 session 保留一段時間讓客戶端讀到最終狀態，期滿後銷毀
func (s *ReservationServiceImpl) scheduleRemoval(sessionID string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	})
}

func (s *ReservationServiceImpl) findSession(sessionID string) (*reservationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return sess, nil
}

func (s *ReservationServiceImpl) snapshot(sess *reservationSession) *model.SessionResponse {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	return &model.SessionResponse{
		SessionID:        sess.id,
		Ref:              sess.ref,
		Quantity:         sess.quantity,
		UnitPrice:        sess.unitPrice,
		State:            sess.state,
		RemainingSeconds: sess.countdown.Remaining(),
		RemainingDisplay: sess.countdown.Display(),
		Buyers:           append([]model.BuyerInfo(nil), sess.buyers...),
	}
}

// validateBuyers 回報第一個不合格的買家；任何失敗都不影響 session 狀態
func validateBuyers(buyers []model.BuyerInfo, quantity int) error {
	if len(buyers) != quantity {
		return fmt.Errorf("%w: expected %d buyer entries, got %d", apperrors.ErrInvalidInput, quantity, len(buyers))
	}
	for i := range buyers {
		if !buyers[i].IsComplete() {
			return &apperrors.ValidationError{BuyerIndex: i, Reason: "complete all fields"}
		}
		if !buyers[i].EmailsMatch() {
			return &apperrors.ValidationError{BuyerIndex: i, Reason: "email and confirmation do not match"}
		}
	}
	return nil
}
