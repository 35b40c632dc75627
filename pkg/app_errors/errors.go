package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrInventoryNotFound    = errors.New("inventory not found")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrHoldAlreadyExists    = errors.New("hold already exists for this actor")
	ErrReservationStale     = errors.New("reservation entry missing or stale")
	ErrTransactionConflict  = errors.New("transaction conflict retries exhausted")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotRunning    = errors.New("session is not running")
	ErrReservationExpired   = errors.New("reservation time expired")
	ErrPurchaseNotFound     = errors.New("purchase record not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInternalServerError  = errors.New("internal server error")
)

// ValidationError 買家資料驗證失敗：回報第一個不合格的買家索引（從 0 起算）
type ValidationError struct {
	BuyerIndex int
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("buyer %d: %s", e.BuyerIndex+1, e.Reason)
}

// AsValidationError 從錯誤鏈中取出 ValidationError
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
