package model

// SessionState 結帳 session 狀態類型
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRunning   SessionState = "running"
	SessionStateCommitted SessionState = "committed"
	SessionStateExpired   SessionState = "expired"
	SessionStateCancelled SessionState = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s SessionState) IsValid() bool {
	switch s {
	case SessionStateIdle, SessionStateRunning, SessionStateCommitted, SessionStateExpired, SessionStateCancelled:
		return true
	}
	return false
}

// IsTerminal 終態互斥且不可再轉換
func (s SessionState) IsTerminal() bool {
	switch s {
	case SessionStateCommitted, SessionStateExpired, SessionStateCancelled:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s SessionState) CanTransitionTo(target SessionState) bool {
	transitions := map[SessionState][]SessionState{
		SessionStateIdle:      {SessionStateRunning},
		SessionStateRunning:   {SessionStateCommitted, SessionStateExpired, SessionStateCancelled},
		SessionStateCommitted: {},
		SessionStateExpired:   {},
		SessionStateCancelled: {},
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == target {
			return true
		}
	}
	return false
}

// OpenHoldRequest 開啟持有的請求
type OpenHoldRequest struct {
	Ref      InventoryRef `json:"ref" binding:"required"`
	Quantity int          `json:"quantity" binding:"required,min=1"`
}

// SessionResponse 結帳 session 狀態響應
type SessionResponse struct {
	SessionID        string       `json:"session_id"`
	Ref              InventoryRef `json:"ref"`
	Quantity         int          `json:"quantity"`
	UnitPrice        float64      `json:"unit_price"`
	State            SessionState `json:"state"`
	RemainingSeconds int          `json:"remaining_seconds"`
	RemainingDisplay string       `json:"remaining_display"`
	Buyers           []BuyerInfo  `json:"buyers"`
}
