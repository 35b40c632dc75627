package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuyerInfo 單一買家資料，confirm 時每個欄位都必須非空且 Email == ConfirmEmail
type BuyerInfo struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ConfirmEmail string `json:"confirm_email"`
	BirthDate    string `json:"birth_date"`
	SocialOptIn  bool   `json:"social_opt_in"`
}

// IsComplete 檢查必填欄位是否都已填寫
func (b *BuyerInfo) IsComplete() bool {
	return strings.TrimSpace(b.Name) != "" &&
		strings.TrimSpace(b.Email) != "" &&
		strings.TrimSpace(b.ConfirmEmail) != "" &&
		strings.TrimSpace(b.BirthDate) != ""
}

// EmailsMatch 檢查 Email 與確認 Email 是否一致
func (b *BuyerInfo) EmailsMatch() bool {
	return b.Email == b.ConfirmEmail
}

// PurchaseRecord 購買紀錄：commit 成功時建立一次，之後不再變更或刪除
type PurchaseRecord struct {
	RecordID   uuid.UUID   `json:"record_id" db:"record_id"`
	ActorID    string      `json:"actor_id" db:"actor_id"`
	VenueID    string      `json:"venue_id" db:"venue_id"`
	Date       string      `json:"date" db:"date"`
	EventName  string      `json:"event_name" db:"event_name"`
	TicketType string      `json:"ticket_type" db:"ticket_type"`
	Quantity   int         `json:"quantity" db:"quantity"`
	UnitPrice  float64     `json:"unit_price" db:"unit_price"`
	TotalPrice float64     `json:"total_price" db:"total_price"`
	Buyers     []BuyerInfo `json:"buyers" db:"-"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`

	ID int `json:"-" db:"id"`
}

// DocumentPath 購買紀錄在 document store 中的 key（append-only，不會有併發寫入者）
func (p *PurchaseRecord) DocumentPath() string {
	return "purchase:" + p.RecordID.String()
}

// ConfirmPurchaseRequest 確認購買的請求
type ConfirmPurchaseRequest struct {
	Buyers []BuyerInfo `json:"buyers" binding:"required"`
}

// PurchaseResponse 購買紀錄響應
type PurchaseResponse struct {
	RecordID   string      `json:"record_id"`
	EventName  string      `json:"event_name"`
	Date       string      `json:"date"`
	VenueID    string      `json:"venue_id"`
	TicketType string      `json:"ticket_type"`
	Quantity   int         `json:"quantity"`
	UnitPrice  float64     `json:"unit_price"`
	TotalPrice float64     `json:"total_price"`
	Buyers     []BuyerInfo `json:"buyers"`
	CreatedAt  string      `json:"created_at"`
}
