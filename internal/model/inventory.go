package model

import "fmt"

// InventoryRef 指向一份庫存文件：場地 + 日期 + 活動名稱 + 票種 的組合
type InventoryRef struct {
	VenueID    string `json:"venue_id" binding:"required" form:"venue_id"`
	Date       string `json:"date" binding:"required" form:"date"`
	EventName  string `json:"event_name" binding:"required" form:"event_name"`
	TicketType string `json:"ticket_type" binding:"required" form:"ticket_type"`
}

// DocumentPath 庫存文件在 document store 中的 key
func (r InventoryRef) DocumentPath() string {
	return fmt.Sprintf("inventory:%s:%s:%s:%s", r.VenueID, r.Date, r.EventName, r.TicketType)
}

// ReservationEntry 暫時持有：只在 hold 開啟到關閉（commit、過期、取消）之間存在
// 不變量：存在時 ReservedQuantity > 0
type ReservationEntry struct {
	ReservedQuantity int `json:"reserved_quantity"`
}

// EventInventory 庫存文件。Capacity 絕不為負：開 hold 時扣減、回滾時補回、commit 時不動
// （commit 只清除 hold entry，容量在開 hold 時已經扣掉了）
type EventInventory struct {
	Capacity     int                         `json:"capacity"`
	UnitPrice    float64                     `json:"unit_price"`
	Reservations map[string]ReservationEntry `json:"reservations,omitempty"`
}

// HeldQuantity 回傳指定 actor 目前持有的數量，沒有 hold 時為 0
func (inv *EventInventory) HeldQuantity(actorID string) int {
	if inv.Reservations == nil {
		return 0
	}
	return inv.Reservations[actorID].ReservedQuantity
}

// TotalHeld 所有未結束 hold 的數量總和
func (inv *EventInventory) TotalHeld() int {
	total := 0
	for _, entry := range inv.Reservations {
		total += entry.ReservedQuantity
	}
	return total
}

// CreateInventoryRequest 建立（預熱）庫存文件的請求
type CreateInventoryRequest struct {
	Ref       InventoryRef `json:"ref" binding:"required"`
	Capacity  int          `json:"capacity" binding:"required,min=1"`
	UnitPrice float64      `json:"unit_price" binding:"required,gt=0"`
}

// InventoryResponse 庫存查詢響應
type InventoryResponse struct {
	Ref          InventoryRef `json:"ref"`
	Capacity     int          `json:"capacity"`
	UnitPrice    float64      `json:"unit_price"`
	HeldQuantity int          `json:"held_quantity"`
}
