package queue

import (
	"context"
	"go-ticket-reservation/internal/model"
)

type Delivery struct {
	Data *model.PurchaseRecord
	Ack  func()
	Nack func(requeue bool)
}

type PurchaseQueue interface {
	// 發送購買紀錄到隊列
	PublishPurchase(ctx context.Context, record *model.PurchaseRecord) error
	// 訂閱購買紀錄隊列
	SubscribePurchases(ctx context.Context) (<-chan Delivery, error)
}

type PurchaseQueueImpl struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.PurchaseRecord
}

func NewPurchaseQueue(bufferSize int) PurchaseQueue {
	return &PurchaseQueueImpl{
		ch: make(chan *model.PurchaseRecord, bufferSize),
	}
}

func (q *PurchaseQueueImpl) PublishPurchase(ctx context.Context, record *model.PurchaseRecord) error {
	select {
	case q.ch <- record:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *PurchaseQueueImpl) SubscribePurchases(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case record, ok := <-q.ch:
				if !ok {
					return
				}

				// 將原始紀錄包裝成 Delivery 格式給 Worker
				out <- Delivery{
					Data: record,
					Ack:  func() { /* 記憶體版不用做特別動作 */ },
					Nack: func(requeue bool) {
						if requeue {
							// 重回隊列；緩衝滿或訂閱已結束時不可無限阻塞呼叫者
							select {
							case q.ch <- record:
							case <-ctx.Done():
							}
						}
					},
				}
			}
		}
	}()

	return out, nil
}
