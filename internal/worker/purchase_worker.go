package worker

import (
	"context"
	"go-ticket-reservation/internal/queue"
	"go-ticket-reservation/internal/service"
	"go-ticket-reservation/pkg/logger"

	"go.uber.org/zap"
)

type PurchaseWorker interface {
	// 訂閱購買紀錄隊列
	Start(ctx context.Context) error
}

type PurchaseWorkerImpl struct {
	service service.PurchaseService
	queue   queue.PurchaseQueue
}

func NewPurchaseWorker(service service.PurchaseService, queue queue.PurchaseQueue) PurchaseWorker {
	return &PurchaseWorkerImpl{
		service: service,
		queue:   queue,
	}
}

func (w *PurchaseWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.SubscribePurchases(ctx)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			err := w.service.DispatchPurchase(ctx, msg.Data)

			if err != nil {
				// 資料庫暫時寫不進去，留給隊列重試
				logger.WithComponent("worker").Warn("dispatch purchase failed, will retry",
					zap.String("record_id", msg.Data.RecordID.String()), zap.Error(err))
				msg.Nack(true)
			} else {
				msg.Ack()
			}
		}
	}()
	return nil
}
