package worker

import (
	"context"
	"log"

	"lojinha-service/internal/broker"
	"lojinha-service/internal/models"
	"lojinha-service/internal/notify"
	"lojinha-service/internal/store"
	"lojinha-service/internal/util"
)

// NotificationWorker consumes domain events and drives the messaging
// gateway. Deliveries are guarded by the processed-events table so a
// redelivered kafka message does not send a second receipt.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	notifier     notify.Notifier
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, store *store.Store, notifier notify.Notifier) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		store:    store,
		notifier: notifier,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnSaleCompleted(w.handleSaleCompleted)
	eventHandler.OnSaleRefunded(w.handleSaleRefunded)
	eventHandler.OnStockLow(w.handleStockLow)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

// dedupe returns true when the event was already handled.
func (w *NotificationWorker) dedupe(ctx context.Context, eventID, eventType string) (bool, error) {
	processed, err := w.store.IsEventProcessed(ctx, eventID)
	if err != nil {
		return false, err
	}
	if processed {
		return true, nil
	}
	return false, w.store.MarkEventProcessed(ctx, eventID, eventType)
}

func (w *NotificationWorker) handleSaleCompleted(ctx context.Context, event *models.SaleCompletedEvent) error {
	done, err := w.dedupe(ctx, event.EventID, event.EventType)
	if err != nil || done {
		return err
	}
	if err := w.notifier.SendReceipt(ctx, event); err != nil {
		util.NotificationsFailedTotal.Inc()
		log.Printf("Failed to send receipt for sale %d: %v", event.SaleID, err)
	}
	return nil
}

func (w *NotificationWorker) handleSaleRefunded(ctx context.Context, event *models.SaleRefundedEvent) error {
	done, err := w.dedupe(ctx, event.EventID, event.EventType)
	if err != nil || done {
		return err
	}
	if err := w.notifier.SendRefundNotice(ctx, event); err != nil {
		util.NotificationsFailedTotal.Inc()
		log.Printf("Failed to send refund notice for sale %d: %v", event.SaleID, err)
	}
	return nil
}

func (w *NotificationWorker) handleStockLow(ctx context.Context, event *models.StockLowEvent) error {
	done, err := w.dedupe(ctx, event.EventID, event.EventType)
	if err != nil || done {
		return err
	}
	if err := w.notifier.SendLowStockAlert(ctx, event); err != nil {
		util.NotificationsFailedTotal.Inc()
		log.Printf("Failed to send low stock alert for product %d: %v", event.ProductID, err)
	}
	return nil
}
