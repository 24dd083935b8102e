// Package worker processes the background tasks behind the payment core:
// provider callbacks, receipt email delivery and the reconciliation sweep.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/notify"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/queue"
	"github.com/voltcycle/payments/internal/store"
)

type paymentService interface {
	ProcessCallback(ctx context.Context, payload []byte) (bool, error)
	ReconcileStale(ctx context.Context) error
}

type receiptStore interface {
	GetByNumber(ctx context.Context, receiptNumber string) (*models.PaymentReceipt, error)
	MarkEmailResult(ctx context.Context, receiptNumber string, sent bool) error
}

type orderGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Order, error)
}

// Processor handles background task processing
type Processor struct {
	payments paymentService
	receipts receiptStore
	orders   orderGetter
	mailer   notify.Mailer
}

// NewProcessor creates a worker processor
func NewProcessor(payments paymentService, receipts receiptStore, orders orderGetter, mailer notify.Mailer) *Processor {
	return &Processor{
		payments: payments,
		receipts: receipts,
		orders:   orders,
		mailer:   mailer,
	}
}

// Register wires the processor's handlers onto the task mux
func (p *Processor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeProcessCallback, p.ProcessCallback)
	mux.HandleFunc(queue.TypeReceiptEmail, p.ProcessReceiptEmail)
	mux.HandleFunc(queue.TypeReconcileSweep, p.ProcessReconcileSweep)
}

// ProcessCallback applies one queued provider callback. Unknown
// transactions are logged and dropped rather than retried: redelivery will
// not make the checkout-request-id appear.
func (p *Processor) ProcessCallback(ctx context.Context, t *asynq.Task) error {
	applied, err := p.payments.ProcessCallback(ctx, t.Payload())
	if err != nil {
		if errors.Is(err, payment.ErrUnknownTransaction) {
			log.Printf("Dropping callback: %v", err)
			return nil
		}
		return err
	}

	if !applied {
		log.Println("Callback was a duplicate or lost a terminal-write race; nothing applied")
	}
	return nil
}

// ProcessReceiptEmail delivers one receipt notification and records the
// attempt on the receipt row. Failures are retried by the queue; the
// receipt itself exists regardless.
func (p *Processor) ProcessReceiptEmail(ctx context.Context, t *asynq.Task) error {
	var payload queue.ReceiptEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal receipt email payload: %w", err)
	}

	rcpt, err := p.receipts.GetByNumber(ctx, payload.ReceiptNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("Receipt %s no longer on file, dropping email task", payload.ReceiptNumber)
			return nil
		}
		return err
	}

	if rcpt.EmailSent {
		return nil
	}

	order, err := p.orders.GetByID(ctx, rcpt.OrderID)
	if err != nil {
		return fmt.Errorf("failed to load order %d for receipt email: %w", rcpt.OrderID, err)
	}

	subject, body := notify.ReceiptEmail(order, rcpt, rcpt.Amount)
	if sendErr := p.mailer.Send(ctx, order.CustomerEmail, order.CustomerName, subject, body); sendErr != nil {
		if err := p.receipts.MarkEmailResult(ctx, rcpt.ReceiptNumber, false); err != nil {
			log.Printf("Failed to record email attempt for %s: %v", rcpt.ReceiptNumber, err)
		}
		return sendErr
	}

	if err := p.receipts.MarkEmailResult(ctx, rcpt.ReceiptNumber, true); err != nil {
		log.Printf("Failed to record email delivery for %s: %v", rcpt.ReceiptNumber, err)
	}

	log.Printf("Receipt email delivered: %s -> %s", rcpt.ReceiptNumber, order.CustomerEmail)
	return nil
}

// ProcessReconcileSweep runs one reconciliation batch
func (p *Processor) ProcessReconcileSweep(ctx context.Context, _ *asynq.Task) error {
	return p.payments.ReconcileStale(ctx)
}
