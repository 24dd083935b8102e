// Package payment implements the mobile-money transaction tracker: STK push
// initiation, callback processing, status queries and the reconciliation
// sweep over stale pending pushes.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/daraja"
	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/store"
)

const defaultSweepBatchSize = int32(100)

type gatewayClient interface {
	STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference, description string) (*daraja.STKPushResponse, []byte, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*daraja.QueryResult, error)
}

type orderStore interface {
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
}

type transactionStore interface {
	Create(ctx context.Context, t *models.MpesaTransaction) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error)
	LatestByOrderID(ctx context.Context, orderID int64) (*models.MpesaTransaction, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*models.MpesaTransaction, error)
	MarkOutcome(ctx context.Context, checkoutRequestID string, status models.MpesaStatus, resultCode *int, description string, callbackPayload []byte) (bool, error)
	CompleteSuccess(ctx context.Context, checkoutRequestID string, params store.SuccessParams, receipt *models.PaymentReceipt) (store.CompleteResult, error)
}

type transferReader interface {
	LatestByOrderID(ctx context.Context, orderID int64) (*models.BankTransfer, error)
}

type receiptBuilder interface {
	Build(ctx context.Context, order *models.Order, kind models.PaymentType, transactionRef string, amount decimal.Decimal, paidAt time.Time) (*models.PaymentReceipt, error)
}

type receiptNotifier interface {
	EnqueueReceiptEmail(ctx context.Context, receiptNumber string) error
}

// Config tunes the tracker
type Config struct {
	// StaleAfter is how long a push may stay pending before the sweep
	// tries to resolve it
	StaleAfter time.Duration
	// SweepBatchSize caps one reconciliation batch
	SweepBatchSize int32
}

// Service is the mobile-money transaction tracker
type Service struct {
	gateway      gatewayClient
	orders       orderStore
	transactions transactionStore
	transfers    transferReader
	receipts     receiptBuilder
	notifier     receiptNotifier
	cfg          Config
	now          func() time.Time
}

// NewService creates the tracker service
func NewService(gateway gatewayClient, orders orderStore, transactions transactionStore, transfers transferReader, receipts receiptBuilder, notifier receiptNotifier, cfg Config) *Service {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = defaultSweepBatchSize
	}
	return &Service{
		gateway:      gateway,
		orders:       orders,
		transactions: transactions,
		transfers:    transfers,
		receipts:     receipts,
		notifier:     notifier,
		cfg:          cfg,
		now:          time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// InitiateResult is returned to the HTTP layer after a push attempt
type InitiateResult struct {
	TransactionID     uuid.UUID       `json:"transaction_id"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	Accepted          bool            `json:"accepted"`
	Status            string          `json:"status"`
	CustomerMessage   string          `json:"customer_message"`
	Phone             string          `json:"phone"`
	Amount            decimal.Decimal `json:"amount"`
}

// InitiateSTKPush sends a push prompt for an order. One transaction row is
// written per provider response, accepted or rejected; a network-level
// failure writes nothing and surfaces ErrGatewayUnavailable.
func (s *Service) InitiateSTKPush(ctx context.Context, orderNumber, phone string, amount decimal.Decimal) (*InitiateResult, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	normalized, err := daraja.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	resp, raw, err := s.gateway.STKPush(ctx, normalized, amount, order.OrderNumber, "E-bike purchase "+order.OrderNumber)
	if err != nil {
		return nil, err
	}

	status := models.MpesaPending
	if !resp.Accepted() {
		status = models.MpesaFailed
	}

	desc := resp.ResponseDescription
	txn := &models.MpesaTransaction{
		InternalID:        uuid.New(),
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		OrderID:           &order.ID,
		PhoneNumber:       normalized,
		Amount:            amount,
		PushSent:          true,
		PushResponse:      raw,
		Status:            status,
		ResultDescription: &desc,
	}

	if err := s.transactions.Create(ctx, txn); err != nil {
		return nil, err
	}

	log.Printf("STK push recorded: checkout_request_id=%s order=%s status=%s", resp.CheckoutRequestID, order.OrderNumber, status)

	message := resp.CustomerMessage
	if message == "" {
		message = resp.ResponseDescription
	}

	return &InitiateResult{
		TransactionID:     txn.InternalID,
		CheckoutRequestID: resp.CheckoutRequestID,
		Accepted:          resp.Accepted(),
		Status:            string(status),
		CustomerMessage:   message,
		Phone:             normalized,
		Amount:            amount,
	}, nil
}

// ProcessCallback applies one provider callback. Returns applied=false for
// duplicate deliveries against an already-terminal transaction, which the
// provider-facing layer still acknowledges as success.
func (s *Service) ProcessCallback(ctx context.Context, payload []byte) (bool, error) {
	cb, err := daraja.ParseCallback(payload)
	if err != nil {
		return false, err
	}

	stk := cb.Body.StkCallback

	txn, err := s.transactions.GetByCheckoutRequestID(ctx, stk.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("%w: checkout_request_id=%s", ErrUnknownTransaction, stk.CheckoutRequestID)
		}
		return false, err
	}

	if txn.Status.Terminal() {
		log.Printf("Callback for terminal transaction %s (status=%s), ignoring", stk.CheckoutRequestID, txn.Status)
		return false, nil
	}

	resultCode := stk.ResultCode

	switch daraja.ClassifyResultCode(resultCode) {
	case daraja.QuerySuccess:
		return s.applySuccess(ctx, txn, resultCode, stk.ResultDesc, cb.Meta(), payload)

	case daraja.QueryCancelled:
		return s.applyOutcome(ctx, txn, models.MpesaCancelled, resultCode, stk.ResultDesc, payload)

	default:
		// Every non-zero callback code that is not a cancellation reports a
		// failed payment.
		return s.applyOutcome(ctx, txn, models.MpesaFailed, resultCode, stk.ResultDesc, payload)
	}
}

// applySuccess runs the atomic success transition and queues the receipt
// notification. Notification failures are logged, never propagated: payment
// confirmation is the source of truth.
func (s *Service) applySuccess(ctx context.Context, txn *models.MpesaTransaction, resultCode int, description string, meta daraja.CallbackMeta, payload []byte) (bool, error) {
	var rcpt *models.PaymentReceipt

	if txn.OrderID != nil {
		order, err := s.orders.GetByID(ctx, *txn.OrderID)
		if err != nil {
			return false, fmt.Errorf("failed to load order for receipt: %w", err)
		}

		amount := txn.Amount
		if !meta.Amount.IsZero() {
			amount = meta.Amount
		}
		paidAt := s.now()
		if meta.TransactionDate != nil {
			paidAt = *meta.TransactionDate
		}

		rcpt, err = s.receipts.Build(ctx, order, models.PaymentTypeMpesa, txn.CheckoutRequestID, amount, paidAt)
		if err != nil {
			return false, fmt.Errorf("failed to build receipt: %w", err)
		}
	} else {
		log.Printf("Transaction %s has no linked order; skipping order update and receipt", txn.CheckoutRequestID)
	}

	params := store.SuccessParams{
		ResultCode:      resultCode,
		Description:     description,
		TransactionDate: meta.TransactionDate,
		CallbackPayload: payload,
	}
	if meta.ReceiptNumber != "" {
		params.ReceiptNumber = &meta.ReceiptNumber
	}

	res, err := s.transactions.CompleteSuccess(ctx, txn.CheckoutRequestID, params, rcpt)
	if err != nil {
		return false, err
	}
	if !res.Applied {
		log.Printf("Success for %s raced with another terminal write, ignoring", txn.CheckoutRequestID)
		return false, nil
	}

	if txn.OrderID != nil && !res.OrderPaid {
		log.Printf("Order %d was already paid when transaction %s succeeded", *txn.OrderID, txn.CheckoutRequestID)
	}

	if rcpt != nil {
		if err := s.notifier.EnqueueReceiptEmail(ctx, rcpt.ReceiptNumber); err != nil {
			log.Printf("Failed to queue receipt email for %s: %v", rcpt.ReceiptNumber, err)
		}
	}

	log.Printf("Transaction %s completed: success", txn.CheckoutRequestID)
	return true, nil
}

func (s *Service) applyOutcome(ctx context.Context, txn *models.MpesaTransaction, status models.MpesaStatus, resultCode int, description string, payload []byte) (bool, error) {
	if !models.IsValidMpesaTransition(txn.Status, status) {
		log.Printf("Transition %s -> %s not allowed for %s, ignoring", txn.Status, status, txn.CheckoutRequestID)
		return false, nil
	}

	applied, err := s.transactions.MarkOutcome(ctx, txn.CheckoutRequestID, status, &resultCode, description, payload)
	if err != nil {
		return false, err
	}
	if !applied {
		log.Printf("Outcome %s for %s raced with another terminal write, ignoring", status, txn.CheckoutRequestID)
		return false, nil
	}

	log.Printf("Transaction %s updated to status: %s (code %d)", txn.CheckoutRequestID, status, resultCode)
	return true, nil
}
