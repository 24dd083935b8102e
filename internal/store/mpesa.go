package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltcycle/payments/internal/models"
)

// MpesaStore persists STK push attempts. Rows are never deleted; every
// terminal write is conditional on the row still being non-terminal, which
// makes duplicate callbacks and callback/query races single-winner.
type MpesaStore struct {
	db *pgxpool.Pool
}

// NewMpesaStore creates a new mobile-money transaction repository
func NewMpesaStore(db *pgxpool.Pool) *MpesaStore {
	return &MpesaStore{db: db}
}

const mpesaColumns = `
	id, internal_id, checkout_request_id, merchant_request_id, order_id, phone_number,
	amount, push_sent, push_response, callback_received, callback_payload,
	status, result_code, result_description, mpesa_receipt_number,
	transaction_date, created_at, updated_at
`

func scanMpesa(row pgx.Row) (*models.MpesaTransaction, error) {
	var t models.MpesaTransaction
	err := row.Scan(
		&t.ID, &t.InternalID, &t.CheckoutRequestID, &t.MerchantRequestID, &t.OrderID, &t.PhoneNumber,
		&t.Amount, &t.PushSent, &t.PushResponse, &t.CallbackReceived, &t.CallbackPayload,
		&t.Status, &t.ResultCode, &t.ResultDescription, &t.MpesaReceiptNumber,
		&t.TransactionDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

// Create inserts a new transaction once a push response (acceptance or
// business rejection) has been received from the provider.
func (s *MpesaStore) Create(ctx context.Context, t *models.MpesaTransaction) error {
	insertSQL := `
		INSERT INTO mpesa_transactions (
			internal_id, checkout_request_id, merchant_request_id, order_id, phone_number,
			amount, push_sent, push_response, status, result_description
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, insertSQL,
		t.InternalID,
		t.CheckoutRequestID,
		t.MerchantRequestID,
		t.OrderID,
		t.PhoneNumber,
		t.Amount,
		t.PushSent,
		t.PushResponse,
		t.Status,
		t.ResultDescription,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetByCheckoutRequestID fetches a transaction by the provider's correlation key
func (s *MpesaStore) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.MpesaTransaction, error) {
	query := `SELECT ` + mpesaColumns + ` FROM mpesa_transactions WHERE checkout_request_id = $1`
	return scanMpesa(s.db.QueryRow(ctx, query, checkoutRequestID))
}

// LatestByOrderID fetches the most recent transaction for an order
func (s *MpesaStore) LatestByOrderID(ctx context.Context, orderID int64) (*models.MpesaTransaction, error) {
	query := `SELECT ` + mpesaColumns + ` FROM mpesa_transactions WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanMpesa(s.db.QueryRow(ctx, query, orderID))
}

// ListStalePending returns pending transactions created before the cutoff,
// for the reconciliation sweep.
func (s *MpesaStore) ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*models.MpesaTransaction, error) {
	query := `
		SELECT ` + mpesaColumns + `
		FROM mpesa_transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale transactions: %w", err)
	}
	defer rows.Close()

	var items []*models.MpesaTransaction
	for rows.Next() {
		t, err := scanMpesa(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}

	return items, rows.Err()
}

// MarkOutcome applies a non-success outcome (failed, cancelled, timeout) as
// a single conditional write. Returns false when the row was already
// terminal, which callers treat as a duplicate-delivery no-op.
func (s *MpesaStore) MarkOutcome(ctx context.Context, checkoutRequestID string, status models.MpesaStatus, resultCode *int, description string, callbackPayload []byte) (bool, error) {
	updateSQL := `
		UPDATE mpesa_transactions
		SET status = $1,
		    result_code = $2,
		    result_description = $3,
		    callback_received = CASE WHEN $4::jsonb IS NOT NULL THEN TRUE ELSE callback_received END,
		    callback_payload = COALESCE($4, callback_payload),
		    updated_at = NOW()
		WHERE checkout_request_id = $5 AND status IN ` + nonTerminalStatuses + `
	`

	result, err := s.db.Exec(ctx, updateSQL, status, resultCode, description, callbackPayload, checkoutRequestID)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// SuccessParams carries the provider metadata applied on the success transition
type SuccessParams struct {
	ResultCode      int
	Description     string
	ReceiptNumber   *string
	TransactionDate *time.Time
	CallbackPayload []byte
}

// CompleteResult reports what the atomic success transition changed
type CompleteResult struct {
	// Applied is false when the transaction was already terminal
	Applied bool
	// OrderPaid is false when no order is linked or another payment path
	// already marked the order paid
	OrderPaid bool
}

// CompleteSuccess applies the success transition as one atomic unit:
// conditional transaction update, order payment-status compare-and-set and
// receipt insert. receipt may be nil when the transaction has no linked
// order yet.
func (s *MpesaStore) CompleteSuccess(ctx context.Context, checkoutRequestID string, params SuccessParams, receipt *models.PaymentReceipt) (CompleteResult, error) {
	var res CompleteResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
		UPDATE mpesa_transactions
		SET status = 'success',
		    result_code = $1,
		    result_description = $2,
		    mpesa_receipt_number = COALESCE($3, mpesa_receipt_number),
		    transaction_date = COALESCE($4, transaction_date),
		    callback_received = CASE WHEN $5::jsonb IS NOT NULL THEN TRUE ELSE callback_received END,
		    callback_payload = COALESCE($5, callback_payload),
		    updated_at = NOW()
		WHERE checkout_request_id = $6 AND status IN ` + nonTerminalStatuses + `
		RETURNING order_id
	`

	var orderID *int64
	err = tx.QueryRow(ctx, updateSQL,
		params.ResultCode,
		params.Description,
		params.ReceiptNumber,
		params.TransactionDate,
		params.CallbackPayload,
		checkoutRequestID,
	).Scan(&orderID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// already terminal, nothing to apply
			return res, nil
		}
		return CompleteResult{}, fmt.Errorf("failed to update transaction: %w", err)
	}
	res.Applied = true

	if orderID != nil {
		paid, err := markOrderPaidTx(ctx, tx, *orderID)
		if err != nil {
			return CompleteResult{}, fmt.Errorf("failed to mark order paid: %w", err)
		}
		res.OrderPaid = paid
	}

	if receipt != nil {
		if err := insertReceiptTx(ctx, tx, receipt); err != nil {
			return CompleteResult{}, fmt.Errorf("failed to insert receipt: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CompleteResult{}, fmt.Errorf("failed to commit: %w", err)
	}

	return res, nil
}
