// Package store holds the pgx repositories for the payment core's four
// tables: orders (payment fields only), mpesa_transactions, bank_transfers
// and payment_receipts. The multi-table success paths run in a single
// database transaction so a crash cannot leave a successful payment paired
// with an unpaid order.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/voltcycle/payments/internal/models"
)

// ErrNotFound is returned when a row is missing by its unique key
var ErrNotFound = errors.New("store: not found")

// nonTerminalStatuses is the condition set for terminal writes. Timeout is
// included: a late callback still carries the authoritative outcome for a
// timed-out push.
const nonTerminalStatuses = `('initiated', 'pending', 'timeout')`

// insertReceiptTx persists a receipt inside an open transaction. The unique
// index on transaction_ref makes generation idempotent: a second insert for
// the same transaction is a no-op.
func insertReceiptTx(ctx context.Context, tx pgx.Tx, r *models.PaymentReceipt) error {
	insertSQL := `
		INSERT INTO payment_receipts (
			receipt_number, order_id, payment_type, transaction_ref,
			amount, payment_date, snapshot
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_ref) DO NOTHING
	`

	_, err := tx.Exec(ctx, insertSQL,
		r.ReceiptNumber,
		r.OrderID,
		r.PaymentType,
		r.TransactionRef,
		r.Amount,
		r.PaymentDate,
		r.Snapshot,
	)
	return err
}

// markOrderPaidTx applies the compare-and-set payment-status write inside an
// open transaction. A false return means another payment path already marked
// the order paid; callers treat that as an expected, loggable condition.
func markOrderPaidTx(ctx context.Context, tx pgx.Tx, orderID int64) (bool, error) {
	updateSQL := `
		UPDATE orders
		SET payment_status = 'paid', updated_at = NOW()
		WHERE id = $1 AND payment_status <> 'paid'
	`

	result, err := tx.Exec(ctx, updateSQL, orderID)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}
