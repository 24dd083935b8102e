package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltcycle/payments/internal/models"
)

// ReceiptStore reads receipts and maintains their email-delivery
// bookkeeping. Receipts are inserted only inside the success transitions
// (see MpesaStore.CompleteSuccess and TransferStore.Verify) and are never
// mutated otherwise.
type ReceiptStore struct {
	db *pgxpool.Pool
}

// NewReceiptStore creates a new receipt repository
func NewReceiptStore(db *pgxpool.Pool) *ReceiptStore {
	return &ReceiptStore{db: db}
}

const receiptColumns = `
	id, receipt_number, order_id, payment_type, transaction_ref, amount,
	payment_date, snapshot, email_sent, email_sent_at, email_attempts, created_at
`

func scanReceipt(row pgx.Row) (*models.PaymentReceipt, error) {
	var r models.PaymentReceipt
	err := row.Scan(
		&r.ID, &r.ReceiptNumber, &r.OrderID, &r.PaymentType, &r.TransactionRef, &r.Amount,
		&r.PaymentDate, &r.Snapshot, &r.EmailSent, &r.EmailSentAt, &r.EmailAttempts, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}
	return &r, nil
}

// GetByNumber fetches a receipt by its receipt number
func (s *ReceiptStore) GetByNumber(ctx context.Context, receiptNumber string) (*models.PaymentReceipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM payment_receipts WHERE receipt_number = $1`
	return scanReceipt(s.db.QueryRow(ctx, query, receiptNumber))
}

// MarkEmailResult records one delivery attempt on the receipt row
func (s *ReceiptStore) MarkEmailResult(ctx context.Context, receiptNumber string, sent bool) error {
	updateSQL := `
		UPDATE payment_receipts
		SET email_sent = $1,
		    email_sent_at = CASE WHEN $1 THEN NOW() ELSE email_sent_at END,
		    email_attempts = email_attempts + 1
		WHERE receipt_number = $2
	`

	_, err := s.db.Exec(ctx, updateSQL, sent, receiptNumber)
	if err != nil {
		return fmt.Errorf("failed to record email result: %w", err)
	}
	return nil
}
