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

// TransferStore persists bank-transfer claims. State moves strictly
// pending -> submitted -> verified|rejected; every transition is a
// conditional write on the current status.
type TransferStore struct {
	db *pgxpool.Pool
}

// NewTransferStore creates a new bank-transfer repository
func NewTransferStore(db *pgxpool.Pool) *TransferStore {
	return &TransferStore{db: db}
}

const transferColumns = `
	id, reference_number, order_id, amount, bank_name, account_name,
	account_number, transfer_date, proof_of_payment_url, status, verified,
	verified_by, verified_at, verification_notes, rejection_reason,
	created_at, updated_at
`

func scanTransfer(row pgx.Row) (*models.BankTransfer, error) {
	var t models.BankTransfer
	err := row.Scan(
		&t.ID, &t.ReferenceNumber, &t.OrderID, &t.Amount, &t.BankName, &t.AccountName,
		&t.AccountNumber, &t.TransferDate, &t.ProofOfPaymentURL, &t.Status, &t.Verified,
		&t.VerifiedBy, &t.VerifiedAt, &t.VerificationNotes, &t.RejectionReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}
	return &t, nil
}

// Create inserts a new pending claim
func (s *TransferStore) Create(ctx context.Context, t *models.BankTransfer) error {
	insertSQL := `
		INSERT INTO bank_transfers (reference_number, order_id, amount, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRow(ctx, insertSQL,
		t.ReferenceNumber,
		t.OrderID,
		t.Amount,
		t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert transfer: %w", err)
	}
	return nil
}

// GetByReference fetches a claim by its reference number
func (s *TransferStore) GetByReference(ctx context.Context, reference string) (*models.BankTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM bank_transfers WHERE reference_number = $1`
	return scanTransfer(s.db.QueryRow(ctx, query, reference))
}

// GetByID fetches a claim by its internal id
func (s *TransferStore) GetByID(ctx context.Context, id int64) (*models.BankTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM bank_transfers WHERE id = $1`
	return scanTransfer(s.db.QueryRow(ctx, query, id))
}

// LatestByOrderID fetches the most recent claim for an order
func (s *TransferStore) LatestByOrderID(ctx context.Context, orderID int64) (*models.BankTransfer, error) {
	query := `SELECT ` + transferColumns + ` FROM bank_transfers WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`
	return scanTransfer(s.db.QueryRow(ctx, query, orderID))
}

// ProofParams carries the customer's proof-of-payment submission
type ProofParams struct {
	BankName      string
	AccountName   string
	AccountNumber string
	TransferDate  time.Time
	ProofURL      string
}

// SubmitProof applies pending -> submitted. Returns false when the claim is
// no longer pending.
func (s *TransferStore) SubmitProof(ctx context.Context, reference string, p ProofParams) (bool, error) {
	updateSQL := `
		UPDATE bank_transfers
		SET status = 'submitted',
		    bank_name = $1,
		    account_name = $2,
		    account_number = $3,
		    transfer_date = $4,
		    proof_of_payment_url = $5,
		    updated_at = NOW()
		WHERE reference_number = $6 AND status = 'pending'
	`

	result, err := s.db.Exec(ctx, updateSQL,
		p.BankName, p.AccountName, p.AccountNumber, p.TransferDate, p.ProofURL, reference,
	)
	if err != nil {
		return false, fmt.Errorf("failed to submit proof: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Verify applies submitted -> verified as one atomic unit together with the
// order compare-and-set and the receipt insert. Returns false without any
// write when the claim is not in submitted state.
func (s *TransferStore) Verify(ctx context.Context, transferID, adminID int64, notes string, receipt *models.PaymentReceipt) (CompleteResult, error) {
	var res CompleteResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updateSQL := `
		UPDATE bank_transfers
		SET status = 'verified',
		    verified = TRUE,
		    verified_by = $1,
		    verified_at = NOW(),
		    verification_notes = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE id = $3 AND status = 'submitted'
		RETURNING order_id
	`

	var orderID int64
	err = tx.QueryRow(ctx, updateSQL, adminID, notes, transferID).Scan(&orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return res, nil
		}
		return CompleteResult{}, fmt.Errorf("failed to verify transfer: %w", err)
	}
	res.Applied = true

	paid, err := markOrderPaidTx(ctx, tx, orderID)
	if err != nil {
		return CompleteResult{}, fmt.Errorf("failed to mark order paid: %w", err)
	}
	res.OrderPaid = paid

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

// Reject applies submitted -> rejected with the administrator's reason. The
// linked order is left untouched so the customer can raise a fresh claim.
func (s *TransferStore) Reject(ctx context.Context, transferID, adminID int64, reason string) (bool, error) {
	updateSQL := `
		UPDATE bank_transfers
		SET status = 'rejected',
		    verified = FALSE,
		    verified_by = $1,
		    verified_at = NOW(),
		    rejection_reason = $2,
		    updated_at = NOW()
		WHERE id = $3 AND status = 'submitted'
	`

	result, err := s.db.Exec(ctx, updateSQL, adminID, reason, transferID)
	if err != nil {
		return false, fmt.Errorf("failed to reject transfer: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
