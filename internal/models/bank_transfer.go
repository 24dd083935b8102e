package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus represents the lifecycle of a bank-transfer claim
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferSubmitted TransferStatus = "submitted"
	TransferVerified  TransferStatus = "verified"
	TransferRejected  TransferStatus = "rejected"
)

// Terminal reports whether the transfer has been reviewed. A rejected
// reference is never reused; a retry requires a fresh claim.
func (s TransferStatus) Terminal() bool {
	return s == TransferVerified || s == TransferRejected
}

// NewTransferReference builds the externally visible reference number for a
// bank-transfer claim from the creation time and order id.
func NewTransferReference(orderID int64, at time.Time) string {
	return fmt.Sprintf("BT%d%d", at.Unix(), orderID)
}

// BankTransfer is one bank-transfer claim, keyed by its reference number.
type BankTransfer struct {
	ID                int64           `db:"id"`
	ReferenceNumber   string          `db:"reference_number"`
	OrderID           int64           `db:"order_id"`
	Amount            decimal.Decimal `db:"amount"`
	BankName          *string         `db:"bank_name"`
	AccountName       *string         `db:"account_name"`
	AccountNumber     *string         `db:"account_number"`
	TransferDate      *time.Time      `db:"transfer_date"`
	ProofOfPaymentURL *string         `db:"proof_of_payment_url"`
	Status            TransferStatus  `db:"status"`
	Verified          bool            `db:"verified"`
	VerifiedBy        *int64          `db:"verified_by"`
	VerifiedAt        *time.Time      `db:"verified_at"`
	VerificationNotes *string         `db:"verification_notes"`
	RejectionReason   *string         `db:"rejection_reason"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}
