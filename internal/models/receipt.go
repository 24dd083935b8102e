package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType discriminates the payment flow that produced a receipt
type PaymentType string

const (
	PaymentTypeMpesa        PaymentType = "mpesa"
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
)

// NewReceiptNumber builds a receipt number prefixed by the payment type,
// e.g. MPESA-1700000000123.
func NewReceiptNumber(kind PaymentType, orderID int64, at time.Time) string {
	prefix := "MPESA"
	if kind == PaymentTypeBankTransfer {
		prefix = "BANK"
	}
	return fmt.Sprintf("%s-%d%d", strings.ToUpper(prefix), at.Unix(), orderID)
}

// PaymentReceipt is the immutable record created when a transaction reaches
// a successful terminal state. Only the email bookkeeping fields are ever
// updated after creation. At most one receipt exists per transaction
// reference (unique index on transaction_ref).
type PaymentReceipt struct {
	ID             int64           `db:"id"`
	ReceiptNumber  string          `db:"receipt_number"`
	OrderID        int64           `db:"order_id"`
	PaymentType    PaymentType     `db:"payment_type"`
	TransactionRef string          `db:"transaction_ref"`
	Amount         decimal.Decimal `db:"amount"`
	PaymentDate    time.Time       `db:"payment_date"`
	Snapshot       []byte          `db:"snapshot"` // JSONB, order+items+payment event
	EmailSent      bool            `db:"email_sent"`
	EmailSentAt    *time.Time      `db:"email_sent_at"`
	EmailAttempts  int             `db:"email_attempts"`
	CreatedAt      time.Time       `db:"created_at"`
}
