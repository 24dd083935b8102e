package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MpesaStatus represents the lifecycle of one STK push attempt
type MpesaStatus string

const (
	MpesaInitiated MpesaStatus = "initiated"
	MpesaPending   MpesaStatus = "pending"
	MpesaSuccess   MpesaStatus = "success"
	MpesaFailed    MpesaStatus = "failed"
	MpesaCancelled MpesaStatus = "cancelled"
	MpesaTimeout   MpesaStatus = "timeout"
)

// Terminal reports whether no further automatic transition is allowed.
// Timeout is not terminal: a late callback or status query still carries
// the authoritative outcome for a timed-out push.
func (s MpesaStatus) Terminal() bool {
	switch s {
	case MpesaSuccess, MpesaFailed, MpesaCancelled:
		return true
	}
	return false
}

// IsValidMpesaTransition checks if a status transition is allowed
func IsValidMpesaTransition(from, to MpesaStatus) bool {
	validTransitions := map[MpesaStatus][]MpesaStatus{
		MpesaInitiated: {MpesaPending, MpesaFailed},
		MpesaPending:   {MpesaSuccess, MpesaFailed, MpesaCancelled, MpesaTimeout},
		MpesaTimeout:   {MpesaSuccess, MpesaFailed, MpesaCancelled},
		// No transitions allowed from terminal states
		MpesaSuccess:   {},
		MpesaFailed:    {},
		MpesaCancelled: {},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return false
	}

	for _, validTo := range allowed {
		if validTo == to {
			return true
		}
	}

	return false
}

// MpesaTransaction is one STK push attempt, keyed by the provider-issued
// CheckoutRequestID. Rows are never deleted; they form the audit trail.
type MpesaTransaction struct {
	ID                 int64           `db:"id"`
	InternalID         uuid.UUID       `db:"internal_id"`
	CheckoutRequestID  string          `db:"checkout_request_id"`
	MerchantRequestID  string          `db:"merchant_request_id"`
	OrderID            *int64          `db:"order_id"`
	PhoneNumber        string          `db:"phone_number"`
	Amount             decimal.Decimal `db:"amount"`
	PushSent           bool            `db:"push_sent"`
	PushResponse       []byte          `db:"push_response"` // JSONB
	CallbackReceived   bool            `db:"callback_received"`
	CallbackPayload    []byte          `db:"callback_payload"` // JSONB
	Status             MpesaStatus     `db:"status"`
	ResultCode         *int            `db:"result_code"`
	ResultDescription  *string         `db:"result_description"`
	MpesaReceiptNumber *string         `db:"mpesa_receipt_number"`
	TransactionDate    *time.Time      `db:"transaction_date"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}
