package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/store"
)

// TransactionStatus summarizes the latest mobile-money attempt for an order
type TransactionStatus struct {
	CheckoutRequestID  string             `json:"checkout_request_id"`
	Status             models.MpesaStatus `json:"status"`
	ResultDescription  string             `json:"result_description,omitempty"`
	MpesaReceiptNumber string             `json:"mpesa_receipt_number,omitempty"`
}

// TransferStatus summarizes the latest bank-transfer claim for an order
type TransferStatus struct {
	ReferenceNumber string                `json:"reference_number"`
	Status          models.TransferStatus `json:"status"`
	RejectionReason string                `json:"rejection_reason,omitempty"`
}

// OrderPaymentStatus is the payment view of one order
type OrderPaymentStatus struct {
	OrderNumber     string                `json:"order_number"`
	PaymentStatus   models.PaymentStatus  `json:"payment_status"`
	PaymentMethod   models.PaymentMethod  `json:"payment_method"`
	Total           decimal.Decimal       `json:"total"`
	Balance         decimal.Decimal       `json:"balance"`
	LatestMpesa     *TransactionStatus    `json:"latest_mpesa,omitempty"`
	LatestTransfer  *TransferStatus       `json:"latest_bank_transfer,omitempty"`
}

// PaymentStatus reports the payment state of an order together with its
// most recent mobile-money and bank-transfer attempts.
func (s *Service) PaymentStatus(ctx context.Context, orderNumber string) (*OrderPaymentStatus, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	out := &OrderPaymentStatus{
		OrderNumber:   order.OrderNumber,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Total:         order.Total,
		Balance:       order.Balance,
	}

	txn, err := s.transactions.LatestByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if txn != nil {
		ts := &TransactionStatus{
			CheckoutRequestID: txn.CheckoutRequestID,
			Status:            txn.Status,
		}
		if txn.ResultDescription != nil {
			ts.ResultDescription = *txn.ResultDescription
		}
		if txn.MpesaReceiptNumber != nil {
			ts.MpesaReceiptNumber = *txn.MpesaReceiptNumber
		}
		out.LatestMpesa = ts
	}

	transfer, err := s.transfers.LatestByOrderID(ctx, order.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if transfer != nil {
		bs := &TransferStatus{
			ReferenceNumber: transfer.ReferenceNumber,
			Status:          transfer.Status,
		}
		if transfer.RejectionReason != nil {
			bs.RejectionReason = *transfer.RejectionReason
		}
		out.LatestTransfer = bs
	}

	return out, nil
}
