// Package transfer implements the bank-transfer tracker: claim creation,
// proof-of-payment submission and administrator verification.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/notify"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/store"
)

type orderStore interface {
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
}

type transferStore interface {
	Create(ctx context.Context, t *models.BankTransfer) error
	GetByReference(ctx context.Context, reference string) (*models.BankTransfer, error)
	GetByID(ctx context.Context, id int64) (*models.BankTransfer, error)
	SubmitProof(ctx context.Context, reference string, p store.ProofParams) (bool, error)
	Verify(ctx context.Context, transferID, adminID int64, notes string, receipt *models.PaymentReceipt) (store.CompleteResult, error)
	Reject(ctx context.Context, transferID, adminID int64, reason string) (bool, error)
}

type receiptBuilder interface {
	Build(ctx context.Context, order *models.Order, kind models.PaymentType, transactionRef string, amount decimal.Decimal, paidAt time.Time) (*models.PaymentReceipt, error)
}

type receiptNotifier interface {
	EnqueueReceiptEmail(ctx context.Context, receiptNumber string) error
}

// Service is the bank-transfer tracker
type Service struct {
	transfers transferStore
	orders    orderStore
	receipts  receiptBuilder
	notifier  receiptNotifier
	mailer    notify.Mailer
	opsEmail  string
	now       func() time.Time
}

// NewService creates the tracker service. opsEmail receives the
// proof-submitted alerts for operations staff.
func NewService(transfers transferStore, orders orderStore, receipts receiptBuilder, notifier receiptNotifier, mailer notify.Mailer, opsEmail string) *Service {
	return &Service{
		transfers: transfers,
		orders:    orders,
		receipts:  receipts,
		notifier:  notifier,
		mailer:    mailer,
		opsEmail:  opsEmail,
		now:       time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Initiate creates a pending claim for an order and emails the customer the
// transfer details. A rejected claim is retried by calling Initiate again:
// reference numbers are never reused.
func (s *Service) Initiate(ctx context.Context, orderNumber string, amount decimal.Decimal) (*models.BankTransfer, error) {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, payment.ErrOrderNotFound
		}
		return nil, err
	}

	t := &models.BankTransfer{
		ReferenceNumber: models.NewTransferReference(order.ID, s.now()),
		OrderID:         order.ID,
		Amount:          amount,
		Status:          models.TransferPending,
	}

	if err := s.transfers.Create(ctx, t); err != nil {
		return nil, err
	}

	log.Printf("Bank transfer initiated: reference=%s order=%s", t.ReferenceNumber, order.OrderNumber)

	subject, body := notify.BankTransferInstructions(order, t)
	s.sendMail(ctx, order.CustomerEmail, order.CustomerName, subject, body)

	return t, nil
}

// ProofSubmission carries the customer's claimed transfer details
type ProofSubmission struct {
	BankName      string
	AccountName   string
	AccountNumber string
	TransferDate  time.Time
	ProofURL      string
}

// SubmitProof moves a pending claim to submitted, confirms to the customer
// and alerts operations staff.
func (s *Service) SubmitProof(ctx context.Context, reference string, p ProofSubmission) (*models.BankTransfer, error) {
	t, err := s.transfers.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: reference=%s", ErrTransferNotFound, reference)
		}
		return nil, err
	}

	if t.Status != models.TransferPending {
		return nil, ErrAlreadySubmitted
	}

	applied, err := s.transfers.SubmitProof(ctx, reference, store.ProofParams{
		BankName:      p.BankName,
		AccountName:   p.AccountName,
		AccountNumber: p.AccountNumber,
		TransferDate:  p.TransferDate,
		ProofURL:      p.ProofURL,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadySubmitted
	}

	log.Printf("Proof of payment submitted: reference=%s", reference)

	t, err = s.transfers.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		log.Printf("Failed to load order %d for proof notifications: %v", t.OrderID, err)
		return t, nil
	}

	subject, body := notify.ProofReceived(order, t)
	s.sendMail(ctx, order.CustomerEmail, order.CustomerName, subject, body)

	if s.opsEmail != "" {
		subject, body = notify.OpsProofAlert(order, t)
		s.sendMail(ctx, s.opsEmail, "Operations", subject, body)
	}

	return t, nil
}

// Verify applies the administrator's decision on a submitted claim. A
// verified claim atomically marks the order paid and creates the receipt; a
// rejected claim requires a reason, leaves the order untouched and surfaces
// the reason to the customer.
func (s *Service) Verify(ctx context.Context, transferID int64, verified bool, notes string, adminID int64) (*models.BankTransfer, error) {
	t, err := s.transfers.GetByID(ctx, transferID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrTransferNotFound, transferID)
		}
		return nil, err
	}

	switch t.Status {
	case models.TransferSubmitted:
		// reviewable
	case models.TransferPending:
		return nil, ErrNotSubmitted
	default:
		return nil, ErrVerificationConflict
	}

	if verified {
		return s.applyVerified(ctx, t, notes, adminID)
	}
	return s.applyRejected(ctx, t, notes, adminID)
}

func (s *Service) applyVerified(ctx context.Context, t *models.BankTransfer, notes string, adminID int64) (*models.BankTransfer, error) {
	order, err := s.orders.GetByID(ctx, t.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order for verification: %w", err)
	}

	rcpt, err := s.receipts.Build(ctx, order, models.PaymentTypeBankTransfer, t.ReferenceNumber, t.Amount, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to build receipt: %w", err)
	}

	res, err := s.transfers.Verify(ctx, t.ID, adminID, notes, rcpt)
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		return nil, ErrVerificationConflict
	}
	if !res.OrderPaid {
		log.Printf("Order %d was already paid when transfer %s was verified", t.OrderID, t.ReferenceNumber)
	}

	log.Printf("Bank transfer verified: reference=%s by admin=%d", t.ReferenceNumber, adminID)

	if err := s.notifier.EnqueueReceiptEmail(ctx, rcpt.ReceiptNumber); err != nil {
		log.Printf("Failed to queue receipt email for %s: %v", rcpt.ReceiptNumber, err)
	}

	subject, body := notify.VerificationOutcome(order, t, true, "")
	s.sendMail(ctx, order.CustomerEmail, order.CustomerName, subject, body)

	return s.transfers.GetByID(ctx, t.ID)
}

func (s *Service) applyRejected(ctx context.Context, t *models.BankTransfer, reason string, adminID int64) (*models.BankTransfer, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrRejectionReasonRequired
	}

	applied, err := s.transfers.Reject(ctx, t.ID, adminID, reason)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrVerificationConflict
	}

	log.Printf("Bank transfer rejected: reference=%s by admin=%d reason=%q", t.ReferenceNumber, adminID, reason)

	if order, err := s.orders.GetByID(ctx, t.OrderID); err == nil {
		subject, body := notify.VerificationOutcome(order, t, false, reason)
		s.sendMail(ctx, order.CustomerEmail, order.CustomerName, subject, body)
	} else {
		log.Printf("Failed to load order %d for rejection notification: %v", t.OrderID, err)
	}

	return s.transfers.GetByID(ctx, t.ID)
}

// sendMail logs and swallows delivery failures: notification delivery never
// gates a payment-state transition.
func (s *Service) sendMail(ctx context.Context, toEmail, toName, subject, body string) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, toEmail, toName, subject, body); err != nil {
		log.Printf("Failed to send %q to %s: %v", subject, toEmail, err)
	}
}
