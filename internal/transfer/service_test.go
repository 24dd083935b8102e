package transfer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/models"
	"github.com/voltcycle/payments/internal/payment"
	"github.com/voltcycle/payments/internal/receipt"
	"github.com/voltcycle/payments/internal/store"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeOrders struct {
	orders map[string]*models.Order
	items  map[int64][]models.OrderItem
}

func (f *fakeOrders) GetByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	o, ok := f.orders[orderNumber]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeOrders) GetByID(_ context.Context, id int64) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeOrders) ListItems(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

type fakeTransferStore struct {
	byRef    map[string]*models.BankTransfer
	receipts map[string]*models.PaymentReceipt
	orders   *fakeOrders
	seq      int64
}

func (f *fakeTransferStore) Create(_ context.Context, t *models.BankTransfer) error {
	f.seq++
	t.ID = f.seq
	t.CreatedAt = testNow
	t.UpdatedAt = testNow
	f.byRef[t.ReferenceNumber] = t
	return nil
}

func (f *fakeTransferStore) GetByReference(_ context.Context, reference string) (*models.BankTransfer, error) {
	t, ok := f.byRef[reference]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTransferStore) GetByID(_ context.Context, id int64) (*models.BankTransfer, error) {
	for _, t := range f.byRef {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTransferStore) SubmitProof(_ context.Context, reference string, p store.ProofParams) (bool, error) {
	t, ok := f.byRef[reference]
	if !ok || t.Status != models.TransferPending {
		return false, nil
	}
	t.Status = models.TransferSubmitted
	t.BankName = &p.BankName
	t.AccountName = &p.AccountName
	t.AccountNumber = &p.AccountNumber
	t.TransferDate = &p.TransferDate
	t.ProofOfPaymentURL = &p.ProofURL
	return true, nil
}

func (f *fakeTransferStore) Verify(_ context.Context, transferID, adminID int64, notes string, rcpt *models.PaymentReceipt) (store.CompleteResult, error) {
	var target *models.BankTransfer
	for _, t := range f.byRef {
		if t.ID == transferID {
			target = t
		}
	}
	if target == nil || target.Status != models.TransferSubmitted {
		return store.CompleteResult{}, nil
	}

	target.Status = models.TransferVerified
	target.Verified = true
	target.VerifiedBy = &adminID
	at := testNow
	target.VerifiedAt = &at
	if notes != "" {
		target.VerificationNotes = &notes
	}

	res := store.CompleteResult{Applied: true}
	for _, o := range f.orders.orders {
		if o.ID == target.OrderID && o.PaymentStatus != models.PaymentPaid {
			o.PaymentStatus = models.PaymentPaid
			res.OrderPaid = true
		}
	}
	if rcpt != nil {
		if _, exists := f.receipts[rcpt.TransactionRef]; !exists {
			f.receipts[rcpt.TransactionRef] = rcpt
		}
	}
	return res, nil
}

func (f *fakeTransferStore) Reject(_ context.Context, transferID, adminID int64, reason string) (bool, error) {
	for _, t := range f.byRef {
		if t.ID != transferID {
			continue
		}
		if t.Status != models.TransferSubmitted {
			return false, nil
		}
		t.Status = models.TransferRejected
		t.VerifiedBy = &adminID
		t.RejectionReason = &reason
		return true, nil
	}
	return false, nil
}

type fakeNotifier struct {
	enqueued []string
}

func (f *fakeNotifier) EnqueueReceiptEmail(_ context.Context, receiptNumber string) error {
	f.enqueued = append(f.enqueued, receiptNumber)
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(_ context.Context, toEmail, _, subject, htmlContent string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: toEmail, subject: subject, body: htmlContent})
	return nil
}

type fixture struct {
	svc       *Service
	orders    *fakeOrders
	transfers *fakeTransferStore
	notifier  *fakeNotifier
	mailer    *fakeMailer
	now       time.Time
}

func newFixture() *fixture {
	orders := &fakeOrders{
		orders: map[string]*models.Order{
			"ORD-200": {
				ID:            2,
				OrderNumber:   "ORD-200",
				CustomerName:  "Otieno Odhiambo",
				CustomerEmail: "otieno@example.com",
				Total:         decimal.NewFromInt(320000),
				Balance:       decimal.NewFromInt(320000),
				PaymentStatus: models.PaymentPending,
				PaymentMethod: models.MethodBankTransfer,
			},
		},
		items: map[int64][]models.OrderItem{
			2: {{
				OrderID:   2,
				ItemName:  "Volt Trail Pro",
				Quantity:  1,
				UnitPrice: decimal.NewFromInt(320000),
				LineTotal: decimal.NewFromInt(320000),
			}},
		},
	}
	transfers := &fakeTransferStore{
		byRef:    map[string]*models.BankTransfer{},
		receipts: map[string]*models.PaymentReceipt{},
		orders:   orders,
	}
	notifier := &fakeNotifier{}
	mailer := &fakeMailer{}

	f := &fixture{orders: orders, transfers: transfers, notifier: notifier, mailer: mailer, now: testNow}
	rcpts := receipt.NewGenerator(orders).WithClock(func() time.Time { return f.now })
	f.svc = NewService(transfers, orders, rcpts, notifier, mailer, "ops@example.com").
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) initiate(t *testing.T) *models.BankTransfer {
	t.Helper()
	claim, err := f.svc.Initiate(context.Background(), "ORD-200", decimal.NewFromInt(320000))
	if err != nil {
		t.Fatalf("Initiate returned error: %v", err)
	}
	return claim
}

func (f *fixture) submitProof(t *testing.T, reference string) *models.BankTransfer {
	t.Helper()
	claim, err := f.svc.SubmitProof(context.Background(), reference, ProofSubmission{
		BankName:      "Equity Bank",
		AccountName:   "Otieno Odhiambo",
		AccountNumber: "0123456789",
		TransferDate:  testNow.Add(-24 * time.Hour),
		ProofURL:      "https://cdn.example.com/proof/slip.pdf",
	})
	if err != nil {
		t.Fatalf("SubmitProof returned error: %v", err)
	}
	return claim
}

func TestInitiateCreatesPendingClaim(t *testing.T) {
	f := newFixture()

	claim := f.initiate(t)
	if claim.Status != models.TransferPending {
		t.Errorf("status = %s, want pending", claim.Status)
	}
	if !strings.HasPrefix(claim.ReferenceNumber, "BT") {
		t.Errorf("reference = %q, want BT prefix", claim.ReferenceNumber)
	}
	if claim.OrderID != 2 {
		t.Errorf("order id = %d, want 2", claim.OrderID)
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1 instruction email", len(f.mailer.sent))
	}
	mail := f.mailer.sent[0]
	if mail.to != "otieno@example.com" {
		t.Errorf("instruction email went to %q", mail.to)
	}
	if !strings.Contains(mail.body, claim.ReferenceNumber) {
		t.Error("instruction email does not quote the transfer reference")
	}
}

func TestInitiateUnknownOrder(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Initiate(context.Background(), "ORD-999", decimal.NewFromInt(100))
	if !errors.Is(err, payment.ErrOrderNotFound) {
		t.Errorf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestInitiateMailFailureDoesNotFailTheClaim(t *testing.T) {
	f := newFixture()
	f.mailer.err = errors.New("smtp relay down")

	claim := f.initiate(t)
	if _, ok := f.transfers.byRef[claim.ReferenceNumber]; !ok {
		t.Error("claim must be persisted even when the email fails")
	}
}

func TestSubmitProofMovesToSubmitted(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.mailer.sent = nil

	updated := f.submitProof(t, claim.ReferenceNumber)
	if updated.Status != models.TransferSubmitted {
		t.Errorf("status = %s, want submitted", updated.Status)
	}
	if updated.ProofOfPaymentURL == nil || *updated.ProofOfPaymentURL == "" {
		t.Error("proof URL not recorded")
	}

	// Customer confirmation plus operations alert.
	if len(f.mailer.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(f.mailer.sent))
	}
	if f.mailer.sent[0].to != "otieno@example.com" {
		t.Errorf("first email went to %q, want customer", f.mailer.sent[0].to)
	}
	if f.mailer.sent[1].to != "ops@example.com" {
		t.Errorf("second email went to %q, want operations", f.mailer.sent[1].to)
	}
}

func TestSubmitProofUnknownReference(t *testing.T) {
	f := newFixture()

	_, err := f.svc.SubmitProof(context.Background(), "BT0000000", ProofSubmission{})
	if !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("error = %v, want ErrTransferNotFound", err)
	}
}

func TestSubmitProofTwice(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.submitProof(t, claim.ReferenceNumber)

	_, err := f.svc.SubmitProof(context.Background(), claim.ReferenceNumber, ProofSubmission{})
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("error = %v, want ErrAlreadySubmitted", err)
	}
}

func TestVerifyApprovedMarksOrderPaid(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.submitProof(t, claim.ReferenceNumber)
	f.mailer.sent = nil

	updated, err := f.svc.Verify(context.Background(), claim.ID, true, "slip matches ledger", 7)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if updated.Status != models.TransferVerified {
		t.Errorf("status = %s, want verified", updated.Status)
	}
	if updated.VerifiedBy == nil || *updated.VerifiedBy != 7 {
		t.Error("verifying admin not recorded")
	}

	if got := f.orders.orders["ORD-200"].PaymentStatus; got != models.PaymentPaid {
		t.Errorf("order payment status = %s, want paid", got)
	}

	rcpt, ok := f.transfers.receipts[claim.ReferenceNumber]
	if !ok {
		t.Fatal("no receipt created on verification")
	}
	if rcpt.PaymentType != models.PaymentTypeBankTransfer {
		t.Errorf("receipt payment type = %s, want bank_transfer", rcpt.PaymentType)
	}
	if !strings.HasPrefix(rcpt.ReceiptNumber, "BANK-") {
		t.Errorf("receipt number = %q, want BANK- prefix", rcpt.ReceiptNumber)
	}

	if len(f.notifier.enqueued) != 1 {
		t.Errorf("receipt emails enqueued = %d, want 1", len(f.notifier.enqueued))
	}
	if len(f.mailer.sent) != 1 || !strings.Contains(f.mailer.sent[0].subject, "Verified") {
		t.Error("customer not told the transfer was verified")
	}
}

func TestVerifyPendingClaim(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)

	_, err := f.svc.Verify(context.Background(), claim.ID, true, "", 7)
	if !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("error = %v, want ErrNotSubmitted", err)
	}
	if got := f.transfers.byRef[claim.ReferenceNumber].Status; got != models.TransferPending {
		t.Errorf("status = %s, a pending claim must stay pending", got)
	}
}

func TestVerifyRejectionRequiresReason(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.submitProof(t, claim.ReferenceNumber)

	_, err := f.svc.Verify(context.Background(), claim.ID, false, "   ", 7)
	if !errors.Is(err, ErrRejectionReasonRequired) {
		t.Errorf("error = %v, want ErrRejectionReasonRequired", err)
	}
	if got := f.transfers.byRef[claim.ReferenceNumber].Status; got != models.TransferSubmitted {
		t.Errorf("status = %s, claim must stay submitted without a reason", got)
	}
}

func TestVerifyRejectedSurfacesReason(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.submitProof(t, claim.ReferenceNumber)
	f.mailer.sent = nil

	updated, err := f.svc.Verify(context.Background(), claim.ID, false, "amount does not match the order total", 7)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if updated.Status != models.TransferRejected {
		t.Errorf("status = %s, want rejected", updated.Status)
	}
	if updated.RejectionReason == nil || *updated.RejectionReason != "amount does not match the order total" {
		t.Error("rejection reason not recorded")
	}

	if got := f.orders.orders["ORD-200"].PaymentStatus; got != models.PaymentPending {
		t.Errorf("order payment status = %s, a rejection must not touch the order", got)
	}
	if len(f.transfers.receipts) != 0 {
		t.Error("a rejection must not create a receipt")
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d emails, want 1 rejection notice", len(f.mailer.sent))
	}
	if !strings.Contains(f.mailer.sent[0].body, "amount does not match the order total") {
		t.Error("rejection notice does not carry the administrator's reason")
	}
}

func TestVerifyTerminalClaimConflicts(t *testing.T) {
	f := newFixture()
	claim := f.initiate(t)
	f.submitProof(t, claim.ReferenceNumber)

	if _, err := f.svc.Verify(context.Background(), claim.ID, false, "illegible slip", 7); err != nil {
		t.Fatalf("rejection returned error: %v", err)
	}

	_, err := f.svc.Verify(context.Background(), claim.ID, true, "", 7)
	if !errors.Is(err, ErrVerificationConflict) {
		t.Errorf("error = %v, want ErrVerificationConflict", err)
	}
	if got := f.transfers.byRef[claim.ReferenceNumber].Status; got != models.TransferRejected {
		t.Errorf("status = %s, terminal state must not change", got)
	}
}

func TestRejectedOrderCanStartFreshClaim(t *testing.T) {
	f := newFixture()
	first := f.initiate(t)
	f.submitProof(t, first.ReferenceNumber)
	if _, err := f.svc.Verify(context.Background(), first.ID, false, "wrong reference quoted", 7); err != nil {
		t.Fatalf("rejection returned error: %v", err)
	}

	f.now = f.now.Add(time.Hour)
	second, err := f.svc.Initiate(context.Background(), "ORD-200", decimal.NewFromInt(320000))
	if err != nil {
		t.Fatalf("second Initiate returned error: %v", err)
	}
	if second.ReferenceNumber == first.ReferenceNumber {
		t.Error("a retry must issue a fresh reference, never reuse a rejected one")
	}
	if second.Status != models.TransferPending {
		t.Errorf("status = %s, want pending", second.Status)
	}
}
