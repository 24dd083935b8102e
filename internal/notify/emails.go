package notify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/models"
)

// BankTransferInstructions tells the customer where to send the money and
// which reference to quote.
func BankTransferInstructions(order *models.Order, t *models.BankTransfer) (subject, body string) {
	subject = fmt.Sprintf("Bank Transfer Details for Order %s", order.OrderNumber)
	body = fmt.Sprintf(
		"<h1>Bank Transfer Payment</h1>"+
			"<p>Hi %s,</p>"+
			"<p>To complete your order <b>%s</b>, please transfer <b>KES %s</b> and quote reference <b>%s</b>.</p>"+
			"<p>Once the transfer is done, submit your proof of payment so we can verify it.</p>",
		order.CustomerName, order.OrderNumber, t.Amount.StringFixed(2), t.ReferenceNumber,
	)
	return subject, body
}

// ProofReceived confirms to the customer that their proof of payment landed
func ProofReceived(order *models.Order, t *models.BankTransfer) (subject, body string) {
	subject = fmt.Sprintf("Proof of Payment Received - %s", t.ReferenceNumber)
	body = fmt.Sprintf(
		"<h1>Proof of Payment Received</h1>"+
			"<p>Hi %s,</p>"+
			"<p>We have received your proof of payment for reference <b>%s</b> (order <b>%s</b>). "+
			"Our team will verify it and confirm shortly.</p>",
		order.CustomerName, t.ReferenceNumber, order.OrderNumber,
	)
	return subject, body
}

// OpsProofAlert tells operations staff a transfer is waiting for review
func OpsProofAlert(order *models.Order, t *models.BankTransfer) (subject, body string) {
	subject = fmt.Sprintf("Bank Transfer Awaiting Verification - %s", t.ReferenceNumber)
	body = fmt.Sprintf(
		"<h1>Verification Needed</h1>"+
			"<p>Reference <b>%s</b> for order <b>%s</b> (KES %s) has submitted proof of payment and awaits verification.</p>",
		t.ReferenceNumber, order.OrderNumber, t.Amount.StringFixed(2),
	)
	return subject, body
}

// VerificationOutcome tells the customer whether the transfer was accepted.
// A rejection always surfaces the administrator's reason.
func VerificationOutcome(order *models.Order, t *models.BankTransfer, verified bool, reason string) (subject, body string) {
	if verified {
		subject = fmt.Sprintf("Payment Verified - Order %s", order.OrderNumber)
		body = fmt.Sprintf(
			"<h1>Payment Verified</h1>"+
				"<p>Hi %s,</p>"+
				"<p>Your bank transfer <b>%s</b> has been verified and order <b>%s</b> is now marked as paid. Thank you!</p>",
			order.CustomerName, t.ReferenceNumber, order.OrderNumber,
		)
		return subject, body
	}

	subject = fmt.Sprintf("Payment Could Not Be Verified - Order %s", order.OrderNumber)
	body = fmt.Sprintf(
		"<h1>Payment Not Verified</h1>"+
			"<p>Hi %s,</p>"+
			"<p>We could not verify your bank transfer <b>%s</b> for order <b>%s</b>.</p>"+
			"<p><b>Reason:</b> %s</p>"+
			"<p>Please initiate a new transfer claim to try again.</p>",
		order.CustomerName, t.ReferenceNumber, order.OrderNumber, reason,
	)
	return subject, body
}

// ReceiptEmail carries the payment receipt to the customer
func ReceiptEmail(order *models.Order, r *models.PaymentReceipt, amount decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Payment Receipt %s", r.ReceiptNumber)
	body = fmt.Sprintf(
		"<h1>Payment Receipt</h1>"+
			"<p>Hi %s,</p>"+
			"<p>We received your payment of <b>KES %s</b> for order <b>%s</b>.</p>"+
			"<p>Receipt number: <b>%s</b><br>Payment date: %s</p>",
		order.CustomerName, amount.StringFixed(2), order.OrderNumber,
		r.ReceiptNumber, r.PaymentDate.Format("02 Jan 2006 15:04"),
	)
	return subject, body
}
