// Package receipt builds immutable payment receipts. A receipt snapshots
// the order, its line items and the payment event at the moment of payment;
// later order mutations never touch it.
package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voltcycle/payments/internal/models"
)

type itemLister interface {
	ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
}

// Generator builds receipt records. Persistence happens inside the caller's
// database transaction; the unique transaction_ref index keeps generation
// idempotent.
type Generator struct {
	orders itemLister
	now    func() time.Time
}

// NewGenerator creates a receipt generator
func NewGenerator(orders itemLister) *Generator {
	return &Generator{orders: orders, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

type snapshotItem struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type snapshot struct {
	OrderNumber    string             `json:"order_number"`
	CustomerName   string             `json:"customer_name"`
	CustomerEmail  string             `json:"customer_email"`
	DeliveryMethod string             `json:"delivery_method"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	DeliveryCost   decimal.Decimal    `json:"delivery_cost"`
	Total          decimal.Decimal    `json:"total"`
	Items          []snapshotItem     `json:"items"`
	Payment        snapshotPaymentRow `json:"payment"`
}

type snapshotPaymentRow struct {
	Type           models.PaymentType `json:"type"`
	TransactionRef string             `json:"transaction_ref"`
	Amount         decimal.Decimal    `json:"amount"`
	PaidAt         time.Time          `json:"paid_at"`
}

// Build assembles a receipt record for a successful payment. The caller
// persists it atomically with the payment-state transition it belongs to.
func (g *Generator) Build(ctx context.Context, order *models.Order, kind models.PaymentType, transactionRef string, amount decimal.Decimal, paidAt time.Time) (*models.PaymentReceipt, error) {
	items, err := g.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	snap := snapshot{
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.CustomerName,
		CustomerEmail:  order.CustomerEmail,
		DeliveryMethod: order.DeliveryMethod,
		Subtotal:       order.Subtotal,
		DeliveryCost:   order.DeliveryCost,
		Total:          order.Total,
		Payment: snapshotPaymentRow{
			Type:           kind,
			TransactionRef: transactionRef,
			Amount:         amount,
			PaidAt:         paidAt,
		},
	}
	for _, it := range items {
		snap.Items = append(snap.Items, snapshotItem{
			Name:      it.ItemName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}

	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt snapshot: %w", err)
	}

	return &models.PaymentReceipt{
		ReceiptNumber:  models.NewReceiptNumber(kind, order.ID, g.now()),
		OrderID:        order.ID,
		PaymentType:    kind,
		TransactionRef: transactionRef,
		Amount:         amount,
		PaymentDate:    paidAt,
		Snapshot:       snapJSON,
	}, nil
}
