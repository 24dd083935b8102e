package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the fulfilment lifecycle of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// PaymentStatus represents the payment lifecycle of an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod identifies how the customer chose to pay
type PaymentMethod string

const (
	MethodMpesa        PaymentMethod = "mpesa"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
)

// Order is the ledger record owned by the checkout subsystem. The payment
// core reads it and writes only its payment_status field.
type Order struct {
	ID              int64           `db:"id"`
	OrderNumber     string          `db:"order_number"`
	CustomerName    string          `db:"customer_name"`
	CustomerEmail   string          `db:"customer_email"`
	CustomerPhone   string          `db:"customer_phone"`
	DeliveryMethod  string          `db:"delivery_method"`
	DeliveryAddress *string         `db:"delivery_address"`
	Subtotal        decimal.Decimal `db:"subtotal"`
	DeliveryCost    decimal.Decimal `db:"delivery_cost"`
	Total           decimal.Decimal `db:"total"`
	DepositAmount   decimal.Decimal `db:"deposit_amount"`
	TotalDepositDue decimal.Decimal `db:"total_deposit_due"`
	Balance         decimal.Decimal `db:"balance"`
	OrderStatus     OrderStatus     `db:"order_status"`
	PaymentStatus   PaymentStatus   `db:"payment_status"`
	PaymentMethod   PaymentMethod   `db:"payment_method"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// OrderItem is a single line item on an order. Read-only to the payment
// core; used as input to receipt snapshots.
type OrderItem struct {
	ID        int64           `db:"id"`
	OrderID   int64           `db:"order_id"`
	ItemName  string          `db:"item_name"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	LineTotal decimal.Decimal `db:"line_total"`
}
