package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltcycle/payments/internal/models"
)

// OrderStore reads orders and writes their payment_status field. Everything
// else on the orders table belongs to the checkout subsystem.
type OrderStore struct {
	db *pgxpool.Pool
}

// NewOrderStore creates a new order repository
func NewOrderStore(db *pgxpool.Pool) *OrderStore {
	return &OrderStore{db: db}
}

const orderColumns = `
	id, order_number, customer_name, customer_email, customer_phone,
	delivery_method, delivery_address, subtotal, delivery_cost, total,
	deposit_amount, total_deposit_due, balance,
	order_status, payment_status, payment_method, created_at, updated_at
`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.DeliveryMethod, &o.DeliveryAddress, &o.Subtotal, &o.DeliveryCost, &o.Total,
		&o.DepositAmount, &o.TotalDepositDue, &o.Balance,
		&o.OrderStatus, &o.PaymentStatus, &o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	return &o, nil
}

// GetByNumber fetches an order by its externally visible order number
func (s *OrderStore) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return scanOrder(s.db.QueryRow(ctx, query, orderNumber))
}

// GetByID fetches an order by its internal id
func (s *OrderStore) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(s.db.QueryRow(ctx, query, id))
}

// ListItems fetches the line items of an order, for receipt snapshots
func (s *OrderStore) ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT id, order_id, item_name, quantity, unit_price, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}

	return items, rows.Err()
}
