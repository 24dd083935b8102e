package payment

import "errors"

var (
	// ErrOrderNotFound means the order reference does not exist
	ErrOrderNotFound = errors.New("payment: order not found")

	// ErrUnknownTransaction means a callback or query referenced a
	// checkout-request-id that is not on file. Nothing is mutated; the
	// provider is still acknowledged.
	ErrUnknownTransaction = errors.New("payment: unknown transaction")
)
