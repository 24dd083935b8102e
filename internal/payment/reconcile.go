package payment

import (
	"context"
	"log"

	"github.com/voltcycle/payments/internal/daraja"
	"github.com/voltcycle/payments/internal/models"
)

// QueryAndResolve asks the provider for the current state of one push and
// applies the outcome. An "unavailable" query answer mutates nothing, so a
// transaction's state is never downgraded when the provider cannot answer.
func (s *Service) QueryAndResolve(ctx context.Context, checkoutRequestID string) (models.MpesaStatus, error) {
	txn, err := s.transactions.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return "", err
	}

	if txn.Status.Terminal() {
		return txn.Status, nil
	}

	result, err := s.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return txn.Status, err
	}

	switch result.Outcome {
	case daraja.QuerySuccess:
		// A query confirms the payment but carries no receipt metadata;
		// the callback remains the richer source when it arrives first.
		if _, err := s.applySuccess(ctx, txn, result.ResultCode, result.Description, daraja.CallbackMeta{}, nil); err != nil {
			return txn.Status, err
		}
		return models.MpesaSuccess, nil

	case daraja.QueryCancelled:
		if _, err := s.applyOutcome(ctx, txn, models.MpesaCancelled, result.ResultCode, result.Description, nil); err != nil {
			return txn.Status, err
		}
		return models.MpesaCancelled, nil

	case daraja.QueryFailed:
		if _, err := s.applyOutcome(ctx, txn, models.MpesaFailed, result.ResultCode, result.Description, nil); err != nil {
			return txn.Status, err
		}
		return models.MpesaFailed, nil

	case daraja.QueryUnavailable:
		log.Printf("Status query unavailable for %s: %s", checkoutRequestID, result.Description)
		return txn.Status, nil
	}

	return txn.Status, nil
}

// ReconcileStale is the periodic reconciliation sweep: transactions stuck
// in pending past the staleness threshold are queried, and those the query
// cannot resolve are moved to timeout. A later callback can still settle a
// timed-out transaction.
func (s *Service) ReconcileStale(ctx context.Context) error {
	cutoff := s.now().Add(-s.cfg.StaleAfter)

	stale, err := s.transactions.ListStalePending(ctx, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return err
	}

	if len(stale) == 0 {
		return nil
	}
	log.Printf("Reconciliation sweep: %d stale pending transaction(s)", len(stale))

	var firstErr error
	for _, txn := range stale {
		status, err := s.QueryAndResolve(ctx, txn.CheckoutRequestID)
		if err != nil {
			log.Printf("Sweep query failed for %s: %v", txn.CheckoutRequestID, err)
			if firstErr == nil {
				firstErr = err
			}
		}

		if status != models.MpesaPending {
			continue
		}

		applied, err := s.transactions.MarkOutcome(ctx, txn.CheckoutRequestID, models.MpesaTimeout, nil, "no terminal outcome within staleness threshold", nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if applied {
			log.Printf("Transaction %s timed out by reconciliation sweep", txn.CheckoutRequestID)
		}
	}

	return firstErr
}
