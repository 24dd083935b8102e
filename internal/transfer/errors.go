package transfer

import "errors"

var (
	// ErrTransferNotFound means no claim exists for the given reference or id
	ErrTransferNotFound = errors.New("transfer: not found")

	// ErrNotSubmitted means verification was attempted before the customer
	// submitted proof of payment
	ErrNotSubmitted = errors.New("transfer: proof of payment not yet submitted")

	// ErrAlreadySubmitted means proof was already submitted for the claim
	ErrAlreadySubmitted = errors.New("transfer: proof of payment already submitted")

	// ErrVerificationConflict means the claim has already been verified or
	// rejected; terminal claims are immutable
	ErrVerificationConflict = errors.New("transfer: already verified or rejected")

	// ErrRejectionReasonRequired means a rejection was attempted without a reason
	ErrRejectionReasonRequired = errors.New("transfer: rejection reason is required")
)
