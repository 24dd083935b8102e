package daraja

import "errors"

var (
	// ErrAuth means the credential exchange with the provider failed.
	// Callers must not retry silently; the failure propagates to the
	// initiating request.
	ErrAuth = errors.New("daraja: credential exchange failed")

	// ErrInvalidPhoneNumber means the payer phone number could not be
	// normalized to the provider's international format.
	ErrInvalidPhoneNumber = errors.New("daraja: invalid phone number")

	// ErrGatewayUnavailable means the provider could not be reached or did
	// not answer. No response was received, so no transaction record should
	// be written for the attempt.
	ErrGatewayUnavailable = errors.New("daraja: gateway unavailable")
)
