package verification

import (
	"errors"
)

var (
	// ErrTransactionResolution is returned when an input references an ancestor transaction that could not be made
	// available locally.
	ErrTransactionResolution = errors.New("unknown ancestor transaction")

	// ErrAttachmentResolution is returned when a referenced attachment could not be made available locally.
	ErrAttachmentResolution = errors.New("unknown attachment")

	// ErrTransactionVerification is returned when a contract rule of the resolved transaction is violated.
	ErrTransactionVerification = errors.New("transaction verification failed")

	// ErrParametersMismatch is returned when a received transaction declares a network parameters hash that differs
	// from the locally accepted one.
	ErrParametersMismatch = errors.New("network parameters hash mismatch")

	// ErrPairingMismatch is returned when an EncryptedTransaction is not bound to the SignedTransaction it was
	// delivered with.
	ErrPairingMismatch = errors.New("encrypted transaction does not match plaintext transaction")

	// ErrNoConfidentialVerifier is returned when confidential verification is requested but no verifier is configured.
	ErrNoConfidentialVerifier = errors.New("no confidential verifier configured")
)
