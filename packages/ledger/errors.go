package ledger

import (
	"errors"
)

var (
	// ErrIndexOutOfRange is returned when an output index exceeds the output count of a transaction.
	ErrIndexOutOfRange = errors.New("output index out of range")

	// ErrSignatureInvalid is returned when an attached signature does not sign the transaction it is attached to.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrInsufficientSignatures is returned when a required signer key has no matching signature attached.
	ErrInsufficientSignatures = errors.New("insufficient signatures")

	// ErrDependenciesMissing is returned when a transaction is recorded before all of its declared dependencies are
	// durably present.
	ErrDependenciesMissing = errors.New("transaction dependencies missing")
)
