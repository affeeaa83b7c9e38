package verification

import (
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/types"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region SignatureChecker /////////////////////////////////////////////////////////////////////////////////////////////

// SignatureChecker validates the detached signatures of a SignedTransaction against the signer keys its
// WireTransaction requires.
type SignatureChecker interface {
	// VerifySignatures checks the validity of the attached signatures and - if checkSufficient is set - that every
	// required key has a matching signature.
	VerifySignatures(signedTransaction *ledger.SignedTransaction, requiredSigners map[ed25519.PublicKey]types.Empty, checkSufficient bool) error
}

// ED25519SignatureChecker is the default SignatureChecker - it verifies the detached ed25519 signatures over the
// marshaled WireTransaction.
type ED25519SignatureChecker struct{}

// NewED25519SignatureChecker creates a new ED25519SignatureChecker.
func NewED25519SignatureChecker() *ED25519SignatureChecker {
	return &ED25519SignatureChecker{}
}

// VerifySignatures checks the validity of the attached signatures and - if checkSufficient is set - that every
// required key has a matching signature.
func (e *ED25519SignatureChecker) VerifySignatures(signedTransaction *ledger.SignedTransaction, requiredSigners map[ed25519.PublicKey]types.Empty, checkSufficient bool) error {
	return signedTransaction.VerifySignatures(requiredSigners, checkSufficient)
}

// code contract (make sure the struct implements all required methods)
var _ SignatureChecker = &ED25519SignatureChecker{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
