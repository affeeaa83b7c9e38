package simulation

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region TransactionBuilder ///////////////////////////////////////////////////////////////////////////////////////////

// TransactionBuilder assembles one transaction against a simulated Ledger. Errors during building are sticky: the
// first one aborts the eventual Record call, carrying the builder's location for diagnosis.
type TransactionBuilder struct {
	ledger *Ledger

	location     string
	inputs       []ledger.StateRef
	outputs      []*ledger.TransactionState
	outputLabels map[uint16]string
	attachments  []ledger.AttachmentID
	commands     ledger.Commands
	err          error
}

// NewTransaction starts building a transaction against the ledger. The name is only used to label failures - it may
// be empty.
func (l *Ledger) NewTransaction(name string) (builder *TransactionBuilder) {
	l.mutex.Lock()
	l.sequence++
	location := fmt.Sprintf("transaction #%d", l.sequence)
	if name != "" {
		location = fmt.Sprintf("transaction #%d (%s)", l.sequence, name)
	}
	l.mutex.Unlock()

	return &TransactionBuilder{
		ledger:       l,
		location:     location,
		outputLabels: make(map[uint16]string),
	}
}

// AddInput consumes the given StateRef.
func (b *TransactionBuilder) AddInput(stateRef ledger.StateRef) *TransactionBuilder {
	b.inputs = append(b.inputs, stateRef)

	return b
}

// AddInputByLabel consumes the output that was previously recorded under the given label.
func (b *TransactionBuilder) AddInputByLabel(label string) *TransactionBuilder {
	b.ledger.mutex.RLock()
	stateRef, exists := b.ledger.labels[label]
	b.ledger.mutex.RUnlock()

	if !exists {
		b.fail(errors.Errorf("label %q: %w", label, ErrNoSuchLabel))
		return b
	}

	return b.AddInput(stateRef)
}

// AddOutput produces a new output state notarized by the given identity. A non-empty label makes the output
// retrievable through the ledger afterwards.
func (b *TransactionBuilder) AddOutput(label string, notary *identity.Identity, state ledger.StatePayload) *TransactionBuilder {
	if label != "" {
		b.outputLabels[uint16(len(b.outputs))] = label
	}
	b.outputs = append(b.outputs, ledger.NewTransactionState(state, notary))

	return b
}

// AddAttachment references previously imported attachment content.
func (b *TransactionBuilder) AddAttachment(attachmentID ledger.AttachmentID) *TransactionBuilder {
	b.attachments = append(b.attachments, attachmentID)

	return b
}

// AddCommand attaches a command that the given keys need to sign for.
func (b *TransactionBuilder) AddCommand(data []byte, signers ...ed25519.PublicKey) *TransactionBuilder {
	b.ledger.registerSigners(signers)
	b.commands = append(b.commands, ledger.NewCommand(data, signers...))

	return b
}

// Record finalizes the transaction, signs it with the given keys and records it on the ledger. Whether it actually
// verifies is decided later by Verifies or FailsWith.
func (b *TransactionBuilder) Record(signedBy ...ed25519.KeyPair) (signedTransaction *ledger.SignedTransaction, err error) {
	return b.record(false, signedBy)
}

// RecordNonVerified records the transaction as an axiom: it is trusted as given and excluded from verification.
func (b *TransactionBuilder) RecordNonVerified(signedBy ...ed25519.KeyPair) (signedTransaction *ledger.SignedTransaction, err error) {
	return b.record(true, signedBy)
}

func (b *TransactionBuilder) record(axiom bool, signedBy []ed25519.KeyPair) (signedTransaction *ledger.SignedTransaction, err error) {
	if b.err != nil {
		return nil, errors.Errorf("%s: %w", b.location, b.err)
	}

	wireTransaction := ledger.NewWireTransaction(b.inputs, b.outputs, b.attachments, b.commands, b.ledger.parametersHash)
	signedTransaction = ledger.SignTransaction(wireTransaction, signedBy...)

	if err = b.ledger.record(signedTransaction, b.outputLabels, b.location, axiom); err != nil {
		return nil, err
	}

	return signedTransaction, nil
}

// fail records the first building error.
func (b *TransactionBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
