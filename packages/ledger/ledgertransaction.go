package ledger

import (
	"strconv"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/iotaledger/hive.go/stringify"
)

// region ResolvedInput ////////////////////////////////////////////////////////////////////////////////////////////////

// ResolvedInput is an input of a LedgerTransaction whose StateRef has been materialized into the actual
// TransactionState it points to.
type ResolvedInput struct {
	ref   StateRef
	state *TransactionState
}

// NewResolvedInput creates a new ResolvedInput from the given details.
func NewResolvedInput(ref StateRef, state *TransactionState) *ResolvedInput {
	return &ResolvedInput{
		ref:   ref,
		state: state,
	}
}

// Ref returns the StateRef that the ResolvedInput was materialized from.
func (r *ResolvedInput) Ref() StateRef {
	return r.ref
}

// State returns the materialized TransactionState of the ResolvedInput.
func (r *ResolvedInput) State() *TransactionState {
	return r.state
}

// String creates a human readable version of the ResolvedInput.
func (r *ResolvedInput) String() string {
	return stringify.Struct("ResolvedInput",
		stringify.StructField("ref", r.ref),
		stringify.StructField("state", r.state),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AuthenticatedCommand /////////////////////////////////////////////////////////////////////////////////////////

// AuthenticatedCommand is a Command whose signer keys have been mapped to identity principals. Keys without a locally
// known identity are silently dropped - an unknown key is not an error.
type AuthenticatedCommand struct {
	data    []byte
	signers []ed25519.PublicKey
	parties []*identity.Identity
}

// NewAuthenticatedCommand creates a new AuthenticatedCommand from the given details.
func NewAuthenticatedCommand(command *Command, parties []*identity.Identity) *AuthenticatedCommand {
	return &AuthenticatedCommand{
		data:    command.Data(),
		signers: command.Signers(),
		parties: parties,
	}
}

// Data returns the typed payload of the AuthenticatedCommand.
func (a *AuthenticatedCommand) Data() []byte {
	return a.data
}

// Signers returns the signer public keys that the underlying Command requires.
func (a *AuthenticatedCommand) Signers() []ed25519.PublicKey {
	return a.signers
}

// Parties returns the identity principals that the signer keys were mapped to.
func (a *AuthenticatedCommand) Parties() []*identity.Identity {
	return a.parties
}

// String creates a human readable version of the AuthenticatedCommand.
func (a *AuthenticatedCommand) String() string {
	return stringify.Struct("AuthenticatedCommand",
		stringify.StructField("data", a.data),
		stringify.StructField("signers", a.signers),
		stringify.StructField("parties", a.parties),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region LedgerTransaction ////////////////////////////////////////////////////////////////////////////////////////////

// LedgerTransaction is the fully resolved form of a WireTransaction: its inputs are materialized into actual
// TransactionStates, its attachments into attachment content and its Commands are authenticated. It is produced fresh
// on every resolution and never cached mutably.
type LedgerTransaction struct {
	id          TransactionID
	inputs      []*ResolvedInput
	outputs     []*TransactionState
	attachments []*Attachment
	commands    []*AuthenticatedCommand
}

// NewLedgerTransaction creates a new LedgerTransaction from the given details.
func NewLedgerTransaction(id TransactionID, inputs []*ResolvedInput, outputs []*TransactionState, attachments []*Attachment, commands []*AuthenticatedCommand) *LedgerTransaction {
	return &LedgerTransaction{
		id:          id,
		inputs:      inputs,
		outputs:     outputs,
		attachments: attachments,
		commands:    commands,
	}
}

// ID returns the content hash of the WireTransaction that the LedgerTransaction was resolved from.
func (l *LedgerTransaction) ID() TransactionID {
	return l.id
}

// Inputs returns the materialized inputs of the LedgerTransaction.
func (l *LedgerTransaction) Inputs() []*ResolvedInput {
	return l.inputs
}

// Outputs returns the output TransactionStates of the LedgerTransaction.
func (l *LedgerTransaction) Outputs() []*TransactionState {
	return l.outputs
}

// Attachments returns the materialized attachments of the LedgerTransaction.
func (l *LedgerTransaction) Attachments() []*Attachment {
	return l.attachments
}

// Commands returns the authenticated Commands of the LedgerTransaction.
func (l *LedgerTransaction) Commands() []*AuthenticatedCommand {
	return l.commands
}

// String creates a human readable version of the LedgerTransaction.
func (l *LedgerTransaction) String() string {
	structBuilder := stringify.StructBuilder("LedgerTransaction",
		stringify.StructField("id", l.id),
	)
	for i, input := range l.inputs {
		structBuilder.AddField(stringify.StructField("input"+strconv.Itoa(i), input))
	}
	for i, output := range l.outputs {
		structBuilder.AddField(stringify.StructField("output"+strconv.Itoa(i), output))
	}

	return structBuilder.String()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region TransactionGroup /////////////////////////////////////////////////////////////////////////////////////////////

// TransactionGroup partitions a set of LedgerTransactions into a verified and a non-verified set. The non-verified
// transactions are trusted as given - their own contract rules are not re-checked when the group is verified.
type TransactionGroup struct {
	verified    []*LedgerTransaction
	nonVerified []*LedgerTransaction
}

// NewTransactionGroup creates a new TransactionGroup from the given details.
func NewTransactionGroup(verified []*LedgerTransaction, nonVerified []*LedgerTransaction) *TransactionGroup {
	return &TransactionGroup{
		verified:    verified,
		nonVerified: nonVerified,
	}
}

// Verified returns the LedgerTransactions whose contract rules have to hold for the group to be valid.
func (t *TransactionGroup) Verified() []*LedgerTransaction {
	return t.verified
}

// NonVerified returns the LedgerTransactions that are accepted into the closure as trusted axioms.
func (t *TransactionGroup) NonVerified() []*LedgerTransaction {
	return t.nonVerified
}

// String creates a human readable version of the TransactionGroup.
func (t *TransactionGroup) String() string {
	return stringify.Struct("TransactionGroup",
		stringify.StructField("verified", len(t.verified)),
		stringify.StructField("nonVerified", len(t.nonVerified)),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
