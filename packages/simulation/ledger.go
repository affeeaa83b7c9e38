package simulation

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/datastructure/walker"
	"github.com/iotaledger/hive.go/identity"
	"github.com/iotaledger/hive.go/syncutils"
	"github.com/iotaledger/hive.go/types"

	"github.com/trustweave/ledgercore/packages/database"
	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/parties"
	"github.com/trustweave/ledgercore/packages/verification"
)

// region Ledger ///////////////////////////////////////////////////////////////////////////////////////////////////////

// Ledger is the in-memory reference oracle for contract semantics: a scriptable ledger that records transactions
// built through TransactionBuilders and answers whether the resulting graph verifies. Axioms (transactions recorded
// as non-verified) are accepted as given and excluded from verification.
type Ledger struct {
	storage     *ledger.TransactionStorage
	attachments *ledger.AttachmentStore
	vault       *ledger.Vault
	registry    *parties.Registry
	verifier    *verification.Verifier

	notary             *identity.Identity
	parametersHash     ledger.ParametersHash
	recorded           []*ledger.SignedTransaction
	axioms             map[ledger.TransactionID]types.Empty
	labels             map[string]ledger.StateRef
	attachmentContents map[ledger.AttachmentID][]byte
	locations          map[ledger.TransactionID]string
	sequence           int

	mutex syncutils.RWMutex
}

// NewLedger creates a new simulated Ledger with fresh in-memory stores.
func NewLedger(options ...Option) (simulatedLedger *Ledger, err error) {
	ledgerOptions := newOptions(options)

	storage := ledger.NewTransactionStorage(database.NewMemDB())
	vault, err := ledger.NewVault(storage)
	if err != nil {
		return nil, errors.Errorf("failed to create vault: %w", err)
	}

	notaryKeyPair := ed25519.GenerateKeyPair()
	registry := parties.NewRegistry()

	simulatedLedger = &Ledger{
		storage:            storage,
		attachments:        ledger.NewAttachmentStore(database.NewMemDB()),
		vault:              vault,
		registry:           registry,
		notary:             identity.New(notaryKeyPair.PublicKey),
		parametersHash:     ledgerOptions.parametersHash,
		axioms:             make(map[ledger.TransactionID]types.Empty),
		labels:             make(map[string]ledger.StateRef),
		attachmentContents: make(map[ledger.AttachmentID][]byte),
		locations:          make(map[ledger.TransactionID]string),
	}
	simulatedLedger.verifier = verification.New(
		verification.WithSources(storage, simulatedLedger.attachments),
		verification.WithPartyResolver(registry),
		verification.WithParametersHash(ledgerOptions.parametersHash),
	)

	return simulatedLedger, nil
}

// Notary returns the default notary identity of the simulated network.
func (l *Ledger) Notary() *identity.Identity {
	return l.notary
}

// Vault returns the vault that records the simulated transactions.
func (l *Ledger) Vault() *ledger.Vault {
	return l.vault
}

// Storage returns the transaction storage backing the simulated ledger.
func (l *Ledger) Storage() *ledger.TransactionStorage {
	return l.storage
}

// ImportAttachment makes the given content available as an attachment and returns its id.
func (l *Ledger) ImportAttachment(content []byte) (attachmentID ledger.AttachmentID) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	attachmentID = l.attachments.Import(content)
	l.attachmentContents[attachmentID] = content

	return
}

// RetrieveOutputStateAndRef returns the labeled output state and its StateRef. It fails with ErrNoSuchLabel if the
// label was never recorded and with ErrTypeMismatch if the labeled state carries a different type.
func (l *Ledger) RetrieveOutputStateAndRef(stateType ledger.StateType, label string) (state *ledger.TransactionState, stateRef ledger.StateRef, err error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	stateRef, exists := l.labels[label]
	if !exists {
		err = errors.Errorf("label %q: %w", label, ErrNoSuchLabel)
		return
	}

	state, exists = l.vault.StateByRef(stateRef)
	if !exists {
		err = errors.Errorf("label %q points at unrecorded %s: %w", label, stateRef, ErrNoSuchLabel)
		return
	}
	if state.State().Type() != stateType {
		err = errors.Errorf("label %q carries state type %d instead of %d: %w", label, state.State().Type(), stateType, ErrTypeMismatch)
		return
	}

	return state, stateRef, nil
}

// Verifies checks that the whole recorded graph verifies: axioms are accepted as given, everything else must pass
// resolution, contract and signature checks. It returns a sentinel token so that callers cannot mistake a skipped
// check for a passed one.
func (l *Ledger) Verifies() (verified Verified, err error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if err = l.checkClosure(); err != nil {
		return Verified{}, err
	}

	verifiedTransactions := make([]*ledger.LedgerTransaction, 0, len(l.recorded))
	nonVerifiedTransactions := make([]*ledger.LedgerTransaction, 0, len(l.axioms))
	for _, signedTransaction := range l.recorded {
		ledgerTransaction, resolveErr := l.verifier.ResolveTransaction(signedTransaction.Wire())
		if resolveErr != nil {
			return Verified{}, l.wrapWithLocation(signedTransaction.ID(), resolveErr)
		}

		if _, isAxiom := l.axioms[signedTransaction.ID()]; isAxiom {
			nonVerifiedTransactions = append(nonVerifiedTransactions, ledgerTransaction)
			continue
		}
		verifiedTransactions = append(verifiedTransactions, ledgerTransaction)
	}

	transactionGroup := ledger.NewTransactionGroup(verifiedTransactions, nonVerifiedTransactions)
	if err = l.verifier.VerifyGroup(transactionGroup); err != nil {
		return Verified{}, l.wrapGroupError(err)
	}

	for _, signedTransaction := range l.recorded {
		if _, isAxiom := l.axioms[signedTransaction.ID()]; isAxiom {
			continue
		}
		if err = signedTransaction.VerifySignatures(signedTransaction.Wire().RequiredSigners(), true); err != nil {
			return Verified{}, l.wrapWithLocation(signedTransaction.ID(), err)
		}
	}

	return Verified{verifiedCount: len(verifiedTransactions)}, nil
}

// FailsWith expects verification to fail with a message containing the given substring (case-insensitive). It returns
// an error if verification passes or fails differently.
func (l *Ledger) FailsWith(substring string) (err error) {
	_, verifyErr := l.Verifies()
	if verifyErr == nil {
		return errors.Errorf("expected a failure containing %q: %w", substring, ErrUnexpectedSuccess)
	}

	if !strings.Contains(strings.ToLower(verifyErr.Error()), strings.ToLower(substring)) {
		return errors.Errorf("expected a failure containing %q but got: %w", substring, verifyErr)
	}

	return nil
}

// Tweak runs the given function against an independent branch of the ledger: a deep copy of the recorded graph,
// labels and axioms backed by fresh stores. Mutations inside fn never touch the parent ledger.
func (l *Ledger) Tweak(fn func(branch *Ledger) error) (err error) {
	branch, err := l.branch()
	if err != nil {
		return errors.Errorf("failed to branch ledger: %w", err)
	}

	return fn(branch)
}

// branch creates a deep copy of the ledger. SignedTransactions are immutable once built, so sharing the pointers
// between parent and branch is safe - only the stores and index structures are duplicated.
func (l *Ledger) branch() (branch *Ledger, err error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if branch, err = NewLedger(WithParametersHash(l.parametersHash)); err != nil {
		return nil, err
	}
	branch.notary = l.notary
	branch.registry = l.registry
	branch.verifier = verification.New(
		verification.WithSources(branch.storage, branch.attachments),
		verification.WithPartyResolver(branch.registry),
		verification.WithParametersHash(branch.parametersHash),
	)
	branch.sequence = l.sequence

	for attachmentID, content := range l.attachmentContents {
		branch.attachments.Import(content)
		branch.attachmentContents[attachmentID] = content
	}
	for _, signedTransaction := range l.recorded {
		branch.storage.StoreTransaction(signedTransaction)
		if err = branch.vault.Record(ledger.StatesToRecordAllVisible, signedTransaction); err != nil {
			return nil, errors.Errorf("failed to replay transaction with %s: %w", signedTransaction.ID(), err)
		}
		branch.recorded = append(branch.recorded, signedTransaction)
	}
	for transactionID := range l.axioms {
		branch.axioms[transactionID] = types.Void
	}
	for label, stateRef := range l.labels {
		branch.labels[label] = stateRef
	}
	for transactionID, location := range l.locations {
		branch.locations[transactionID] = location
	}

	return branch, nil
}

// checkClosure walks the dependency graph of every recorded transaction and confirms that the whole closure is
// recorded.
func (l *Ledger) checkClosure() (err error) {
	dependencyWalker := walker.New()
	for _, signedTransaction := range l.recorded {
		dependencyWalker.Push(signedTransaction.ID())
	}

	for dependencyWalker.HasNext() {
		transactionID := dependencyWalker.Next().(ledger.TransactionID)

		signedTransaction, exists := l.storage.LoadTransaction(transactionID)
		if !exists {
			return errors.Errorf("recorded graph references unknown transaction with %s: %w", transactionID, verification.ErrTransactionResolution)
		}

		for dependencyID := range signedTransaction.Wire().DependencyIDs() {
			dependencyWalker.Push(dependencyID)
		}
	}

	return nil
}

// record appends a finalized transaction to the ledger.
func (l *Ledger) record(signedTransaction *ledger.SignedTransaction, outputLabels map[uint16]string, location string, axiom bool) (err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.storage.StoreTransaction(signedTransaction)
	if err = l.vault.Record(ledger.StatesToRecordAllVisible, signedTransaction); err != nil {
		return errors.Errorf("%s: %w", location, err)
	}

	l.recorded = append(l.recorded, signedTransaction)
	l.locations[signedTransaction.ID()] = location
	if axiom {
		l.axioms[signedTransaction.ID()] = types.Void
	}
	for index, label := range outputLabels {
		l.labels[label] = ledger.NewStateRef(signedTransaction.ID(), index)
	}

	return nil
}

// registerSigners makes the given keys resolvable as parties during command authentication.
func (l *Ledger) registerSigners(signers []ed25519.PublicKey) {
	for _, signer := range signers {
		l.registry.Register(identity.New(signer))
	}
}

func (l *Ledger) wrapWithLocation(transactionID ledger.TransactionID, err error) error {
	if location, exists := l.locations[transactionID]; exists {
		return errors.Errorf("%s: %w", location, err)
	}

	return err
}

// wrapGroupError attaches the build location of the failing transaction when it can be identified from the group
// level error.
func (l *Ledger) wrapGroupError(err error) error {
	for transactionID, location := range l.locations {
		if strings.Contains(err.Error(), transactionID.String()) {
			return errors.Errorf("%s: %w", location, err)
		}
	}

	return err
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Verified /////////////////////////////////////////////////////////////////////////////////////////////////////

// Verified is the sentinel result of a successful Verifies call.
type Verified struct {
	verifiedCount int
}

// Count returns the number of transactions that were verified (axioms excluded).
func (v Verified) Count() int {
	return v.verifiedCount
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Options //////////////////////////////////////////////////////////////////////////////////////////////////////

// Options is a container for all configurable parameters of a simulated Ledger.
type Options struct {
	parametersHash ledger.ParametersHash
}

// Option is a function which inits an option.
type Option func(*Options)

func newOptions(optionalOptions []Option) *Options {
	result := &Options{}

	for _, optionalOption := range optionalOptions {
		optionalOption(result)
	}

	return result
}

// WithParametersHash creates an option which sets the network parameters hash that built transactions declare.
func WithParametersHash(parametersHash ledger.ParametersHash) Option {
	return func(options *Options) {
		options.parametersHash = parametersHash
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
