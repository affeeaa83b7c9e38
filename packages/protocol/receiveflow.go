package protocol

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/resolver"
	"github.com/trustweave/ledgercore/packages/session"
	"github.com/trustweave/ledgercore/packages/verification"
)

// region ReceivedPair /////////////////////////////////////////////////////////////////////////////////////////////////

// ReceivedPair is the outcome of an inbound exchange: the signed transaction plus - on the confidential path - its
// encrypted counterpart.
type ReceivedPair struct {
	Transaction *ledger.SignedTransaction
	Encrypted   *ledger.EncryptedTransaction
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region ReceiveFlow //////////////////////////////////////////////////////////////////////////////////////////////////

// PreRecordHook runs after verification and before recording. Returning an error aborts the exchange with nothing
// recorded.
type PreRecordHook func(signedTransaction *ledger.SignedTransaction) error

// ReceiveFlow orchestrates one inbound transaction transfer: receive, resolve the dependency closure, verify,
// conditionally record. There is no partial commit - either the transaction and its closure end up fully recorded or
// the exchange leaves no trace.
type ReceiveFlow struct {
	resolver *resolver.Resolver
	verifier *verification.Verifier
	storage  *ledger.TransactionStorage
	vault    *ledger.Vault
	options  *Options

	phase *atomic.Int32
}

// NewReceiveFlow creates a new ReceiveFlow from the given collaborators.
func NewReceiveFlow(dependencyResolver *resolver.Resolver, verifier *verification.Verifier, storage *ledger.TransactionStorage, vault *ledger.Vault, options ...Option) (receiveFlow *ReceiveFlow) {
	return &ReceiveFlow{
		resolver: dependencyResolver,
		verifier: verifier,
		storage:  storage,
		vault:    vault,
		options:  newOptions(options),
		phase:    atomic.NewInt32(int32(PhaseIdle)),
	}
}

// Phase returns the current Phase of the exchange.
func (f *ReceiveFlow) Phase() Phase {
	return Phase(f.phase.Load())
}

// ReceiveTransaction is the plain entry point: it runs the exchange and returns the verified transaction.
func (f *ReceiveFlow) ReceiveTransaction(ctx context.Context, peerSession session.Session) (signedTransaction *ledger.SignedTransaction, err error) {
	receivedPair, err := f.receive(ctx, peerSession, false)
	if err != nil {
		return nil, err
	}

	return receivedPair.Transaction, nil
}

// ReceiveEncryptedTransaction is the confidential entry point: it receives the encrypted payload first, checks the
// pairing invariant before any dependency is fetched and delegates verification to the confidential verifier.
func (f *ReceiveFlow) ReceiveEncryptedTransaction(ctx context.Context, peerSession session.Session) (receivedPair *ReceivedPair, err error) {
	return f.receive(ctx, peerSession, true)
}

// ReceiveStateRefs receives a list of StateRefs and resolves the closures of their owning transactions. No new
// transaction is verified or recorded - the refs are returned unchanged once their history is locally available.
func (f *ReceiveFlow) ReceiveStateRefs(ctx context.Context, peerSession session.Session) (stateRefs []ledger.StateRef, err error) {
	defer f.failOnError(&err)

	f.phase.Store(int32(PhaseAwaitingTransaction))
	message, err := peerSession.Receive(ctx)
	if err != nil {
		return nil, err
	}
	stateRefsMessage, typedCorrectly := message.(*session.StateRefsMessage)
	if !typedCorrectly {
		return nil, errors.Errorf("counterparty sent %s while waiting for state refs: %w", message.Type(), session.ErrUnexpectedMessage)
	}

	f.phase.Store(int32(PhaseResolvingDependencies))
	if err = f.resolver.ResolveStateRefs(ctx, peerSession, stateRefsMessage.StateRefs); err != nil {
		return nil, err
	}

	f.phase.Store(int32(PhaseDone))

	return stateRefsMessage.StateRefs, nil
}

// receive is the shared core of both entry points. The confidential flag selects which messages are expected and
// which verification path runs - the surrounding state machine is identical.
func (f *ReceiveFlow) receive(ctx context.Context, peerSession session.Session, confidential bool) (receivedPair *ReceivedPair, err error) {
	defer f.failOnError(&err)

	receivedPair = &ReceivedPair{}

	if confidential {
		f.phase.Store(int32(PhaseAwaitingEncryptedPayload))
		if receivedPair.Encrypted, err = f.receiveEncrypted(ctx, peerSession); err != nil {
			return nil, err
		}
	}

	f.phase.Store(int32(PhaseAwaitingTransaction))
	if receivedPair.Transaction, err = f.receiveSigned(ctx, peerSession); err != nil {
		return nil, err
	}

	// the pairing invariant and the parameters gate run before any dependency fetch
	if confidential && receivedPair.Encrypted.ID() != receivedPair.Transaction.ID() {
		return nil, errors.Errorf("received %s paired with plaintext %s: %w", receivedPair.Encrypted.ID(), receivedPair.Transaction.ID(), verification.ErrPairingMismatch)
	}
	if err = f.verifier.CheckParametersHash(receivedPair.Transaction.Wire()); err != nil {
		return nil, err
	}

	f.phase.Store(int32(PhaseResolvingDependencies))
	if err = f.resolver.ResolveDependencies(ctx, peerSession, receivedPair.Transaction.Wire()); err != nil {
		return nil, err
	}

	f.phase.Store(int32(PhaseVerifying))
	var attestedResult *verification.AttestedResult
	if confidential {
		attestedResult, err = f.verifyConfidential(receivedPair)
	} else {
		err = f.verifier.VerifyTransaction(receivedPair.Transaction, f.options.checkSufficientSignatures)
	}
	if err != nil {
		return nil, err
	}

	if !f.options.checkSufficientSignatures {
		f.phase.Store(int32(PhaseDone))
		return receivedPair, nil
	}

	f.phase.Store(int32(PhasePreRecordCheck))
	if f.options.beforeRecording != nil {
		if err = f.options.beforeRecording(receivedPair.Transaction); err != nil {
			return nil, errors.Errorf("pre-record check rejected transaction with %s: %w", receivedPair.Transaction.ID(), err)
		}
	}

	f.phase.Store(int32(PhaseRecording))
	f.storage.StoreTransaction(receivedPair.Transaction)
	if confidential {
		f.storage.StoreEncryptedTransaction(receivedPair.Encrypted)
	}
	if err = f.vault.Record(f.options.statesToRecord, receivedPair.Transaction); err != nil {
		return nil, err
	}
	if attestedResult != nil {
		if err = f.vault.RecordAttestation(receivedPair.Transaction.ID(), attestedResult.Bytes()); err != nil {
			return nil, err
		}
	}

	f.phase.Store(int32(PhaseDone))

	return receivedPair, nil
}

func (f *ReceiveFlow) receiveEncrypted(ctx context.Context, peerSession session.Session) (encryptedTransaction *ledger.EncryptedTransaction, err error) {
	message, err := peerSession.Receive(ctx)
	if err != nil {
		return nil, err
	}
	encryptedMessage, typedCorrectly := message.(*session.EncryptedTransactionMessage)
	if !typedCorrectly {
		return nil, errors.Errorf("counterparty sent %s while waiting for the encrypted payload: %w", message.Type(), session.ErrUnexpectedMessage)
	}

	return encryptedMessage.Transaction, nil
}

func (f *ReceiveFlow) receiveSigned(ctx context.Context, peerSession session.Session) (signedTransaction *ledger.SignedTransaction, err error) {
	message, err := peerSession.Receive(ctx)
	if err != nil {
		return nil, err
	}
	transactionMessage, typedCorrectly := message.(*session.TransactionMessage)
	if !typedCorrectly {
		return nil, errors.Errorf("counterparty sent %s while waiting for the transaction: %w", message.Type(), session.ErrUnexpectedMessage)
	}

	return transactionMessage.Transaction, nil
}

// verifyConfidential builds the verification bundle from the direct dependencies' stored representations and
// delegates to the configured confidential verifier.
func (f *ReceiveFlow) verifyConfidential(receivedPair *ReceivedPair) (attestedResult *verification.AttestedResult, err error) {
	dependencies := make([]*verification.DependencyPair, 0)
	for dependencyID := range receivedPair.Transaction.Wire().DependencyIDs() {
		signedDependency, exists := f.storage.LoadTransaction(dependencyID)
		if !exists {
			return nil, errors.Errorf("dependency with %s vanished after resolution: %w", dependencyID, verification.ErrTransactionResolution)
		}
		encryptedDependency, exists := f.storage.LoadEncryptedTransaction(dependencyID)
		if !exists {
			return nil, errors.Errorf("missing encrypted counterpart of dependency with %s: %w", dependencyID, verification.ErrTransactionResolution)
		}

		dependencies = append(dependencies, verification.NewDependencyPair(encryptedDependency, signedDependency))
	}

	bundle := verification.NewBundle(receivedPair.Encrypted, receivedPair.Transaction, dependencies)

	return f.verifier.VerifyConfidential(bundle, f.options.checkSufficientSignatures)
}

func (f *ReceiveFlow) failOnError(err *error) {
	if *err != nil {
		f.phase.Store(int32(PhaseFailed))
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Options //////////////////////////////////////////////////////////////////////////////////////////////////////

// Options is a container for all configurable parameters of a ReceiveFlow.
type Options struct {
	checkSufficientSignatures bool
	statesToRecord            ledger.StatesToRecord
	beforeRecording           PreRecordHook
}

// Option is a function which inits an option.
type Option func(*Options)

func newOptions(optionalOptions []Option) *Options {
	result := &Options{
		checkSufficientSignatures: true,
		statesToRecord:            ledger.StatesToRecordOnlyRelevant,
	}

	for _, optionalOption := range optionalOptions {
		optionalOption(result)
	}

	return result
}

// CheckSufficientSignatures creates an option which controls whether signature sufficiency is enforced. Without it
// the transaction is checked but never recorded.
func CheckSufficientSignatures(check bool) Option {
	return func(options *Options) {
		options.checkSufficientSignatures = check
	}
}

// StatesToRecordPolicy creates an option which sets the policy for which output states the vault persists.
func StatesToRecordPolicy(policy ledger.StatesToRecord) Option {
	return func(options *Options) {
		options.statesToRecord = policy
	}
}

// BeforeRecording creates an option which sets the hook that runs after verification and before recording.
func BeforeRecording(hook PreRecordHook) Option {
	return func(options *Options) {
		options.beforeRecording = hook
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
