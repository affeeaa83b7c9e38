package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/session"
	"github.com/trustweave/ledgercore/packages/verification"
)

// region Resolver /////////////////////////////////////////////////////////////////////////////////////////////////////

// Resolver walks the dependency graph of an incoming transaction and fetches every transitively referenced
// transaction and attachment that is not available locally. Everything it fetches is staged first, verified as a
// whole and only committed to storage and vault when the complete closure checks out - a failing walk leaves no
// trace.
type Resolver struct {
	// Events contains the events of the Resolver.
	Events *Events

	storage     *ledger.TransactionStorage
	attachments *ledger.AttachmentStore
	vault       *ledger.Vault
	verifier    *verification.Verifier
	options     *Options

	resolvedCounter  *atomic.Uint64
	requestedCounter *atomic.Uint64
}

// New creates a new Resolver that resolves against the given storage and records fetched ancestors through the given
// vault.
func New(storage *ledger.TransactionStorage, attachments *ledger.AttachmentStore, vault *ledger.Vault, verifier *verification.Verifier, options ...Option) (resolver *Resolver) {
	return &Resolver{
		Events:           newEvents(),
		storage:          storage,
		attachments:      attachments,
		vault:            vault,
		verifier:         verifier,
		options:          newOptions(options),
		resolvedCounter:  atomic.NewUint64(0),
		requestedCounter: atomic.NewUint64(0),
	}
}

// Resolved returns the number of transactions that were fetched and committed by this Resolver.
func (r *Resolver) Resolved() uint64 {
	return r.resolvedCounter.Load()
}

// Requested returns the number of transaction requests that were sent to counterparties by this Resolver.
func (r *Resolver) Requested() uint64 {
	return r.requestedCounter.Load()
}

// ResolveDependencies fetches the complete dependency closure of the given WireTransaction over the given session.
// The transaction itself is not fetched and not recorded - only its ancestors and the attachments it references. On
// success the complete closure is committed to local storage and the counterparty is told to stop serving requests.
func (r *Resolver) ResolveDependencies(ctx context.Context, peerSession session.Session, wireTransaction *ledger.WireTransaction) (err error) {
	overlay := ledger.NewSourceOverlay(r.storage, r.attachments)

	frontier := make([]frontierEntry, 0)
	for dependencyID := range wireTransaction.DependencyIDs() {
		frontier = append(frontier, frontierEntry{transactionID: dependencyID, depth: 1})
	}

	if err = r.fetchClosure(ctx, peerSession, overlay, frontier); err != nil {
		r.Events.Error.Trigger(err)
		return err
	}
	if err = r.fetchAttachments(ctx, peerSession, overlay, wireTransaction.Attachments()); err != nil {
		r.Events.Error.Trigger(err)
		return err
	}

	if err = r.verifyAndCommit(overlay); err != nil {
		r.Events.Error.Trigger(err)
		return err
	}

	return peerSession.Send(session.NewResolutionCompleteMessage())
}

// ResolveStateRefs fetches the dependency closures of the transactions that own the given StateRefs. It is the
// lighter resolution mode: no new transaction is being transferred, verified or recorded beyond the referenced
// closures themselves.
func (r *Resolver) ResolveStateRefs(ctx context.Context, peerSession session.Session, stateRefs []ledger.StateRef) (err error) {
	overlay := ledger.NewSourceOverlay(r.storage, r.attachments)

	frontier := make([]frontierEntry, 0, len(stateRefs))
	seen := make(map[ledger.TransactionID]struct{})
	for _, stateRef := range stateRefs {
		if _, alreadySeen := seen[stateRef.TransactionID]; alreadySeen {
			continue
		}
		seen[stateRef.TransactionID] = struct{}{}
		frontier = append(frontier, frontierEntry{transactionID: stateRef.TransactionID, depth: 1})
	}

	if err = r.fetchClosure(ctx, peerSession, overlay, frontier); err != nil {
		r.Events.Error.Trigger(err)
		return err
	}

	if err = r.verifyAndCommit(overlay); err != nil {
		r.Events.Error.Trigger(err)
		return err
	}

	return peerSession.Send(session.NewResolutionCompleteMessage())
}

// fetchClosure walks the dependency graph breadth-first starting from the given frontier and stages every fetched
// transaction and its attachments into the overlay.
func (r *Resolver) fetchClosure(ctx context.Context, peerSession session.Session, overlay *ledger.SourceOverlay, frontier []frontierEntry) (err error) {
	fetched := 0
	for len(frontier) > 0 {
		entry := frontier[0]
		frontier = frontier[1:]

		if entry.depth > r.options.maxDepth {
			return errors.Errorf("dependency chain exceeds %d transactions: %w", r.options.maxDepth, ErrResolutionDepthExceeded)
		}
		if _, exists := overlay.LoadTransaction(entry.transactionID); exists {
			// a dependency received through the plain path earlier has no encrypted form in storage yet
			if r.options.fetchEncrypted {
				if err = r.ensureEncryptedCounterpart(ctx, peerSession, overlay, entry.transactionID); err != nil {
					return err
				}
			}
			continue
		}

		if fetched >= r.options.resolutionBudget {
			return errors.Errorf("dependency closure exceeds %d transactions: %w", r.options.resolutionBudget, ErrResolutionBudgetExceeded)
		}

		signedTransaction, fetchErr := r.fetchTransaction(ctx, peerSession, entry.transactionID)
		if fetchErr != nil {
			return fetchErr
		}
		fetched++

		overlay.StageTransaction(signedTransaction)
		if r.options.fetchEncrypted {
			if err = r.ensureEncryptedCounterpart(ctx, peerSession, overlay, entry.transactionID); err != nil {
				return err
			}
		}

		if err = r.fetchAttachments(ctx, peerSession, overlay, signedTransaction.Wire().Attachments()); err != nil {
			return err
		}

		for dependencyID := range signedTransaction.Wire().DependencyIDs() {
			frontier = append(frontier, frontierEntry{transactionID: dependencyID, depth: entry.depth + 1})
		}

		r.Events.TransactionResolved.Trigger(entry.transactionID)
	}

	return nil
}

// fetchTransaction requests a single transaction from the counterparty and validates that the reply carries the
// requested id.
func (r *Resolver) fetchTransaction(ctx context.Context, peerSession session.Session, transactionID ledger.TransactionID) (signedTransaction *ledger.SignedTransaction, err error) {
	r.Events.TransactionMissing.Trigger(transactionID)
	r.requestedCounter.Inc()

	if err = peerSession.Send(session.NewRequestTransactionMessage(transactionID)); err != nil {
		return nil, errors.Errorf("failed to request transaction with %s: %w", transactionID, err)
	}

	reply, err := peerSession.Receive(ctx)
	if err != nil {
		return nil, errors.Errorf("failed to receive transaction with %s: %w", transactionID, err)
	}

	switch message := reply.(type) {
	case *session.TransactionMessage:
		if message.Transaction.ID() != transactionID {
			return nil, errors.Errorf("counterparty sent transaction with %s instead of %s: %w", message.Transaction.ID(), transactionID, verification.ErrTransactionResolution)
		}

		return message.Transaction, nil
	case *session.TransactionNotFoundMessage:
		return nil, errors.Errorf("counterparty does not know transaction with %s: %w", transactionID, verification.ErrTransactionResolution)
	default:
		return nil, errors.Errorf("counterparty sent %s while waiting for transaction with %s: %w", message.Type(), transactionID, session.ErrUnexpectedMessage)
	}
}

// ensureEncryptedCounterpart makes the encrypted form of a transaction locally available, fetching it from the
// counterparty unless it is already staged or stored.
func (r *Resolver) ensureEncryptedCounterpart(ctx context.Context, peerSession session.Session, overlay *ledger.SourceOverlay, transactionID ledger.TransactionID) (err error) {
	if _, staged := overlay.StagedEncryptedTransactions()[transactionID]; staged {
		return nil
	}
	if _, exists := r.storage.LoadEncryptedTransaction(transactionID); exists {
		return nil
	}

	encryptedTransaction, err := r.fetchEncryptedTransaction(ctx, peerSession, transactionID)
	if err != nil {
		return err
	}
	overlay.StageEncryptedTransaction(encryptedTransaction)

	return nil
}

// fetchEncryptedTransaction requests the encrypted counterpart of a transaction from the counterparty.
func (r *Resolver) fetchEncryptedTransaction(ctx context.Context, peerSession session.Session, transactionID ledger.TransactionID) (encryptedTransaction *ledger.EncryptedTransaction, err error) {
	if err = peerSession.Send(session.NewRequestEncryptedTransactionMessage(transactionID)); err != nil {
		return nil, errors.Errorf("failed to request encrypted transaction with %s: %w", transactionID, err)
	}

	reply, err := peerSession.Receive(ctx)
	if err != nil {
		return nil, errors.Errorf("failed to receive encrypted transaction with %s: %w", transactionID, err)
	}

	switch message := reply.(type) {
	case *session.EncryptedTransactionMessage:
		if message.Transaction.ID() != transactionID {
			return nil, errors.Errorf("counterparty sent encrypted transaction with %s instead of %s: %w", message.Transaction.ID(), transactionID, verification.ErrTransactionResolution)
		}

		return message.Transaction, nil
	case *session.TransactionNotFoundMessage:
		return nil, errors.Errorf("counterparty does not know encrypted transaction with %s: %w", transactionID, verification.ErrTransactionResolution)
	default:
		return nil, errors.Errorf("counterparty sent %s while waiting for encrypted transaction with %s: %w", message.Type(), transactionID, session.ErrUnexpectedMessage)
	}
}

// fetchAttachments requests every referenced attachment that is neither stored nor staged yet and verifies the
// returned content against the requested content hash.
func (r *Resolver) fetchAttachments(ctx context.Context, peerSession session.Session, overlay *ledger.SourceOverlay, attachmentIDs []ledger.AttachmentID) (err error) {
	for _, attachmentID := range attachmentIDs {
		if _, exists := overlay.OpenAttachment(attachmentID); exists {
			continue
		}

		r.Events.AttachmentMissing.Trigger(attachmentID)
		if err = peerSession.Send(session.NewRequestAttachmentMessage(attachmentID)); err != nil {
			return errors.Errorf("failed to request %s: %w", attachmentID, err)
		}

		reply, receiveErr := peerSession.Receive(ctx)
		if receiveErr != nil {
			return errors.Errorf("failed to receive %s: %w", attachmentID, receiveErr)
		}

		switch message := reply.(type) {
		case *session.AttachmentMessage:
			if message.Attachment.ID() != attachmentID {
				return errors.Errorf("counterparty sent attachment content hashing to %s instead of %s: %w", message.Attachment.ID(), attachmentID, verification.ErrAttachmentResolution)
			}

			overlay.StageAttachment(message.Attachment)
		case *session.AttachmentNotFoundMessage:
			return errors.Errorf("counterparty does not know %s: %w", attachmentID, verification.ErrAttachmentResolution)
		default:
			return errors.Errorf("counterparty sent %s while waiting for %s: %w", message.Type(), attachmentID, session.ErrUnexpectedMessage)
		}
	}

	return nil
}

// verifyAndCommit verifies the staged closure in dependency order against the overlay and commits it to storage and
// vault. Fetched ancestors are recorded without their output states - state visibility is decided by the caller's
// policy for the transaction being received, not for its history.
func (r *Resolver) verifyAndCommit(overlay *ledger.SourceOverlay) (err error) {
	order, err := topologicalOrder(overlay)
	if err != nil {
		return err
	}

	stagedVerifier := r.verifier.WithSources(overlay, overlay)
	for _, signedTransaction := range order {
		if err = stagedVerifier.VerifyTransaction(signedTransaction, true); err != nil {
			return errors.Errorf("fetched ancestor failed verification: %w", err)
		}
	}

	for _, attachment := range overlay.StagedAttachments() {
		r.attachments.Import(attachment.Content())
	}
	for _, signedTransaction := range order {
		r.storage.StoreTransaction(signedTransaction)
	}
	for _, encryptedTransaction := range overlay.StagedEncryptedTransactions() {
		r.storage.StoreEncryptedTransaction(encryptedTransaction)
	}

	if len(order) > 0 {
		if err = r.vault.Record(ledger.StatesToRecordNone, order...); err != nil {
			return errors.Errorf("failed to record fetched ancestors: %w", err)
		}
	}

	r.resolvedCounter.Add(uint64(len(order)))

	return nil
}

// topologicalOrder orders the staged transactions so that every transaction appears after all of its staged
// dependencies. Dependencies that are already committed to storage do not constrain the order.
func topologicalOrder(overlay *ledger.SourceOverlay) (order []*ledger.SignedTransaction, err error) {
	staged := overlay.StagedTransactions()

	remaining := make(map[ledger.TransactionID]*ledger.SignedTransaction, len(staged))
	for transactionID, signedTransaction := range staged {
		remaining[transactionID] = signedTransaction
	}

	order = make([]*ledger.SignedTransaction, 0, len(staged))
	placed := make(map[ledger.TransactionID]struct{})
	for len(remaining) > 0 {
		progressed := false
		for transactionID, signedTransaction := range remaining {
			ready := true
			for dependencyID := range signedTransaction.Wire().DependencyIDs() {
				if _, stagedDependency := staged[dependencyID]; !stagedDependency {
					continue
				}
				if _, placedAlready := placed[dependencyID]; !placedAlready {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}

			order = append(order, signedTransaction)
			placed[transactionID] = struct{}{}
			delete(remaining, transactionID)
			progressed = true
		}

		if !progressed {
			return nil, errors.Errorf("staged transactions form a dependency cycle: %w", ErrResolutionDepthExceeded)
		}
	}

	return order, nil
}

type frontierEntry struct {
	transactionID ledger.TransactionID
	depth         int
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Options //////////////////////////////////////////////////////////////////////////////////////////////////////

const (
	// DefaultMaxDepth is the default bound on the length of a dependency chain.
	DefaultMaxDepth = 100

	// DefaultResolutionBudget is the default bound on the number of transactions fetched per resolution.
	DefaultResolutionBudget = 5000
)

// Options is a container for all configurable parameters of a Resolver.
type Options struct {
	maxDepth         int
	resolutionBudget int
	fetchEncrypted   bool
}

// Option is a function which inits an option.
type Option func(*Options)

func newOptions(optionalOptions []Option) *Options {
	result := &Options{
		maxDepth:         DefaultMaxDepth,
		resolutionBudget: DefaultResolutionBudget,
	}

	for _, optionalOption := range optionalOptions {
		optionalOption(result)
	}

	return result
}

// MaxDepth creates an option which bounds the length of the dependency chains that a walk may follow.
func MaxDepth(maxDepth int) Option {
	return func(options *Options) {
		options.maxDepth = maxDepth
	}
}

// ResolutionBudget creates an option which bounds the number of transactions fetched per resolution.
func ResolutionBudget(resolutionBudget int) Option {
	return func(options *Options) {
		options.resolutionBudget = resolutionBudget
	}
}

// FetchEncryptedCounterparts creates an option which makes the Resolver fetch the encrypted counterpart of every
// resolved transaction. The confidential receive path needs both forms of the direct dependencies to build its
// verification bundle.
func FetchEncryptedCounterparts(fetchEncrypted bool) Option {
	return func(options *Options) {
		options.fetchEncrypted = fetchEncrypted
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
