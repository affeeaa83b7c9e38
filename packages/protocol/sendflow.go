package protocol

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/session"
)

// region SendFlow /////////////////////////////////////////////////////////////////////////////////////////////////////

// SendFlow is the counterpart of the ReceiveFlow: it pushes a transaction to a peer and then serves the peer's
// dependency requests from local storage until the peer's resolution completes.
type SendFlow struct {
	provider *DependencyProvider
}

// NewSendFlow creates a new SendFlow that serves dependency requests from the given stores.
func NewSendFlow(storage *ledger.TransactionStorage, attachments *ledger.AttachmentStore) (sendFlow *SendFlow) {
	return &SendFlow{
		provider: NewDependencyProvider(storage, attachments),
	}
}

// SendTransaction transfers the given transaction and answers the counterparty's dependency requests until it signals
// completion.
func (f *SendFlow) SendTransaction(ctx context.Context, peerSession session.Session, signedTransaction *ledger.SignedTransaction) (err error) {
	if err = peerSession.Send(session.NewTransactionMessage(signedTransaction)); err != nil {
		return errors.Errorf("failed to send transaction with %s: %w", signedTransaction.ID(), err)
	}

	return f.provider.Serve(ctx, peerSession)
}

// SendEncryptedTransaction transfers both forms of a confidential transaction, encrypted payload first, and answers
// the counterparty's dependency requests until it signals completion.
func (f *SendFlow) SendEncryptedTransaction(ctx context.Context, peerSession session.Session, encryptedTransaction *ledger.EncryptedTransaction, signedTransaction *ledger.SignedTransaction) (err error) {
	if err = peerSession.Send(session.NewEncryptedTransactionMessage(encryptedTransaction)); err != nil {
		return errors.Errorf("failed to send encrypted transaction with %s: %w", encryptedTransaction.ID(), err)
	}
	if err = peerSession.Send(session.NewTransactionMessage(signedTransaction)); err != nil {
		return errors.Errorf("failed to send transaction with %s: %w", signedTransaction.ID(), err)
	}

	return f.provider.Serve(ctx, peerSession)
}

// SendStateRefs transfers the given StateRefs and answers the counterparty's dependency requests until it signals
// completion.
func (f *SendFlow) SendStateRefs(ctx context.Context, peerSession session.Session, stateRefs []ledger.StateRef) (err error) {
	if err = peerSession.Send(session.NewStateRefsMessage(stateRefs)); err != nil {
		return errors.Errorf("failed to send state refs: %w", err)
	}

	return f.provider.Serve(ctx, peerSession)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region DependencyProvider ///////////////////////////////////////////////////////////////////////////////////////////

// DependencyProvider answers a counterparty's transaction and attachment requests from local storage. It runs until
// the counterparty signals that its resolution is complete.
type DependencyProvider struct {
	storage     *ledger.TransactionStorage
	attachments *ledger.AttachmentStore
}

// NewDependencyProvider creates a new DependencyProvider on top of the given stores.
func NewDependencyProvider(storage *ledger.TransactionStorage, attachments *ledger.AttachmentStore) (dependencyProvider *DependencyProvider) {
	return &DependencyProvider{
		storage:     storage,
		attachments: attachments,
	}
}

// Serve answers requests on the given session until a ResolutionCompleteMessage arrives or the session ends.
func (d *DependencyProvider) Serve(ctx context.Context, peerSession session.Session) (err error) {
	for {
		message, receiveErr := peerSession.Receive(ctx)
		if receiveErr != nil {
			return receiveErr
		}

		switch request := message.(type) {
		case *session.RequestTransactionMessage:
			err = d.serveTransaction(peerSession, request.TransactionID)
		case *session.RequestEncryptedTransactionMessage:
			err = d.serveEncryptedTransaction(peerSession, request.TransactionID)
		case *session.RequestAttachmentMessage:
			err = d.serveAttachment(peerSession, request.AttachmentID)
		case *session.ResolutionCompleteMessage:
			return nil
		default:
			return errors.Errorf("counterparty sent %s while serving dependencies: %w", message.Type(), session.ErrUnexpectedMessage)
		}

		if err != nil {
			return err
		}
	}
}

func (d *DependencyProvider) serveTransaction(peerSession session.Session, transactionID ledger.TransactionID) (err error) {
	signedTransaction, exists := d.storage.LoadTransaction(transactionID)
	if !exists {
		return peerSession.Send(session.NewTransactionNotFoundMessage(transactionID))
	}

	return peerSession.Send(session.NewTransactionMessage(signedTransaction))
}

func (d *DependencyProvider) serveEncryptedTransaction(peerSession session.Session, transactionID ledger.TransactionID) (err error) {
	encryptedTransaction, exists := d.storage.LoadEncryptedTransaction(transactionID)
	if !exists {
		return peerSession.Send(session.NewTransactionNotFoundMessage(transactionID))
	}

	return peerSession.Send(session.NewEncryptedTransactionMessage(encryptedTransaction))
}

func (d *DependencyProvider) serveAttachment(peerSession session.Session, attachmentID ledger.AttachmentID) (err error) {
	attachment, exists := d.attachments.OpenAttachment(attachmentID)
	if !exists {
		return peerSession.Send(session.NewAttachmentNotFoundMessage(attachmentID))
	}

	return peerSession.Send(session.NewAttachmentMessage(attachment))
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
