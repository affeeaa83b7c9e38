package session

import (
	"context"
	"testing"
	"time"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/ledger"
)

func newTestPipe(t *testing.T) (left *PipeSession, right *PipeSession) {
	t.Helper()

	leftIdentity := identity.New(ed25519.GenerateKeyPair().PublicKey)
	rightIdentity := identity.New(ed25519.GenerateKeyPair().PublicKey)
	left, right = NewPipe(leftIdentity, rightIdentity)

	assert.Equal(t, rightIdentity.ID(), left.Counterparty())
	assert.Equal(t, leftIdentity.ID(), right.Counterparty())

	return
}

func TestPipeSession_SendReceive(t *testing.T) {
	left, right := newTestPipe(t)

	keyPair := ed25519.GenerateKeyPair()
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	signedTransaction := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("state")), notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), keyPair.PublicKey)},
		ledger.EmptyParametersHash,
	), keyPair)

	require.NoError(t, left.Send(NewTransactionMessage(signedTransaction)))

	received, err := right.Receive(context.Background())
	require.NoError(t, err)

	// the pipe round-trips messages through their wire encoding
	transactionMessage, typedCorrectly := received.(*TransactionMessage)
	require.True(t, typedCorrectly)
	assert.Equal(t, signedTransaction.ID(), transactionMessage.Transaction.ID())
	assert.NoError(t, transactionMessage.Transaction.VerifySignatures(transactionMessage.Transaction.Wire().RequiredSigners(), true))
}

func TestPipeSession_MessageKinds(t *testing.T) {
	left, right := newTestPipe(t)

	transactionID, err := ledger.TransactionIDFromRandomness()
	require.NoError(t, err)
	attachment := ledger.NewAttachment([]byte("blob"))
	stateRefs := []ledger.StateRef{ledger.NewStateRef(transactionID, 3)}

	require.NoError(t, left.Send(NewRequestTransactionMessage(transactionID)))
	require.NoError(t, left.Send(NewRequestEncryptedTransactionMessage(transactionID)))
	require.NoError(t, left.Send(NewEncryptedTransactionMessage(ledger.NewEncryptedTransaction(transactionID, []byte("opaque")))))
	require.NoError(t, left.Send(NewAttachmentMessage(attachment)))
	require.NoError(t, left.Send(NewStateRefsMessage(stateRefs)))
	require.NoError(t, left.Send(NewResolutionCompleteMessage()))

	expectMessage := func(expectedType MessageType) Message {
		message, receiveErr := right.Receive(context.Background())
		require.NoError(t, receiveErr)
		require.Equal(t, expectedType, message.Type())

		return message
	}

	requestMessage := expectMessage(MessageTypeRequestTransaction).(*RequestTransactionMessage)
	assert.Equal(t, transactionID, requestMessage.TransactionID)

	expectMessage(MessageTypeRequestEncryptedTransaction)

	encryptedMessage := expectMessage(MessageTypeEncryptedTransaction).(*EncryptedTransactionMessage)
	assert.Equal(t, []byte("opaque"), encryptedMessage.Transaction.Payload())

	attachmentMessage := expectMessage(MessageTypeAttachment).(*AttachmentMessage)
	assert.Equal(t, attachment.ID(), attachmentMessage.Attachment.ID())

	stateRefsMessage := expectMessage(MessageTypeStateRefs).(*StateRefsMessage)
	assert.Equal(t, stateRefs, stateRefsMessage.StateRefs)

	expectMessage(MessageTypeResolutionComplete)
}

func TestPipeSession_Close(t *testing.T) {
	left, right := newTestPipe(t)

	require.NoError(t, left.Close())

	transactionID, err := ledger.TransactionIDFromRandomness()
	require.NoError(t, err)
	assert.ErrorIs(t, left.Send(NewRequestTransactionMessage(transactionID)), ErrSessionClosed)

	_, err = right.Receive(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestPipeSession_ContextCancellation(t *testing.T) {
	left, _ := newTestPipe(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := left.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
