package ledger

import (
	"testing"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireTransaction_ID(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)

	buildTransaction := func(data []byte) *WireTransaction {
		return NewWireTransaction(
			nil,
			[]*TransactionState{NewTransactionState(NewDataState(DataStateType, data), notary)},
			nil,
			nil,
			EmptyParametersHash,
		)
	}

	// identical content hashes to an identical id, independent of the instance
	assert.Equal(t, buildTransaction([]byte("state")).ID(), buildTransaction([]byte("state")).ID())
	assert.NotEqual(t, buildTransaction([]byte("state")).ID(), buildTransaction([]byte("other")).ID())
}

func TestWireTransaction_Bytes(t *testing.T) {
	keyPair := ed25519.GenerateKeyPair()
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)

	dependencyID, err := TransactionIDFromRandomness()
	require.NoError(t, err)

	wireTransaction := NewWireTransaction(
		[]StateRef{NewStateRef(dependencyID, 2)},
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("payload")), notary)},
		[]AttachmentID{NewAttachment([]byte("attachment")).ID()},
		Commands{NewCommand([]byte("move"), keyPair.PublicKey)},
		ParametersHashFromContent([]byte("network parameters")),
	)

	restoredTransaction, consumedBytes, err := WireTransactionFromBytes(wireTransaction.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(wireTransaction.Bytes()), consumedBytes)
	assert.Equal(t, wireTransaction.ID(), restoredTransaction.ID())
	assert.Equal(t, wireTransaction.Inputs(), restoredTransaction.Inputs())
	assert.Equal(t, wireTransaction.Attachments(), restoredTransaction.Attachments())
}

func TestWireTransaction_OutputAt(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	wireTransaction := NewWireTransaction(
		nil,
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("only output")), notary)},
		nil,
		nil,
		EmptyParametersHash,
	)

	output, err := wireTransaction.OutputAt(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("only output"), output.State().Bytes())

	_, err = wireTransaction.OutputAt(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestWireTransaction_RequiredSigners(t *testing.T) {
	keyPairA := ed25519.GenerateKeyPair()
	keyPairB := ed25519.GenerateKeyPair()

	wireTransaction := NewWireTransaction(nil, nil, nil, Commands{
		NewCommand([]byte("issue"), keyPairA.PublicKey),
		NewCommand([]byte("move"), keyPairA.PublicKey, keyPairB.PublicKey),
	}, EmptyParametersHash)

	requiredSigners := wireTransaction.RequiredSigners()
	assert.Len(t, requiredSigners, 2)
	assert.Contains(t, requiredSigners, keyPairA.PublicKey)
	assert.Contains(t, requiredSigners, keyPairB.PublicKey)
}

func TestSignedTransaction_VerifySignatures(t *testing.T) {
	keyPairA := ed25519.GenerateKeyPair()
	keyPairB := ed25519.GenerateKeyPair()
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)

	wireTransaction := NewWireTransaction(
		nil,
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("state")), notary)},
		nil,
		Commands{NewCommand([]byte("move"), keyPairA.PublicKey, keyPairB.PublicKey)},
		EmptyParametersHash,
	)

	fullySigned := SignTransaction(wireTransaction, keyPairA, keyPairB)
	assert.NoError(t, fullySigned.VerifySignatures(wireTransaction.RequiredSigners(), true))

	partiallySigned := SignTransaction(wireTransaction, keyPairA)
	assert.NoError(t, partiallySigned.VerifySignatures(wireTransaction.RequiredSigners(), false))
	assert.ErrorIs(t, partiallySigned.VerifySignatures(wireTransaction.RequiredSigners(), true), ErrInsufficientSignatures)

	forged := NewSignedTransaction(wireTransaction, NewTransactionSignature(keyPairA.PublicKey, keyPairA.PrivateKey.Sign([]byte("something else"))))
	assert.ErrorIs(t, forged.VerifySignatures(wireTransaction.RequiredSigners(), false), ErrSignatureInvalid)
}

func TestSignedTransaction_Bytes(t *testing.T) {
	keyPair := ed25519.GenerateKeyPair()
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)

	signedTransaction := SignTransaction(NewWireTransaction(
		nil,
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("state")), notary)},
		nil,
		Commands{NewCommand([]byte("issue"), keyPair.PublicKey)},
		EmptyParametersHash,
	), keyPair)

	restoredTransaction, _, err := SignedTransactionFromBytes(signedTransaction.Bytes())
	require.NoError(t, err)
	assert.Equal(t, signedTransaction.ID(), restoredTransaction.ID())
	assert.NoError(t, restoredTransaction.VerifySignatures(restoredTransaction.Wire().RequiredSigners(), true))
}
