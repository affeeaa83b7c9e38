package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/database"
	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/parties"
	"github.com/trustweave/ledgercore/packages/resolver"
	"github.com/trustweave/ledgercore/packages/session"
	"github.com/trustweave/ledgercore/packages/verification"
)

// flowTestFramework wires a sending and a receiving node end to end over an in-memory pipe.
type flowTestFramework struct {
	keyPair        ed25519.KeyPair
	notary         *identity.Identity
	parametersHash ledger.ParametersHash
	registry       *parties.Registry

	senderStorage     *ledger.TransactionStorage
	senderAttachments *ledger.AttachmentStore
	sendFlow          *SendFlow

	receiverStorage     *ledger.TransactionStorage
	receiverAttachments *ledger.AttachmentStore
	receiverVault       *ledger.Vault
	resolver            *resolver.Resolver
}

func newFlowTestFramework(t *testing.T, confidential bool, resolverOptions ...resolver.Option) *flowTestFramework {
	t.Helper()

	framework := &flowTestFramework{
		keyPair:             ed25519.GenerateKeyPair(),
		notary:              identity.New(ed25519.GenerateKeyPair().PublicKey),
		parametersHash:      ledger.ParametersHashFromContent([]byte("flow test network")),
		senderStorage:       ledger.NewTransactionStorage(database.NewMemDB()),
		senderAttachments:   ledger.NewAttachmentStore(database.NewMemDB()),
		receiverStorage:     ledger.NewTransactionStorage(database.NewMemDB()),
		receiverAttachments: ledger.NewAttachmentStore(database.NewMemDB()),
	}
	framework.registry = parties.NewRegistry(identity.New(framework.keyPair.PublicKey))
	framework.sendFlow = NewSendFlow(framework.senderStorage, framework.senderAttachments)

	vault, err := ledger.NewVault(framework.receiverStorage, ledger.WithRelevanceFunc(func(*ledger.TransactionState) bool {
		return true
	}))
	require.NoError(t, err)
	framework.receiverVault = vault

	verifier := framework.newVerifier(confidential)
	framework.resolver = resolver.New(framework.receiverStorage, framework.receiverAttachments, vault, verifier, resolverOptions...)

	t.Cleanup(func() {
		framework.senderStorage.Shutdown()
		framework.senderAttachments.Shutdown()
		framework.receiverStorage.Shutdown()
		framework.receiverAttachments.Shutdown()
	})

	return framework
}

func (f *flowTestFramework) newVerifier(confidential bool) *verification.Verifier {
	options := []verification.Option{
		verification.WithSources(f.receiverStorage, f.receiverAttachments),
		verification.WithPartyResolver(f.registry),
		verification.WithParametersHash(f.parametersHash),
	}
	if confidential {
		enclaveKeyPair := ed25519.GenerateKeyPair()
		options = append(options, verification.WithConfidentialVerifier(
			verification.NewLocalEnclave(enclaveKeyPair, f.registry, f.receiverAttachments, f.parametersHash),
		))
	}

	return verification.New(options...)
}

func (f *flowTestFramework) newReceiveFlow(confidential bool, options ...Option) *ReceiveFlow {
	return NewReceiveFlow(f.resolver, f.newVerifier(confidential), f.receiverStorage, f.receiverVault, options...)
}

// issueTransaction builds a signed transaction, stores it on the sender and optionally stores an encrypted
// counterpart.
func (f *flowTestFramework) issueTransaction(payload []byte, encrypted bool, inputs ...ledger.StateRef) *ledger.SignedTransaction {
	signedTransaction := ledger.SignTransaction(ledger.NewWireTransaction(
		inputs,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, payload), f.notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), f.keyPair.PublicKey)},
		f.parametersHash,
	), f.keyPair)
	f.senderStorage.StoreTransaction(signedTransaction)
	if encrypted {
		f.senderStorage.StoreEncryptedTransaction(f.encryptedForm(signedTransaction))
	}

	return signedTransaction
}

func (f *flowTestFramework) encryptedForm(signedTransaction *ledger.SignedTransaction) *ledger.EncryptedTransaction {
	return ledger.NewEncryptedTransaction(signedTransaction.ID(), append([]byte("sealed:"), signedTransaction.ID().Bytes()...))
}

func (f *flowTestFramework) connect(t *testing.T) (receiverSession *session.PipeSession, senderSession *session.PipeSession) {
	t.Helper()

	receiverSession, senderSession = session.NewPipe(
		identity.New(ed25519.GenerateKeyPair().PublicKey),
		identity.New(ed25519.GenerateKeyPair().PublicKey),
	)
	t.Cleanup(func() {
		_ = receiverSession.Close()
	})

	return
}

func awaitSender(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not finish")
		return nil
	}
}

func TestReceiveFlow_ReceiveTransaction(t *testing.T) {
	framework := newFlowTestFramework(t, false)

	genesis := framework.issueTransaction([]byte("genesis"), false)
	tip := framework.issueTransaction([]byte("tip"), false, ledger.NewStateRef(genesis.ID(), 0))

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendTransaction(context.Background(), senderSession, tip)
	}()

	receiveFlow := framework.newReceiveFlow(false)
	receivedTransaction, err := receiveFlow.ReceiveTransaction(context.Background(), receiverSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, senderDone))

	assert.Equal(t, tip.ID(), receivedTransaction.ID())
	assert.Equal(t, PhaseDone, receiveFlow.Phase())

	// the transaction and its closure are durably recorded
	assert.True(t, framework.receiverVault.IsRecorded(tip.ID()))
	assert.True(t, framework.receiverVault.IsRecorded(genesis.ID()))
	assert.True(t, framework.receiverStorage.HasTransaction(tip.ID()))

	// the received transaction's outputs are recorded under the relevance policy
	_, exists := framework.receiverVault.StateByRef(ledger.NewStateRef(tip.ID(), 0))
	assert.True(t, exists)
}

func TestReceiveFlow_NoRecordWithoutSufficiency(t *testing.T) {
	framework := newFlowTestFramework(t, false)

	otherKeyPair := ed25519.GenerateKeyPair()
	underSigned := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("state")), framework.notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), framework.keyPair.PublicKey, otherKeyPair.PublicKey)},
		framework.parametersHash,
	), framework.keyPair)
	framework.senderStorage.StoreTransaction(underSigned)

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendTransaction(context.Background(), senderSession, underSigned)
	}()

	// with sufficiency disabled the transfer succeeds but nothing is recorded
	receiveFlow := framework.newReceiveFlow(false, CheckSufficientSignatures(false))
	receivedTransaction, err := receiveFlow.ReceiveTransaction(context.Background(), receiverSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, senderDone))

	assert.Equal(t, underSigned.ID(), receivedTransaction.ID())
	assert.False(t, framework.receiverVault.IsRecorded(underSigned.ID()))
	assert.False(t, framework.receiverStorage.HasTransaction(underSigned.ID()))

	// with sufficiency enforced the same transfer fails and still records nothing
	strictSession, strictSenderSession := framework.connect(t)
	strictDone := make(chan error, 1)
	go func() {
		strictDone <- framework.sendFlow.SendTransaction(context.Background(), strictSenderSession, underSigned)
	}()

	strictFlow := framework.newReceiveFlow(false)
	_, err = strictFlow.ReceiveTransaction(context.Background(), strictSession)
	assert.ErrorIs(t, err, ledger.ErrInsufficientSignatures)
	assert.Equal(t, PhaseFailed, strictFlow.Phase())
	assert.False(t, framework.receiverVault.IsRecorded(underSigned.ID()))

	require.NoError(t, strictSession.Close())
	_ = awaitSender(t, strictDone)
}

func TestReceiveFlow_ReceiveEncryptedTransaction(t *testing.T) {
	framework := newFlowTestFramework(t, true, resolver.FetchEncryptedCounterparts(true))

	genesis := framework.issueTransaction([]byte("genesis"), true)
	tip := framework.issueTransaction([]byte("tip"), true, ledger.NewStateRef(genesis.ID(), 0))

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendEncryptedTransaction(context.Background(), senderSession, framework.encryptedForm(tip), tip)
	}()

	receiveFlow := framework.newReceiveFlow(true)
	receivedPair, err := receiveFlow.ReceiveEncryptedTransaction(context.Background(), receiverSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, senderDone))

	assert.Equal(t, tip.ID(), receivedPair.Transaction.ID())
	assert.Equal(t, tip.ID(), receivedPair.Encrypted.ID())
	assert.Equal(t, PhaseDone, receiveFlow.Phase())

	// both forms of the transaction and its dependency are recorded
	assert.True(t, framework.receiverVault.IsRecorded(tip.ID()))
	_, exists := framework.receiverStorage.LoadEncryptedTransaction(tip.ID())
	assert.True(t, exists)
	_, exists = framework.receiverStorage.LoadEncryptedTransaction(genesis.ID())
	assert.True(t, exists)
}

func TestReceiveFlow_ConfidentialAfterPlain(t *testing.T) {
	framework := newFlowTestFramework(t, true, resolver.FetchEncryptedCounterparts(true))

	genesis := framework.issueTransaction([]byte("genesis"), true)
	tip := framework.issueTransaction([]byte("tip"), true, ledger.NewStateRef(genesis.ID(), 0))

	// the dependency first arrives through the plain path, so only its signed form is stored
	plainSession, plainSenderSession := framework.connect(t)
	plainDone := make(chan error, 1)
	go func() {
		plainDone <- framework.sendFlow.SendTransaction(context.Background(), plainSenderSession, genesis)
	}()

	_, err := framework.newReceiveFlow(false).ReceiveTransaction(context.Background(), plainSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, plainDone))

	require.True(t, framework.receiverVault.IsRecorded(genesis.ID()))
	_, exists := framework.receiverStorage.LoadEncryptedTransaction(genesis.ID())
	require.False(t, exists)

	// a later confidential receive still pairs the dependency by backfilling its encrypted form
	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendEncryptedTransaction(context.Background(), senderSession, framework.encryptedForm(tip), tip)
	}()

	receiveFlow := framework.newReceiveFlow(true)
	receivedPair, err := receiveFlow.ReceiveEncryptedTransaction(context.Background(), receiverSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, senderDone))

	assert.Equal(t, tip.ID(), receivedPair.Transaction.ID())
	assert.Equal(t, PhaseDone, receiveFlow.Phase())
	assert.True(t, framework.receiverVault.IsRecorded(tip.ID()))

	_, exists = framework.receiverStorage.LoadEncryptedTransaction(genesis.ID())
	assert.True(t, exists)
}

func TestReceiveFlow_PairingMismatch(t *testing.T) {
	framework := newFlowTestFramework(t, true, resolver.FetchEncryptedCounterparts(true))

	genesis := framework.issueTransaction([]byte("genesis"), true)
	tip := framework.issueTransaction([]byte("tip"), true, ledger.NewStateRef(genesis.ID(), 0))

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		// the encrypted payload belongs to a different transaction
		senderDone <- framework.sendFlow.SendEncryptedTransaction(context.Background(), senderSession, framework.encryptedForm(genesis), tip)
	}()

	receiveFlow := framework.newReceiveFlow(true)
	_, err := receiveFlow.ReceiveEncryptedTransaction(context.Background(), receiverSession)
	assert.ErrorIs(t, err, verification.ErrPairingMismatch)
	assert.Equal(t, PhaseFailed, receiveFlow.Phase())

	// the exchange fails before any dependency fetch is attempted
	assert.EqualValues(t, 0, framework.resolver.Requested())
	assert.False(t, framework.receiverStorage.HasTransaction(genesis.ID()))

	require.NoError(t, receiverSession.Close())
	_ = awaitSender(t, senderDone)
}

func TestReceiveFlow_PreRecordCheck(t *testing.T) {
	framework := newFlowTestFramework(t, false)

	errRejected := errors.New("rejected by policy")
	tip := framework.issueTransaction([]byte("tip"), false)

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendTransaction(context.Background(), senderSession, tip)
	}()

	receiveFlow := framework.newReceiveFlow(false, BeforeRecording(func(*ledger.SignedTransaction) error {
		return errRejected
	}))
	_, err := receiveFlow.ReceiveTransaction(context.Background(), receiverSession)
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, PhaseFailed, receiveFlow.Phase())
	assert.False(t, framework.receiverVault.IsRecorded(tip.ID()))

	require.NoError(t, awaitSender(t, senderDone))
}

func TestReceiveFlow_ReceiveStateRefs(t *testing.T) {
	framework := newFlowTestFramework(t, false)

	genesis := framework.issueTransaction([]byte("genesis"), false)
	mid := framework.issueTransaction([]byte("mid"), false, ledger.NewStateRef(genesis.ID(), 0))
	stateRefs := []ledger.StateRef{ledger.NewStateRef(mid.ID(), 0)}

	receiverSession, senderSession := framework.connect(t)
	senderDone := make(chan error, 1)
	go func() {
		senderDone <- framework.sendFlow.SendStateRefs(context.Background(), senderSession, stateRefs)
	}()

	receiveFlow := framework.newReceiveFlow(false)
	receivedRefs, err := receiveFlow.ReceiveStateRefs(context.Background(), receiverSession)
	require.NoError(t, err)
	require.NoError(t, awaitSender(t, senderDone))

	// the refs come back unchanged and their closures are locally available
	assert.Equal(t, stateRefs, receivedRefs)
	assert.Equal(t, PhaseDone, receiveFlow.Phase())
	assert.True(t, framework.receiverStorage.HasTransaction(genesis.ID()))
	assert.True(t, framework.receiverStorage.HasTransaction(mid.ID()))
}
