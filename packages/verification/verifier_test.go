package verification

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/database"
	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/parties"
)

var errForbiddenState = errors.New("state must not be consumed")

// forbiddenState is a contract state whose rule rejects every transaction that touches it.
type forbiddenState struct{}

func (f *forbiddenState) Type() ledger.StateType { return 7 }
func (f *forbiddenState) Bytes() []byte          { return []byte("forbidden") }
func (f *forbiddenState) Validate(*ledger.LedgerTransaction) error {
	return errForbiddenState
}

type verifierTestFramework struct {
	storage        *ledger.TransactionStorage
	attachments    *ledger.AttachmentStore
	registry       *parties.Registry
	verifier       *Verifier
	notary         *identity.Identity
	keyPair        ed25519.KeyPair
	parametersHash ledger.ParametersHash
}

func newVerifierTestFramework(t *testing.T) *verifierTestFramework {
	t.Helper()

	framework := &verifierTestFramework{
		storage:        ledger.NewTransactionStorage(database.NewMemDB()),
		attachments:    ledger.NewAttachmentStore(database.NewMemDB()),
		registry:       parties.NewRegistry(),
		notary:         identity.New(ed25519.GenerateKeyPair().PublicKey),
		keyPair:        ed25519.GenerateKeyPair(),
		parametersHash: ledger.ParametersHashFromContent([]byte("test network")),
	}
	framework.registry.Register(identity.New(framework.keyPair.PublicKey))
	framework.verifier = New(
		WithSources(framework.storage, framework.attachments),
		WithPartyResolver(framework.registry),
		WithParametersHash(framework.parametersHash),
	)

	t.Cleanup(func() {
		framework.storage.Shutdown()
		framework.attachments.Shutdown()
	})

	return framework
}

func (f *verifierTestFramework) issueTransaction(state ledger.StatePayload, inputs ...ledger.StateRef) *ledger.SignedTransaction {
	return ledger.SignTransaction(ledger.NewWireTransaction(
		inputs,
		[]*ledger.TransactionState{ledger.NewTransactionState(state, f.notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), f.keyPair.PublicKey)},
		f.parametersHash,
	), f.keyPair)
}

func TestVerifier_CheckParametersHash(t *testing.T) {
	framework := newVerifierTestFramework(t)

	matching := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("ok")))
	assert.NoError(t, framework.verifier.CheckParametersHash(matching.Wire()))

	foreign := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("foreign")), framework.notary)},
		nil,
		nil,
		ledger.ParametersHashFromContent([]byte("other network")),
	), framework.keyPair)
	assert.ErrorIs(t, framework.verifier.CheckParametersHash(foreign.Wire()), ErrParametersMismatch)
}

func TestVerifier_ResolveTransaction(t *testing.T) {
	framework := newVerifierTestFramework(t)

	genesis := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("genesis")))

	// resolving against an empty storage fails
	child := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("child")), ledger.NewStateRef(genesis.ID(), 0))
	_, err := framework.verifier.ResolveTransaction(child.Wire())
	assert.ErrorIs(t, err, ErrTransactionResolution)

	framework.storage.StoreTransaction(genesis)

	ledgerTransaction, err := framework.verifier.ResolveTransaction(child.Wire())
	require.NoError(t, err)
	require.Len(t, ledgerTransaction.Inputs(), 1)
	assert.Equal(t, []byte("genesis"), ledgerTransaction.Inputs()[0].State().State().Bytes())

	// a reference to a nonexistent output index fails
	badIndex := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("bad")), ledger.NewStateRef(genesis.ID(), 9))
	_, err = framework.verifier.ResolveTransaction(badIndex.Wire())
	assert.ErrorIs(t, err, ledger.ErrIndexOutOfRange)
}

func TestVerifier_ResolveTransaction_CommandAuthentication(t *testing.T) {
	framework := newVerifierTestFramework(t)
	unmappedKeyPair := ed25519.GenerateKeyPair()

	signedTransaction := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("state")), framework.notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), framework.keyPair.PublicKey, unmappedKeyPair.PublicKey)},
		framework.parametersHash,
	), framework.keyPair, unmappedKeyPair)

	ledgerTransaction, err := framework.verifier.ResolveTransaction(signedTransaction.Wire())
	require.NoError(t, err)
	require.Len(t, ledgerTransaction.Commands(), 1)

	// keys without a registered identity are dropped silently
	commandParties := ledgerTransaction.Commands()[0].Parties()
	require.Len(t, commandParties, 1)
	assert.Equal(t, framework.keyPair.PublicKey, commandParties[0].PublicKey())
}

func TestVerifier_ResolveTransaction_Attachments(t *testing.T) {
	framework := newVerifierTestFramework(t)

	attachmentID := framework.attachments.Import([]byte("contract code"))
	withAttachment := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("state")), framework.notary)},
		[]ledger.AttachmentID{attachmentID},
		nil,
		framework.parametersHash,
	), framework.keyPair)

	ledgerTransaction, err := framework.verifier.ResolveTransaction(withAttachment.Wire())
	require.NoError(t, err)
	require.Len(t, ledgerTransaction.Attachments(), 1)
	assert.Equal(t, []byte("contract code"), ledgerTransaction.Attachments()[0].Content())

	missing := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		nil,
		[]ledger.AttachmentID{ledger.NewAttachment([]byte("never imported")).ID()},
		nil,
		framework.parametersHash,
	), framework.keyPair)
	_, err = framework.verifier.ResolveTransaction(missing.Wire())
	assert.ErrorIs(t, err, ErrAttachmentResolution)
}

func TestVerifier_VerifyTransaction(t *testing.T) {
	framework := newVerifierTestFramework(t)

	valid := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("valid")))
	assert.NoError(t, framework.verifier.VerifyTransaction(valid, true))

	// a violated contract rule surfaces as a verification error with the cause preserved
	invalid := framework.issueTransaction(&forbiddenState{})
	err := framework.verifier.VerifyTransaction(invalid, true)
	assert.ErrorIs(t, err, ErrTransactionVerification)
	assert.Contains(t, err.Error(), errForbiddenState.Error())

	// insufficient signatures only fail when sufficiency is enforced
	otherKeyPair := ed25519.GenerateKeyPair()
	underSigned := ledger.SignTransaction(ledger.NewWireTransaction(
		nil,
		[]*ledger.TransactionState{ledger.NewTransactionState(ledger.NewDataState(ledger.DataStateType, []byte("state")), framework.notary)},
		nil,
		ledger.Commands{ledger.NewCommand([]byte("cmd"), framework.keyPair.PublicKey, otherKeyPair.PublicKey)},
		framework.parametersHash,
	), framework.keyPair)
	assert.ErrorIs(t, framework.verifier.VerifyTransaction(underSigned, true), ledger.ErrInsufficientSignatures)
	assert.NoError(t, framework.verifier.VerifyTransaction(underSigned, false))
}

func TestVerifier_VerifyConfidential(t *testing.T) {
	framework := newVerifierTestFramework(t)

	enclaveKeyPair := ed25519.GenerateKeyPair()
	confidentialVerifier := New(
		WithSources(framework.storage, framework.attachments),
		WithPartyResolver(framework.registry),
		WithParametersHash(framework.parametersHash),
		WithConfidentialVerifier(NewLocalEnclave(enclaveKeyPair, framework.registry, framework.attachments, framework.parametersHash)),
	)

	genesis := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("genesis")))
	child := framework.issueTransaction(ledger.NewDataState(ledger.DataStateType, []byte("child")), ledger.NewStateRef(genesis.ID(), 0))

	bundle := NewBundle(
		ledger.NewEncryptedTransaction(child.ID(), []byte("opaque child")),
		child,
		[]*DependencyPair{NewDependencyPair(ledger.NewEncryptedTransaction(genesis.ID(), []byte("opaque genesis")), genesis)},
	)

	attestedResult, err := confidentialVerifier.VerifyConfidential(bundle, true)
	require.NoError(t, err)
	assert.Equal(t, child.ID(), attestedResult.TransactionID())
	assert.True(t, attestedResult.Valid())

	// the signature-agnostic check produces no attestation
	attestedResult, err = confidentialVerifier.VerifyConfidential(bundle, false)
	require.NoError(t, err)
	assert.Nil(t, attestedResult)

	// a mismatched pairing fails before any verification work
	mismatched := NewBundle(
		ledger.NewEncryptedTransaction(genesis.ID(), []byte("wrong pairing")),
		child,
		nil,
	)
	_, err = confidentialVerifier.VerifyConfidential(mismatched, true)
	assert.ErrorIs(t, err, ErrPairingMismatch)

	// without a configured enclave the confidential path is unavailable
	_, err = framework.verifier.VerifyConfidential(bundle, true)
	assert.ErrorIs(t, err, ErrNoConfidentialVerifier)
}

func TestAttestedResult_Bytes(t *testing.T) {
	keyPair := ed25519.GenerateKeyPair()
	transactionID, err := ledger.TransactionIDFromRandomness()
	require.NoError(t, err)

	attestedResult := NewAttestedResult(transactionID, keyPair)
	restoredResult, _, err := AttestedResultFromBytes(attestedResult.Bytes())
	require.NoError(t, err)
	assert.Equal(t, transactionID, restoredResult.TransactionID())
	assert.True(t, restoredResult.Valid())
}
