package simulation

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/ledger"
	"github.com/trustweave/ledgercore/packages/verification"
)

var errStateLocked = errors.New("state is locked")

// lockedState is a contract state whose rule rejects every transaction that touches it.
type lockedState struct{}

func (l *lockedState) Type() ledger.StateType { return 9 }
func (l *lockedState) Bytes() []byte          { return []byte("locked") }
func (l *lockedState) Validate(*ledger.LedgerTransaction) error {
	return errStateLocked
}

// code contract (make sure the struct implements all required methods)
var _ verification.StateRule = &lockedState{}

func newTestLedger(t *testing.T) (simulatedLedger *Ledger, keyPair ed25519.KeyPair) {
	t.Helper()

	simulatedLedger, err := NewLedger(WithParametersHash(ledger.ParametersHashFromContent([]byte("simulated network"))))
	require.NoError(t, err)
	t.Cleanup(func() {
		simulatedLedger.Storage().Shutdown()
	})

	return simulatedLedger, ed25519.GenerateKeyPair()
}

func dataState(content string) *ledger.DataState {
	return ledger.NewDataState(ledger.DataStateType, []byte(content))
}

func TestLedger_LabeledOutputs(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	_, err := simulatedLedger.NewTransaction("issuance").
		AddOutput("asset", simulatedLedger.Notary(), dataState("asset state")).
		AddCommand([]byte("issue"), keyPair.PublicKey).
		RecordNonVerified(keyPair)
	require.NoError(t, err)

	state, stateRef, err := simulatedLedger.RetrieveOutputStateAndRef(ledger.DataStateType, "asset")
	require.NoError(t, err)
	assert.Equal(t, []byte("asset state"), state.State().Bytes())
	assert.EqualValues(t, 0, stateRef.Index)

	_, _, err = simulatedLedger.RetrieveOutputStateAndRef(ledger.DataStateType, "unknown")
	assert.ErrorIs(t, err, ErrNoSuchLabel)

	_, _, err = simulatedLedger.RetrieveOutputStateAndRef(ledger.StateType(42), "asset")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestLedger_Verifies(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	_, err := simulatedLedger.NewTransaction("issuance").
		AddOutput("asset", simulatedLedger.Notary(), dataState("asset state")).
		AddCommand([]byte("issue"), keyPair.PublicKey).
		RecordNonVerified(keyPair)
	require.NoError(t, err)

	_, err = simulatedLedger.NewTransaction("transfer").
		AddInputByLabel("asset").
		AddOutput("moved asset", simulatedLedger.Notary(), dataState("moved asset state")).
		AddCommand([]byte("move"), keyPair.PublicKey).
		Record(keyPair)
	require.NoError(t, err)

	// the axiom is accepted as given, only the transfer counts as verified
	verified, err := simulatedLedger.Verifies()
	require.NoError(t, err)
	assert.Equal(t, 1, verified.Count())

	// a passing ledger makes FailsWith report the unexpected success
	assert.ErrorIs(t, simulatedLedger.FailsWith("anything"), ErrUnexpectedSuccess)
}

func TestLedger_FailsWith_MissingSignature(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)
	absentKeyPair := ed25519.GenerateKeyPair()

	_, err := simulatedLedger.NewTransaction("issuance").
		AddOutput("asset", simulatedLedger.Notary(), dataState("asset state")).
		AddCommand([]byte("issue"), keyPair.PublicKey).
		RecordNonVerified(keyPair)
	require.NoError(t, err)

	// the move command demands a signature that is never provided
	_, err = simulatedLedger.NewTransaction("unauthorized transfer").
		AddInputByLabel("asset").
		AddOutput("", simulatedLedger.Notary(), dataState("moved asset state")).
		AddCommand([]byte("move"), keyPair.PublicKey, absentKeyPair.PublicKey).
		Record(keyPair)
	require.NoError(t, err)

	assert.NoError(t, simulatedLedger.FailsWith("insufficient signatures"))

	// a different expectation is rejected with the actual failure attached
	err = simulatedLedger.FailsWith("completely unrelated failure")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnexpectedSuccess)
}

func TestLedger_FailsWith_ContractViolation(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	_, err := simulatedLedger.NewTransaction("locking issuance").
		AddOutput("locked", simulatedLedger.Notary(), &lockedState{}).
		AddCommand([]byte("lock"), keyPair.PublicKey).
		Record(keyPair)
	require.NoError(t, err)

	assert.NoError(t, simulatedLedger.FailsWith(errStateLocked.Error()))
}

func TestLedger_FailureLocations(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	_, err := simulatedLedger.NewTransaction("broken transfer").
		AddInputByLabel("missing label").
		Record(keyPair)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuchLabel)
	assert.Contains(t, err.Error(), "broken transfer")
}

func TestLedger_Attachments(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	attachmentID := simulatedLedger.ImportAttachment([]byte("contract code"))

	_, err := simulatedLedger.NewTransaction("with attachment").
		AddOutput("", simulatedLedger.Notary(), dataState("state")).
		AddAttachment(attachmentID).
		AddCommand([]byte("attach"), keyPair.PublicKey).
		Record(keyPair)
	require.NoError(t, err)

	_, err = simulatedLedger.Verifies()
	assert.NoError(t, err)
}

func TestLedger_Tweak(t *testing.T) {
	simulatedLedger, keyPair := newTestLedger(t)

	_, err := simulatedLedger.NewTransaction("issuance").
		AddOutput("asset", simulatedLedger.Notary(), dataState("asset state")).
		AddCommand([]byte("issue"), keyPair.PublicKey).
		RecordNonVerified(keyPair)
	require.NoError(t, err)

	_, err = simulatedLedger.Verifies()
	require.NoError(t, err)

	// the branch can be broken without affecting the parent
	err = simulatedLedger.Tweak(func(branch *Ledger) error {
		absentKeyPair := ed25519.GenerateKeyPair()
		if _, recordErr := branch.NewTransaction("unauthorized transfer").
			AddInputByLabel("asset").
			AddOutput("stolen", branch.Notary(), dataState("stolen asset state")).
			AddCommand([]byte("move"), keyPair.PublicKey, absentKeyPair.PublicKey).
			Record(keyPair); recordErr != nil {
			return recordErr
		}

		return branch.FailsWith("insufficient signatures")
	})
	require.NoError(t, err)

	// the parent neither sees the branch's transaction nor its label
	_, err = simulatedLedger.Verifies()
	assert.NoError(t, err)
	_, _, err = simulatedLedger.RetrieveOutputStateAndRef(ledger.DataStateType, "stolen")
	assert.ErrorIs(t, err, ErrNoSuchLabel)
}
