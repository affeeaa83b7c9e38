package ledger

import (
	"path/filepath"
	"testing"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/database"
)

func buildChain(t *testing.T, notary *identity.Identity, keyPair ed25519.KeyPair) (genesis *SignedTransaction, child *SignedTransaction) {
	t.Helper()

	genesis = SignTransaction(NewWireTransaction(
		nil,
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("genesis state")), notary)},
		nil,
		Commands{NewCommand([]byte("issue"), keyPair.PublicKey)},
		EmptyParametersHash,
	), keyPair)

	child = SignTransaction(NewWireTransaction(
		[]StateRef{NewStateRef(genesis.ID(), 0)},
		[]*TransactionState{NewTransactionState(NewDataState(DataStateType, []byte("child state")), notary)},
		nil,
		Commands{NewCommand([]byte("move"), keyPair.PublicKey)},
		EmptyParametersHash,
	), keyPair)

	return
}

func TestVault_Record(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	keyPair := ed25519.GenerateKeyPair()
	genesis, child := buildChain(t, notary, keyPair)

	vault, err := NewVault(NewTransactionStorage(database.NewMemDB()))
	require.NoError(t, err)

	// a transaction cannot be recorded before its dependencies
	assert.ErrorIs(t, vault.Record(StatesToRecordAllVisible, child), ErrDependenciesMissing)
	assert.False(t, vault.IsRecorded(child.ID()))

	// recording the whole batch in dependency order works
	require.NoError(t, vault.Record(StatesToRecordAllVisible, genesis, child))
	assert.True(t, vault.IsRecorded(genesis.ID()))
	assert.True(t, vault.IsRecorded(child.ID()))
	assert.Equal(t, 2, vault.RecordedCount())

	state, exists := vault.StateByRef(NewStateRef(child.ID(), 0))
	require.True(t, exists)
	assert.Equal(t, []byte("child state"), state.State().Bytes())
}

func TestVault_StatesToRecord(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	keyPair := ed25519.GenerateKeyPair()
	genesis, _ := buildChain(t, notary, keyPair)

	t.Run("None", func(t *testing.T) {
		vault, err := NewVault(NewTransactionStorage(database.NewMemDB()))
		require.NoError(t, err)
		require.NoError(t, vault.Record(StatesToRecordNone, genesis))

		assert.True(t, vault.IsRecorded(genesis.ID()))
		_, exists := vault.StateByRef(NewStateRef(genesis.ID(), 0))
		assert.False(t, exists)
	})

	t.Run("OnlyRelevant", func(t *testing.T) {
		vault, err := NewVault(NewTransactionStorage(database.NewMemDB()), WithRelevanceFunc(func(state *TransactionState) bool {
			return false
		}))
		require.NoError(t, err)
		require.NoError(t, vault.Record(StatesToRecordOnlyRelevant, genesis))

		_, exists := vault.StateByRef(NewStateRef(genesis.ID(), 0))
		assert.False(t, exists)
	})

	t.Run("AllVisible", func(t *testing.T) {
		vault, err := NewVault(NewTransactionStorage(database.NewMemDB()))
		require.NoError(t, err)
		require.NoError(t, vault.Record(StatesToRecordAllVisible, genesis))

		_, exists := vault.StateByRef(NewStateRef(genesis.ID(), 0))
		assert.True(t, exists)
	})
}

func TestVault_Persistence(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	keyPair := ed25519.GenerateKeyPair()
	genesis, child := buildChain(t, notary, keyPair)

	path := filepath.Join(t.TempDir(), "vault.db")

	vault, err := NewVault(NewTransactionStorage(database.NewMemDB()), WithPath(path))
	require.NoError(t, err)
	require.NoError(t, vault.Record(StatesToRecordAllVisible, genesis, child))
	require.NoError(t, vault.RecordAttestation(child.ID(), []byte("attestation")))
	require.NoError(t, vault.Close())

	restoredVault, err := NewVault(NewTransactionStorage(database.NewMemDB()), WithPath(path))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, restoredVault.Close())
	}()

	assert.True(t, restoredVault.IsRecorded(genesis.ID()))
	assert.True(t, restoredVault.IsRecorded(child.ID()))

	state, exists := restoredVault.StateByRef(NewStateRef(genesis.ID(), 0))
	require.True(t, exists)
	assert.Equal(t, []byte("genesis state"), state.State().Bytes())
}

func TestVault_Events(t *testing.T) {
	notary := identity.New(ed25519.GenerateKeyPair().PublicKey)
	keyPair := ed25519.GenerateKeyPair()
	genesis, _ := buildChain(t, notary, keyPair)

	vault, err := NewVault(NewTransactionStorage(database.NewMemDB()))
	require.NoError(t, err)

	recordedIDs := make([]TransactionID, 0)
	vault.Events.TransactionRecorded.Attach(events.NewClosure(func(transactionID TransactionID) {
		recordedIDs = append(recordedIDs, transactionID)
	}))

	require.NoError(t, vault.Record(StatesToRecordNone, genesis))
	assert.Equal(t, []TransactionID{genesis.ID()}, recordedIDs)
}
