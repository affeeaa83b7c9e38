package ledger

import (
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/types"
	bolt "go.etcd.io/bbolt"
)

// region StatesToRecord ///////////////////////////////////////////////////////////////////////////////////////////////

// StatesToRecord is the policy that decides which of a recorded transaction's output states are persisted in the
// vault.
type StatesToRecord uint8

const (
	// StatesToRecordNone records the transaction itself but none of its output states.
	StatesToRecordNone StatesToRecord = iota

	// StatesToRecordOnlyRelevant records only the output states that the vault's relevance function accepts.
	StatesToRecordOnlyRelevant

	// StatesToRecordAllVisible records every output state of the transaction.
	StatesToRecordAllVisible
)

// String returns a human readable version of the StatesToRecord.
func (s StatesToRecord) String() string {
	switch s {
	case StatesToRecordNone:
		return "StatesToRecord(None)"
	case StatesToRecordOnlyRelevant:
		return "StatesToRecord(OnlyRelevant)"
	case StatesToRecordAllVisible:
		return "StatesToRecord(AllVisible)"
	default:
		return "StatesToRecord(" + strconv.Itoa(int(s)) + ")"
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Vault ////////////////////////////////////////////////////////////////////////////////////////////////////////

var (
	bucketRecordedTransactions = []byte("recorded_transactions")
	bucketRecordedStates       = []byte("recorded_states")
	bucketAttestations         = []byte("attestations")
)

// RelevanceFunc decides whether an output state is relevant to this node when recording with
// StatesToRecordOnlyRelevant.
type RelevanceFunc func(state *TransactionState) bool

// Vault is the durable record of verified transactions and their output states. Recording is the single mutation
// point of a protocol run: a transaction only becomes visible here after its whole dependency closure was resolved
// and verified, and a transaction is never recorded before its dependencies are.
type Vault struct {
	// Events contains the Vault related events.
	Events *VaultEvents

	storage  *TransactionStorage
	db       *bolt.DB
	recorded map[TransactionID]types.Empty
	states   map[StateRef]*TransactionState
	relevant RelevanceFunc
	options  *VaultOptions

	mutex sync.RWMutex
}

// NewVault creates a new Vault on top of the given TransactionStorage. If a path is configured the vault additionally
// persists its record into a bbolt database at that path and restores it on the next start.
func NewVault(storage *TransactionStorage, options ...VaultOption) (vault *Vault, err error) {
	vault = &Vault{
		Events: &VaultEvents{
			TransactionRecorded: events.NewEvent(transactionIDEventHandler),
		},
		storage:  storage,
		recorded: make(map[TransactionID]types.Empty),
		states:   make(map[StateRef]*TransactionState),
		options:  newVaultOptions(options),
	}
	vault.relevant = vault.options.relevanceFunc

	if vault.options.path == "" {
		return vault, nil
	}

	if vault.db, err = bolt.Open(vault.options.path, 0o600, &bolt.Options{Timeout: time.Second}); err != nil {
		return nil, errors.Errorf("failed to open vault database %s: %w", vault.options.path, err)
	}
	if err = vault.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketRecordedTransactions, bucketRecordedStates, bucketAttestations} {
			if _, bucketErr := tx.CreateBucketIfNotExists(bucket); bucketErr != nil {
				return errors.Errorf("failed to create bucket %s: %w", string(bucket), bucketErr)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if err = vault.restore(); err != nil {
		return nil, errors.Errorf("failed to restore vault from %s: %w", vault.options.path, err)
	}

	return vault, nil
}

// Record durably records the given transactions and - depending on the policy - their output states. Every
// transaction's declared dependencies must already be recorded (or be part of the same call, in order) - otherwise
// the whole call fails with ErrDependenciesMissing and nothing is recorded.
func (v *Vault) Record(policy StatesToRecord, signedTransactions ...*SignedTransaction) (err error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	// check the dependency invariant over the whole batch before mutating anything
	batch := make(map[TransactionID]types.Empty)
	for _, signedTransaction := range signedTransactions {
		for dependencyID := range signedTransaction.Wire().DependencyIDs() {
			if _, recordedAlready := v.recorded[dependencyID]; recordedAlready {
				continue
			}
			if _, inBatch := batch[dependencyID]; inBatch {
				continue
			}

			return errors.Errorf("cannot record transaction with %s before its dependency with %s: %w", signedTransaction.ID(), dependencyID, ErrDependenciesMissing)
		}
		batch[signedTransaction.ID()] = types.Void
	}

	recordedNow := make([]*SignedTransaction, 0, len(signedTransactions))
	for _, signedTransaction := range signedTransactions {
		if _, recordedAlready := v.recorded[signedTransaction.ID()]; recordedAlready {
			continue
		}

		v.recorded[signedTransaction.ID()] = types.Void
		for index, output := range signedTransaction.Wire().Outputs() {
			if !v.stateRecordable(policy, output) {
				continue
			}

			v.states[NewStateRef(signedTransaction.ID(), uint16(index))] = output
		}
		recordedNow = append(recordedNow, signedTransaction)
	}

	if err = v.persist(policy, recordedNow); err != nil {
		return errors.Errorf("failed to persist vault record: %w", err)
	}

	for _, signedTransaction := range recordedNow {
		v.Events.TransactionRecorded.Trigger(signedTransaction.ID())
	}

	return nil
}

// RecordAttestation persists the enclave-attested result of a confidential verification.
func (v *Vault) RecordAttestation(transactionID TransactionID, attestation []byte) (err error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()

	if v.db == nil {
		return nil
	}

	return v.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAttestations).Put(transactionID.Bytes(), attestation)
	})
}

// IsRecorded returns true if a transaction with the given id has been recorded.
func (v *Vault) IsRecorded(transactionID TransactionID) (recorded bool) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	_, recorded = v.recorded[transactionID]

	return
}

// RecordedCount returns the number of recorded transactions.
func (v *Vault) RecordedCount() int {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	return len(v.recorded)
}

// StateByRef returns the recorded output state with the given StateRef (if its transaction was recorded under a
// policy that persisted it).
func (v *Vault) StateByRef(stateRef StateRef) (state *TransactionState, exists bool) {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	state, exists = v.states[stateRef]

	return
}

// Close closes the underlying database (if the vault is persistent).
func (v *Vault) Close() error {
	if v.db == nil {
		return nil
	}

	return v.db.Close()
}

// stateRecordable applies the StatesToRecord policy to a single output state.
func (v *Vault) stateRecordable(policy StatesToRecord, state *TransactionState) bool {
	switch policy {
	case StatesToRecordAllVisible:
		return true
	case StatesToRecordOnlyRelevant:
		return v.relevant != nil && v.relevant(state)
	default:
		return false
	}
}

// persist writes the given transactions and their recordable states to the bbolt database.
func (v *Vault) persist(policy StatesToRecord, signedTransactions []*SignedTransaction) error {
	if v.db == nil || len(signedTransactions) == 0 {
		return nil
	}

	return v.db.Update(func(tx *bolt.Tx) error {
		transactionsBucket := tx.Bucket(bucketRecordedTransactions)
		statesBucket := tx.Bucket(bucketRecordedStates)

		for _, signedTransaction := range signedTransactions {
			if err := transactionsBucket.Put(signedTransaction.ID().Bytes(), signedTransaction.Bytes()); err != nil {
				return err
			}

			for index, output := range signedTransaction.Wire().Outputs() {
				if !v.stateRecordable(policy, output) {
					continue
				}

				stateRef := NewStateRef(signedTransaction.ID(), uint16(index))
				if err := statesBucket.Put(stateRef.Bytes(), output.Bytes()); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// restore reloads the recorded transactions and states from the bbolt database and re-populates the
// TransactionStorage with the restored transactions.
func (v *Vault) restore() error {
	return v.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketRecordedTransactions).ForEach(func(key, value []byte) error {
			signedTransaction, _, parseErr := SignedTransactionFromBytes(value)
			if parseErr != nil {
				return errors.Errorf("failed to restore transaction %x: %w", key, parseErr)
			}

			v.recorded[signedTransaction.ID()] = types.Void
			v.storage.StoreTransaction(signedTransaction)

			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(bucketRecordedStates).ForEach(func(key, value []byte) error {
			stateRef, _, parseErr := StateRefFromBytes(key)
			if parseErr != nil {
				return errors.Errorf("failed to restore StateRef %x: %w", key, parseErr)
			}
			state, parseErr := TransactionStateFromMarshalUtil(marshalutil.New(value))
			if parseErr != nil {
				return errors.Errorf("failed to restore TransactionState for %s: %w", stateRef, parseErr)
			}

			v.states[stateRef] = state

			return nil
		})
	})
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region VaultOptions /////////////////////////////////////////////////////////////////////////////////////////////////

// VaultOptions is a container for all configurable parameters of a Vault.
type VaultOptions struct {
	path          string
	relevanceFunc RelevanceFunc
}

// VaultOption is a function which inits an option.
type VaultOption func(*VaultOptions)

func newVaultOptions(optionalOptions []VaultOption) *VaultOptions {
	result := &VaultOptions{}

	for _, optionalOption := range optionalOptions {
		optionalOption(result)
	}

	return result
}

// WithPath creates an option which makes the Vault persist its record into a bbolt database at the given path.
func WithPath(path string) VaultOption {
	return func(options *VaultOptions) {
		options.path = path
	}
}

// WithRelevanceFunc creates an option which sets the relevance function used by StatesToRecordOnlyRelevant.
func WithRelevanceFunc(relevanceFunc RelevanceFunc) VaultOption {
	return func(options *VaultOptions) {
		options.relevanceFunc = relevanceFunc
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region VaultEvents //////////////////////////////////////////////////////////////////////////////////////////////////

// VaultEvents represents events happening in the Vault.
type VaultEvents struct {
	// TransactionRecorded is triggered when a transaction was durably recorded.
	TransactionRecorded *events.Event
}

func transactionIDEventHandler(handler interface{}, params ...interface{}) {
	handler.(func(TransactionID))(params[0].(TransactionID))
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
