package ledger

import (
	"sync"
	"time"

	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/objectstorage"
	"github.com/iotaledger/hive.go/types"

	"github.com/trustweave/ledgercore/packages/database"
)

// region TransactionStorage ///////////////////////////////////////////////////////////////////////////////////////////

const (
	// PrefixSignedTransactionStorage defines the storage prefix for the SignedTransaction object storage.
	PrefixSignedTransactionStorage byte = iota

	// PrefixEncryptedTransactionStorage defines the storage prefix for the EncryptedTransaction object storage.
	PrefixEncryptedTransactionStorage
)

// signedTransactionStorageOptions contains a list of default settings for the SignedTransaction object storage.
var signedTransactionStorageOptions = []objectstorage.Option{
	objectstorage.CacheTime(60 * time.Second),
	objectstorage.LeakDetectionEnabled(false),
	objectstorage.StoreOnCreation(true),
}

// TransactionStorage is the local store for SignedTransactions and the encrypted counterparts of confidentially
// received ones. Everything that has been resolved and verified ends up here; the dependency resolver treats its
// content as "already known" and never re-requests it.
type TransactionStorage struct {
	transactionStorage          *objectstorage.ObjectStorage
	encryptedTransactionStorage *objectstorage.ObjectStorage

	shutdownOnce sync.Once
}

// NewTransactionStorage creates a new TransactionStorage on top of the given KVStore.
func NewTransactionStorage(store kvstore.KVStore) (transactionStorage *TransactionStorage) {
	osFactory := objectstorage.NewFactory(store, database.PrefixLedger)

	return &TransactionStorage{
		transactionStorage:          osFactory.New(PrefixSignedTransactionStorage, SignedTransactionFromObjectStorage, signedTransactionStorageOptions...),
		encryptedTransactionStorage: osFactory.New(PrefixEncryptedTransactionStorage, EncryptedTransactionFromObjectStorage, signedTransactionStorageOptions...),
	}
}

// StoreTransaction stores the given SignedTransaction. It returns true if the transaction was stored and false if it
// was known already.
func (t *TransactionStorage) StoreTransaction(signedTransaction *SignedTransaction) (stored bool) {
	cachedTransaction, stored := t.transactionStorage.StoreIfAbsent(signedTransaction)
	if cachedTransaction != nil {
		cachedTransaction.Release()
	}

	return
}

// Transaction retrieves the SignedTransaction with the given id from the object storage.
func (t *TransactionStorage) Transaction(transactionID TransactionID) *CachedSignedTransaction {
	return &CachedSignedTransaction{CachedObject: t.transactionStorage.Load(transactionID.Bytes())}
}

// LoadTransaction returns the SignedTransaction with the given id (if it is available).
func (t *TransactionStorage) LoadTransaction(transactionID TransactionID) (signedTransaction *SignedTransaction, exists bool) {
	t.Transaction(transactionID).Consume(func(storedTransaction *SignedTransaction) {
		signedTransaction = storedTransaction
		exists = true
	})

	return
}

// HasTransaction returns true if a SignedTransaction with the given id is stored locally.
func (t *TransactionStorage) HasTransaction(transactionID TransactionID) (exists bool) {
	_, exists = t.LoadTransaction(transactionID)

	return
}

// StoreEncryptedTransaction stores the given EncryptedTransaction. It returns true if the transaction was stored and
// false if it was known already.
func (t *TransactionStorage) StoreEncryptedTransaction(encryptedTransaction *EncryptedTransaction) (stored bool) {
	cachedTransaction, stored := t.encryptedTransactionStorage.StoreIfAbsent(encryptedTransaction)
	if cachedTransaction != nil {
		cachedTransaction.Release()
	}

	return
}

// EncryptedTransaction retrieves the EncryptedTransaction with the given id from the object storage.
func (t *TransactionStorage) EncryptedTransaction(transactionID TransactionID) *CachedEncryptedTransaction {
	return &CachedEncryptedTransaction{CachedObject: t.encryptedTransactionStorage.Load(transactionID.Bytes())}
}

// LoadEncryptedTransaction returns the EncryptedTransaction with the given id (if it is available).
func (t *TransactionStorage) LoadEncryptedTransaction(transactionID TransactionID) (encryptedTransaction *EncryptedTransaction, exists bool) {
	t.EncryptedTransaction(transactionID).Consume(func(storedTransaction *EncryptedTransaction) {
		encryptedTransaction = storedTransaction
		exists = true
	})

	return
}

// MissingDependencyIDs returns the ids of the given WireTransaction's dependencies that are not stored locally.
func (t *TransactionStorage) MissingDependencyIDs(wireTransaction *WireTransaction) (missingIDs map[TransactionID]types.Empty) {
	missingIDs = make(map[TransactionID]types.Empty)
	for dependencyID := range wireTransaction.DependencyIDs() {
		if !t.HasTransaction(dependencyID) {
			missingIDs[dependencyID] = types.Void
		}
	}

	return
}

// Prune resets the TransactionStorage and deletes all stored transactions.
func (t *TransactionStorage) Prune() (err error) {
	if err = t.transactionStorage.Prune(); err != nil {
		return err
	}

	return t.encryptedTransactionStorage.Prune()
}

// Shutdown shuts down the underlying object storages and persists pending changes.
func (t *TransactionStorage) Shutdown() {
	t.shutdownOnce.Do(func() {
		t.transactionStorage.Shutdown()
		t.encryptedTransactionStorage.Shutdown()
	})
}

// code contract (make sure the struct implements all required methods)
var _ TransactionSource = &TransactionStorage{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
