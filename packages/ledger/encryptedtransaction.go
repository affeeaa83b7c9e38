package ledger

import (
	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/objectstorage"
	"github.com/iotaledger/hive.go/stringify"
)

// region EncryptedTransaction /////////////////////////////////////////////////////////////////////////////////////////

// EncryptedTransaction is an opaque payload that is bound to a SignedTransaction by identifier equality. It is only
// used by the confidential verification path and is never inspected by this module - decrypting it is the job of the
// confidential verifier.
type EncryptedTransaction struct {
	id      TransactionID
	payload []byte

	objectstorage.StorableObjectFlags
}

// NewEncryptedTransaction creates a new EncryptedTransaction from the given details.
func NewEncryptedTransaction(id TransactionID, payload []byte) *EncryptedTransaction {
	return &EncryptedTransaction{
		id:      id,
		payload: payload,
	}
}

// EncryptedTransactionFromBytes unmarshals an EncryptedTransaction from a sequence of bytes.
func EncryptedTransactionFromBytes(bytes []byte) (encryptedTransaction *EncryptedTransaction, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if encryptedTransaction, err = EncryptedTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse EncryptedTransaction from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// EncryptedTransactionFromMarshalUtil unmarshals an EncryptedTransaction using a MarshalUtil (for easier
// unmarshaling).
func EncryptedTransactionFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (encryptedTransaction *EncryptedTransaction, err error) {
	encryptedTransaction = &EncryptedTransaction{}
	if encryptedTransaction.id, err = TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}

	payloadLength, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse payload length (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	if encryptedTransaction.payload, err = marshalUtil.ReadBytes(int(payloadLength)); err != nil {
		err = errors.Errorf("failed to parse payload (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	return
}

// EncryptedTransactionFromObjectStorage restores an EncryptedTransaction that was stored in the ObjectStorage.
func EncryptedTransactionFromObjectStorage(key []byte, data []byte) (encryptedTransaction objectstorage.StorableObject, err error) {
	if encryptedTransaction, _, err = EncryptedTransactionFromBytes(data); err != nil {
		err = errors.Errorf("failed to parse EncryptedTransaction from bytes: %w", err)
		return
	}

	return
}

// ID returns the identifier of the SignedTransaction that the EncryptedTransaction is bound to.
func (e *EncryptedTransaction) ID() TransactionID {
	return e.id
}

// Payload returns the opaque payload of the EncryptedTransaction.
func (e *EncryptedTransaction) Payload() []byte {
	return e.payload
}

// Bytes returns a marshaled version of the EncryptedTransaction.
func (e *EncryptedTransaction) Bytes() []byte {
	return marshalutil.New().
		Write(e.id).
		WriteUint32(uint32(len(e.payload))).
		WriteBytes(e.payload).
		Bytes()
}

// String creates a human readable version of the EncryptedTransaction.
func (e *EncryptedTransaction) String() string {
	return stringify.Struct("EncryptedTransaction",
		stringify.StructField("id", e.id),
		stringify.StructField("payloadLength", len(e.payload)),
	)
}

// Update is disabled and panics if it ever gets called - it is required to match the StorableObject interface.
func (e *EncryptedTransaction) Update(objectstorage.StorableObject) {
	panic("updates disabled")
}

// ObjectStorageKey returns the key that is used to store the object in the database. It is required to match the
// StorableObject interface.
func (e *EncryptedTransaction) ObjectStorageKey() []byte {
	return e.id.Bytes()
}

// ObjectStorageValue marshals the EncryptedTransaction into a sequence of bytes.
func (e *EncryptedTransaction) ObjectStorageValue() []byte {
	return e.Bytes()
}

// code contract (make sure the struct implements all required methods)
var _ objectstorage.StorableObject = &EncryptedTransaction{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region CachedEncryptedTransaction ///////////////////////////////////////////////////////////////////////////////////

// CachedEncryptedTransaction is a wrapper for the generic CachedObject returned by the object storage that overrides
// the accessor methods with a type-casted one.
type CachedEncryptedTransaction struct {
	objectstorage.CachedObject
}

// Retain marks the CachedObject to still be in use by the program.
func (c *CachedEncryptedTransaction) Retain() *CachedEncryptedTransaction {
	return &CachedEncryptedTransaction{c.CachedObject.Retain()}
}

// Unwrap is the type-casted equivalent of Get. It returns nil if the object does not exist.
func (c *CachedEncryptedTransaction) Unwrap() *EncryptedTransaction {
	untypedObject := c.Get()
	if untypedObject == nil {
		return nil
	}

	typedObject := untypedObject.(*EncryptedTransaction)
	if typedObject == nil || typedObject.IsDeleted() {
		return nil
	}

	return typedObject
}

// Consume unwraps the CachedObject and passes a type-casted version to the consumer (if the object is not empty - it
// exists). It automatically releases the object when the consumer finishes.
func (c *CachedEncryptedTransaction) Consume(consumer func(encryptedTransaction *EncryptedTransaction), forceRelease ...bool) (consumed bool) {
	return c.CachedObject.Consume(func(object objectstorage.StorableObject) {
		consumer(object.(*EncryptedTransaction))
	}, forceRelease...)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
