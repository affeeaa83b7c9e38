package ledger

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/objectstorage"
	"github.com/iotaledger/hive.go/stringify"
	"github.com/iotaledger/hive.go/types"
)

// region TransactionSignature /////////////////////////////////////////////////////////////////////////////////////////

// TransactionSignature is a detached signature over the marshaled WireTransaction, keyed by the public key that
// produced it.
type TransactionSignature struct {
	publicKey ed25519.PublicKey
	signature ed25519.Signature
}

// NewTransactionSignature creates a new TransactionSignature from the given details.
func NewTransactionSignature(publicKey ed25519.PublicKey, signature ed25519.Signature) *TransactionSignature {
	return &TransactionSignature{
		publicKey: publicKey,
		signature: signature,
	}
}

// TransactionSignatureFromMarshalUtil unmarshals a TransactionSignature using a MarshalUtil (for easier unmarshaling).
func TransactionSignatureFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (transactionSignature *TransactionSignature, err error) {
	transactionSignature = &TransactionSignature{}
	if transactionSignature.publicKey, err = ed25519.ParsePublicKey(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse public key (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	if transactionSignature.signature, err = ed25519.ParseSignature(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse signature (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	return
}

// PublicKey returns the public key that the TransactionSignature belongs to.
func (t *TransactionSignature) PublicKey() ed25519.PublicKey {
	return t.publicKey
}

// Signature returns the raw signature of the TransactionSignature.
func (t *TransactionSignature) Signature() ed25519.Signature {
	return t.signature
}

// Valid returns true if the TransactionSignature correctly signs the given data.
func (t *TransactionSignature) Valid(data []byte) bool {
	return t.publicKey.VerifySignature(data, t.signature)
}

// Bytes returns a marshaled version of the TransactionSignature.
func (t *TransactionSignature) Bytes() []byte {
	return marshalutil.New(ed25519.PublicKeySize + ed25519.SignatureSize).
		WriteBytes(t.publicKey.Bytes()).
		WriteBytes(t.signature.Bytes()).
		Bytes()
}

// String creates a human readable version of the TransactionSignature.
func (t *TransactionSignature) String() string {
	return stringify.Struct("TransactionSignature",
		stringify.StructField("publicKey", t.publicKey),
		stringify.StructField("signature", t.signature),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region SignedTransaction ////////////////////////////////////////////////////////////////////////////////////////////

// SignedTransaction is a WireTransaction together with the detached signatures that were collected for it. The set of
// signer keys that the WireTransaction requires is checked against these signatures by VerifySignatures.
type SignedTransaction struct {
	wireTransaction *WireTransaction
	signatures      []*TransactionSignature

	objectstorage.StorableObjectFlags
}

// NewSignedTransaction creates a new SignedTransaction from the given details.
func NewSignedTransaction(wireTransaction *WireTransaction, signatures ...*TransactionSignature) *SignedTransaction {
	return &SignedTransaction{
		wireTransaction: wireTransaction,
		signatures:      signatures,
	}
}

// SignTransaction creates a SignedTransaction by signing the marshaled WireTransaction with the given key pairs.
func SignTransaction(wireTransaction *WireTransaction, keyPairs ...ed25519.KeyPair) *SignedTransaction {
	wireTransactionBytes := wireTransaction.Bytes()

	signatures := make([]*TransactionSignature, len(keyPairs))
	for i, keyPair := range keyPairs {
		signatures[i] = NewTransactionSignature(keyPair.PublicKey, keyPair.PrivateKey.Sign(wireTransactionBytes))
	}

	return NewSignedTransaction(wireTransaction, signatures...)
}

// SignedTransactionFromBytes unmarshals a SignedTransaction from a sequence of bytes.
func SignedTransactionFromBytes(bytes []byte) (signedTransaction *SignedTransaction, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if signedTransaction, err = SignedTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse SignedTransaction from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// SignedTransactionFromMarshalUtil unmarshals a SignedTransaction using a MarshalUtil (for easier unmarshaling).
func SignedTransactionFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (signedTransaction *SignedTransaction, err error) {
	signedTransaction = &SignedTransaction{}
	if signedTransaction.wireTransaction, err = WireTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse WireTransaction from MarshalUtil: %w", err)
		return
	}

	signatureCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse signature count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	signedTransaction.signatures = make([]*TransactionSignature, signatureCount)
	for i := uint16(0); i < signatureCount; i++ {
		if signedTransaction.signatures[i], err = TransactionSignatureFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse TransactionSignature from MarshalUtil: %w", err)
			return
		}
	}

	return
}

// SignedTransactionFromObjectStorage restores a SignedTransaction that was stored in the ObjectStorage.
func SignedTransactionFromObjectStorage(key []byte, data []byte) (signedTransaction objectstorage.StorableObject, err error) {
	if signedTransaction, _, err = SignedTransactionFromBytes(data); err != nil {
		err = errors.Errorf("failed to parse SignedTransaction from bytes: %w", err)
		return
	}

	return
}

// ID returns the identifier of the SignedTransaction which equals the identifier of its WireTransaction.
func (s *SignedTransaction) ID() TransactionID {
	return s.wireTransaction.ID()
}

// Wire returns the WireTransaction that the signatures belong to.
func (s *SignedTransaction) Wire() *WireTransaction {
	return s.wireTransaction
}

// Signatures returns the detached signatures of the SignedTransaction.
func (s *SignedTransaction) Signatures() []*TransactionSignature {
	return s.signatures
}

// SignatureByKey returns the TransactionSignature that belongs to the given public key (if it exists).
func (s *SignedTransaction) SignatureByKey(publicKey ed25519.PublicKey) (transactionSignature *TransactionSignature, exists bool) {
	for _, signature := range s.signatures {
		if signature.PublicKey() == publicKey {
			return signature, true
		}
	}

	return nil, false
}

// VerifySignatures checks that every attached signature is valid for the marshaled WireTransaction and - if
// checkSufficient is set - that every required signer key has a matching signature attached. It returns
// ErrSignatureInvalid or ErrInsufficientSignatures accordingly.
func (s *SignedTransaction) VerifySignatures(requiredSigners map[ed25519.PublicKey]types.Empty, checkSufficient bool) (err error) {
	wireTransactionBytes := s.wireTransaction.Bytes()

	for _, signature := range s.signatures {
		if !signature.Valid(wireTransactionBytes) {
			return errors.Errorf("signature of key %s does not sign transaction with %s: %w", signature.PublicKey(), s.ID(), ErrSignatureInvalid)
		}
	}

	if !checkSufficient {
		return nil
	}

	for requiredSigner := range requiredSigners {
		if _, exists := s.SignatureByKey(requiredSigner); !exists {
			return errors.Errorf("missing signature of required key %s on transaction with %s: %w", requiredSigner, s.ID(), ErrInsufficientSignatures)
		}
	}

	return nil
}

// Bytes returns a marshaled version of the SignedTransaction.
func (s *SignedTransaction) Bytes() []byte {
	marshalUtil := marshalutil.New().
		WriteBytes(s.wireTransaction.Bytes()).
		WriteUint16(uint16(len(s.signatures)))
	for _, signature := range s.signatures {
		marshalUtil.WriteBytes(signature.Bytes())
	}

	return marshalUtil.Bytes()
}

// String creates a human readable version of the SignedTransaction.
func (s *SignedTransaction) String() string {
	structBuilder := stringify.StructBuilder("SignedTransaction",
		stringify.StructField("wireTransaction", s.wireTransaction),
	)
	for i, signature := range s.signatures {
		structBuilder.AddField(stringify.StructField("signature"+strconv.Itoa(i), signature))
	}

	return structBuilder.String()
}

// Update is disabled and panics if it ever gets called - it is required to match the StorableObject interface.
func (s *SignedTransaction) Update(objectstorage.StorableObject) {
	panic("updates disabled")
}

// ObjectStorageKey returns the key that is used to store the object in the database. It is required to match the
// StorableObject interface.
func (s *SignedTransaction) ObjectStorageKey() []byte {
	return s.ID().Bytes()
}

// ObjectStorageValue marshals the SignedTransaction into a sequence of bytes. The ID is not serialized here as it is
// only used as a key in the ObjectStorage.
func (s *SignedTransaction) ObjectStorageValue() []byte {
	return s.Bytes()
}

// code contract (make sure the struct implements all required methods)
var _ objectstorage.StorableObject = &SignedTransaction{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region CachedSignedTransaction //////////////////////////////////////////////////////////////////////////////////////

// CachedSignedTransaction is a wrapper for the generic CachedObject returned by the object storage that overrides the
// accessor methods with a type-casted one.
type CachedSignedTransaction struct {
	objectstorage.CachedObject
}

// Retain marks the CachedObject to still be in use by the program.
func (c *CachedSignedTransaction) Retain() *CachedSignedTransaction {
	return &CachedSignedTransaction{c.CachedObject.Retain()}
}

// Unwrap is the type-casted equivalent of Get. It returns nil if the object does not exist.
func (c *CachedSignedTransaction) Unwrap() *SignedTransaction {
	untypedObject := c.Get()
	if untypedObject == nil {
		return nil
	}

	typedObject := untypedObject.(*SignedTransaction)
	if typedObject == nil || typedObject.IsDeleted() {
		return nil
	}

	return typedObject
}

// Consume unwraps the CachedObject and passes a type-casted version to the consumer (if the object is not empty - it
// exists). It automatically releases the object when the consumer finishes.
func (c *CachedSignedTransaction) Consume(consumer func(signedTransaction *SignedTransaction), forceRelease ...bool) (consumed bool) {
	return c.CachedObject.Consume(func(object objectstorage.StorableObject) {
		consumer(object.(*SignedTransaction))
	}, forceRelease...)
}

// String returns a human readable version of the CachedSignedTransaction.
func (c *CachedSignedTransaction) String() string {
	return stringify.Struct("CachedSignedTransaction",
		stringify.StructField("CachedObject", c.Unwrap()),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
