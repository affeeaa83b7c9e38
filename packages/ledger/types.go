package ledger

import (
	"crypto/rand"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// region TransactionID ////////////////////////////////////////////////////////////////////////////////////////////////

// TransactionIDLength contains the amount of bytes that a marshaled version of the TransactionID contains.
const TransactionIDLength = 32

// TransactionID is the content based identifier of a WireTransaction.
type TransactionID [TransactionIDLength]byte

// EmptyTransactionID represents the zero value of a TransactionID.
var EmptyTransactionID TransactionID

// TransactionIDFromBytes unmarshals a TransactionID from a sequence of bytes.
func TransactionIDFromBytes(bytes []byte) (transactionID TransactionID, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if transactionID, err = TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// TransactionIDFromBase58 creates a TransactionID from a base58 encoded string.
func TransactionIDFromBase58(base58String string) (transactionID TransactionID, err error) {
	decodedBytes, err := base58.Decode(base58String)
	if err != nil {
		err = errors.Errorf("error while decoding base58 encoded TransactionID (%v): %w", err, cerrors.ErrBase58DecodeFailed)
		return
	}

	if transactionID, _, err = TransactionIDFromBytes(decodedBytes); err != nil {
		err = errors.Errorf("failed to parse TransactionID from bytes: %w", err)
		return
	}

	return
}

// TransactionIDFromMarshalUtil unmarshals a TransactionID using a MarshalUtil (for easier unmarshaling).
func TransactionIDFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (transactionID TransactionID, err error) {
	transactionIDBytes, err := marshalUtil.ReadBytes(TransactionIDLength)
	if err != nil {
		err = errors.Errorf("failed to parse TransactionID (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	copy(transactionID[:], transactionIDBytes)

	return
}

// TransactionIDFromRandomness returns a random TransactionID which can for example be used in unit tests.
func TransactionIDFromRandomness() (transactionID TransactionID, err error) {
	_, err = rand.Read(transactionID[:])

	return
}

// Bytes returns a marshaled version of the TransactionID.
func (t TransactionID) Bytes() []byte {
	return t[:]
}

// Base58 returns a base58 encoded version of the TransactionID.
func (t TransactionID) Base58() string {
	return base58.Encode(t[:])
}

// String creates a human readable version of the TransactionID.
func (t TransactionID) String() string {
	return "TransactionID(" + t.Base58() + ")"
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AttachmentID /////////////////////////////////////////////////////////////////////////////////////////////////

// AttachmentIDLength contains the amount of bytes that a marshaled version of the AttachmentID contains.
const AttachmentIDLength = 32

// AttachmentID is the content hash of an attachment blob that is referenced by a WireTransaction.
type AttachmentID [AttachmentIDLength]byte

// EmptyAttachmentID represents the zero value of an AttachmentID.
var EmptyAttachmentID AttachmentID

// AttachmentIDFromBytes unmarshals an AttachmentID from a sequence of bytes.
func AttachmentIDFromBytes(bytes []byte) (attachmentID AttachmentID, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if attachmentID, err = AttachmentIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse AttachmentID from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// AttachmentIDFromMarshalUtil unmarshals an AttachmentID using a MarshalUtil (for easier unmarshaling).
func AttachmentIDFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (attachmentID AttachmentID, err error) {
	attachmentIDBytes, err := marshalUtil.ReadBytes(AttachmentIDLength)
	if err != nil {
		err = errors.Errorf("failed to parse AttachmentID (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	copy(attachmentID[:], attachmentIDBytes)

	return
}

// Bytes returns a marshaled version of the AttachmentID.
func (a AttachmentID) Bytes() []byte {
	return a[:]
}

// Base58 returns a base58 encoded version of the AttachmentID.
func (a AttachmentID) Base58() string {
	return base58.Encode(a[:])
}

// String creates a human readable version of the AttachmentID.
func (a AttachmentID) String() string {
	return "AttachmentID(" + a.Base58() + ")"
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region ParametersHash ///////////////////////////////////////////////////////////////////////////////////////////////

// ParametersHashLength contains the amount of bytes that a marshaled version of the ParametersHash contains.
const ParametersHashLength = 32

// ParametersHash is the hash of the network parameters that a transaction declares to have been built under. It is
// compared against the locally accepted hash before any dependency resolution starts.
type ParametersHash [ParametersHashLength]byte

// EmptyParametersHash represents the zero value of a ParametersHash.
var EmptyParametersHash ParametersHash

// ParametersHashFromContent derives a ParametersHash from the marshaled network parameters.
func ParametersHashFromContent(content []byte) ParametersHash {
	return blake2b.Sum256(content)
}

// ParametersHashFromMarshalUtil unmarshals a ParametersHash using a MarshalUtil (for easier unmarshaling).
func ParametersHashFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (parametersHash ParametersHash, err error) {
	parametersHashBytes, err := marshalUtil.ReadBytes(ParametersHashLength)
	if err != nil {
		err = errors.Errorf("failed to parse ParametersHash (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	copy(parametersHash[:], parametersHashBytes)

	return
}

// Bytes returns a marshaled version of the ParametersHash.
func (p ParametersHash) Bytes() []byte {
	return p[:]
}

// String creates a human readable version of the ParametersHash.
func (p ParametersHash) String() string {
	return "ParametersHash(" + base58.Encode(p[:]) + ")"
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
