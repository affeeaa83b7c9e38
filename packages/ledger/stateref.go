package ledger

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/marshalutil"
)

// region StateRef /////////////////////////////////////////////////////////////////////////////////////////////////////

// StateRefLength contains the amount of bytes that a marshaled version of the StateRef contains.
const StateRefLength = TransactionIDLength + marshalutil.Uint16Size

// StateRef is a reference to one output of a specific transaction. It never owns the referenced TransactionState -
// resolving it requires a lookup that may fail.
type StateRef struct {
	TransactionID TransactionID
	Index         uint16
}

// NewStateRef creates a new StateRef from the given details.
func NewStateRef(transactionID TransactionID, index uint16) StateRef {
	return StateRef{
		TransactionID: transactionID,
		Index:         index,
	}
}

// StateRefFromBytes unmarshals a StateRef from a sequence of bytes.
func StateRefFromBytes(bytes []byte) (stateRef StateRef, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if stateRef, err = StateRefFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse StateRef from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// StateRefFromMarshalUtil unmarshals a StateRef using a MarshalUtil (for easier unmarshaling).
func StateRefFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (stateRef StateRef, err error) {
	if stateRef.TransactionID, err = TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}
	if stateRef.Index, err = marshalUtil.ReadUint16(); err != nil {
		err = errors.Errorf("failed to parse output index (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	return
}

// Bytes returns a marshaled version of the StateRef.
func (s StateRef) Bytes() []byte {
	return marshalutil.New(StateRefLength).
		Write(s.TransactionID).
		WriteUint16(s.Index).
		Bytes()
}

// String creates a human readable version of the StateRef.
func (s StateRef) String() string {
	return "StateRef(" + s.TransactionID.Base58() + ", " + strconv.Itoa(int(s.Index)) + ")"
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
