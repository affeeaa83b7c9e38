package ledger

import (
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/stringify"
)

// region StateType ////////////////////////////////////////////////////////////////////////////////////////////////////

// StateType represents the type of the contract-state payload that is carried inside a TransactionState.
type StateType uint32

// StateParser unmarshals a StatePayload of a certain StateType from its raw content bytes.
type StateParser func(data []byte) (StatePayload, error)

// DataStateType is the StateType of the generic DataState.
const DataStateType StateType = 0

var (
	stateTypeRegister      = make(map[StateType]stateTypeDefinition)
	stateTypeRegisterMutex sync.RWMutex
)

type stateTypeDefinition struct {
	name   string
	parser StateParser
}

// RegisterStateType registers the parser for a StateType so that TransactionStates carrying it can be unmarshaled into
// their typed form. Unregistered StateTypes fall back to the generic DataState.
func RegisterStateType(stateType StateType, name string, parser StateParser) {
	stateTypeRegisterMutex.Lock()
	defer stateTypeRegisterMutex.Unlock()

	stateTypeRegister[stateType] = stateTypeDefinition{
		name:   name,
		parser: parser,
	}
}

// Name returns the registered name of the StateType.
func (s StateType) Name() string {
	stateTypeRegisterMutex.RLock()
	defer stateTypeRegisterMutex.RUnlock()

	if definition, exists := stateTypeRegister[s]; exists {
		return definition.name
	}

	return "StateType(" + strconv.Itoa(int(s)) + ")"
}

// String creates a human readable version of the StateType.
func (s StateType) String() string {
	return s.Name()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region StatePayload /////////////////////////////////////////////////////////////////////////////////////////////////

// StatePayload is the contract-state payload that is carried inside a TransactionState.
type StatePayload interface {
	// Type returns the StateType of the payload.
	Type() StateType

	// Bytes returns a marshaled version of the payload's content (without the type header).
	Bytes() []byte
}

// StatePayloadFromMarshalUtil unmarshals a StatePayload using a MarshalUtil. Payloads with an unregistered StateType
// are returned as a generic DataState so that parsing a transaction never depends on locally known contract code.
func StatePayloadFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (statePayload StatePayload, err error) {
	untypedStateType, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse StateType (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	contentLength, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse StatePayload content length (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	contentBytes, err := marshalUtil.ReadBytes(int(contentLength))
	if err != nil {
		err = errors.Errorf("failed to parse StatePayload content (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	stateType := StateType(untypedStateType)

	stateTypeRegisterMutex.RLock()
	definition, registered := stateTypeRegister[stateType]
	stateTypeRegisterMutex.RUnlock()

	if !registered {
		return NewDataState(stateType, contentBytes), nil
	}

	if statePayload, err = definition.parser(contentBytes); err != nil {
		err = errors.Errorf("failed to parse %s payload: %w", stateType, err)
		return
	}

	return
}

// marshalStatePayload writes the type header and content of a StatePayload to the given MarshalUtil.
func marshalStatePayload(marshalUtil *marshalutil.MarshalUtil, statePayload StatePayload) {
	contentBytes := statePayload.Bytes()

	marshalUtil.WriteUint32(uint32(statePayload.Type()))
	marshalUtil.WriteUint32(uint32(len(contentBytes)))
	marshalUtil.WriteBytes(contentBytes)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region DataState ////////////////////////////////////////////////////////////////////////////////////////////////////

// DataState represents a StatePayload that holds raw content bytes. It is used for opaque states and as the fallback
// for StateTypes without a registered parser.
type DataState struct {
	stateType StateType
	data      []byte
}

// NewDataState creates a new DataState from the given details.
func NewDataState(stateType StateType, data []byte) *DataState {
	return &DataState{
		stateType: stateType,
		data:      data,
	}
}

// Type returns the StateType of the DataState.
func (d *DataState) Type() StateType {
	return d.stateType
}

// Data returns the raw content of the DataState.
func (d *DataState) Data() []byte {
	return d.data
}

// Bytes returns a marshaled version of the DataState's content.
func (d *DataState) Bytes() []byte {
	return d.data
}

// String creates a human readable version of the DataState.
func (d *DataState) String() string {
	return stringify.Struct("DataState",
		stringify.StructField("type", d.stateType),
		stringify.StructField("data", d.data),
	)
}

// code contract (make sure the struct implements all required methods)
var _ StatePayload = &DataState{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region TransactionState /////////////////////////////////////////////////////////////////////////////////////////////

// TransactionState pairs a contract-state payload with the identity of the notary that is authorized to arbitrate its
// consumption. It is immutable once constructed.
type TransactionState struct {
	state  StatePayload
	notary *identity.Identity
}

// NewTransactionState creates a new TransactionState from the given details.
func NewTransactionState(state StatePayload, notary *identity.Identity) *TransactionState {
	return &TransactionState{
		state:  state,
		notary: notary,
	}
}

// TransactionStateFromMarshalUtil unmarshals a TransactionState using a MarshalUtil (for easier unmarshaling).
func TransactionStateFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (transactionState *TransactionState, err error) {
	transactionState = &TransactionState{}
	if transactionState.state, err = StatePayloadFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse StatePayload from MarshalUtil: %w", err)
		return
	}

	notaryPublicKey, err := ed25519.ParsePublicKey(marshalUtil)
	if err != nil {
		err = errors.Errorf("failed to parse notary public key (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	transactionState.notary = identity.New(notaryPublicKey)

	return
}

// State returns the contract-state payload of the TransactionState.
func (t *TransactionState) State() StatePayload {
	return t.state
}

// Notary returns the identity that is authorized to arbitrate the consumption of the TransactionState.
func (t *TransactionState) Notary() *identity.Identity {
	return t.notary
}

// Bytes returns a marshaled version of the TransactionState.
func (t *TransactionState) Bytes() []byte {
	marshalUtil := marshalutil.New()
	marshalStatePayload(marshalUtil, t.state)
	marshalUtil.WriteBytes(t.notary.PublicKey().Bytes())

	return marshalUtil.Bytes()
}

// String creates a human readable version of the TransactionState.
func (t *TransactionState) String() string {
	return stringify.Struct("TransactionState",
		stringify.StructField("state", t.state),
		stringify.StructField("notary", t.notary.ID()),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
