package ledger

import (
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/stringify"
	"github.com/iotaledger/hive.go/types"
	"golang.org/x/crypto/blake2b"
)

// region WireTransaction //////////////////////////////////////////////////////////////////////////////////////////////

// WireTransaction is the canonical, content-addressed, unsigned transaction body: an ordered sequence of input
// StateRefs, an ordered sequence of output TransactionStates, a set of attachment hashes and an ordered sequence of
// Commands. Its identity is a deterministic content hash of its serialized form.
type WireTransaction struct {
	id      *TransactionID
	idMutex sync.RWMutex

	inputs         []StateRef
	outputs        []*TransactionState
	attachments    []AttachmentID
	commands       Commands
	parametersHash ParametersHash
}

// NewWireTransaction creates a new WireTransaction from the given details.
func NewWireTransaction(inputs []StateRef, outputs []*TransactionState, attachments []AttachmentID, commands Commands, parametersHash ParametersHash) *WireTransaction {
	return &WireTransaction{
		inputs:         inputs,
		outputs:        outputs,
		attachments:    attachments,
		commands:       commands,
		parametersHash: parametersHash,
	}
}

// WireTransactionFromBytes unmarshals a WireTransaction from a sequence of bytes.
func WireTransactionFromBytes(bytes []byte) (wireTransaction *WireTransaction, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if wireTransaction, err = WireTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse WireTransaction from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// WireTransactionFromMarshalUtil unmarshals a WireTransaction using a MarshalUtil (for easier unmarshaling).
func WireTransactionFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (wireTransaction *WireTransaction, err error) {
	wireTransaction = &WireTransaction{}

	inputCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse input count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	wireTransaction.inputs = make([]StateRef, inputCount)
	for i := uint16(0); i < inputCount; i++ {
		if wireTransaction.inputs[i], err = StateRefFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse input StateRef from MarshalUtil: %w", err)
			return
		}
	}

	outputCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse output count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	wireTransaction.outputs = make([]*TransactionState, outputCount)
	for i := uint16(0); i < outputCount; i++ {
		if wireTransaction.outputs[i], err = TransactionStateFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse output TransactionState from MarshalUtil: %w", err)
			return
		}
	}

	attachmentCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse attachment count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	wireTransaction.attachments = make([]AttachmentID, attachmentCount)
	for i := uint16(0); i < attachmentCount; i++ {
		if wireTransaction.attachments[i], err = AttachmentIDFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse AttachmentID from MarshalUtil: %w", err)
			return
		}
	}

	if wireTransaction.commands, err = CommandsFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse Commands from MarshalUtil: %w", err)
		return
	}
	if wireTransaction.parametersHash, err = ParametersHashFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse ParametersHash from MarshalUtil: %w", err)
		return
	}

	return
}

// ID returns the identifier of the WireTransaction. Since calculating the TransactionID is a resource intensive
// operation we calculate this value lazy and use double checked locking.
func (w *WireTransaction) ID() TransactionID {
	w.idMutex.RLock()
	if w.id != nil {
		defer w.idMutex.RUnlock()

		return *w.id
	}

	w.idMutex.RUnlock()
	w.idMutex.Lock()
	defer w.idMutex.Unlock()

	if w.id != nil {
		return *w.id
	}

	idBytes := blake2b.Sum256(w.Bytes())
	id, _, err := TransactionIDFromBytes(idBytes[:])
	if err != nil {
		panic(err)
	}
	w.id = &id

	return id
}

// Inputs returns the ordered sequence of input StateRefs of the WireTransaction.
func (w *WireTransaction) Inputs() []StateRef {
	return w.inputs
}

// Outputs returns the ordered sequence of output TransactionStates of the WireTransaction.
func (w *WireTransaction) Outputs() []*TransactionState {
	return w.outputs
}

// OutputAt returns the output TransactionState at the given index. It returns an ErrIndexOutOfRange if the index
// exceeds the output count.
func (w *WireTransaction) OutputAt(index uint16) (transactionState *TransactionState, err error) {
	if int(index) >= len(w.outputs) {
		err = errors.Errorf("output index %d exceeds output count %d of transaction with %s: %w", index, len(w.outputs), w.ID(), ErrIndexOutOfRange)
		return
	}

	return w.outputs[index], nil
}

// Attachments returns the AttachmentIDs that are referenced by the WireTransaction.
func (w *WireTransaction) Attachments() []AttachmentID {
	return w.attachments
}

// Commands returns the ordered sequence of Commands of the WireTransaction.
func (w *WireTransaction) Commands() Commands {
	return w.commands
}

// ParametersHash returns the hash of the network parameters that the WireTransaction declares.
func (w *WireTransaction) ParametersHash() ParametersHash {
	return w.parametersHash
}

// RequiredSigners returns the union of all signer public keys that the Commands of the WireTransaction require.
func (w *WireTransaction) RequiredSigners() (requiredSigners map[ed25519.PublicKey]types.Empty) {
	requiredSigners = make(map[ed25519.PublicKey]types.Empty)
	for _, command := range w.commands {
		for _, signer := range command.Signers() {
			requiredSigners[signer] = types.Void
		}
	}

	return
}

// DependencyIDs returns the set of TransactionIDs that the inputs of the WireTransaction reference.
func (w *WireTransaction) DependencyIDs() (dependencyIDs map[TransactionID]types.Empty) {
	dependencyIDs = make(map[TransactionID]types.Empty)
	for _, input := range w.inputs {
		dependencyIDs[input.TransactionID] = types.Void
	}

	return
}

// Bytes returns a marshaled version of the WireTransaction. The encoding is canonical - two WireTransactions with
// identical content marshal to identical bytes and therefore hash to the same TransactionID.
func (w *WireTransaction) Bytes() []byte {
	marshalUtil := marshalutil.New().
		WriteUint16(uint16(len(w.inputs)))
	for _, input := range w.inputs {
		marshalUtil.Write(input)
	}
	marshalUtil.WriteUint16(uint16(len(w.outputs)))
	for _, output := range w.outputs {
		marshalUtil.Write(output)
	}
	marshalUtil.WriteUint16(uint16(len(w.attachments)))
	for _, attachmentID := range w.attachments {
		marshalUtil.Write(attachmentID)
	}
	marshalUtil.Write(w.commands)
	marshalUtil.Write(w.parametersHash)

	return marshalUtil.Bytes()
}

// String creates a human readable version of the WireTransaction.
func (w *WireTransaction) String() string {
	structBuilder := stringify.StructBuilder("WireTransaction",
		stringify.StructField("id", w.ID()),
		stringify.StructField("parametersHash", w.parametersHash),
	)
	for i, input := range w.inputs {
		structBuilder.AddField(stringify.StructField("input"+strconv.Itoa(i), input))
	}
	for i, output := range w.outputs {
		structBuilder.AddField(stringify.StructField("output"+strconv.Itoa(i), output))
	}
	for i, attachmentID := range w.attachments {
		structBuilder.AddField(stringify.StructField("attachment"+strconv.Itoa(i), attachmentID))
	}
	structBuilder.AddField(stringify.StructField("commands", w.commands))

	return structBuilder.String()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
