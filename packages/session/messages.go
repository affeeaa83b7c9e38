package session

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/stringify"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region MessageType //////////////////////////////////////////////////////////////////////////////////////////////////

// MessageType identifies the kind of a Message on the wire.
type MessageType uint8

const (
	// MessageTypeTransaction is the type of a TransactionMessage.
	MessageTypeTransaction MessageType = iota

	// MessageTypeEncryptedTransaction is the type of an EncryptedTransactionMessage.
	MessageTypeEncryptedTransaction

	// MessageTypeRequestTransaction is the type of a RequestTransactionMessage.
	MessageTypeRequestTransaction

	// MessageTypeTransactionNotFound is the type of a TransactionNotFoundMessage.
	MessageTypeTransactionNotFound

	// MessageTypeRequestAttachment is the type of a RequestAttachmentMessage.
	MessageTypeRequestAttachment

	// MessageTypeAttachment is the type of an AttachmentMessage.
	MessageTypeAttachment

	// MessageTypeAttachmentNotFound is the type of an AttachmentNotFoundMessage.
	MessageTypeAttachmentNotFound

	// MessageTypeStateRefs is the type of a StateRefsMessage.
	MessageTypeStateRefs

	// MessageTypeResolutionComplete is the type of a ResolutionCompleteMessage.
	MessageTypeResolutionComplete

	// MessageTypeRequestEncryptedTransaction is the type of a RequestEncryptedTransactionMessage.
	MessageTypeRequestEncryptedTransaction
)

// String returns a human-readable version of the MessageType.
func (m MessageType) String() string {
	switch m {
	case MessageTypeTransaction:
		return "MessageType(Transaction)"
	case MessageTypeEncryptedTransaction:
		return "MessageType(EncryptedTransaction)"
	case MessageTypeRequestTransaction:
		return "MessageType(RequestTransaction)"
	case MessageTypeTransactionNotFound:
		return "MessageType(TransactionNotFound)"
	case MessageTypeRequestAttachment:
		return "MessageType(RequestAttachment)"
	case MessageTypeAttachment:
		return "MessageType(Attachment)"
	case MessageTypeAttachmentNotFound:
		return "MessageType(AttachmentNotFound)"
	case MessageTypeStateRefs:
		return "MessageType(StateRefs)"
	case MessageTypeResolutionComplete:
		return "MessageType(ResolutionComplete)"
	case MessageTypeRequestEncryptedTransaction:
		return "MessageType(RequestEncryptedTransaction)"
	default:
		return "MessageType(Unknown)"
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Message //////////////////////////////////////////////////////////////////////////////////////////////////////

// Message is the envelope for everything that travels over a Session: a type byte followed by the type-specific
// payload encoding.
type Message interface {
	// Type returns the MessageType of the Message.
	Type() MessageType

	// Bytes returns a marshaled version of the Message (including the type byte).
	Bytes() []byte
}

// MessageFromBytes unmarshals a Message from a sequence of bytes.
func MessageFromBytes(bytes []byte) (message Message, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if message, err = MessageFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse Message from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// MessageFromMarshalUtil unmarshals a Message using a MarshalUtil (for easier unmarshaling).
func MessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message Message, err error) {
	typeByte, err := marshalUtil.ReadByte()
	if err != nil {
		err = errors.Errorf("failed to parse MessageType (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	switch MessageType(typeByte) {
	case MessageTypeTransaction:
		return transactionMessageFromMarshalUtil(marshalUtil)
	case MessageTypeEncryptedTransaction:
		return encryptedTransactionMessageFromMarshalUtil(marshalUtil)
	case MessageTypeRequestTransaction:
		return requestTransactionMessageFromMarshalUtil(marshalUtil)
	case MessageTypeTransactionNotFound:
		return transactionNotFoundMessageFromMarshalUtil(marshalUtil)
	case MessageTypeRequestAttachment:
		return requestAttachmentMessageFromMarshalUtil(marshalUtil)
	case MessageTypeAttachment:
		return attachmentMessageFromMarshalUtil(marshalUtil)
	case MessageTypeAttachmentNotFound:
		return attachmentNotFoundMessageFromMarshalUtil(marshalUtil)
	case MessageTypeStateRefs:
		return stateRefsMessageFromMarshalUtil(marshalUtil)
	case MessageTypeResolutionComplete:
		return &ResolutionCompleteMessage{}, nil
	case MessageTypeRequestEncryptedTransaction:
		return requestEncryptedTransactionMessageFromMarshalUtil(marshalUtil)
	default:
		return nil, errors.Errorf("unsupported MessageType (%d): %w", typeByte, cerrors.ErrParseBytesFailed)
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region TransactionMessage ///////////////////////////////////////////////////////////////////////////////////////////

// TransactionMessage carries a full SignedTransaction to the counterparty.
type TransactionMessage struct {
	Transaction *ledger.SignedTransaction
}

// NewTransactionMessage creates a new TransactionMessage.
func NewTransactionMessage(transaction *ledger.SignedTransaction) *TransactionMessage {
	return &TransactionMessage{Transaction: transaction}
}

func transactionMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *TransactionMessage, err error) {
	message = &TransactionMessage{}
	if message.Transaction, err = ledger.SignedTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse SignedTransaction from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (t *TransactionMessage) Type() MessageType {
	return MessageTypeTransaction
}

// Bytes returns a marshaled version of the Message.
func (t *TransactionMessage) Bytes() []byte {
	return marshalutil.New().
		WriteByte(byte(MessageTypeTransaction)).
		Write(t.Transaction).
		Bytes()
}

// String returns a human-readable version of the Message.
func (t *TransactionMessage) String() string {
	return stringify.Struct("TransactionMessage",
		stringify.StructField("transaction", t.Transaction),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region EncryptedTransactionMessage //////////////////////////////////////////////////////////////////////////////////

// EncryptedTransactionMessage carries an opaque EncryptedTransaction to the counterparty.
type EncryptedTransactionMessage struct {
	Transaction *ledger.EncryptedTransaction
}

// NewEncryptedTransactionMessage creates a new EncryptedTransactionMessage.
func NewEncryptedTransactionMessage(transaction *ledger.EncryptedTransaction) *EncryptedTransactionMessage {
	return &EncryptedTransactionMessage{Transaction: transaction}
}

func encryptedTransactionMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *EncryptedTransactionMessage, err error) {
	message = &EncryptedTransactionMessage{}
	if message.Transaction, err = ledger.EncryptedTransactionFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse EncryptedTransaction from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (e *EncryptedTransactionMessage) Type() MessageType {
	return MessageTypeEncryptedTransaction
}

// Bytes returns a marshaled version of the Message.
func (e *EncryptedTransactionMessage) Bytes() []byte {
	return marshalutil.New().
		WriteByte(byte(MessageTypeEncryptedTransaction)).
		Write(e.Transaction).
		Bytes()
}

// String returns a human-readable version of the Message.
func (e *EncryptedTransactionMessage) String() string {
	return stringify.Struct("EncryptedTransactionMessage",
		stringify.StructField("transaction", e.Transaction),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region RequestTransactionMessage ////////////////////////////////////////////////////////////////////////////////////

// RequestTransactionMessage asks the counterparty for the SignedTransaction with the given id.
type RequestTransactionMessage struct {
	TransactionID ledger.TransactionID
}

// NewRequestTransactionMessage creates a new RequestTransactionMessage.
func NewRequestTransactionMessage(transactionID ledger.TransactionID) *RequestTransactionMessage {
	return &RequestTransactionMessage{TransactionID: transactionID}
}

func requestTransactionMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *RequestTransactionMessage, err error) {
	message = &RequestTransactionMessage{}
	if message.TransactionID, err = ledger.TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (r *RequestTransactionMessage) Type() MessageType {
	return MessageTypeRequestTransaction
}

// Bytes returns a marshaled version of the Message.
func (r *RequestTransactionMessage) Bytes() []byte {
	return marshalutil.New(1 + ledger.TransactionIDLength).
		WriteByte(byte(MessageTypeRequestTransaction)).
		Write(r.TransactionID).
		Bytes()
}

// String returns a human-readable version of the Message.
func (r *RequestTransactionMessage) String() string {
	return stringify.Struct("RequestTransactionMessage",
		stringify.StructField("transactionID", r.TransactionID),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region TransactionNotFoundMessage ///////////////////////////////////////////////////////////////////////////////////

// TransactionNotFoundMessage is the negative reply to a RequestTransactionMessage.
type TransactionNotFoundMessage struct {
	TransactionID ledger.TransactionID
}

// NewTransactionNotFoundMessage creates a new TransactionNotFoundMessage.
func NewTransactionNotFoundMessage(transactionID ledger.TransactionID) *TransactionNotFoundMessage {
	return &TransactionNotFoundMessage{TransactionID: transactionID}
}

func transactionNotFoundMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *TransactionNotFoundMessage, err error) {
	message = &TransactionNotFoundMessage{}
	if message.TransactionID, err = ledger.TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (t *TransactionNotFoundMessage) Type() MessageType {
	return MessageTypeTransactionNotFound
}

// Bytes returns a marshaled version of the Message.
func (t *TransactionNotFoundMessage) Bytes() []byte {
	return marshalutil.New(1 + ledger.TransactionIDLength).
		WriteByte(byte(MessageTypeTransactionNotFound)).
		Write(t.TransactionID).
		Bytes()
}

// String returns a human-readable version of the Message.
func (t *TransactionNotFoundMessage) String() string {
	return stringify.Struct("TransactionNotFoundMessage",
		stringify.StructField("transactionID", t.TransactionID),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region RequestAttachmentMessage /////////////////////////////////////////////////////////////////////////////////////

// RequestAttachmentMessage asks the counterparty for the attachment content with the given id.
type RequestAttachmentMessage struct {
	AttachmentID ledger.AttachmentID
}

// NewRequestAttachmentMessage creates a new RequestAttachmentMessage.
func NewRequestAttachmentMessage(attachmentID ledger.AttachmentID) *RequestAttachmentMessage {
	return &RequestAttachmentMessage{AttachmentID: attachmentID}
}

func requestAttachmentMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *RequestAttachmentMessage, err error) {
	message = &RequestAttachmentMessage{}
	if message.AttachmentID, err = ledger.AttachmentIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse AttachmentID from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (r *RequestAttachmentMessage) Type() MessageType {
	return MessageTypeRequestAttachment
}

// Bytes returns a marshaled version of the Message.
func (r *RequestAttachmentMessage) Bytes() []byte {
	return marshalutil.New(1 + ledger.AttachmentIDLength).
		WriteByte(byte(MessageTypeRequestAttachment)).
		Write(r.AttachmentID).
		Bytes()
}

// String returns a human-readable version of the Message.
func (r *RequestAttachmentMessage) String() string {
	return stringify.Struct("RequestAttachmentMessage",
		stringify.StructField("attachmentID", r.AttachmentID),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AttachmentMessage ////////////////////////////////////////////////////////////////////////////////////////////

// AttachmentMessage carries attachment content to the counterparty. The id is derived from the content on arrival, so
// a tampered attachment simply fails to match the requested id.
type AttachmentMessage struct {
	Attachment *ledger.Attachment
}

// NewAttachmentMessage creates a new AttachmentMessage.
func NewAttachmentMessage(attachment *ledger.Attachment) *AttachmentMessage {
	return &AttachmentMessage{Attachment: attachment}
}

func attachmentMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *AttachmentMessage, err error) {
	contentLength, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse content length (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	content, err := marshalUtil.ReadBytes(int(contentLength))
	if err != nil {
		err = errors.Errorf("failed to parse attachment content (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	return &AttachmentMessage{Attachment: ledger.NewAttachment(content)}, nil
}

// Type returns the MessageType of the Message.
func (a *AttachmentMessage) Type() MessageType {
	return MessageTypeAttachment
}

// Bytes returns a marshaled version of the Message.
func (a *AttachmentMessage) Bytes() []byte {
	content := a.Attachment.Content()

	return marshalutil.New(1 + marshalutil.Uint32Size + len(content)).
		WriteByte(byte(MessageTypeAttachment)).
		WriteUint32(uint32(len(content))).
		WriteBytes(content).
		Bytes()
}

// String returns a human-readable version of the Message.
func (a *AttachmentMessage) String() string {
	return stringify.Struct("AttachmentMessage",
		stringify.StructField("attachment", a.Attachment),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AttachmentNotFoundMessage ////////////////////////////////////////////////////////////////////////////////////

// AttachmentNotFoundMessage is the negative reply to a RequestAttachmentMessage.
type AttachmentNotFoundMessage struct {
	AttachmentID ledger.AttachmentID
}

// NewAttachmentNotFoundMessage creates a new AttachmentNotFoundMessage.
func NewAttachmentNotFoundMessage(attachmentID ledger.AttachmentID) *AttachmentNotFoundMessage {
	return &AttachmentNotFoundMessage{AttachmentID: attachmentID}
}

func attachmentNotFoundMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *AttachmentNotFoundMessage, err error) {
	message = &AttachmentNotFoundMessage{}
	if message.AttachmentID, err = ledger.AttachmentIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse AttachmentID from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (a *AttachmentNotFoundMessage) Type() MessageType {
	return MessageTypeAttachmentNotFound
}

// Bytes returns a marshaled version of the Message.
func (a *AttachmentNotFoundMessage) Bytes() []byte {
	return marshalutil.New(1 + ledger.AttachmentIDLength).
		WriteByte(byte(MessageTypeAttachmentNotFound)).
		Write(a.AttachmentID).
		Bytes()
}

// String returns a human-readable version of the Message.
func (a *AttachmentNotFoundMessage) String() string {
	return stringify.Struct("AttachmentNotFoundMessage",
		stringify.StructField("attachmentID", a.AttachmentID),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region StateRefsMessage /////////////////////////////////////////////////////////////////////////////////////////////

// StateRefsMessage carries a list of StateRefs whose owning transactions the counterparty is expected to resolve.
type StateRefsMessage struct {
	StateRefs []ledger.StateRef
}

// NewStateRefsMessage creates a new StateRefsMessage.
func NewStateRefsMessage(stateRefs []ledger.StateRef) *StateRefsMessage {
	return &StateRefsMessage{StateRefs: stateRefs}
}

func stateRefsMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *StateRefsMessage, err error) {
	refCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse StateRef count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	message = &StateRefsMessage{StateRefs: make([]ledger.StateRef, refCount)}
	for i := uint16(0); i < refCount; i++ {
		if message.StateRefs[i], err = ledger.StateRefFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse StateRef from MarshalUtil: %w", err)
			return
		}
	}

	return
}

// Type returns the MessageType of the Message.
func (s *StateRefsMessage) Type() MessageType {
	return MessageTypeStateRefs
}

// Bytes returns a marshaled version of the Message.
func (s *StateRefsMessage) Bytes() []byte {
	marshalUtil := marshalutil.New(1 + marshalutil.Uint16Size + len(s.StateRefs)*ledger.StateRefLength).
		WriteByte(byte(MessageTypeStateRefs)).
		WriteUint16(uint16(len(s.StateRefs)))
	for _, stateRef := range s.StateRefs {
		marshalUtil.Write(stateRef)
	}

	return marshalUtil.Bytes()
}

// String returns a human-readable version of the Message.
func (s *StateRefsMessage) String() string {
	structBuilder := stringify.StructBuilder("StateRefsMessage")
	for i, stateRef := range s.StateRefs {
		structBuilder.AddField(stringify.StructField("stateRef"+strconv.Itoa(i), stateRef))
	}

	return structBuilder.String()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region RequestEncryptedTransactionMessage ///////////////////////////////////////////////////////////////////////////

// RequestEncryptedTransactionMessage asks the counterparty for the encrypted counterpart of the transaction with the
// given id. A TransactionNotFoundMessage is the negative reply.
type RequestEncryptedTransactionMessage struct {
	TransactionID ledger.TransactionID
}

// NewRequestEncryptedTransactionMessage creates a new RequestEncryptedTransactionMessage.
func NewRequestEncryptedTransactionMessage(transactionID ledger.TransactionID) *RequestEncryptedTransactionMessage {
	return &RequestEncryptedTransactionMessage{TransactionID: transactionID}
}

func requestEncryptedTransactionMessageFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (message *RequestEncryptedTransactionMessage, err error) {
	message = &RequestEncryptedTransactionMessage{}
	if message.TransactionID, err = ledger.TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}

	return
}

// Type returns the MessageType of the Message.
func (r *RequestEncryptedTransactionMessage) Type() MessageType {
	return MessageTypeRequestEncryptedTransaction
}

// Bytes returns a marshaled version of the Message.
func (r *RequestEncryptedTransactionMessage) Bytes() []byte {
	return marshalutil.New(1 + ledger.TransactionIDLength).
		WriteByte(byte(MessageTypeRequestEncryptedTransaction)).
		Write(r.TransactionID).
		Bytes()
}

// String returns a human-readable version of the Message.
func (r *RequestEncryptedTransactionMessage) String() string {
	return stringify.Struct("RequestEncryptedTransactionMessage",
		stringify.StructField("transactionID", r.TransactionID),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region ResolutionCompleteMessage ////////////////////////////////////////////////////////////////////////////////////

// ResolutionCompleteMessage signals that the receiver's dependency resolution is done and the provider loop on the
// other end may stop serving requests.
type ResolutionCompleteMessage struct{}

// NewResolutionCompleteMessage creates a new ResolutionCompleteMessage.
func NewResolutionCompleteMessage() *ResolutionCompleteMessage {
	return &ResolutionCompleteMessage{}
}

// Type returns the MessageType of the Message.
func (r *ResolutionCompleteMessage) Type() MessageType {
	return MessageTypeResolutionComplete
}

// Bytes returns a marshaled version of the Message.
func (r *ResolutionCompleteMessage) Bytes() []byte {
	return []byte{byte(MessageTypeResolutionComplete)}
}

// String returns a human-readable version of the Message.
func (r *ResolutionCompleteMessage) String() string {
	return "ResolutionCompleteMessage()"
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
