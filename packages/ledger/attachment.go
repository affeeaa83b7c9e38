package ledger

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/objectstorage"
	"github.com/iotaledger/hive.go/stringify"
	"golang.org/x/crypto/blake2b"

	"github.com/trustweave/ledgercore/packages/database"
)

// region Attachment ///////////////////////////////////////////////////////////////////////////////////////////////////

// Attachment is a content-addressed blob that is referenced by a WireTransaction - supporting documents or contract
// code that the transaction depends on.
type Attachment struct {
	id      AttachmentID
	content []byte

	objectstorage.StorableObjectFlags
}

// NewAttachment creates a new Attachment from the given content. The id is the content hash of the blob.
func NewAttachment(content []byte) *Attachment {
	return &Attachment{
		id:      AttachmentID(blake2b.Sum256(content)),
		content: content,
	}
}

// AttachmentFromObjectStorage restores an Attachment that was stored in the ObjectStorage.
func AttachmentFromObjectStorage(key []byte, data []byte) (attachment objectstorage.StorableObject, err error) {
	attachmentID, _, err := AttachmentIDFromBytes(key)
	if err != nil {
		err = errors.Errorf("failed to parse AttachmentID from bytes: %w", err)
		return
	}

	marshalUtil := marshalutil.New(data)
	contentLength, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse attachment content length (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	content, err := marshalUtil.ReadBytes(int(contentLength))
	if err != nil {
		err = errors.Errorf("failed to parse attachment content (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	return &Attachment{
		id:      attachmentID,
		content: content,
	}, nil
}

// ID returns the content hash of the Attachment.
func (a *Attachment) ID() AttachmentID {
	return a.id
}

// Content returns the raw content of the Attachment.
func (a *Attachment) Content() []byte {
	return a.content
}

// String creates a human readable version of the Attachment.
func (a *Attachment) String() string {
	return stringify.Struct("Attachment",
		stringify.StructField("id", a.id),
		stringify.StructField("contentLength", len(a.content)),
	)
}

// Update is disabled and panics if it ever gets called - it is required to match the StorableObject interface.
func (a *Attachment) Update(objectstorage.StorableObject) {
	panic("updates disabled")
}

// ObjectStorageKey returns the key that is used to store the object in the database. It is required to match the
// StorableObject interface.
func (a *Attachment) ObjectStorageKey() []byte {
	return a.id.Bytes()
}

// ObjectStorageValue marshals the Attachment content into a sequence of bytes. The id is not serialized here as it is
// only used as a key in the ObjectStorage.
func (a *Attachment) ObjectStorageValue() []byte {
	return marshalutil.New().
		WriteUint32(uint32(len(a.content))).
		WriteBytes(a.content).
		Bytes()
}

// code contract (make sure the struct implements all required methods)
var _ objectstorage.StorableObject = &Attachment{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region CachedAttachment /////////////////////////////////////////////////////////////////////////////////////////////

// CachedAttachment is a wrapper for the generic CachedObject returned by the object storage that overrides the
// accessor methods with a type-casted one.
type CachedAttachment struct {
	objectstorage.CachedObject
}

// Unwrap is the type-casted equivalent of Get. It returns nil if the object does not exist.
func (c *CachedAttachment) Unwrap() *Attachment {
	untypedObject := c.Get()
	if untypedObject == nil {
		return nil
	}

	typedObject := untypedObject.(*Attachment)
	if typedObject == nil || typedObject.IsDeleted() {
		return nil
	}

	return typedObject
}

// Consume unwraps the CachedObject and passes a type-casted version to the consumer (if the object is not empty - it
// exists). It automatically releases the object when the consumer finishes.
func (c *CachedAttachment) Consume(consumer func(attachment *Attachment), forceRelease ...bool) (consumed bool) {
	return c.CachedObject.Consume(func(object objectstorage.StorableObject) {
		consumer(object.(*Attachment))
	}, forceRelease...)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AttachmentStore //////////////////////////////////////////////////////////////////////////////////////////////

const (
	// PrefixAttachmentStorage defines the storage prefix for the Attachment object storage.
	PrefixAttachmentStorage byte = iota
)

// attachmentStorageOptions contains a list of default settings for the Attachment object storage.
var attachmentStorageOptions = []objectstorage.Option{
	objectstorage.CacheTime(60 * time.Second),
	objectstorage.LeakDetectionEnabled(false),
}

// AttachmentStore is the content-addressed store for attachment blobs.
type AttachmentStore struct {
	attachmentStorage *objectstorage.ObjectStorage
}

// NewAttachmentStore creates a new AttachmentStore on top of the given KVStore.
func NewAttachmentStore(store kvstore.KVStore) (attachmentStore *AttachmentStore) {
	osFactory := objectstorage.NewFactory(store, database.PrefixAttachments)

	return &AttachmentStore{
		attachmentStorage: osFactory.New(PrefixAttachmentStorage, AttachmentFromObjectStorage, attachmentStorageOptions...),
	}
}

// Import stores the given content and returns its content-addressed id. Importing the same content twice is a no-op.
func (a *AttachmentStore) Import(content []byte) (attachmentID AttachmentID) {
	attachment := NewAttachment(content)

	cachedAttachment, _ := a.attachmentStorage.StoreIfAbsent(attachment)
	if cachedAttachment != nil {
		cachedAttachment.Release()
	}

	return attachment.ID()
}

// OpenAttachment returns the Attachment with the given id (if it is available).
func (a *AttachmentStore) OpenAttachment(attachmentID AttachmentID) (attachment *Attachment, exists bool) {
	(&CachedAttachment{CachedObject: a.attachmentStorage.Load(attachmentID.Bytes())}).Consume(func(storedAttachment *Attachment) {
		attachment = storedAttachment
		exists = true
	})

	return
}

// HasAttachment returns true if an Attachment with the given id is available locally.
func (a *AttachmentStore) HasAttachment(attachmentID AttachmentID) (exists bool) {
	_, exists = a.OpenAttachment(attachmentID)

	return
}

// Shutdown shuts down the underlying object storage and persists pending changes.
func (a *AttachmentStore) Shutdown() {
	a.attachmentStorage.Shutdown()
}

// code contract (make sure the struct implements all required methods)
var _ AttachmentSource = &AttachmentStore{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
