package ledger

// TransactionSource is a read-only view on locally available SignedTransactions. It is implemented by the
// TransactionStorage and by the overlays that the resolver and the confidential verifier use to make staged
// transactions visible before they are committed.
type TransactionSource interface {
	// LoadTransaction returns the SignedTransaction with the given id (if it is available).
	LoadTransaction(transactionID TransactionID) (signedTransaction *SignedTransaction, exists bool)
}

// AttachmentSource is a read-only view on locally available attachment content.
type AttachmentSource interface {
	// OpenAttachment returns the Attachment with the given id (if it is available).
	OpenAttachment(attachmentID AttachmentID) (attachment *Attachment, exists bool)
}

// region SourceOverlay ////////////////////////////////////////////////////////////////////////////////////////////////

// SourceOverlay is a TransactionSource and AttachmentSource that makes a staged set of transactions and attachments
// visible on top of a base source without mutating it.
type SourceOverlay struct {
	baseTransactions      TransactionSource
	baseAttachments       AttachmentSource
	transactions          map[TransactionID]*SignedTransaction
	encryptedTransactions map[TransactionID]*EncryptedTransaction
	attachments           map[AttachmentID]*Attachment
}

// NewSourceOverlay creates a new SourceOverlay on top of the given base sources.
func NewSourceOverlay(baseTransactions TransactionSource, baseAttachments AttachmentSource) *SourceOverlay {
	return &SourceOverlay{
		baseTransactions:      baseTransactions,
		baseAttachments:       baseAttachments,
		transactions:          make(map[TransactionID]*SignedTransaction),
		encryptedTransactions: make(map[TransactionID]*EncryptedTransaction),
		attachments:           make(map[AttachmentID]*Attachment),
	}
}

// StageTransaction makes the given SignedTransaction visible through the overlay.
func (s *SourceOverlay) StageTransaction(signedTransaction *SignedTransaction) {
	s.transactions[signedTransaction.ID()] = signedTransaction
}

// StageEncryptedTransaction stages the encrypted counterpart of a transaction.
func (s *SourceOverlay) StageEncryptedTransaction(encryptedTransaction *EncryptedTransaction) {
	s.encryptedTransactions[encryptedTransaction.ID()] = encryptedTransaction
}

// StageAttachment makes the given Attachment visible through the overlay.
func (s *SourceOverlay) StageAttachment(attachment *Attachment) {
	s.attachments[attachment.ID()] = attachment
}

// StagedTransactions returns the SignedTransactions that were staged into the overlay.
func (s *SourceOverlay) StagedTransactions() map[TransactionID]*SignedTransaction {
	return s.transactions
}

// StagedEncryptedTransactions returns the encrypted counterparts that were staged into the overlay.
func (s *SourceOverlay) StagedEncryptedTransactions() map[TransactionID]*EncryptedTransaction {
	return s.encryptedTransactions
}

// StagedAttachments returns the Attachments that were staged into the overlay.
func (s *SourceOverlay) StagedAttachments() map[AttachmentID]*Attachment {
	return s.attachments
}

// LoadTransaction returns the SignedTransaction with the given id from the staged set or the base source.
func (s *SourceOverlay) LoadTransaction(transactionID TransactionID) (signedTransaction *SignedTransaction, exists bool) {
	if signedTransaction, exists = s.transactions[transactionID]; exists {
		return
	}
	if s.baseTransactions == nil {
		return nil, false
	}

	return s.baseTransactions.LoadTransaction(transactionID)
}

// OpenAttachment returns the Attachment with the given id from the staged set or the base source.
func (s *SourceOverlay) OpenAttachment(attachmentID AttachmentID) (attachment *Attachment, exists bool) {
	if attachment, exists = s.attachments[attachmentID]; exists {
		return
	}
	if s.baseAttachments == nil {
		return nil, false
	}

	return s.baseAttachments.OpenAttachment(attachmentID)
}

// code contract (make sure the struct implements all required methods)
var (
	_ TransactionSource = &SourceOverlay{}
	_ AttachmentSource  = &SourceOverlay{}
)

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
