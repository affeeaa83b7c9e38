package database

const (
	// PrefixLedger defines the storage prefix for the ledger package.
	PrefixLedger byte = iota

	// PrefixAttachments defines the storage prefix for the attachment store.
	PrefixAttachments
)
