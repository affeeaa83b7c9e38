package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustweave/ledgercore/packages/database"
)

func TestAttachmentStore_Import(t *testing.T) {
	attachmentStore := NewAttachmentStore(database.NewMemDB())
	defer attachmentStore.Shutdown()

	attachmentID := attachmentStore.Import([]byte("contract code"))
	assert.Equal(t, NewAttachment([]byte("contract code")).ID(), attachmentID)

	// importing the same content again is a no-op
	assert.Equal(t, attachmentID, attachmentStore.Import([]byte("contract code")))

	attachment, exists := attachmentStore.OpenAttachment(attachmentID)
	require.True(t, exists)
	assert.Equal(t, []byte("contract code"), attachment.Content())

	_, exists = attachmentStore.OpenAttachment(NewAttachment([]byte("unknown")).ID())
	assert.False(t, exists)
}

func TestSourceOverlay(t *testing.T) {
	storage := NewTransactionStorage(database.NewMemDB())
	defer storage.Shutdown()
	attachmentStore := NewAttachmentStore(database.NewMemDB())
	defer attachmentStore.Shutdown()

	overlay := NewSourceOverlay(storage, attachmentStore)

	stagedAttachment := NewAttachment([]byte("staged"))
	overlay.StageAttachment(stagedAttachment)

	// staged content is visible through the overlay but not committed to the base store
	attachment, exists := overlay.OpenAttachment(stagedAttachment.ID())
	require.True(t, exists)
	assert.Equal(t, []byte("staged"), attachment.Content())
	assert.False(t, attachmentStore.HasAttachment(stagedAttachment.ID()))
}
