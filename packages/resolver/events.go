package resolver

import (
	"github.com/iotaledger/hive.go/events"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region Events ///////////////////////////////////////////////////////////////////////////////////////////////////////

// Events represents events happening during dependency resolution.
type Events struct {
	// TransactionMissing gets triggered when a referenced transaction is not available locally and has to be
	// requested from the counterparty.
	TransactionMissing *events.Event

	// TransactionResolved gets triggered when a requested transaction arrived and passed verification staging.
	TransactionResolved *events.Event

	// AttachmentMissing gets triggered when a referenced attachment is not available locally and has to be requested
	// from the counterparty.
	AttachmentMissing *events.Event

	// Error gets triggered when the resolver encounters an error that aborts the walk.
	Error *events.Event
}

func newEvents() *Events {
	return &Events{
		TransactionMissing:  events.NewEvent(transactionIDEventHandler),
		TransactionResolved: events.NewEvent(transactionIDEventHandler),
		AttachmentMissing:   events.NewEvent(attachmentIDEventHandler),
		Error:               events.NewEvent(events.ErrorCaller),
	}
}

func transactionIDEventHandler(handler interface{}, params ...interface{}) {
	handler.(func(ledger.TransactionID))(params[0].(ledger.TransactionID))
}

func attachmentIDEventHandler(handler interface{}, params ...interface{}) {
	handler.(func(ledger.AttachmentID))(params[0].(ledger.AttachmentID))
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
