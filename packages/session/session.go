package session

import (
	"context"
	"errors"

	"github.com/iotaledger/hive.go/identity"
)

var (
	// ErrSessionClosed is returned when sending on or receiving from a closed Session.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnexpectedMessage is returned when a peer sends a message that the current protocol phase does not accept.
	ErrUnexpectedMessage = errors.New("unexpected message")
)

// Session is a bidirectional, ordered message channel to a single counterparty. Implementations carry the transport
// (an in-memory Pipe in tests, a network connection in a node).
type Session interface {
	// Send transmits the given message to the counterparty.
	Send(message Message) (err error)

	// Receive blocks until the counterparty's next message arrives, the context is canceled or the session closes.
	Receive(ctx context.Context) (message Message, err error)

	// Counterparty returns the identity of the peer on the other end of the session.
	Counterparty() identity.ID

	// Close terminates the session. Pending and future calls fail with ErrSessionClosed.
	Close() (err error)
}
