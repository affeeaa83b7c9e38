package session

import (
	"context"
	"sync"

	"github.com/iotaledger/hive.go/identity"
)

// region Pipe /////////////////////////////////////////////////////////////////////////////////////////////////////////

const pipeBufferSize = 64

// PipeSession is one end of an in-memory session pair. It is used by tests and by in-process simulations to run both
// sides of a flow without a network.
type PipeSession struct {
	counterparty identity.ID
	outbox       chan<- Message
	inbox        <-chan Message
	closed       chan struct{}
	closeOnce    *sync.Once
}

// NewPipe creates a connected pair of PipeSessions. Messages sent on one end arrive on the other in order.
func NewPipe(leftIdentity *identity.Identity, rightIdentity *identity.Identity) (left *PipeSession, right *PipeSession) {
	leftToRight := make(chan Message, pipeBufferSize)
	rightToLeft := make(chan Message, pipeBufferSize)
	closed := make(chan struct{})
	closeOnce := &sync.Once{}

	left = &PipeSession{
		counterparty: rightIdentity.ID(),
		outbox:       leftToRight,
		inbox:        rightToLeft,
		closed:       closed,
		closeOnce:    closeOnce,
	}
	right = &PipeSession{
		counterparty: leftIdentity.ID(),
		outbox:       rightToLeft,
		inbox:        leftToRight,
		closed:       closed,
		closeOnce:    closeOnce,
	}

	return
}

// Send transmits the given message to the counterparty. Messages are round-tripped through their wire encoding, so a
// transport bug in a message type surfaces in tests immediately.
func (p *PipeSession) Send(message Message) (err error) {
	decoded, _, err := MessageFromBytes(message.Bytes())
	if err != nil {
		return err
	}

	select {
	case <-p.closed:
		return ErrSessionClosed
	case p.outbox <- decoded:
		return nil
	}
}

// Receive blocks until the counterparty's next message arrives, the context is canceled or the session closes.
func (p *PipeSession) Receive(ctx context.Context) (message Message, err error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, ErrSessionClosed
	case message = <-p.inbox:
		return message, nil
	}
}

// Counterparty returns the identity of the peer on the other end of the session.
func (p *PipeSession) Counterparty() identity.ID {
	return p.counterparty
}

// Close terminates both ends of the pipe.
func (p *PipeSession) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.closed)
	})

	return nil
}

// code contract (make sure the struct implements all required methods)
var _ Session = &PipeSession{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
