package ledger

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/cerrors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/stringify"
)

// region Command //////////////////////////////////////////////////////////////////////////////////////////////////////

// Command is a typed payload inside a WireTransaction together with the set of signer public keys that it requires.
type Command struct {
	data    []byte
	signers []ed25519.PublicKey
}

// NewCommand creates a new Command from the given details.
func NewCommand(data []byte, signers ...ed25519.PublicKey) *Command {
	return &Command{
		data:    data,
		signers: signers,
	}
}

// CommandFromMarshalUtil unmarshals a Command using a MarshalUtil (for easier unmarshaling).
func CommandFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (command *Command, err error) {
	command = &Command{}

	dataLength, err := marshalUtil.ReadUint32()
	if err != nil {
		err = errors.Errorf("failed to parse Command data length (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	if command.data, err = marshalUtil.ReadBytes(int(dataLength)); err != nil {
		err = errors.Errorf("failed to parse Command data (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}

	signerCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse Command signer count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	command.signers = make([]ed25519.PublicKey, signerCount)
	for i := uint16(0); i < signerCount; i++ {
		if command.signers[i], err = ed25519.ParsePublicKey(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse Command signer (%v): %w", err, cerrors.ErrParseBytesFailed)
			return
		}
	}

	return
}

// Data returns the typed payload of the Command.
func (c *Command) Data() []byte {
	return c.data
}

// Signers returns the set of signer public keys that the Command requires.
func (c *Command) Signers() []ed25519.PublicKey {
	return c.signers
}

// Bytes returns a marshaled version of the Command.
func (c *Command) Bytes() []byte {
	marshalUtil := marshalutil.New().
		WriteUint32(uint32(len(c.data))).
		WriteBytes(c.data).
		WriteUint16(uint16(len(c.signers)))
	for _, signer := range c.signers {
		marshalUtil.WriteBytes(signer.Bytes())
	}

	return marshalUtil.Bytes()
}

// String creates a human readable version of the Command.
func (c *Command) String() string {
	return stringify.Struct("Command",
		stringify.StructField("data", c.data),
		stringify.StructField("signers", c.signers),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Commands /////////////////////////////////////////////////////////////////////////////////////////////////////

// Commands represents the ordered sequence of Commands inside a WireTransaction.
type Commands []*Command

// CommandsFromMarshalUtil unmarshals a sequence of Commands using a MarshalUtil (for easier unmarshaling).
func CommandsFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (commands Commands, err error) {
	commandCount, err := marshalUtil.ReadUint16()
	if err != nil {
		err = errors.Errorf("failed to parse Command count (%v): %w", err, cerrors.ErrParseBytesFailed)
		return
	}
	commands = make(Commands, commandCount)
	for i := uint16(0); i < commandCount; i++ {
		if commands[i], err = CommandFromMarshalUtil(marshalUtil); err != nil {
			err = errors.Errorf("failed to parse Command from MarshalUtil: %w", err)
			return
		}
	}

	return
}

// Bytes returns a marshaled version of the Commands.
func (c Commands) Bytes() []byte {
	marshalUtil := marshalutil.New().
		WriteUint16(uint16(len(c)))
	for _, command := range c {
		marshalUtil.WriteBytes(command.Bytes())
	}

	return marshalUtil.Bytes()
}

// String creates a human readable version of the Commands.
func (c Commands) String() string {
	structBuilder := stringify.StructBuilder("Commands")
	for i, command := range c {
		structBuilder.AddField(stringify.StructField(strconv.Itoa(i), command))
	}

	return structBuilder.String()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
