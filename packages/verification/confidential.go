package verification

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/marshalutil"
	"github.com/iotaledger/hive.go/stringify"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region DependencyPair ///////////////////////////////////////////////////////////////////////////////////////////////

// DependencyPair carries both representations of an ancestor transaction: the opaque encrypted payload that travels
// between peers and the plaintext signed transaction that an enclave decrypts it against.
type DependencyPair struct {
	encrypted *ledger.EncryptedTransaction
	signed    *ledger.SignedTransaction
}

// NewDependencyPair creates a new DependencyPair from the given representations.
func NewDependencyPair(encrypted *ledger.EncryptedTransaction, signed *ledger.SignedTransaction) *DependencyPair {
	return &DependencyPair{
		encrypted: encrypted,
		signed:    signed,
	}
}

// Encrypted returns the opaque representation of the dependency.
func (d *DependencyPair) Encrypted() *ledger.EncryptedTransaction {
	return d.encrypted
}

// Signed returns the plaintext representation of the dependency.
func (d *DependencyPair) Signed() *ledger.SignedTransaction {
	return d.signed
}

// String returns a human-readable version of the DependencyPair.
func (d *DependencyPair) String() string {
	return stringify.Struct("DependencyPair",
		stringify.StructField("encrypted", d.encrypted),
		stringify.StructField("signed", d.signed),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Bundle ///////////////////////////////////////////////////////////////////////////////////////////////////////

// Bundle is the unit of confidential verification: the encrypted transaction under scrutiny, its plaintext
// counterpart and the dependency pairs of its direct ancestors.
type Bundle struct {
	encrypted    *ledger.EncryptedTransaction
	signed       *ledger.SignedTransaction
	dependencies []*DependencyPair
}

// NewBundle creates a new Bundle from the given transaction representations and its resolved dependencies.
func NewBundle(encrypted *ledger.EncryptedTransaction, signed *ledger.SignedTransaction, dependencies []*DependencyPair) *Bundle {
	return &Bundle{
		encrypted:    encrypted,
		signed:       signed,
		dependencies: dependencies,
	}
}

// Encrypted returns the opaque representation of the transaction under scrutiny.
func (b *Bundle) Encrypted() *ledger.EncryptedTransaction {
	return b.encrypted
}

// Signed returns the plaintext representation of the transaction under scrutiny.
func (b *Bundle) Signed() *ledger.SignedTransaction {
	return b.signed
}

// Dependencies returns the dependency pairs of the direct ancestors.
func (b *Bundle) Dependencies() []*DependencyPair {
	return b.dependencies
}

// CheckPairing checks that every encrypted representation in the Bundle is paired with the plaintext transaction it
// claims to stand for. It only compares identifiers - the payloads stay opaque outside the enclave.
func (b *Bundle) CheckPairing() (err error) {
	if b.encrypted.ID() != b.signed.ID() {
		return errors.Errorf("bundle pairs %s with plaintext %s: %w", b.encrypted.ID(), b.signed.ID(), ErrPairingMismatch)
	}

	for _, dependency := range b.dependencies {
		if dependency.encrypted.ID() != dependency.signed.ID() {
			return errors.Errorf("dependency pairs %s with plaintext %s: %w", dependency.encrypted.ID(), dependency.signed.ID(), ErrPairingMismatch)
		}
	}

	return nil
}

// String returns a human-readable version of the Bundle.
func (b *Bundle) String() string {
	structBuilder := stringify.StructBuilder("Bundle",
		stringify.StructField("encrypted", b.encrypted),
		stringify.StructField("signed", b.signed),
	)
	for i, dependency := range b.dependencies {
		structBuilder.AddField(stringify.StructField("dependency"+strconv.Itoa(i), dependency))
	}

	return structBuilder.String()
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region AttestedResult ///////////////////////////////////////////////////////////////////////////////////////////////

// AttestedResult is an enclave's signed statement that a transaction passed confidential verification. The
// attestation binds the verifier's key to the transaction identifier and can be stored alongside the recorded
// transaction as evidence.
type AttestedResult struct {
	transactionID ledger.TransactionID
	verifierKey   ed25519.PublicKey
	signature     ed25519.Signature
}

// NewAttestedResult creates a new AttestedResult for the given transaction, signed by the given key pair.
func NewAttestedResult(transactionID ledger.TransactionID, keyPair ed25519.KeyPair) *AttestedResult {
	return &AttestedResult{
		transactionID: transactionID,
		verifierKey:   keyPair.PublicKey,
		signature:     keyPair.PrivateKey.Sign(transactionID.Bytes()),
	}
}

// AttestedResultFromBytes unmarshals an AttestedResult from a sequence of bytes.
func AttestedResultFromBytes(bytes []byte) (attestedResult *AttestedResult, consumedBytes int, err error) {
	marshalUtil := marshalutil.New(bytes)
	if attestedResult, err = AttestedResultFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse AttestedResult from MarshalUtil: %w", err)
		return
	}
	consumedBytes = marshalUtil.ReadOffset()

	return
}

// AttestedResultFromMarshalUtil unmarshals an AttestedResult using a MarshalUtil (for easier unmarshaling).
func AttestedResultFromMarshalUtil(marshalUtil *marshalutil.MarshalUtil) (attestedResult *AttestedResult, err error) {
	attestedResult = &AttestedResult{}
	if attestedResult.transactionID, err = ledger.TransactionIDFromMarshalUtil(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse TransactionID from MarshalUtil: %w", err)
		return
	}
	if attestedResult.verifierKey, err = ed25519.ParsePublicKey(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse verifier key from MarshalUtil: %w", err)
		return
	}
	if attestedResult.signature, err = ed25519.ParseSignature(marshalUtil); err != nil {
		err = errors.Errorf("failed to parse attestation signature from MarshalUtil: %w", err)
		return
	}

	return
}

// TransactionID returns the identifier of the attested transaction.
func (a *AttestedResult) TransactionID() ledger.TransactionID {
	return a.transactionID
}

// VerifierKey returns the public key of the attesting verifier.
func (a *AttestedResult) VerifierKey() ed25519.PublicKey {
	return a.verifierKey
}

// Valid checks that the attestation signature matches the attested transaction identifier.
func (a *AttestedResult) Valid() bool {
	return a.verifierKey.VerifySignature(a.transactionID.Bytes(), a.signature)
}

// Bytes returns a marshaled version of the AttestedResult.
func (a *AttestedResult) Bytes() []byte {
	return marshalutil.New(ledger.TransactionIDLength + ed25519.PublicKeySize + ed25519.SignatureSize).
		Write(a.transactionID).
		WriteBytes(a.verifierKey.Bytes()).
		WriteBytes(a.signature.Bytes()).
		Bytes()
}

// String returns a human-readable version of the AttestedResult.
func (a *AttestedResult) String() string {
	return stringify.Struct("AttestedResult",
		stringify.StructField("transactionID", a.transactionID),
		stringify.StructField("verifierKey", a.verifierKey),
	)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region ConfidentialVerifier /////////////////////////////////////////////////////////////////////////////////////////

// ConfidentialVerifier verifies an encrypted transaction without revealing its content to the caller. Implementations
// wrap an enclave or a comparable trusted execution environment.
type ConfidentialVerifier interface {
	// VerifyWithSignatures verifies the bundle including signature sufficiency and returns a signed attestation.
	VerifyWithSignatures(bundle *Bundle) (attestedResult *AttestedResult, err error)

	// VerifyWithoutSignatures verifies the bundle's validity without enforcing signatures and without attesting.
	VerifyWithoutSignatures(bundle *Bundle) (err error)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region LocalEnclave /////////////////////////////////////////////////////////////////////////////////////////////////

// LocalEnclave is an in-process ConfidentialVerifier. It stands in for a remote enclave by running the plain
// verification path over the bundle's plaintext representations and signing the attestation with a local key.
type LocalEnclave struct {
	keyPair        ed25519.KeyPair
	partyResolver  PartyResolver
	attachments    ledger.AttachmentSource
	parametersHash ledger.ParametersHash
}

// NewLocalEnclave creates a new LocalEnclave that attests with the given key pair. Attachments are not part of the
// bundle and are opened from the given source instead.
func NewLocalEnclave(keyPair ed25519.KeyPair, partyResolver PartyResolver, attachments ledger.AttachmentSource, parametersHash ledger.ParametersHash) *LocalEnclave {
	return &LocalEnclave{
		keyPair:        keyPair,
		partyResolver:  partyResolver,
		attachments:    attachments,
		parametersHash: parametersHash,
	}
}

// VerifyWithSignatures verifies the bundle including signature sufficiency and returns a signed attestation.
func (l *LocalEnclave) VerifyWithSignatures(bundle *Bundle) (attestedResult *AttestedResult, err error) {
	if err = l.verify(bundle, true); err != nil {
		return nil, err
	}

	return NewAttestedResult(bundle.Signed().ID(), l.keyPair), nil
}

// VerifyWithoutSignatures verifies the bundle's validity without enforcing signatures and without attesting.
func (l *LocalEnclave) VerifyWithoutSignatures(bundle *Bundle) (err error) {
	return l.verify(bundle, false)
}

func (l *LocalEnclave) verify(bundle *Bundle, checkSufficientSignatures bool) (err error) {
	sources := ledger.NewSourceOverlay(nil, l.attachments)
	for _, dependency := range bundle.Dependencies() {
		sources.StageTransaction(dependency.Signed())
	}

	return New(
		WithSources(sources, sources),
		WithPartyResolver(l.partyResolver),
		WithParametersHash(l.parametersHash),
	).VerifyTransaction(bundle.Signed(), checkSufficientSignatures)
}

// code contract (make sure the struct implements all required methods)
var _ ConfidentialVerifier = &LocalEnclave{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
