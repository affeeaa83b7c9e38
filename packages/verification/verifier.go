package verification

import (
	"github.com/cockroachdb/errors"
	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/hive.go/identity"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region PartyResolver ////////////////////////////////////////////////////////////////////////////////////////////////

// PartyResolver maps public keys to the identity principals they belong to. Keys without a known identity are not an
// error - they are silently dropped when commands are authenticated.
type PartyResolver interface {
	// PartyForKey returns the identity that the given public key belongs to (if it is known).
	PartyForKey(publicKey ed25519.PublicKey) (party *identity.Identity, exists bool)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Verifier /////////////////////////////////////////////////////////////////////////////////////////////////////

// Verifier is the verification engine: it resolves WireTransactions into LedgerTransactions against local storage and
// validates them, either in plain mode (contract rules plus signatures) or by delegating to a confidential verifier.
type Verifier struct {
	options *Options
}

// New creates a new Verifier with the given options.
func New(options ...Option) (verifier *Verifier) {
	return &Verifier{
		options: newOptions(options),
	}
}

// WithSources returns a copy of the Verifier that resolves against the given sources instead of the configured ones.
// It is used to make staged, not yet committed transactions visible during recursive verification.
func (v *Verifier) WithSources(transactions ledger.TransactionSource, attachments ledger.AttachmentSource) (verifier *Verifier) {
	derivedOptions := *v.options
	derivedOptions.transactionSource = transactions
	derivedOptions.attachmentSource = attachments

	return &Verifier{
		options: &derivedOptions,
	}
}

// CheckParametersHash checks that the given WireTransaction declares the locally accepted network parameters hash. It
// must run before dependency resolution begins - a mismatch rejects the transaction without any fetches.
func (v *Verifier) CheckParametersHash(wireTransaction *ledger.WireTransaction) (err error) {
	if wireTransaction.ParametersHash() != v.options.parametersHash {
		return errors.Errorf("transaction with %s declares %s instead of accepted %s: %w", wireTransaction.ID(), wireTransaction.ParametersHash(), v.options.parametersHash, ErrParametersMismatch)
	}

	return nil
}

// ResolveTransaction materializes the given WireTransaction into a LedgerTransaction: every input StateRef is looked
// up in local storage, every attachment hash is opened and every Command's signer keys are mapped to identities.
func (v *Verifier) ResolveTransaction(wireTransaction *ledger.WireTransaction) (ledgerTransaction *ledger.LedgerTransaction, err error) {
	resolvedInputs := make([]*ledger.ResolvedInput, len(wireTransaction.Inputs()))
	for i, inputRef := range wireTransaction.Inputs() {
		dependency, exists := v.options.transactionSource.LoadTransaction(inputRef.TransactionID)
		if !exists {
			err = errors.Errorf("failed to resolve input %s of transaction with %s: %w", inputRef, wireTransaction.ID(), ErrTransactionResolution)
			return
		}

		state, outputErr := dependency.Wire().OutputAt(inputRef.Index)
		if outputErr != nil {
			err = errors.Errorf("failed to resolve input %s of transaction with %s: %w", inputRef, wireTransaction.ID(), outputErr)
			return
		}

		resolvedInputs[i] = ledger.NewResolvedInput(inputRef, state)
	}

	attachments := make([]*ledger.Attachment, len(wireTransaction.Attachments()))
	for i, attachmentID := range wireTransaction.Attachments() {
		attachment, exists := v.options.attachmentSource.OpenAttachment(attachmentID)
		if !exists {
			err = errors.Errorf("failed to open %s of transaction with %s: %w", attachmentID, wireTransaction.ID(), ErrAttachmentResolution)
			return
		}

		attachments[i] = attachment
	}

	authenticatedCommands := make([]*ledger.AuthenticatedCommand, len(wireTransaction.Commands()))
	for i, command := range wireTransaction.Commands() {
		parties := make([]*identity.Identity, 0, len(command.Signers()))
		for _, signer := range command.Signers() {
			if party, exists := v.options.partyResolver.PartyForKey(signer); exists {
				parties = append(parties, party)
			}
		}

		authenticatedCommands[i] = ledger.NewAuthenticatedCommand(command, parties)
	}

	return ledger.NewLedgerTransaction(wireTransaction.ID(), resolvedInputs, wireTransaction.Outputs(), attachments, authenticatedCommands), nil
}

// VerifyTransaction runs the plain verification path: it checks the parameters hash, resolves the WireTransaction,
// evaluates its contract rules and validates its signatures. Signature sufficiency is only enforced when
// checkSufficientSignatures is set.
func (v *Verifier) VerifyTransaction(signedTransaction *ledger.SignedTransaction, checkSufficientSignatures bool) (err error) {
	if err = v.CheckParametersHash(signedTransaction.Wire()); err != nil {
		return err
	}

	ledgerTransaction, err := v.ResolveTransaction(signedTransaction.Wire())
	if err != nil {
		return err
	}

	if contractErr := v.options.contractChecker.VerifyContracts(ledgerTransaction); contractErr != nil {
		return errors.Errorf("transaction with %s: %v: %w", signedTransaction.ID(), contractErr, ErrTransactionVerification)
	}

	return v.options.signatureChecker.VerifySignatures(signedTransaction, signedTransaction.Wire().RequiredSigners(), checkSufficientSignatures)
}

// VerifyGroup checks a closure's validity without re-verifying axiomatically trusted ancestors: the contract rules
// are evaluated for the verified partition only, while the non-verified transactions are accepted as given.
func (v *Verifier) VerifyGroup(transactionGroup *ledger.TransactionGroup) (err error) {
	for _, ledgerTransaction := range transactionGroup.Verified() {
		if contractErr := v.options.contractChecker.VerifyContracts(ledgerTransaction); contractErr != nil {
			return errors.Errorf("transaction with %s: %v: %w", ledgerTransaction.ID(), contractErr, ErrTransactionVerification)
		}
	}

	return nil
}

// VerifyConfidential checks the bundle pairing invariant and delegates the verification to the configured
// confidential verifier. With requireSignatures set it returns the enclave-attested result; without it only a
// signature-agnostic check runs and no attestation is produced.
func (v *Verifier) VerifyConfidential(bundle *Bundle, requireSignatures bool) (attestedResult *AttestedResult, err error) {
	if v.options.confidentialVerifier == nil {
		return nil, ErrNoConfidentialVerifier
	}

	if err = bundle.CheckPairing(); err != nil {
		return nil, err
	}

	if !requireSignatures {
		return nil, v.options.confidentialVerifier.VerifyWithoutSignatures(bundle)
	}

	if attestedResult, err = v.options.confidentialVerifier.VerifyWithSignatures(bundle); err != nil {
		return nil, err
	}

	return attestedResult, nil
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region Options //////////////////////////////////////////////////////////////////////////////////////////////////////

// Options is a container for all configurable parameters of a Verifier.
type Options struct {
	transactionSource    ledger.TransactionSource
	attachmentSource     ledger.AttachmentSource
	partyResolver        PartyResolver
	contractChecker      ContractChecker
	signatureChecker     SignatureChecker
	confidentialVerifier ConfidentialVerifier
	parametersHash       ledger.ParametersHash
}

// Option is a function which inits an option.
type Option func(*Options)

func newOptions(optionalOptions []Option) *Options {
	result := &Options{
		contractChecker:  NewRuleBasedChecker(),
		signatureChecker: NewED25519SignatureChecker(),
	}

	for _, optionalOption := range optionalOptions {
		optionalOption(result)
	}

	return result
}

// WithSources creates an option which sets the sources that transactions are resolved against.
func WithSources(transactions ledger.TransactionSource, attachments ledger.AttachmentSource) Option {
	return func(options *Options) {
		options.transactionSource = transactions
		options.attachmentSource = attachments
	}
}

// WithPartyResolver creates an option which sets the PartyResolver used to authenticate commands.
func WithPartyResolver(partyResolver PartyResolver) Option {
	return func(options *Options) {
		options.partyResolver = partyResolver
	}
}

// WithContractChecker creates an option which sets the ContractChecker.
func WithContractChecker(contractChecker ContractChecker) Option {
	return func(options *Options) {
		options.contractChecker = contractChecker
	}
}

// WithSignatureChecker creates an option which sets the SignatureChecker.
func WithSignatureChecker(signatureChecker SignatureChecker) Option {
	return func(options *Options) {
		options.signatureChecker = signatureChecker
	}
}

// WithConfidentialVerifier creates an option which sets the ConfidentialVerifier used by the confidential path.
func WithConfidentialVerifier(confidentialVerifier ConfidentialVerifier) Option {
	return func(options *Options) {
		options.confidentialVerifier = confidentialVerifier
	}
}

// WithParametersHash creates an option which sets the locally accepted network parameters hash.
func WithParametersHash(parametersHash ledger.ParametersHash) Option {
	return func(options *Options) {
		options.parametersHash = parametersHash
	}
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
