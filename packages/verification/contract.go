package verification

import (
	"github.com/cockroachdb/errors"

	"github.com/trustweave/ledgercore/packages/ledger"
)

// region ContractChecker //////////////////////////////////////////////////////////////////////////////////////////////

// ContractChecker evaluates the contract rules of a resolved transaction. The evaluation logic itself lives outside
// this module - only its invocation contract is fixed here.
type ContractChecker interface {
	// VerifyContracts returns an error if any contract rule of the given LedgerTransaction is violated.
	VerifyContracts(ledgerTransaction *ledger.LedgerTransaction) error
}

// ContractCheckerFunc is an adapter that allows a plain function to be used as a ContractChecker.
type ContractCheckerFunc func(ledgerTransaction *ledger.LedgerTransaction) error

// VerifyContracts returns an error if any contract rule of the given LedgerTransaction is violated.
func (c ContractCheckerFunc) VerifyContracts(ledgerTransaction *ledger.LedgerTransaction) error {
	return c(ledgerTransaction)
}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////

// region StateRule ////////////////////////////////////////////////////////////////////////////////////////////////////

// StateRule is implemented by StatePayloads that carry their own contract rule. The RuleBasedChecker invokes it for
// every input and output state of the transaction being verified.
type StateRule interface {
	// Validate returns an error if the transaction violates the rule of this state.
	Validate(ledgerTransaction *ledger.LedgerTransaction) error
}

// RuleBasedChecker is a ContractChecker that evaluates the StateRule of every input and output state that carries
// one. States without a rule are accepted.
type RuleBasedChecker struct{}

// NewRuleBasedChecker creates a new RuleBasedChecker.
func NewRuleBasedChecker() *RuleBasedChecker {
	return &RuleBasedChecker{}
}

// VerifyContracts evaluates the StateRules of the given LedgerTransaction's input and output states.
func (r *RuleBasedChecker) VerifyContracts(ledgerTransaction *ledger.LedgerTransaction) (err error) {
	for _, input := range ledgerTransaction.Inputs() {
		if rule, hasRule := input.State().State().(StateRule); hasRule {
			if err = rule.Validate(ledgerTransaction); err != nil {
				return errors.Errorf("input %s violates its contract: %w", input.Ref(), err)
			}
		}
	}
	for i, output := range ledgerTransaction.Outputs() {
		if rule, hasRule := output.State().(StateRule); hasRule {
			if err = rule.Validate(ledgerTransaction); err != nil {
				return errors.Errorf("output %d violates its contract: %w", i, err)
			}
		}
	}

	return nil
}

// code contract (make sure the struct implements all required methods)
var _ ContractChecker = &RuleBasedChecker{}

// endregion ///////////////////////////////////////////////////////////////////////////////////////////////////////////
