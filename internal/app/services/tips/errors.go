package tips

import (
	"fmt"

	"github.com/takshakmudgal/tippit/internal/solana"
)

// The error taxonomy of the tip flow. Business-rule violations are terminal
// and surfaced verbatim; ledger and store connectivity failures are
// retryable and carry their cause. Nothing is coerced into a generic error.

// ValidationError reports malformed input, fixable by the caller.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// NotFoundError reports an unknown user or submission.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// SelfTipError reports a tipper wallet matching the submission owner wallet.
type SelfTipError struct {
	Wallet string
}

func (e *SelfTipError) Error() string {
	return "you cannot tip your own submission"
}

// LimitExceededError reports an increment that would overflow the tip jar.
type LimitExceededError struct {
	Headroom float64
}

func (e *LimitExceededError) Error() string {
	if e.Headroom <= 0 {
		return "tip jar limit reached"
	}
	return fmt.Sprintf("tip exceeds the tip jar limit: only %.2f USD remaining", e.Headroom)
}

// DuplicateTransactionError reports a transaction signature that already
// backs a recorded tip.
type DuplicateTransactionError struct {
	Signature string
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("transaction %s has already been recorded as a tip", e.Signature)
}

// TransactionInvalidError reports a ledger-confirmed verification failure.
// Code carries the verifier's enumerated sub-reason.
type TransactionInvalidError struct {
	Code   solana.ReasonCode
	Reason string
}

func (e *TransactionInvalidError) Error() string { return e.Reason }

// LedgerUnavailableError reports that the ledger or the rate source could not
// be queried. Retryable: the caller should try again, not fix the input.
type LedgerUnavailableError struct {
	Err error
}

func (e *LedgerUnavailableError) Error() string {
	return fmt.Sprintf("ledger temporarily unavailable: %v", e.Err)
}

func (e *LedgerUnavailableError) Unwrap() error { return e.Err }

// StoreConflictError reports a lost concurrent-write race. Retryable by
// re-running submit; the duplicate-signature check keeps the retry idempotent.
type StoreConflictError struct {
	Err error
}

func (e *StoreConflictError) Error() string {
	return fmt.Sprintf("concurrent update conflict, please retry: %v", e.Err)
}

func (e *StoreConflictError) Unwrap() error { return e.Err }
