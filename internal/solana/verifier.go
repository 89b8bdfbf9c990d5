package solana

import (
	"context"
	"fmt"
	"math"

	"github.com/takshakmudgal/tippit/pkg/logger"
)

// AmountTolerance is the accepted relative drift between the claimed and the
// observed transfer amount. The claimed USD value is computed by the client
// against a point-in-time price quote that can move before the ledger write
// settles; bounded slippage is accepted, arbitrary mismatches are not.
const AmountTolerance = 0.05

// ReasonCode enumerates the terminal rejection reasons a verification can
// produce. Transport failures are not reasons; they surface as errors.
type ReasonCode string

const (
	ReasonNotFound          ReasonCode = "not_found"
	ReasonExecutionFailed   ReasonCode = "execution_failed"
	ReasonNoTransfer        ReasonCode = "no_transfer_instruction"
	ReasonWrongParties      ReasonCode = "wrong_parties"
	ReasonBadAmount         ReasonCode = "bad_amount"
	ReasonToleranceExceeded ReasonCode = "amount_mismatch"
)

// Verification is the tagged outcome of checking a tip claim against the
// ledger: either verified with the observed transfer, or rejected with an
// enumerated reason.
type Verification struct {
	OK               bool
	ObservedLamports int64
	ObservedSOL      float64
	Sender           string
	Recipient        string
	Code             ReasonCode
	Reason           string
}

func rejected(code ReasonCode, format string, args ...interface{}) Verification {
	return Verification{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// TransactionFetcher is the ledger query the verifier depends on. *Client
// satisfies it; tests substitute their own.
type TransactionFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*TransactionResult, error)
}

// Verifier independently confirms that a named on-chain transaction performed
// a SOL transfer of the claimed magnitude between the claimed parties. It
// never trusts a client-supplied amount, sender or recipient without ledger
// confirmation.
type Verifier struct {
	client TransactionFetcher
	log    *logger.Logger
}

// NewVerifier constructs a verifier around a ledger client.
func NewVerifier(client TransactionFetcher, log *logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewDefault("solana-verifier")
	}
	return &Verifier{client: client, log: log}
}

// Verify checks the claim against the ledger. The returned error is non-nil
// only when the ledger could not be queried (network, timeout); that outcome
// is retryable. Every ledger-confirmed mismatch comes back as a rejected
// Verification with a user-facing reason.
func (v *Verifier) Verify(ctx context.Context, signature, expectedSender, expectedRecipient string, expectedUSD, solPrice float64) (Verification, error) {
	tx, err := v.client.GetTransaction(ctx, signature)
	if err != nil {
		return Verification{}, fmt.Errorf("fetch transaction %s: %w", signature, err)
	}
	if tx == nil {
		return rejected(ReasonNotFound, "transaction not found on-chain"), nil
	}
	if tx.Meta == nil {
		return rejected(ReasonNotFound, "transaction has no confirmed metadata"), nil
	}
	if tx.Meta.Failed() {
		return rejected(ReasonExecutionFailed, "on-chain transaction failed: %s", tx.Meta.ErrDetail()), nil
	}

	msg := tx.Transaction.Message
	instr, ok := findTransferInstruction(msg)
	if !ok {
		return rejected(ReasonNoTransfer, "no valid transfer instruction found"), nil
	}

	srcIdx, dstIdx := instr.Accounts[0], instr.Accounts[1]
	if srcIdx < 0 || srcIdx >= len(msg.AccountKeys) || dstIdx < 0 || dstIdx >= len(msg.AccountKeys) {
		return rejected(ReasonNoTransfer, "transfer instruction references unknown accounts"), nil
	}
	sender := msg.AccountKeys[srcIdx]
	recipient := msg.AccountKeys[dstIdx]

	if sender != expectedSender {
		return rejected(ReasonWrongParties, "transaction sender %s does not match tipper wallet %s", sender, expectedSender), nil
	}
	if recipient != expectedRecipient {
		return rejected(ReasonWrongParties, "transaction recipient %s does not match submission owner wallet %s", recipient, expectedRecipient), nil
	}

	if dstIdx >= len(tx.Meta.PreBalances) || dstIdx >= len(tx.Meta.PostBalances) {
		return rejected(ReasonBadAmount, "balance record missing for recipient account"), nil
	}

	// The recipient's balance delta is the ground truth for the moved
	// amount. The instruction's declared lamport field can be reinterpreted
	// by inner instructions; the recorded balances cannot.
	delta := tx.Meta.PostBalances[dstIdx] - tx.Meta.PreBalances[dstIdx]
	if delta <= 0 {
		return rejected(ReasonBadAmount, "invalid transfer amount"), nil
	}

	if solPrice <= 0 {
		return Verification{}, fmt.Errorf("invalid SOL price %v", solPrice)
	}

	expectedSOL := expectedUSD / solPrice
	expectedLamports := expectedSOL * LamportsPerSOL
	relDiff := math.Abs(float64(delta)-expectedLamports) / expectedLamports
	observedSOL := float64(delta) / LamportsPerSOL
	if relDiff > AmountTolerance {
		return rejected(ReasonToleranceExceeded,
			"amount mismatch: observed %.9f SOL, expected %.9f SOL (claimed %.2f USD at %.4f USD/SOL)",
			observedSOL, expectedSOL, expectedUSD, solPrice), nil
	}

	v.log.WithField("signature", signature).
		WithField("observed_sol", observedSOL).
		Debugf("transfer verified")

	return Verification{
		OK:               true,
		ObservedLamports: delta,
		ObservedSOL:      observedSOL,
		Sender:           sender,
		Recipient:        recipient,
	}, nil
}

// findTransferInstruction locates the first instruction whose form is a
// simple two-party system-program transfer.
func findTransferInstruction(msg Message) (Instruction, bool) {
	for _, instr := range msg.Instructions {
		if instr.ProgramIDIndex < 0 || instr.ProgramIDIndex >= len(msg.AccountKeys) {
			continue
		}
		if msg.AccountKeys[instr.ProgramIDIndex] != SystemProgramID {
			continue
		}
		if len(instr.Accounts) != 2 {
			continue
		}
		return instr, true
	}
	return Instruction{}, false
}
