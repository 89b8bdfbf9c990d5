// Package tips implements the tip recorder: the transactional orchestrator of
// the tipping flow and the only component that creates tip records or moves
// the per-submission aggregate.
package tips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/metrics"
	"github.com/takshakmudgal/tippit/internal/app/storage"
	"github.com/takshakmudgal/tippit/internal/solana"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// DefaultVerifyTimeout bounds one ledger verification. A timeout is a
// retryable failure, not a rejection of the claim.
const DefaultVerifyTimeout = 15 * time.Second

// Verifier confirms a claimed transfer against the ledger.
type Verifier interface {
	Verify(ctx context.Context, signature, expectedSender, expectedRecipient string, expectedUSD, solPrice float64) (solana.Verification, error)
}

// RateSource supplies the current SOL/USD rate.
type RateSource interface {
	Current(ctx context.Context) (float64, error)
}

// Service orchestrates tip submission end to end: input validation, invariant
// checks, ledger verification and the atomic record-plus-increment write.
type Service struct {
	users         storage.UserStore
	submissions   storage.SubmissionStore
	tips          storage.TipStore
	verifier      Verifier
	rates         RateSource
	verifyTimeout time.Duration
	metrics       *metrics.Metrics
	log           *logger.Logger
}

// New constructs the tip recorder.
func New(users storage.UserStore, submissions storage.SubmissionStore, tipStore storage.TipStore, verifier Verifier, rates RateSource, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tips")
	}
	return &Service{
		users:         users,
		submissions:   submissions,
		tips:          tipStore,
		verifier:      verifier,
		rates:         rates,
		verifyTimeout: DefaultVerifyTimeout,
		log:           log,
	}
}

// AttachMetrics wires prometheus collectors. Optional.
func (s *Service) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetVerifyTimeout overrides the ledger verification timeout.
func (s *Service) SetVerifyTimeout(d time.Duration) {
	if d > 0 {
		s.verifyTimeout = d
	}
}

// Submit records a tip claim. Preconditions are checked in a fixed order,
// each with its own rejection; the ledger is consulted only after every
// store-local check has passed, and the final write is a single atomic unit
// that re-validates the tip jar limit inside the store transaction.
func (s *Service) Submit(ctx context.Context, claim tip.Claim) (tip.Record, error) {
	if err := validateClaim(claim); err != nil {
		return tip.Record{}, s.reject("validation", err)
	}

	if strings.ToUpper(claim.Currency) != tip.CurrencyUSD {
		return tip.Record{}, s.reject("currency", &ValidationError{
			Reason: fmt.Sprintf("unsupported currency %q: tips settle in USD only", claim.Currency),
		})
	}

	if _, err := s.tips.GetTipBySignature(ctx, claim.TransactionSignature); err == nil {
		return tip.Record{}, s.reject("duplicate", &DuplicateTransactionError{Signature: claim.TransactionSignature})
	} else if !errors.Is(err, storage.ErrNotFound) {
		return tip.Record{}, fmt.Errorf("check transaction signature: %w", err)
	}

	tipper, err := s.users.GetUserByWallet(ctx, claim.UserWallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tip.Record{}, s.reject("unknown_user", &NotFoundError{Entity: "user", Key: claim.UserWallet})
		}
		return tip.Record{}, fmt.Errorf("resolve tipper: %w", err)
	}

	sub, err := s.submissions.GetSubmission(ctx, claim.SubmissionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tip.Record{}, s.reject("unknown_submission", &NotFoundError{Entity: "submission", Key: claim.SubmissionID})
		}
		return tip.Record{}, fmt.Errorf("resolve submission: %w", err)
	}

	ownerWallet, err := s.resolveOwnerWallet(ctx, sub)
	if err != nil {
		return tip.Record{}, err
	}

	if tipper.Wallet == ownerWallet {
		return tip.Record{}, s.reject("self_tip", &SelfTipError{Wallet: tipper.Wallet})
	}

	if sub.CurrentTips+claim.Amount > sub.TipJarLimit {
		return tip.Record{}, s.reject("limit", &LimitExceededError{Headroom: sub.Headroom()})
	}

	rate, err := s.rates.Current(ctx)
	if err != nil {
		return tip.Record{}, s.reject("rate_unavailable", &LedgerUnavailableError{Err: err})
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	started := time.Now()
	verification, err := s.verifier.Verify(verifyCtx, claim.TransactionSignature, tipper.Wallet, ownerWallet, claim.Amount, rate)
	if s.metrics != nil {
		s.metrics.ObserveVerification(time.Since(started))
	}
	if err != nil {
		return tip.Record{}, s.reject("ledger_unavailable", &LedgerUnavailableError{Err: err})
	}
	if !verification.OK {
		return tip.Record{}, s.reject("transaction_invalid", &TransactionInvalidError{
			Code:   verification.Code,
			Reason: verification.Reason,
		})
	}

	// The ledger-observed value is authoritative, not the claimed one.
	observedUSD := verification.ObservedSOL * rate

	rec, _, err := s.tips.RecordTip(ctx, tip.Record{
		SubmissionID:         sub.ID,
		UserID:               tipper.ID,
		Amount:               observedUSD,
		Currency:             tip.CurrencyUSD,
		TransactionSignature: claim.TransactionSignature,
	})
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateTransaction):
			return tip.Record{}, s.reject("duplicate", &DuplicateTransactionError{Signature: claim.TransactionSignature})
		case errors.Is(err, storage.ErrTipJarLimitExceeded):
			return tip.Record{}, s.reject("limit", &LimitExceededError{Headroom: sub.Headroom()})
		case errors.Is(err, storage.ErrNotFound):
			return tip.Record{}, s.reject("unknown_submission", &NotFoundError{Entity: "submission", Key: claim.SubmissionID})
		case errors.Is(err, storage.ErrConflict):
			return tip.Record{}, s.reject("conflict", &StoreConflictError{Err: err})
		}
		return tip.Record{}, fmt.Errorf("record tip: %w", err)
	}

	if s.metrics != nil {
		s.metrics.TipRecorded(rec.Amount)
	}
	s.log.WithField("submission", rec.SubmissionID).
		WithField("signature", rec.TransactionSignature).
		WithField("amount_usd", rec.Amount).
		Info("tip recorded")

	return rec, nil
}

// TipJarLimit returns the tip jar limit for a submission.
func (s *Service) TipJarLimit(ctx context.Context, submissionID string) (float64, error) {
	sub, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, &NotFoundError{Entity: "submission", Key: submissionID}
		}
		return 0, fmt.Errorf("resolve submission: %w", err)
	}
	return sub.TipJarLimit, nil
}

func (s *Service) resolveOwnerWallet(ctx context.Context, sub submission.Submission) (string, error) {
	if sub.OwnerWallet != "" {
		return sub.OwnerWallet, nil
	}
	owner, err := s.users.GetUser(ctx, sub.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", s.reject("unknown_owner", &NotFoundError{Entity: "submission owner", Key: sub.UserID})
		}
		return "", fmt.Errorf("resolve submission owner: %w", err)
	}
	return owner.Wallet, nil
}

func (s *Service) reject(reason string, err error) error {
	if s.metrics != nil {
		s.metrics.TipRejected(reason)
	}
	return err
}

func validateClaim(claim tip.Claim) error {
	switch {
	case strings.TrimSpace(claim.SubmissionID) == "":
		return &ValidationError{Reason: "submissionId is required"}
	case strings.TrimSpace(claim.UserWallet) == "":
		return &ValidationError{Reason: "userWallet is required"}
	case strings.TrimSpace(claim.TransactionSignature) == "":
		return &ValidationError{Reason: "transactionSignature is required"}
	case strings.TrimSpace(claim.Currency) == "":
		return &ValidationError{Reason: "currency is required"}
	case claim.Amount <= 0:
		return &ValidationError{Reason: "amount must be positive"}
	}
	return nil
}
