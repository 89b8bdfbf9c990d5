package storage

import (
	"context"
	"errors"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/domain/user"
)

// Sentinel errors shared by every store implementation. Services translate
// these into their own taxonomy; callers must never see a driver error.
var (
	// ErrNotFound signals an unknown user, submission or tip.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateTransaction signals a transaction signature that already
	// backs a recorded tip. Backed by a native unique index, not only the
	// pre-insert check, so a check-then-insert race cannot slip through.
	ErrDuplicateTransaction = errors.New("transaction signature already recorded")
	// ErrTipJarLimitExceeded signals that an increment re-validated inside
	// the store transaction would overflow the submission's tip jar limit.
	ErrTipJarLimitExceeded = errors.New("tip jar limit exceeded")
	// ErrConflict signals a lost concurrent-write race. Retryable by
	// re-running the whole submit.
	ErrConflict = errors.New("concurrent update conflict")
)

// UserStore persists wallet-keyed users.
type UserStore interface {
	EnsureUser(ctx context.Context, wallet string) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (user.User, error)
	SetUserAdmin(ctx context.Context, wallet string, admin bool) (user.User, error)
}

// SubmissionStore persists community submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error)
	GetSubmission(ctx context.Context, id string) (submission.Submission, error)
	ListSubmissions(ctx context.Context) ([]submission.Submission, error)
	ListSubmissionsByStatus(ctx context.Context, status submission.Status, offset, limit int) ([]submission.Submission, int, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status submission.Status, rejectionReason string) (submission.Submission, error)
	Leaderboard(ctx context.Context, limit int) ([]submission.LeaderboardEntry, error)
}

// TipStore persists tip records and the per-submission aggregate.
//
// RecordTip is the single serialization point of the tip flow: it must insert
// the record and increment the submission's current_tips as one atomic unit,
// re-validating the tip jar limit after acquiring whatever lock serialises
// concurrent writers. Two concurrent tips that individually fit but jointly
// overflow the limit must not both succeed.
type TipStore interface {
	RecordTip(ctx context.Context, rec tip.Record) (tip.Record, submission.Submission, error)
	GetTipBySignature(ctx context.Context, signature string) (tip.Record, error)
	ListTips(ctx context.Context, submissionID string) ([]tip.Record, error)
}
