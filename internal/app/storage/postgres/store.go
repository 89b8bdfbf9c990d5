package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/domain/user"
	"github.com/takshakmudgal/tippit/internal/app/storage"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SubmissionStore = (*Store)(nil)
var _ storage.TipStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- UserStore ---------------------------------------------------------------

func (s *Store) EnsureUser(ctx context.Context, wallet string) (user.User, error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, wallet, is_admin, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3)
		ON CONFLICT (wallet) DO UPDATE SET updated_at = users.updated_at
		RETURNING id, wallet, is_admin, created_at, updated_at
	`, uuid.NewString(), wallet, now)

	return scanUser(row)
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wallet, is_admin, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wallet, is_admin, created_at, updated_at
		FROM users
		WHERE wallet = $1
	`, wallet)
	return scanUser(row)
}

func (s *Store) SetUserAdmin(ctx context.Context, wallet string, admin bool) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE users
		SET is_admin = $2, updated_at = $3
		WHERE wallet = $1
		RETURNING id, wallet, is_admin, created_at, updated_at
	`, wallet, admin, time.Now().UTC())
	return scanUser(row)
}

func scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Wallet, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapError(err)
	}
	return u, nil
}

// --- SubmissionStore ---------------------------------------------------------

const submissionColumns = `
	s.id, s.user_id, u.wallet, s.title, s.link, s.description, s.geolocation,
	s.status, s.rejection_reason, s.current_tips, s.tip_jar_limit,
	s.created_at, s.updated_at`

func (s *Store) CreateSubmission(ctx context.Context, sub submission.Submission) (submission.Submission, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = submission.StatusPending
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, user_id, title, link, description, geolocation, status, rejection_reason, current_tips, tip_jar_limit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, sub.ID, sub.UserID, sub.Title, sub.Link, sub.Description, sub.Geolocation, sub.Status, sub.RejectionReason, sub.CurrentTips, sub.TipJarLimit, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return submission.Submission{}, mapError(err)
	}
	return s.GetSubmission(ctx, sub.ID)
}

func (s *Store) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`, id)
	return scanSubmission(row)
}

func (s *Store) ListSubmissions(ctx context.Context) ([]submission.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at DESC
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

func (s *Store) ListSubmissionsByStatus(ctx context.Context, status submission.Status, offset, limit int) ([]submission.Submission, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE $1 = '' OR status = $1
	`, string(status)).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		WHERE $1 = '' OR s.status = $1
		ORDER BY s.created_at DESC
		OFFSET $2 LIMIT $3
	`, string(status), offset, limit)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	subs, err := collectSubmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

func (s *Store) UpdateSubmissionStatus(ctx context.Context, id string, status submission.Status, rejectionReason string) (submission.Submission, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, rejection_reason = $3, updated_at = $4
		WHERE id = $1
	`, id, status, rejectionReason, time.Now().UTC())
	if err != nil {
		return submission.Submission{}, mapError(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return submission.Submission{}, storage.ErrNotFound
	}
	return s.GetSubmission(ctx, id)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]submission.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.link, s.description, u.wallet,
		       s.current_tips, s.tip_jar_limit, COUNT(t.id), s.created_at
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN tips t ON t.submission_id = s.id
		WHERE s.status = 'APPROVED'
		GROUP BY s.id, u.wallet
		ORDER BY s.current_tips DESC, s.created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []submission.LeaderboardEntry
	for rows.Next() {
		var e submission.LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Link, &e.Description, &e.OwnerWallet, &e.CurrentTips, &e.TipJarLimit, &e.TipCount, &e.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanSubmission(row *sql.Row) (submission.Submission, error) {
	var sub submission.Submission
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.OwnerWallet, &sub.Title, &sub.Link, &sub.Description, &sub.Geolocation, &sub.Status, &sub.RejectionReason, &sub.CurrentTips, &sub.TipJarLimit, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return submission.Submission{}, mapError(err)
	}
	return sub, nil
}

func collectSubmissions(rows *sql.Rows) ([]submission.Submission, error) {
	var result []submission.Submission
	for rows.Next() {
		var sub submission.Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.OwnerWallet, &sub.Title, &sub.Link, &sub.Description, &sub.Geolocation, &sub.Status, &sub.RejectionReason, &sub.CurrentTips, &sub.TipJarLimit, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}

// --- TipStore ----------------------------------------------------------------

// RecordTip inserts the tip and increments the submission aggregate in one
// transaction. The submission row is locked with FOR UPDATE and the tip jar
// limit is re-checked under that lock, so concurrent submits against the same
// submission serialise and a jointly-overflowing pair cannot both commit. The
// unique index on tips.transaction_signature closes the duplicate race
// natively; a violation surfaces as ErrDuplicateTransaction.
func (s *Store) RecordTip(ctx context.Context, rec tip.Record) (tip.Record, submission.Submission, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return tip.Record{}, submission.Submission{}, mapError(err)
	}
	defer tx.Rollback()

	sub, err := scanSubmission(tx.QueryRowContext(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
		FOR UPDATE OF s
	`, rec.SubmissionID))
	if err != nil {
		return tip.Record{}, submission.Submission{}, err
	}

	if sub.CurrentTips+rec.Amount > sub.TipJarLimit {
		return tip.Record{}, submission.Submission{}, storage.ErrTipJarLimitExceeded
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tips (id, submission_id, user_id, amount, currency, transaction_signature, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.SubmissionID, rec.UserID, rec.Amount, rec.Currency, rec.TransactionSignature, rec.CreatedAt)
	if err != nil {
		return tip.Record{}, submission.Submission{}, mapError(err)
	}

	// The updated aggregate is taken from the UPDATE itself, so the value
	// handed back is the one the commit made durable rather than a
	// post-commit re-read that could fail after the tip already landed.
	err = tx.QueryRowContext(ctx, `
		UPDATE submissions
		SET current_tips = current_tips + $2, updated_at = $3
		WHERE id = $1
		RETURNING current_tips, updated_at
	`, rec.SubmissionID, rec.Amount, rec.CreatedAt).Scan(&sub.CurrentTips, &sub.UpdatedAt)
	if err != nil {
		return tip.Record{}, submission.Submission{}, mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return tip.Record{}, submission.Submission{}, mapError(err)
	}
	return rec, sub, nil
}

func (s *Store) GetTipBySignature(ctx context.Context, signature string) (tip.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, submission_id, user_id, amount, currency, transaction_signature, created_at
		FROM tips
		WHERE transaction_signature = $1
	`, signature)

	var rec tip.Record
	if err := row.Scan(&rec.ID, &rec.SubmissionID, &rec.UserID, &rec.Amount, &rec.Currency, &rec.TransactionSignature, &rec.CreatedAt); err != nil {
		return tip.Record{}, mapError(err)
	}
	return rec, nil
}

func (s *Store) ListTips(ctx context.Context, submissionID string) ([]tip.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, user_id, amount, currency, transaction_signature, created_at
		FROM tips
		WHERE submission_id = $1
		ORDER BY created_at
	`, submissionID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var result []tip.Record
	for rows.Next() {
		var rec tip.Record
		if err := rows.Scan(&rec.ID, &rec.SubmissionID, &rec.UserID, &rec.Amount, &rec.Currency, &rec.TransactionSignature, &rec.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			if pqErr.Constraint == "tips_transaction_signature_key" {
				return storage.ErrDuplicateTransaction
			}
			return storage.ErrConflict
		case pqSerializationFailure:
			return storage.ErrConflict
		}
	}
	return err
}
