package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/domain/user"
	"github.com/takshakmudgal/tippit/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. A single mutex serialises RecordTip, which is what makes the
// limit re-check and the increment consistent under concurrent submits.
type Store struct {
	mu            sync.RWMutex
	users         map[string]user.User
	usersByWallet map[string]string
	submissions   map[string]submission.Submission
	tips          map[string]tip.Record
	tipsBySig     map[string]string
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SubmissionStore = (*Store)(nil)
var _ storage.TipStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]user.User),
		usersByWallet: make(map[string]string),
		submissions:   make(map[string]submission.Submission),
		tips:          make(map[string]tip.Record),
		tipsBySig:     make(map[string]string),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) EnsureUser(_ context.Context, wallet string) (user.User, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return user.User{}, storage.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usersByWallet[wallet]; ok {
		return s.users[id], nil
	}

	now := time.Now().UTC()
	u := user.User{
		ID:        uuid.NewString(),
		Wallet:    wallet,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = u
	s.usersByWallet[wallet] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByWallet(_ context.Context, wallet string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByWallet[strings.TrimSpace(wallet)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) SetUserAdmin(_ context.Context, wallet string, admin bool) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByWallet[strings.TrimSpace(wallet)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	u := s.users[id]
	u.IsAdmin = admin
	u.UpdatedAt = time.Now().UTC()
	s.users[id] = u
	return u, nil
}

// SubmissionStore implementation ----------------------------------------------

func (s *Store) CreateSubmission(_ context.Context, sub submission.Submission) (submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = submission.StatusPending
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if owner, ok := s.users[sub.UserID]; ok {
		sub.OwnerWallet = owner.Wallet
	}

	s.submissions[sub.ID] = sub
	return sub, nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return submission.Submission{}, storage.ErrNotFound
	}
	return sub, nil
}

func (s *Store) ListSubmissions(_ context.Context) ([]submission.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]submission.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		result = append(result, sub)
	}
	sortSubmissionsNewestFirst(result)
	return result, nil
}

func (s *Store) ListSubmissionsByStatus(_ context.Context, status submission.Status, offset, limit int) ([]submission.Submission, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]submission.Submission, 0)
	for _, sub := range s.submissions {
		if status == "" || sub.Status == status {
			matched = append(matched, sub)
		}
	}
	sortSubmissionsNewestFirst(matched)

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []submission.Submission{}, total, nil
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func (s *Store) UpdateSubmissionStatus(_ context.Context, id string, status submission.Status, rejectionReason string) (submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.submissions[id]
	if !ok {
		return submission.Submission{}, storage.ErrNotFound
	}
	sub.Status = status
	sub.RejectionReason = rejectionReason
	sub.UpdatedAt = time.Now().UTC()
	s.submissions[id] = sub
	return sub, nil
}

func (s *Store) Leaderboard(_ context.Context, limit int) ([]submission.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, rec := range s.tips {
		counts[rec.SubmissionID]++
	}

	entries := make([]submission.LeaderboardEntry, 0)
	for _, sub := range s.submissions {
		if sub.Status != submission.StatusApproved {
			continue
		}
		entries = append(entries, submission.LeaderboardEntry{
			ID:          sub.ID,
			Title:       sub.Title,
			Link:        sub.Link,
			Description: sub.Description,
			OwnerWallet: sub.OwnerWallet,
			CurrentTips: sub.CurrentTips,
			TipJarLimit: sub.TipJarLimit,
			TipCount:    counts[sub.ID],
			CreatedAt:   sub.CreatedAt,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CurrentTips != entries[j].CurrentTips {
			return entries[i].CurrentTips > entries[j].CurrentTips
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// TipStore implementation -----------------------------------------------------

func (s *Store) RecordTip(_ context.Context, rec tip.Record) (tip.Record, submission.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tipsBySig[rec.TransactionSignature]; exists {
		return tip.Record{}, submission.Submission{}, storage.ErrDuplicateTransaction
	}

	sub, ok := s.submissions[rec.SubmissionID]
	if !ok {
		return tip.Record{}, submission.Submission{}, storage.ErrNotFound
	}

	// Limit re-check under the lock: a stale read outside must not
	// authorise the write.
	if sub.CurrentTips+rec.Amount > sub.TipJarLimit {
		return tip.Record{}, submission.Submission{}, storage.ErrTipJarLimitExceeded
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC()

	sub.CurrentTips += rec.Amount
	sub.UpdatedAt = rec.CreatedAt

	s.tips[rec.ID] = rec
	s.tipsBySig[rec.TransactionSignature] = rec.ID
	s.submissions[sub.ID] = sub
	return rec, sub, nil
}

func (s *Store) GetTipBySignature(_ context.Context, signature string) (tip.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tipsBySig[signature]
	if !ok {
		return tip.Record{}, storage.ErrNotFound
	}
	return s.tips[id], nil
}

func (s *Store) ListTips(_ context.Context, submissionID string) ([]tip.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]tip.Record, 0)
	for _, rec := range s.tips {
		if rec.SubmissionID == submissionID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func sortSubmissionsNewestFirst(subs []submission.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.After(subs[j].CreatedAt)
	})
}
