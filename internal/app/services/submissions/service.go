// Package submissions manages community project submissions: creation,
// listing, admin moderation and the public leaderboard read model.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/storage"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// DefaultTipJarLimit is the USD cap applied to new submissions.
const DefaultTipJarLimit = 1000

// ErrUnauthorized reports a moderation attempt by a non-admin wallet.
var ErrUnauthorized = errors.New("wallet is not authorised for moderation")

// ValidationError reports malformed submission input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// CreateInput carries the fields of a new submission.
type CreateInput struct {
	Wallet      string
	Title       string
	Link        string
	Description string
	Geolocation string
}

// ReviewInput carries an admin moderation decision.
type ReviewInput struct {
	AdminWallet     string
	SubmissionID    string
	Status          submission.Status
	RejectionReason string
}

// AdminListing is one page of submissions for the moderation view.
type AdminListing struct {
	Submissions []submission.Submission `json:"submissions"`
	Total       int                     `json:"total"`
	Page        int                     `json:"page"`
	Limit       int                     `json:"limit"`
	TotalPages  int                     `json:"totalPages"`
}

// Service manages submissions.
type Service struct {
	users        storage.UserStore
	store        storage.SubmissionStore
	adminWallets map[string]bool
	tipJarLimit  float64
	log          *logger.Logger
}

// New creates the submission service. adminWallets is the allowlist of
// moderator wallet addresses.
func New(users storage.UserStore, store storage.SubmissionStore, adminWallets []string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("submissions")
	}
	allow := make(map[string]bool, len(adminWallets))
	for _, w := range adminWallets {
		if trimmed := strings.TrimSpace(w); trimmed != "" {
			allow[trimmed] = true
		}
	}
	return &Service{
		users:        users,
		store:        store,
		adminWallets: allow,
		tipJarLimit:  DefaultTipJarLimit,
		log:          log,
	}
}

// SetTipJarLimit overrides the default cap applied to new submissions.
func (s *Service) SetTipJarLimit(limit float64) {
	if limit > 0 {
		s.tipJarLimit = limit
	}
}

// Create creates a pending submission, creating the submitting user on first
// sight of the wallet.
func (s *Service) Create(ctx context.Context, input CreateInput) (submission.Submission, error) {
	if err := validateCreate(input); err != nil {
		return submission.Submission{}, err
	}

	owner, err := s.users.EnsureUser(ctx, strings.TrimSpace(input.Wallet))
	if err != nil {
		return submission.Submission{}, fmt.Errorf("ensure submitter: %w", err)
	}

	sub, err := s.store.CreateSubmission(ctx, submission.Submission{
		UserID:      owner.ID,
		OwnerWallet: owner.Wallet,
		Title:       strings.TrimSpace(input.Title),
		Link:        strings.TrimSpace(input.Link),
		Description: strings.TrimSpace(input.Description),
		Geolocation: strings.TrimSpace(input.Geolocation),
		Status:      submission.StatusPending,
		TipJarLimit: s.tipJarLimit,
	})
	if err != nil {
		return submission.Submission{}, fmt.Errorf("create submission: %w", err)
	}

	s.log.WithField("submission", sub.ID).WithField("wallet", owner.Wallet).Info("submission created")
	return sub, nil
}

// Get returns one submission.
func (s *Service) Get(ctx context.Context, id string) (submission.Submission, error) {
	return s.store.GetSubmission(ctx, id)
}

// List returns all submissions, newest first.
func (s *Service) List(ctx context.Context) ([]submission.Submission, error) {
	return s.store.ListSubmissions(ctx)
}

// ListForAdmin returns a page of submissions for the moderation view,
// optionally filtered by status. The requesting wallet must be an admin.
func (s *Service) ListForAdmin(ctx context.Context, adminWallet string, status submission.Status, page, limit int) (AdminListing, error) {
	if err := s.requireAdmin(ctx, adminWallet); err != nil {
		return AdminListing{}, err
	}
	if status != "" && !status.Valid() {
		return AdminListing{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	subs, total, err := s.store.ListSubmissionsByStatus(ctx, status, (page-1)*limit, limit)
	if err != nil {
		return AdminListing{}, fmt.Errorf("list submissions: %w", err)
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return AdminListing{
		Submissions: subs,
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  totalPages,
	}, nil
}

// Review applies a moderation decision.
func (s *Service) Review(ctx context.Context, input ReviewInput) (submission.Submission, error) {
	if err := s.requireAdmin(ctx, input.AdminWallet); err != nil {
		return submission.Submission{}, err
	}
	if !input.Status.Valid() {
		return submission.Submission{}, &ValidationError{Reason: fmt.Sprintf("unknown status %q", input.Status)}
	}
	if input.Status == submission.StatusRejected && strings.TrimSpace(input.RejectionReason) == "" {
		return submission.Submission{}, &ValidationError{Reason: "rejectionReason is required when rejecting"}
	}

	reason := ""
	if input.Status == submission.StatusRejected {
		reason = strings.TrimSpace(input.RejectionReason)
	}

	sub, err := s.store.UpdateSubmissionStatus(ctx, input.SubmissionID, input.Status, reason)
	if err != nil {
		return submission.Submission{}, err
	}

	s.log.WithField("submission", sub.ID).
		WithField("status", string(sub.Status)).
		WithField("admin", input.AdminWallet).
		Info("submission reviewed")
	return sub, nil
}

// Leaderboard returns approved submissions ranked by cumulative tips.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]submission.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, limit)
}

// requireAdmin checks the allowlist and mirrors the admin flag onto the user
// record on first sight of the wallet.
func (s *Service) requireAdmin(ctx context.Context, wallet string) error {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" || !s.adminWallets[wallet] {
		return ErrUnauthorized
	}
	if _, err := s.users.EnsureUser(ctx, wallet); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}
	if _, err := s.users.SetUserAdmin(ctx, wallet, true); err != nil {
		return fmt.Errorf("flag admin user: %w", err)
	}
	return nil
}

func validateCreate(input CreateInput) error {
	switch {
	case strings.TrimSpace(input.Wallet) == "":
		return &ValidationError{Reason: "wallet is required"}
	case strings.TrimSpace(input.Title) == "":
		return &ValidationError{Reason: "title is required"}
	case strings.TrimSpace(input.Link) == "":
		return &ValidationError{Reason: "link is required"}
	case strings.TrimSpace(input.Description) == "":
		return &ValidationError{Reason: "description is required"}
	case strings.TrimSpace(input.Geolocation) == "":
		return &ValidationError{Reason: "geolocation is required"}
	}
	return nil
}
