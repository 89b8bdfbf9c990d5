package submissions

import (
	"context"
	"errors"
	"testing"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/storage/memory"
)

func newService(t *testing.T, admins ...string) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return New(store, store, admins, nil), store
}

func validInput() CreateInput {
	return CreateInput{
		Wallet:      "submitterWallet",
		Title:       "community garden",
		Link:        "https://example.com/garden",
		Description: "cleanup and replanting",
		Geolocation: "52.52,13.40",
	}
}

func TestCreate_NewSubmissionIsPending(t *testing.T) {
	svc, store := newService(t)

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sub.Status != submission.StatusPending {
		t.Fatalf("new submission not pending: %s", sub.Status)
	}
	if sub.TipJarLimit != DefaultTipJarLimit {
		t.Fatalf("default limit not applied: %v", sub.TipJarLimit)
	}
	if sub.OwnerWallet != "submitterWallet" {
		t.Fatalf("owner wallet not recorded: %s", sub.OwnerWallet)
	}

	// The submitter was created on first sight.
	if _, err := store.GetUserByWallet(context.Background(), "submitterWallet"); err != nil {
		t.Fatalf("submitter not upserted: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"missing wallet", func(in *CreateInput) { in.Wallet = "" }},
		{"missing title", func(in *CreateInput) { in.Title = " " }},
		{"missing link", func(in *CreateInput) { in.Link = "" }},
		{"missing description", func(in *CreateInput) { in.Description = "" }},
		{"missing geolocation", func(in *CreateInput) { in.Geolocation = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestReview_RequiresAdmin(t *testing.T) {
	svc, _ := newService(t, "adminWallet")

	sub, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Review(context.Background(), ReviewInput{
		AdminWallet:  "submitterWallet",
		SubmissionID: sub.ID,
		Status:       submission.StatusApproved,
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestReview_ApproveAndReject(t *testing.T) {
	svc, store := newService(t, "adminWallet")

	first, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	approved, err := svc.Review(context.Background(), ReviewInput{
		AdminWallet:  "adminWallet",
		SubmissionID: first.ID,
		Status:       submission.StatusApproved,
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != submission.StatusApproved {
		t.Fatalf("not approved: %s", approved.Status)
	}

	// Rejection requires a reason.
	_, err = svc.Review(context.Background(), ReviewInput{
		AdminWallet:  "adminWallet",
		SubmissionID: first.ID,
		Status:       submission.StatusRejected,
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for missing reason, got %v", err)
	}

	rejected, err := svc.Review(context.Background(), ReviewInput{
		AdminWallet:     "adminWallet",
		SubmissionID:    first.ID,
		Status:          submission.StatusRejected,
		RejectionReason: "duplicate project",
	})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.RejectionReason != "duplicate project" {
		t.Fatalf("reason not recorded: %q", rejected.RejectionReason)
	}

	// The reviewing wallet was flagged as admin on the user record.
	admin, err := store.GetUserByWallet(context.Background(), "adminWallet")
	if err != nil {
		t.Fatalf("admin user: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatal("admin flag not mirrored onto user record")
	}
}

func TestReview_UnknownStatus(t *testing.T) {
	svc, _ := newService(t, "adminWallet")

	_, err := svc.Review(context.Background(), ReviewInput{
		AdminWallet:  "adminWallet",
		SubmissionID: "any",
		Status:       submission.Status("MAYBE"),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestListForAdmin_Paginates(t *testing.T) {
	svc, _ := newService(t, "adminWallet")

	for i := 0; i < 5; i++ {
		in := validInput()
		if _, err := svc.Create(context.Background(), in); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	listing, err := svc.ListForAdmin(context.Background(), "adminWallet", "", 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if listing.Total != 5 || listing.TotalPages != 3 || len(listing.Submissions) != 2 {
		t.Fatalf("unexpected page shape: total=%d pages=%d len=%d",
			listing.Total, listing.TotalPages, len(listing.Submissions))
	}

	last, err := svc.ListForAdmin(context.Background(), "adminWallet", submission.StatusPending, 3, 2)
	if err != nil {
		t.Fatalf("last page: %v", err)
	}
	if len(last.Submissions) != 1 {
		t.Fatalf("expected one entry on the last page, got %d", len(last.Submissions))
	}

	if _, err := svc.ListForAdmin(context.Background(), "nobody", "", 1, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLeaderboard_RanksApprovedByTips(t *testing.T) {
	svc, store := newService(t, "adminWallet")
	ctx := context.Background()

	tipper, err := store.EnsureUser(ctx, "tipperWallet")
	if err != nil {
		t.Fatalf("ensure tipper: %v", err)
	}

	var subs []submission.Submission
	for i := 0; i < 3; i++ {
		sub, err := svc.Create(ctx, validInput())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		subs = append(subs, sub)
	}

	// Approve the first two; the third stays pending and must not rank.
	for _, sub := range subs[:2] {
		if _, err := svc.Review(ctx, ReviewInput{
			AdminWallet:  "adminWallet",
			SubmissionID: sub.ID,
			Status:       submission.StatusApproved,
		}); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}

	for i, amount := range []float64{5, 30} {
		if _, _, err := store.RecordTip(ctx, tip.Record{
			SubmissionID:         subs[i].ID,
			UserID:               tipper.ID,
			Amount:               amount,
			Currency:             tip.CurrencyUSD,
			TransactionSignature: subs[i].ID + "-sig",
		}); err != nil {
			t.Fatalf("record tip: %v", err)
		}
	}

	entries, err := svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ranked entries, got %d", len(entries))
	}
	if entries[0].CurrentTips != 30 || entries[1].CurrentTips != 5 {
		t.Fatalf("not ranked by tips: %v then %v", entries[0].CurrentTips, entries[1].CurrentTips)
	}
}
