package tips

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/storage/memory"
	"github.com/takshakmudgal/tippit/internal/solana"
)

type stubVerifier struct {
	result solana.Verification
	err    error
	calls  int32
}

func (v *stubVerifier) Verify(_ context.Context, _, _, _ string, _, _ float64) (solana.Verification, error) {
	atomic.AddInt32(&v.calls, 1)
	return v.result, v.err
}

type stubRates struct {
	rate float64
	err  error
}

func (r *stubRates) Current(context.Context) (float64, error) {
	return r.rate, r.err
}

func verifiedTransfer(sol float64) solana.Verification {
	lamports := int64(sol * solana.LamportsPerSOL)
	return solana.Verification{
		OK:               true,
		ObservedLamports: lamports,
		ObservedSOL:      sol,
	}
}

// fixture seeds a tipper, an owner and one submission with the given limit.
func fixture(t *testing.T, limit float64) (*memory.Store, tip.Claim) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	owner, err := store.EnsureUser(ctx, "ownerWallet")
	if err != nil {
		t.Fatalf("ensure owner: %v", err)
	}
	if _, err := store.EnsureUser(ctx, "tipperWallet"); err != nil {
		t.Fatalf("ensure tipper: %v", err)
	}
	sub, err := store.CreateSubmission(ctx, submission.Submission{
		UserID:      owner.ID,
		Title:       "garden cleanup",
		Link:        "https://example.com/garden",
		TipJarLimit: limit,
	})
	if err != nil {
		t.Fatalf("create submission: %v", err)
	}

	return store, tip.Claim{
		SubmissionID:         sub.ID,
		UserWallet:           "tipperWallet",
		Amount:               10,
		Currency:             "USD",
		TransactionSignature: "sig-1",
	}
}

func TestSubmit_RecordsVerifiedTip(t *testing.T) {
	store, claim := fixture(t, 1000)
	// 0.1 SOL at 100 USD/SOL is 10 USD, matching the claim exactly.
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	rec, err := svc.Submit(context.Background(), claim)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("record not assigned an ID")
	}
	if rec.Amount != 10 {
		t.Fatalf("recorded amount should be the observed value, got %v", rec.Amount)
	}
	if rec.Currency != tip.CurrencyUSD {
		t.Fatalf("unexpected currency: %s", rec.Currency)
	}

	sub, err := store.GetSubmission(context.Background(), claim.SubmissionID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.CurrentTips != 10 {
		t.Fatalf("aggregate not incremented: %v", sub.CurrentTips)
	}
}

func TestSubmit_RecordsObservedAmountNotClaimed(t *testing.T) {
	store, claim := fixture(t, 1000)
	// Observed transfer is 0.098 SOL = 9.8 USD, within tolerance of the
	// claimed 10 USD. The ledger value wins.
	verifier := &stubVerifier{result: verifiedTransfer(0.098)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	rec, err := svc.Submit(context.Background(), claim)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Amount != 9.8 {
		t.Fatalf("expected observed amount 9.8, got %v", rec.Amount)
	}
}

func TestSubmit_ValidatesClaim(t *testing.T) {
	store, base := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	cases := []struct {
		name   string
		mutate func(*tip.Claim)
	}{
		{"missing submission", func(c *tip.Claim) { c.SubmissionID = "" }},
		{"missing wallet", func(c *tip.Claim) { c.UserWallet = "  " }},
		{"missing signature", func(c *tip.Claim) { c.TransactionSignature = "" }},
		{"missing currency", func(c *tip.Claim) { c.Currency = "" }},
		{"zero amount", func(c *tip.Claim) { c.Amount = 0 }},
		{"negative amount", func(c *tip.Claim) { c.Amount = -5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claim := base
			tc.mutate(&claim)
			_, err := svc.Submit(context.Background(), claim)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
	if n := atomic.LoadInt32(&verifier.calls); n != 0 {
		t.Fatalf("verifier consulted %d times for invalid claims", n)
	}
}

func TestSubmit_RejectsNonUSDCurrency(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	claim.Currency = "SOL"
	_, err := svc.Submit(context.Background(), claim)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for SOL currency, got %v", err)
	}
}

func TestSubmit_RejectsDuplicateSignature(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	if _, err := svc.Submit(context.Background(), claim); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err := svc.Submit(context.Background(), claim)
	var dup *DuplicateTransactionError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateTransactionError, got %v", err)
	}

	// Exactly one tip and one increment survived the replay.
	sub, _ := store.GetSubmission(context.Background(), claim.SubmissionID)
	if sub.CurrentTips != 10 {
		t.Fatalf("duplicate changed the aggregate: %v", sub.CurrentTips)
	}
	if n := atomic.LoadInt32(&verifier.calls); n != 1 {
		t.Fatalf("verifier consulted for a duplicate: %d calls", n)
	}
}

func TestSubmit_RejectsUnknownUserAndSubmission(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	unknownUser := claim
	unknownUser.UserWallet = "strangerWallet"
	_, err := svc.Submit(context.Background(), unknownUser)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "user" {
		t.Fatalf("expected user NotFoundError, got %v", err)
	}

	unknownSub := claim
	unknownSub.SubmissionID = "missing"
	_, err = svc.Submit(context.Background(), unknownSub)
	if !errors.As(err, &nf) || nf.Entity != "submission" {
		t.Fatalf("expected submission NotFoundError, got %v", err)
	}
}

func TestSubmit_RejectsSelfTipBeforeVerification(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	claim.UserWallet = "ownerWallet"
	_, err := svc.Submit(context.Background(), claim)
	var self *SelfTipError
	if !errors.As(err, &self) {
		t.Fatalf("expected SelfTipError, got %v", err)
	}
	if n := atomic.LoadInt32(&verifier.calls); n != 0 {
		t.Fatalf("self-tip reached the verifier: %d calls", n)
	}
}

func TestSubmit_RejectsOverLimit(t *testing.T) {
	store, claim := fixture(t, 25)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	if _, err := svc.Submit(context.Background(), claim); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.Submit(context.Background(), withSignature(claim, "sig-2")); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// 20 of 25 consumed; another 10 exceeds the jar.
	_, err := svc.Submit(context.Background(), withSignature(claim, "sig-3"))
	var limit *LimitExceededError
	if !errors.As(err, &limit) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if limit.Headroom != 5 {
		t.Fatalf("expected headroom 5, got %v", limit.Headroom)
	}
}

func TestSubmit_LedgerFailuresAreRetryable(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{err: errors.New("rpc timeout")}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	_, err := svc.Submit(context.Background(), claim)
	var unavailable *LedgerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected LedgerUnavailableError, got %v", err)
	}

	// The same claim succeeds once the ledger recovers; nothing was
	// persisted by the failed attempt.
	verifier.err = nil
	verifier.result = verifiedTransfer(0.1)
	if _, err := svc.Submit(context.Background(), claim); err != nil {
		t.Fatalf("retry after ledger recovery: %v", err)
	}
}

func TestSubmit_RateFailureIsRetryable(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: verifiedTransfer(0.1)}
	rateSource := &stubRates{err: errors.New("price feed down")}
	svc := New(store, store, store, verifier, rateSource, nil)

	_, err := svc.Submit(context.Background(), claim)
	var unavailable *LedgerUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected LedgerUnavailableError, got %v", err)
	}
	if n := atomic.LoadInt32(&verifier.calls); n != 0 {
		t.Fatalf("verifier consulted without a rate: %d calls", n)
	}
}

func TestSubmit_RejectsInvalidTransaction(t *testing.T) {
	store, claim := fixture(t, 1000)
	verifier := &stubVerifier{result: solana.Verification{
		Code:   solana.ReasonWrongParties,
		Reason: "transaction sender X does not match tipper wallet Y",
	}}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	_, err := svc.Submit(context.Background(), claim)
	var invalid *TransactionInvalidError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected TransactionInvalidError, got %v", err)
	}
	if invalid.Code != solana.ReasonWrongParties {
		t.Fatalf("unexpected reason code: %s", invalid.Code)
	}

	if _, sigErr := store.GetTipBySignature(context.Background(), claim.TransactionSignature); sigErr == nil {
		t.Fatal("rejected claim left a tip record behind")
	}
}

func TestSubmit_ConcurrentClaimsRespectLimit(t *testing.T) {
	store, claim := fixture(t, 100)
	verifier := &stubVerifier{result: verifiedTransfer(0.15)}
	svc := New(store, store, store, verifier, &stubRates{rate: 100}, nil)

	// Consume 75 of the 100 USD jar up front. Each 15 USD claim then
	// passes the limit check on its own, but together they would
	// overflow the jar.
	seed := claim
	seed.Amount = 75
	seedVerifier := &stubVerifier{result: verifiedTransfer(0.75)}
	seedSvc := New(store, store, store, seedVerifier, &stubRates{rate: 100}, nil)
	if _, err := seedSvc.Submit(context.Background(), withSignature(seed, "sig-seed")); err != nil {
		t.Fatalf("seed tip: %v", err)
	}

	claim.Amount = 15
	first := withSignature(claim, "sig-a")
	second := withSignature(claim, "sig-b")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, c := range []tip.Claim{first, second} {
		wg.Add(1)
		go func(i int, c tip.Claim) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), c)
		}(i, c)
	}
	wg.Wait()

	var succeeded, limited int
	for _, err := range errs {
		var limit *LimitExceededError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &limit):
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || limited != 1 {
		t.Fatalf("expected exactly one success and one limit rejection, got %d/%d", succeeded, limited)
	}

	sub, _ := store.GetSubmission(context.Background(), claim.SubmissionID)
	if sub.CurrentTips != 90 {
		t.Fatalf("aggregate does not equal recorded tips: %v", sub.CurrentTips)
	}
	if sub.CurrentTips > sub.TipJarLimit {
		t.Fatalf("limit overshot: %v of %v", sub.CurrentTips, sub.TipJarLimit)
	}
}

func TestTipJarLimit(t *testing.T) {
	store, claim := fixture(t, 250)
	svc := New(store, store, store, &stubVerifier{}, &stubRates{rate: 100}, nil)

	limit, err := svc.TipJarLimit(context.Background(), claim.SubmissionID)
	if err != nil {
		t.Fatalf("tip jar limit: %v", err)
	}
	if limit != 250 {
		t.Fatalf("unexpected limit: %v", limit)
	}

	_, err = svc.TipJarLimit(context.Background(), "missing")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func withSignature(c tip.Claim, sig string) tip.Claim {
	c.TransactionSignature = sig
	return c
}
