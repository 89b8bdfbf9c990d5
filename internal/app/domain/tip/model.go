package tip

import "time"

// CurrencyUSD is the only settlement currency the tip flow supports. Claims
// denominated in anything else are rejected before verification.
const CurrencyUSD = "USD"

// Claim is the inbound tip request. It lives only for the duration of one
// Submit call and nothing in it is trusted until the referenced transaction
// has been confirmed on-chain.
type Claim struct {
	SubmissionID         string  `json:"submissionId"`
	UserWallet           string  `json:"userWallet"`
	Amount               float64 `json:"amount"`
	Currency             string  `json:"currency"`
	TransactionSignature string  `json:"transactionSignature"`
}

// Record is a recorded tip. Records are append-only: created exactly once by
// a successful Submit and never updated or deleted. Amount is the
// ledger-observed USD value, not the claimed one. TransactionSignature is
// globally unique across all records, which is the double-spend guard.
type Record struct {
	ID                   string    `json:"id"`
	SubmissionID         string    `json:"submissionId"`
	UserID               string    `json:"userId"`
	Amount               float64   `json:"amount"`
	Currency             string    `json:"currency"`
	TransactionSignature string    `json:"transactionSignature"`
	CreatedAt            time.Time `json:"createdAt"`
}
