package submission

import "time"

// Status is the moderation state of a submission.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Valid reports whether s is one of the known moderation states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Submission is a community project that can receive tips once approved.
// CurrentTips is the USD running total and is mutated only by the tip
// recorder's atomic increment; TipJarLimit caps it.
type Submission struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	OwnerWallet     string    `json:"userWallet"`
	Title           string    `json:"title"`
	Link            string    `json:"link"`
	Description     string    `json:"description"`
	Geolocation     string    `json:"geolocation"`
	Status          Status    `json:"status"`
	RejectionReason string    `json:"rejectionReason,omitempty"`
	CurrentTips     float64   `json:"currentTips"`
	TipJarLimit     float64   `json:"tipJarLimit"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Headroom returns the USD amount the tip jar can still accept.
func (s Submission) Headroom() float64 {
	return s.TipJarLimit - s.CurrentTips
}

// LeaderboardEntry is the read model for the public leaderboard: approved
// submissions ranked by cumulative tips.
type LeaderboardEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description"`
	OwnerWallet string    `json:"userWallet"`
	CurrentTips float64   `json:"currentTips"`
	TipJarLimit float64   `json:"tipJarLimit"`
	TipCount    int       `json:"tipCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
