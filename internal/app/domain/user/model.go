package user

import "time"

// User is a wallet-keyed identity. Users are created on first sight of a
// wallet address, either by connecting a wallet or by submitting a project.
type User struct {
	ID        string    `json:"id"`
	Wallet    string    `json:"wallet"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
