// Package users resolves wallet addresses to identities. Wallets are created
// on first sight; there is no registration flow beyond connecting a wallet.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/takshakmudgal/tippit/internal/app/domain/user"
	"github.com/takshakmudgal/tippit/internal/app/storage"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// ErrWalletRequired reports an empty wallet address.
var ErrWalletRequired = errors.New("wallet address is required")

// Service manages wallet-keyed users.
type Service struct {
	store storage.UserStore
	log   *logger.Logger
}

// New creates the user service.
func New(store storage.UserStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{store: store, log: log}
}

// Ensure upserts a user for the wallet and returns it.
func (s *Service) Ensure(ctx context.Context, wallet string) (user.User, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return user.User{}, ErrWalletRequired
	}
	u, err := s.store.EnsureUser(ctx, wallet)
	if err != nil {
		return user.User{}, fmt.Errorf("ensure user: %w", err)
	}
	return u, nil
}

// GetByWallet returns the user owning a wallet address.
func (s *Service) GetByWallet(ctx context.Context, wallet string) (user.User, error) {
	return s.store.GetUserByWallet(ctx, strings.TrimSpace(wallet))
}
