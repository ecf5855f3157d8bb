package profile

import (
	"context"

	"go.uber.org/zap"

	"github.com/tilebid/backend/domain"
	"github.com/tilebid/backend/repository"
)

// UseCase serves the profile boundary. The marketplace core consumes it
// only for the authoritative role lookup; the role field itself is never
// writable through this surface.
type UseCase struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func New(users repository.UserRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	return uc.users.GetByID(ctx, userID)
}

// UpdateProfile applies caller-editable fields. Role is pinned to the
// stored record: letting a client flip its own role would bypass every
// bidder-eligibility check downstream.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID string, email, status string, metadata map[string]string) (*domain.User, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if email != "" {
		user.Email = email
	}
	if status != "" {
		user.Status = status
	}
	if metadata != nil {
		user.Metadata = metadata
	}

	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
