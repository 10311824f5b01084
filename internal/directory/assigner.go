package directory

import (
	"context"
	"sync/atomic"

	"github.com/spec-kit/marketplace-chat/internal/repository"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// RoundRobinAssigner hands out active admins in turn for rooms opened by sellers
// and buyers.
type RoundRobinAssigner struct {
	parties repository.PartyRepository
	counter atomic.Uint64
}

// NewRoundRobinAssigner builds an assigner over the party repository.
func NewRoundRobinAssigner(parties repository.PartyRepository) *RoundRobinAssigner {
	return &RoundRobinAssigner{parties: parties}
}

// AssignAdmin returns the id of the next active admin.
func (a *RoundRobinAssigner) AssignAdmin(ctx context.Context) (string, error) {
	admins, err := a.parties.ListActiveAdmins(ctx)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if len(admins) == 0 {
		return "", apperrors.NewNotFound("active admin", nil)
	}
	if len(admins) == 1 {
		return admins[0].ID, nil
	}

	idx := a.counter.Add(1) - 1
	return admins[idx%uint64(len(admins))].ID, nil
}
