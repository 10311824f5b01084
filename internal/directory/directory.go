// Package directory resolves sessions and party profiles for the chat core.
package directory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/auth"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// ProfileResolver looks up one kind of party.
type ProfileResolver interface {
	Resolve(ctx context.Context, id string) (*domain.PartyProfile, error)
}

type roleResolver struct {
	role    domain.PartyRole
	parties repository.PartyRepository
}

func (r roleResolver) Resolve(ctx context.Context, id string) (*domain.PartyProfile, error) {
	return r.parties.GetProfile(ctx, r.role, id)
}

// Directory maps session tokens to verified parties.
type Directory struct {
	tokens  *auth.TokenManager
	admins  ProfileResolver
	sellers ProfileResolver
	buyers  ProfileResolver
	logger  *zap.Logger
}

// New wires one resolver per party role on top of the party repository.
func New(tokens *auth.TokenManager, parties repository.PartyRepository, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		tokens:  tokens,
		admins:  roleResolver{role: domain.RoleAdmin, parties: parties},
		sellers: roleResolver{role: domain.RoleSeller, parties: parties},
		buyers:  roleResolver{role: domain.RoleBuyer, parties: parties},
		logger:  logger,
	}
}

func (d *Directory) resolverFor(role domain.PartyRole) (ProfileResolver, error) {
	switch role {
	case domain.RoleAdmin:
		return d.admins, nil
	case domain.RoleSeller:
		return d.sellers, nil
	case domain.RoleBuyer:
		return d.buyers, nil
	default:
		return nil, fmt.Errorf("unknown party role %q", role)
	}
}

// ResolveSession verifies the token and confirms the party still exists and is active.
func (d *Directory) ResolveSession(ctx context.Context, token string) (domain.Party, error) {
	claims, err := d.tokens.ParseToken(token)
	if err != nil {
		return domain.Party{}, apperrors.NewUnauthorized("invalid token")
	}

	party := domain.Party{ID: claims.PartyID, Role: claims.Role}
	profile, err := d.Resolve(ctx, party)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return domain.Party{}, apperrors.NewUnauthorized("party not found")
		}
		return domain.Party{}, err
	}
	if !profile.Active {
		return domain.Party{}, apperrors.NewUnauthorized("party is inactive")
	}
	return party, nil
}

// Resolve returns the directory profile of party.
func (d *Directory) Resolve(ctx context.Context, party domain.Party) (*domain.PartyProfile, error) {
	resolver, err := d.resolverFor(party.Role)
	if err != nil {
		return nil, apperrors.NewUnauthorized("unknown party role")
	}
	profile, err := resolver.Resolve(ctx, party.ID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewNotFound("party", map[string]any{"party_id": party.ID, "role": party.Role})
		}
		d.logger.Error("resolve party", zap.String("party_id", party.ID), zap.String("role", string(party.Role)), zap.Error(err))
		return nil, apperrors.NewInternalError(err)
	}
	return profile, nil
}
