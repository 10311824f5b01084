package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// PartyRepository reads marketplace identities. Each role lives in its own table.
type PartyRepository interface {
	GetProfile(ctx context.Context, role domain.PartyRole, id string) (*domain.PartyProfile, error)
	ListActiveAdmins(ctx context.Context) ([]domain.PartyProfile, error)
}

type partyRepository struct {
	pool *pgxpool.Pool
}

// NewPartyRepository returns a Postgres-backed implementation.
func NewPartyRepository(pool *pgxpool.Pool) PartyRepository {
	return &partyRepository{pool: pool}
}

func partyTable(role domain.PartyRole) (string, error) {
	switch role {
	case domain.RoleAdmin:
		return "admins", nil
	case domain.RoleSeller:
		return "sellers", nil
	case domain.RoleBuyer:
		return "buyers", nil
	default:
		return "", fmt.Errorf("unknown party role %q", role)
	}
}

func (r *partyRepository) GetProfile(ctx context.Context, role domain.PartyRole, id string) (*domain.PartyProfile, error) {
	table, err := partyTable(role)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, name, email, active FROM %s WHERE id=$1`, table)

	profile := domain.PartyProfile{Role: role}
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.DisplayName,
		&profile.Email,
		&profile.Active,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *partyRepository) ListActiveAdmins(ctx context.Context) ([]domain.PartyProfile, error) {
	const query = `SELECT id, name, email, active FROM admins WHERE active ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PartyProfile
	for rows.Next() {
		profile := domain.PartyProfile{Role: domain.RoleAdmin}
		if err := rows.Scan(&profile.ID, &profile.DisplayName, &profile.Email, &profile.Active); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}
