package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// RoomFilter captures room listing parameters. Member ids are OR-ed together.
type RoomFilter struct {
	AdminID    *string
	SellerID   *string
	BuyerID    *string
	Status     *domain.ChatRoomStatus
	HasProduct *bool
	Limit      int
	Offset     int
}

// ChatRoomRepository encapsulates chat room persistence.
type ChatRoomRepository interface {
	// CreateIfAbsent inserts room unless a room with the same dedup key exists.
	// On insert the welcome message is written in the same transaction. It
	// returns the stored room and whether this call created it.
	CreateIfAbsent(ctx context.Context, room *domain.ChatRoom, welcome *domain.ChatMessage) (*domain.ChatRoom, bool, error)
	GetByID(ctx context.Context, id string) (*domain.ChatRoom, error)
	GetByDedupKey(ctx context.Context, key string) (*domain.ChatRoom, error)
	List(ctx context.Context, filter RoomFilter) ([]domain.ChatRoom, error)
	// Close moves an ACTIVE room to CLOSED; pgx.ErrNoRows when nothing changed.
	Close(ctx context.Context, id string) (*domain.ChatRoom, error)
}

type chatRoomRepository struct {
	pool *pgxpool.Pool
}

// NewChatRoomRepository instantiates repository.
func NewChatRoomRepository(pool *pgxpool.Pool) ChatRoomRepository {
	return &chatRoomRepository{pool: pool}
}

const roomColumns = `id, kind, admin_id, seller_id, buyer_id, product_id, rfq_id, status, created_at, updated_at`

func (r *chatRoomRepository) CreateIfAbsent(ctx context.Context, room *domain.ChatRoom, welcome *domain.ChatMessage) (*domain.ChatRoom, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const insert = `
        INSERT INTO chat_rooms (kind, admin_id, seller_id, buyer_id, product_id, rfq_id, status, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedup_key) DO NOTHING
        RETURNING ` + roomColumns
	created, err := scanRoom(tx.QueryRow(ctx, insert,
		room.Kind,
		room.AdminID,
		room.SellerID,
		room.BuyerID,
		room.ProductID,
		room.RfqID,
		room.Status,
		room.DedupKey(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the race or the room already existed; the winner is committed
		// by the time the conflicting insert returns.
		if err := tx.Rollback(ctx); err != nil {
			return nil, false, err
		}
		existing, err := r.GetByDedupKey(ctx, room.DedupKey())
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if welcome != nil {
		welcome.ChatRoomID = created.ID
		if err := insertMessage(ctx, tx, welcome); err != nil {
			return nil, false, fmt.Errorf("insert welcome message: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *chatRoomRepository) GetByID(ctx context.Context, id string) (*domain.ChatRoom, error) {
	const query = `SELECT ` + roomColumns + ` FROM chat_rooms WHERE id=$1`
	return scanRoom(r.pool.QueryRow(ctx, query, id))
}

func (r *chatRoomRepository) GetByDedupKey(ctx context.Context, key string) (*domain.ChatRoom, error) {
	const query = `SELECT ` + roomColumns + ` FROM chat_rooms WHERE dedup_key=$1`
	return scanRoom(r.pool.QueryRow(ctx, query, key))
}

func (r *chatRoomRepository) List(ctx context.Context, filter RoomFilter) ([]domain.ChatRoom, error) {
	clauses := []string{"1=1"}
	args := []any{}

	members := []string{}
	if filter.AdminID != nil {
		args = append(args, *filter.AdminID)
		members = append(members, fmt.Sprintf("admin_id=$%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		members = append(members, fmt.Sprintf("seller_id=$%d", len(args)))
	}
	if filter.BuyerID != nil {
		args = append(args, *filter.BuyerID)
		members = append(members, fmt.Sprintf("buyer_id=$%d", len(args)))
	}
	if len(members) > 0 {
		clauses = append(clauses, "("+strings.Join(members, " OR ")+")")
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.HasProduct != nil {
		if *filter.HasProduct {
			clauses = append(clauses, "product_id IS NOT NULL")
		} else {
			clauses = append(clauses, "product_id IS NULL")
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM chat_rooms WHERE %s ORDER BY updated_at DESC, id ASC LIMIT %d OFFSET %d`,
		roomColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ChatRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *room)
	}
	return result, rows.Err()
}

func (r *chatRoomRepository) Close(ctx context.Context, id string) (*domain.ChatRoom, error) {
	const query = `
        UPDATE chat_rooms SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING ` + roomColumns
	return scanRoom(r.pool.QueryRow(ctx, query, domain.RoomStatusClosed, id, domain.RoomStatusActive))
}

func scanRoom(row pgx.Row) (*domain.ChatRoom, error) {
	var room domain.ChatRoom
	if err := row.Scan(
		&room.ID,
		&room.Kind,
		&room.AdminID,
		&room.SellerID,
		&room.BuyerID,
		&room.ProductID,
		&room.RfqID,
		&room.Status,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &room, nil
}
