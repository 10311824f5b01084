package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// PinOutcome reports what an atomic pin attempt did.
type PinOutcome int

const (
	PinApplied PinOutcome = iota
	PinLimitReached
	PinNotApplicable
)

// ChatMessageRepository manages room messages. Conditional mutations return
// pgx.ErrNoRows when their guard did not hold at write time.
type ChatMessageRepository interface {
	// Create inserts msg and bumps the owning room's updated_at.
	Create(ctx context.Context, msg *domain.ChatMessage) error
	GetByID(ctx context.Context, id string) (*domain.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]domain.ChatMessage, error)
	ListPinned(ctx context.Context, roomID string) ([]domain.ChatMessage, error)
	// UpdateContent applies when sender matches, the message is not deleted
	// and sent_at >= cutoff.
	UpdateContent(ctx context.Context, id, senderID, content string, cutoff time.Time) (*domain.ChatMessage, error)
	// SoftDelete applies under the same guard as UpdateContent.
	SoftDelete(ctx context.Context, id, senderID string, cutoff time.Time) (*domain.ChatMessage, error)
	// Pin sets is_pinned when the message is live and unpinned and the room
	// holds fewer than limit pinned live messages, atomically per room.
	Pin(ctx context.Context, id string, limit int) (PinOutcome, *domain.ChatMessage, error)
	Unpin(ctx context.Context, id string) (*domain.ChatMessage, error)
	// MarkRead flags unread messages of roomID as read. Messages sent by
	// readerID are skipped, not rejected.
	MarkRead(ctx context.Context, roomID, readerID string, ids []string) (int64, error)
	CountUnread(ctx context.Context, roomID, partyID string) (int64, error)
	LatestVisible(ctx context.Context, roomID string) (*domain.ChatMessage, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type chatMessageRepository struct {
	pool *pgxpool.Pool
}

// NewChatMessageRepository builds repository.
func NewChatMessageRepository(pool *pgxpool.Pool) ChatMessageRepository {
	return &chatMessageRepository{pool: pool}
}

const messageColumns = `id, chat_room_id, sender_id, sender_role, content, sent_at, read, edited, deleted, is_pinned, updated_at`

func (r *chatMessageRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertMessage(ctx, tx, msg); err != nil {
		return err
	}
	cmd, err := tx.Exec(ctx, `UPDATE chat_rooms SET updated_at=$1 WHERE id=$2`, msg.SentAt, msg.ChatRoomID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, db dbtx, msg *domain.ChatMessage) error {
	const query = `
        INSERT INTO chat_messages (chat_room_id, sender_id, sender_role, content, sent_at, read, edited, deleted, is_pinned, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$5)
        RETURNING id, updated_at`
	return db.QueryRow(ctx, query,
		msg.ChatRoomID,
		msg.SenderID,
		msg.SenderRole,
		msg.Content,
		msg.SentAt,
		msg.Read,
		msg.Edited,
		msg.Deleted,
		msg.IsPinned,
	).Scan(&msg.ID, &msg.UpdatedAt)
}

func (r *chatMessageRepository) GetByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	const query = `SELECT ` + messageColumns + ` FROM chat_messages WHERE id=$1`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

func (r *chatMessageRepository) ListByRoom(ctx context.Context, roomID string, limit, offset int) ([]domain.ChatMessage, error) {
	const query = `
        SELECT ` + messageColumns + `
        FROM chat_messages WHERE chat_room_id=$1
        ORDER BY sent_at ASC, id ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *chatMessageRepository) ListPinned(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	const query = `
        SELECT ` + messageColumns + `
        FROM chat_messages WHERE chat_room_id=$1 AND is_pinned AND NOT deleted
        ORDER BY sent_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *chatMessageRepository) UpdateContent(ctx context.Context, id, senderID, content string, cutoff time.Time) (*domain.ChatMessage, error) {
	const query = `
        UPDATE chat_messages SET content=$1, edited=TRUE, updated_at=NOW()
        WHERE id=$2 AND sender_id=$3 AND NOT deleted AND sent_at >= $4
        RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, content, id, senderID, cutoff))
}

func (r *chatMessageRepository) SoftDelete(ctx context.Context, id, senderID string, cutoff time.Time) (*domain.ChatMessage, error) {
	const query = `
        UPDATE chat_messages SET deleted=TRUE, updated_at=NOW()
        WHERE id=$1 AND sender_id=$2 AND NOT deleted AND sent_at >= $3
        RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id, senderID, cutoff))
}

func (r *chatMessageRepository) Pin(ctx context.Context, id string, limit int) (PinOutcome, *domain.ChatMessage, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return PinNotApplicable, nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var roomID string
	if err := tx.QueryRow(ctx, `SELECT chat_room_id FROM chat_messages WHERE id=$1`, id).Scan(&roomID); err != nil {
		return PinNotApplicable, nil, err
	}
	// Serializes pin attempts per room so the count below cannot go stale.
	if _, err := tx.Exec(ctx, `SELECT id FROM chat_rooms WHERE id=$1 FOR UPDATE`, roomID); err != nil {
		return PinNotApplicable, nil, err
	}

	var deleted, pinned bool
	if err := tx.QueryRow(ctx, `SELECT deleted, is_pinned FROM chat_messages WHERE id=$1 FOR UPDATE`, id).Scan(&deleted, &pinned); err != nil {
		return PinNotApplicable, nil, err
	}
	if deleted || pinned {
		return PinNotApplicable, nil, nil
	}

	var count int
	const countQuery = `SELECT COUNT(*) FROM chat_messages WHERE chat_room_id=$1 AND is_pinned AND NOT deleted`
	if err := tx.QueryRow(ctx, countQuery, roomID).Scan(&count); err != nil {
		return PinNotApplicable, nil, err
	}
	if count >= limit {
		return PinLimitReached, nil, nil
	}

	const update = `UPDATE chat_messages SET is_pinned=TRUE, updated_at=NOW() WHERE id=$1 RETURNING ` + messageColumns
	msg, err := scanMessage(tx.QueryRow(ctx, update, id))
	if err != nil {
		return PinNotApplicable, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PinNotApplicable, nil, err
	}
	return PinApplied, msg, nil
}

func (r *chatMessageRepository) Unpin(ctx context.Context, id string) (*domain.ChatMessage, error) {
	const query = `
        UPDATE chat_messages SET is_pinned=FALSE, updated_at=NOW()
        WHERE id=$1 AND is_pinned
        RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

func (r *chatMessageRepository) MarkRead(ctx context.Context, roomID, readerID string, ids []string) (int64, error) {
	const query = `
        UPDATE chat_messages SET read=TRUE, updated_at=NOW()
        WHERE id = ANY($1::uuid[]) AND chat_room_id=$2 AND NOT read AND sender_id <> $3`
	cmd, err := r.pool.Exec(ctx, query, ids, roomID, readerID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *chatMessageRepository) CountUnread(ctx context.Context, roomID, partyID string) (int64, error) {
	const query = `
        SELECT COUNT(*) FROM chat_messages
        WHERE chat_room_id=$1 AND NOT read AND NOT deleted AND sender_id <> $2`
	var count int64
	if err := r.pool.QueryRow(ctx, query, roomID, partyID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *chatMessageRepository) LatestVisible(ctx context.Context, roomID string) (*domain.ChatMessage, error) {
	const query = `
        SELECT ` + messageColumns + `
        FROM chat_messages WHERE chat_room_id=$1 AND NOT deleted
        ORDER BY sent_at DESC, id DESC LIMIT 1`
	return scanMessage(r.pool.QueryRow(ctx, query, roomID))
}

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	if err := row.Scan(
		&msg.ID,
		&msg.ChatRoomID,
		&msg.SenderID,
		&msg.SenderRole,
		&msg.Content,
		&msg.SentAt,
		&msg.Read,
		&msg.Edited,
		&msg.Deleted,
		&msg.IsPinned,
		&msg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func scanMessages(rows pgx.Rows) ([]domain.ChatMessage, error) {
	var result []domain.ChatMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

// IsNoRows reports whether err is the not-found sentinel shared by all repositories.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
