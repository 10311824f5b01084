package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/repository"
)

type messageRepo Store

func (s *Store) insertMessageLocked(msg *domain.ChatMessage) {
	msg.ID = uuid.NewString()
	msg.UpdatedAt = msg.SentAt
	stored := *msg
	s.messages[stored.ID] = &stored
}

func (r *messageRepo) Create(_ context.Context, msg *domain.ChatMessage) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[msg.ChatRoomID]
	if !ok {
		return pgx.ErrNoRows
	}
	s.insertMessageLocked(msg)
	room.UpdatedAt = msg.SentAt
	return nil
}

func (r *messageRepo) GetByID(_ context.Context, id string) (*domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *msg
	return &out, nil
}

func (r *messageRepo) ListByRoom(_ context.Context, roomID string, limit, offset int) ([]domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.roomMessagesLocked(roomID, func(*domain.ChatMessage) bool { return true })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *messageRepo) ListPinned(_ context.Context, roomID string) ([]domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomMessagesLocked(roomID, livePinned), nil
}

func livePinned(msg *domain.ChatMessage) bool {
	return msg.IsPinned && !msg.Deleted
}

func (s *Store) ownedLiveLocked(id, senderID string, cutoff time.Time) (*domain.ChatMessage, bool) {
	msg, ok := s.messages[id]
	if !ok || msg.SenderID != senderID || msg.Deleted || msg.SentAt.Before(cutoff) {
		return nil, false
	}
	return msg, true
}

func (r *messageRepo) UpdateContent(_ context.Context, id, senderID, content string, cutoff time.Time) (*domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.ownedLiveLocked(id, senderID, cutoff)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	msg.Content = content
	msg.Edited = true
	msg.UpdatedAt = s.now()
	out := *msg
	return &out, nil
}

func (r *messageRepo) SoftDelete(_ context.Context, id, senderID string, cutoff time.Time) (*domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.ownedLiveLocked(id, senderID, cutoff)
	if !ok {
		return nil, pgx.ErrNoRows
	}
	msg.Deleted = true
	msg.UpdatedAt = s.now()
	out := *msg
	return &out, nil
}

func (r *messageRepo) Pin(_ context.Context, id string, limit int) (repository.PinOutcome, *domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return repository.PinNotApplicable, nil, pgx.ErrNoRows
	}
	if msg.Deleted || msg.IsPinned {
		return repository.PinNotApplicable, nil, nil
	}
	if len(s.roomMessagesLocked(msg.ChatRoomID, livePinned)) >= limit {
		return repository.PinLimitReached, nil, nil
	}
	msg.IsPinned = true
	msg.UpdatedAt = s.now()
	out := *msg
	return repository.PinApplied, &out, nil
}

func (r *messageRepo) Unpin(_ context.Context, id string) (*domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok || !msg.IsPinned {
		return nil, pgx.ErrNoRows
	}
	msg.IsPinned = false
	msg.UpdatedAt = s.now()
	out := *msg
	return &out, nil
}

func (r *messageRepo) MarkRead(_ context.Context, roomID, readerID string, ids []string) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var updated int64
	for _, id := range ids {
		msg, ok := s.messages[id]
		if !ok || msg.ChatRoomID != roomID || msg.Read || msg.SenderID == readerID {
			continue
		}
		msg.Read = true
		msg.UpdatedAt = s.now()
		updated++
	}
	return updated, nil
}

func (r *messageRepo) CountUnread(_ context.Context, roomID, partyID string) (int64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	unread := s.roomMessagesLocked(roomID, func(msg *domain.ChatMessage) bool {
		return !msg.Read && !msg.Deleted && msg.SenderID != partyID
	})
	return int64(len(unread)), nil
}

func (r *messageRepo) LatestVisible(_ context.Context, roomID string) (*domain.ChatMessage, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	visible := s.roomMessagesLocked(roomID, func(msg *domain.ChatMessage) bool { return !msg.Deleted })
	if len(visible) == 0 {
		return nil, pgx.ErrNoRows
	}
	out := visible[len(visible)-1]
	return &out, nil
}
