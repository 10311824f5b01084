package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/repository"
)

// RoomActivity is one inbox preview line.
type RoomActivity struct {
	Room          domain.ChatRoom
	LatestMessage *domain.ChatMessage
	UnreadCount   int64
}

// UnreadService derives read state views over the message ledger. It never mutates.
type UnreadService struct {
	rooms    *RoomService
	roomRepo repository.ChatRoomRepository
	messages repository.ChatMessageRepository
	guard    *ChatGuard
	logger   *zap.Logger
	cfg      config.ChatConfig
}

// UnreadDependencies bundles collaborators for the unread tracker.
type UnreadDependencies struct {
	Rooms       *RoomService
	RoomRepo    repository.ChatRoomRepository
	MessageRepo repository.ChatMessageRepository
	Guard       *ChatGuard
	Logger      *zap.Logger
	Config      config.ChatConfig
}

// NewUnreadService constructs the service.
func NewUnreadService(deps UnreadDependencies) *UnreadService {
	svc := &UnreadService{
		rooms:    deps.Rooms,
		roomRepo: deps.RoomRepo,
		messages: deps.MessageRepo,
		guard:    deps.Guard,
		logger:   deps.Logger,
		cfg:      deps.Config,
	}
	if svc.guard == nil {
		svc.guard = NewChatGuard()
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	return svc
}

// UnreadCountForParty counts live messages in the room that the other side sent
// and nobody has read yet.
func (s *UnreadService) UnreadCountForParty(ctx context.Context, actor domain.Party, roomID string) (int64, error) {
	room, err := loadMemberRoom(ctx, s.roomRepo, s.guard, s.logger, actor, roomID)
	if err != nil {
		return 0, err
	}
	count, err := s.messages.CountUnread(ctx, room.ID, actor.ID)
	if err != nil {
		return 0, internalError(s.logger, "count unread messages", err, zap.String("room_id", room.ID), zap.String("party_id", actor.ID))
	}
	return count, nil
}

// RecentActivitySummary returns up to limit rooms the actor belongs to, most
// recently active first, each with its latest non-deleted message (nil when
// none) and the actor's unread count.
func (s *UnreadService) RecentActivitySummary(ctx context.Context, actor domain.Party, limit int) ([]RoomActivity, error) {
	if limit <= 0 {
		limit = s.cfg.SummaryLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if s.cfg.MaxPageSize > 0 && limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	result := make([]RoomActivity, 0, limit)
	for room, err := range s.rooms.RoomsForParty(ctx, actor, RoomListFilter{AssignedOnly: true, PageSize: limit}) {
		if err != nil {
			return nil, err
		}

		activity := RoomActivity{Room: room}
		latest, err := s.messages.LatestVisible(ctx, room.ID)
		switch {
		case err == nil:
			activity.LatestMessage = latest
		case !repository.IsNoRows(err):
			return nil, internalError(s.logger, "load latest message", err, zap.String("room_id", room.ID))
		}

		if activity.UnreadCount, err = s.messages.CountUnread(ctx, room.ID, actor.ID); err != nil {
			return nil, internalError(s.logger, "count unread messages", err, zap.String("room_id", room.ID))
		}

		result = append(result, activity)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}
