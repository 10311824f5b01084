package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

const previewLength = 120

// MessageService validates and applies message state transitions.
type MessageService struct {
	rooms     repository.ChatRoomRepository
	messages  repository.ChatMessageRepository
	guard     *ChatGuard
	sanitizer ContentSanitizer
	metrics   OpsRecorder
	events    publisher
	logger    *zap.Logger
	cfg       config.ChatConfig
	now       func() time.Time
}

// MessageDependencies bundles collaborators for the message service.
type MessageDependencies struct {
	RoomRepo    repository.ChatRoomRepository
	MessageRepo repository.ChatMessageRepository
	Guard       *ChatGuard
	Sanitizer   ContentSanitizer
	Metrics     OpsRecorder
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Config      config.ChatConfig
	Now         func() time.Time
}

// ListOptions controls message listing. A nil RedactDeleted falls back to the
// configured default.
type ListOptions struct {
	Page          int
	PageSize      int
	RedactDeleted *bool
}

// NewMessageService constructs the service.
func NewMessageService(deps MessageDependencies) *MessageService {
	svc := &MessageService{
		rooms:     deps.RoomRepo,
		messages:  deps.MessageRepo,
		guard:     deps.Guard,
		sanitizer: deps.Sanitizer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       deps.Config,
		now:       deps.Now,
	}
	if svc.guard == nil {
		svc.guard = NewChatGuard()
	}
	if svc.sanitizer == nil {
		svc.sanitizer = passthroughSanitizer{}
	}
	if svc.metrics == nil {
		svc.metrics = nopRecorder{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.cfg.MaxContentLength <= 0 {
		svc.cfg.MaxContentLength = 5000
	}
	if svc.cfg.PinLimit <= 0 {
		svc.cfg.PinLimit = 3
	}
	if svc.cfg.MarkReadBatchMax <= 0 {
		svc.cfg.MarkReadBatchMax = 100
	}
	svc.events = publisher{dispatcher: deps.Dispatcher, now: svc.now}
	return svc
}

// Send appends a message to a room the actor belongs to.
func (s *MessageService) Send(ctx context.Context, actor domain.Party, roomID, rawContent string) (msg *domain.ChatMessage, err error) {
	defer func() { s.metrics.RecordChatOp("send", outcomeOf(err)) }()

	room, err := loadMemberRoom(ctx, s.rooms, s.guard, s.logger, actor, roomID)
	if err != nil {
		return nil, err
	}
	if room.IsClosed() && !s.cfg.AllowSendToClosed {
		return nil, apperrors.NewConflict("chat room is closed", map[string]any{"room_id": room.ID})
	}

	content, altered, err := s.prepareContent(rawContent)
	if err != nil {
		return nil, err
	}

	msg = &domain.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   actor.ID,
		SenderRole: actor.Role,
		Content:    content,
		SentAt:     s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewNotFound("chat room", map[string]any{"id": room.ID})
		}
		return nil, internalError(s.logger, "send chat message", err, zap.String("room_id", room.ID), zap.String("party_id", actor.ID))
	}
	if altered {
		s.auditSanitized("send", room.ID, msg.ID, actor)
	}

	s.events.publish(ctx, events.Event{
		Type:    events.EventChatMessageSent,
		RoomID:  room.ID,
		Actor:   events.ActorFrom(actor),
		Payload: messagePayload(msg),
	})
	return msg, nil
}

// List returns one page of a room's history ordered by sentAt ascending.
// Deleted messages are included; with redaction their content is blanked for
// everyone but the sender.
func (s *MessageService) List(ctx context.Context, actor domain.Party, roomID string, opts ListOptions) ([]domain.ChatMessage, error) {
	room, err := loadMemberRoom(ctx, s.rooms, s.guard, s.logger, actor, roomID)
	if err != nil {
		return nil, err
	}

	limit, offset, err := pageWindow(opts.Page, opts.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByRoom(ctx, room.ID, limit, offset)
	if err != nil {
		return nil, internalError(s.logger, "list chat messages", err, zap.String("room_id", room.ID))
	}

	redact := s.cfg.RedactDeleted
	if opts.RedactDeleted != nil {
		redact = *opts.RedactDeleted
	}
	if redact {
		for i := range msgs {
			if msgs[i].Deleted && msgs[i].SenderID != actor.ID {
				msgs[i].Content = ""
			}
		}
	}
	return msgs, nil
}

// ListPinned returns the room's pinned, non-deleted messages.
func (s *MessageService) ListPinned(ctx context.Context, actor domain.Party, roomID string) ([]domain.ChatMessage, error) {
	room, err := loadMemberRoom(ctx, s.rooms, s.guard, s.logger, actor, roomID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListPinned(ctx, room.ID)
	if err != nil {
		return nil, internalError(s.logger, "list pinned messages", err, zap.String("room_id", room.ID))
	}
	return msgs, nil
}

// Edit replaces the content of the actor's own message inside the edit window.
// Content that normalizes to the stored text is a silent no-op.
func (s *MessageService) Edit(ctx context.Context, actor domain.Party, messageID, newContent string) (msg *domain.ChatMessage, err error) {
	defer func() { s.metrics.RecordChatOp("edit", outcomeOf(err)) }()

	current, room, err := s.loadMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireSender(actor, room, current); err != nil {
		return nil, err
	}
	if current.Deleted {
		return nil, apperrors.NewConflict("message is deleted", map[string]any{"message_id": current.ID})
	}
	now := s.now()
	if !current.WithinWindow(now, s.cfg.EditWindow()) {
		return nil, s.expired(current)
	}

	content, altered, err := s.prepareContent(newContent)
	if err != nil {
		return nil, err
	}
	if content == strings.TrimSpace(current.Content) {
		return current, nil
	}

	updated, err := s.messages.UpdateContent(ctx, current.ID, actor.ID, content, domain.WindowCutoff(now, s.cfg.EditWindow()))
	if err != nil {
		return nil, s.classifyGuardedWrite(ctx, "edit", current.ID, err)
	}
	if altered {
		s.auditSanitized("edit", room.ID, updated.ID, actor)
	}

	s.events.publish(ctx, events.Event{
		Type:    events.EventChatMessageEdited,
		RoomID:  room.ID,
		Actor:   events.ActorFrom(actor),
		Payload: messagePayload(updated),
	})
	return updated, nil
}

// SoftDelete flags the actor's own message as deleted inside the edit window.
// The row and its content are kept.
func (s *MessageService) SoftDelete(ctx context.Context, actor domain.Party, messageID string) (msg *domain.ChatMessage, err error) {
	defer func() { s.metrics.RecordChatOp("delete", outcomeOf(err)) }()

	current, room, err := s.loadMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireSender(actor, room, current); err != nil {
		return nil, err
	}
	if current.Deleted {
		return nil, apperrors.NewConflict("message already deleted", map[string]any{"message_id": current.ID})
	}
	now := s.now()
	if !current.WithinWindow(now, s.cfg.EditWindow()) {
		return nil, s.expired(current)
	}

	deleted, err := s.messages.SoftDelete(ctx, current.ID, actor.ID, domain.WindowCutoff(now, s.cfg.EditWindow()))
	if err != nil {
		return nil, s.classifyGuardedWrite(ctx, "delete", current.ID, err)
	}

	s.events.publish(ctx, events.Event{
		Type:   events.EventChatMessageDeleted,
		RoomID: room.ID,
		Actor:  events.ActorFrom(actor),
		Payload: events.MessagePayload{
			MessageID:  deleted.ID,
			SenderID:   deleted.SenderID,
			SenderRole: deleted.SenderRole,
		},
	})
	return deleted, nil
}

// Pin marks a live message as pinned, respecting the per-room pin cap.
func (s *MessageService) Pin(ctx context.Context, actor domain.Party, messageID string) (msg *domain.ChatMessage, err error) {
	defer func() { s.metrics.RecordChatOp("pin", outcomeOf(err)) }()

	current, room, err := s.loadMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequirePinRights(actor, room); err != nil {
		return nil, err
	}
	if err := pinConflict(current); err != nil {
		return nil, err
	}

	outcome, pinned, err := s.messages.Pin(ctx, current.ID, s.cfg.PinLimit)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewNotFound("chat message", map[string]any{"id": current.ID})
		}
		return nil, internalError(s.logger, "pin chat message", err, zap.String("message_id", current.ID))
	}
	switch outcome {
	case repository.PinLimitReached:
		return nil, apperrors.NewLimitExceeded("pinned message limit reached", map[string]any{"limit": s.cfg.PinLimit})
	case repository.PinNotApplicable:
		latest, err := s.messages.GetByID(ctx, current.ID)
		if err != nil {
			return nil, internalError(s.logger, "reload chat message", err, zap.String("message_id", current.ID))
		}
		if err := pinConflict(latest); err != nil {
			return nil, err
		}
		return nil, apperrors.NewConflict("message cannot be pinned", map[string]any{"message_id": current.ID})
	}

	s.events.publish(ctx, events.Event{
		Type:    events.EventChatMessagePinned,
		RoomID:  room.ID,
		Actor:   events.ActorFrom(actor),
		Payload: messagePayload(pinned),
	})
	return pinned, nil
}

// Unpin clears the pinned flag of a pinned message.
func (s *MessageService) Unpin(ctx context.Context, actor domain.Party, messageID string) (msg *domain.ChatMessage, err error) {
	defer func() { s.metrics.RecordChatOp("unpin", outcomeOf(err)) }()

	current, room, err := s.loadMessage(ctx, actor, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequirePinRights(actor, room); err != nil {
		return nil, err
	}
	if !current.IsPinned {
		return nil, apperrors.NewConflict("message is not pinned", map[string]any{"message_id": current.ID})
	}

	unpinned, err := s.messages.Unpin(ctx, current.ID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewConflict("message is not pinned", map[string]any{"message_id": current.ID})
		}
		return nil, internalError(s.logger, "unpin chat message", err, zap.String("message_id", current.ID))
	}

	s.events.publish(ctx, events.Event{
		Type:    events.EventChatMessageUnpinned,
		RoomID:  room.ID,
		Actor:   events.ActorFrom(actor),
		Payload: messagePayload(unpinned),
	})
	return unpinned, nil
}

// MarkRead flags the given messages as read by actor and returns how many
// actually changed. The actor's own messages are skipped without error.
func (s *MessageService) MarkRead(ctx context.Context, actor domain.Party, roomID string, messageIDs []string) (count int64, err error) {
	defer func() { s.metrics.RecordChatOp("mark_read", outcomeOf(err)) }()

	room, err := loadMemberRoom(ctx, s.rooms, s.guard, s.logger, actor, roomID)
	if err != nil {
		return 0, err
	}

	ids, err := s.normalizeBatch(messageIDs)
	if err != nil {
		return 0, err
	}

	updated, err := s.messages.MarkRead(ctx, room.ID, actor.ID, ids)
	if err != nil {
		return 0, internalError(s.logger, "mark messages read", err, zap.String("room_id", room.ID), zap.String("party_id", actor.ID))
	}
	if updated > 0 {
		s.events.publish(ctx, events.Event{
			Type:   events.EventChatMessagesRead,
			RoomID: room.ID,
			Actor:  events.ActorFrom(actor),
			Payload: events.MessagesReadPayload{
				RequestedIDs: ids,
				UpdatedCount: updated,
			},
		})
	}
	return updated, nil
}

func (s *MessageService) normalizeBatch(messageIDs []string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, apperrors.NewValidationError("message_ids must not be empty", nil)
	}
	if len(messageIDs) > s.cfg.MarkReadBatchMax {
		return nil, apperrors.NewValidationError("too many message ids", map[string]any{
			"max":   s.cfg.MarkReadBatchMax,
			"count": len(messageIDs),
		})
	}

	ids := make([]string, 0, len(messageIDs))
	seen := make(map[string]struct{}, len(messageIDs))
	for i, raw := range messageIDs {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, apperrors.NewValidationError("malformed message id", map[string]any{"index": i, "id": raw})
		}
		id := parsed.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// prepareContent trims, bounds and sanitizes a message body. altered reports
// whether sanitization changed the trimmed input.
func (s *MessageService) prepareContent(raw string) (string, bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false, apperrors.NewValidationError("content must not be empty", nil)
	}
	if err := s.checkLength(trimmed); err != nil {
		return "", false, err
	}

	sanitized := strings.TrimSpace(s.sanitizer.Sanitize(trimmed))
	if sanitized == "" {
		return "", false, apperrors.NewValidationError("content is empty after sanitization", nil)
	}
	if err := s.checkLength(sanitized); err != nil {
		return "", false, err
	}
	return sanitized, sanitized != trimmed, nil
}

func (s *MessageService) checkLength(content string) error {
	if n := utf8.RuneCountInString(content); n > s.cfg.MaxContentLength {
		return apperrors.NewValidationError("content too long", map[string]any{
			"max":    s.cfg.MaxContentLength,
			"length": n,
		})
	}
	return nil
}

func (s *MessageService) auditSanitized(action, roomID, messageID string, actor domain.Party) {
	s.logger.Info("message content altered by sanitizer",
		zap.String("action", action),
		zap.String("room_id", roomID),
		zap.String("message_id", messageID),
		zap.String("party_id", actor.ID),
		zap.String("party_role", string(actor.Role)))
}

func (s *MessageService) loadMessage(ctx context.Context, actor domain.Party, rawID string) (*domain.ChatMessage, *domain.ChatRoom, error) {
	messageID, err := parseID(rawID, "chat message")
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, nil, apperrors.NewNotFound("chat message", map[string]any{"id": messageID})
		}
		return nil, nil, internalError(s.logger, "load chat message", err, zap.String("message_id", messageID))
	}
	room, err := loadRoom(ctx, s.rooms, s.logger, msg.ChatRoomID)
	if err != nil {
		return nil, nil, err
	}
	return msg, room, nil
}

// classifyGuardedWrite explains why a conditional edit/delete matched no row:
// the message was deleted concurrently or the window closed before the write.
func (s *MessageService) classifyGuardedWrite(ctx context.Context, action, messageID string, err error) error {
	if !repository.IsNoRows(err) {
		return internalError(s.logger, action+" chat message", err, zap.String("message_id", messageID))
	}
	latest, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if repository.IsNoRows(err) {
			return apperrors.NewNotFound("chat message", map[string]any{"id": messageID})
		}
		return internalError(s.logger, "reload chat message", err, zap.String("message_id", messageID))
	}
	if latest.Deleted {
		return apperrors.NewConflict("message is deleted", map[string]any{"message_id": messageID})
	}
	return s.expired(latest)
}

func (s *MessageService) expired(msg *domain.ChatMessage) error {
	return apperrors.NewExpired("edit window has passed", map[string]any{
		"message_id":     msg.ID,
		"window_minutes": int(s.cfg.EditWindow() / time.Minute),
	})
}

func pinConflict(msg *domain.ChatMessage) error {
	if msg.Deleted {
		return apperrors.NewConflict("deleted messages cannot be pinned", map[string]any{"message_id": msg.ID})
	}
	if msg.IsPinned {
		return apperrors.NewConflict("message already pinned", map[string]any{"message_id": msg.ID})
	}
	return nil
}

func messagePayload(msg *domain.ChatMessage) events.MessagePayload {
	return events.MessagePayload{
		MessageID:   msg.ID,
		SenderID:    msg.SenderID,
		SenderRole:  msg.SenderRole,
		BodyPreview: stringPreview(msg.Content, previewLength),
	}
}
