package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/events"
)

// NotificationService fans chat events out to email and webhook stubs.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// Handlers returns the notification handler for every chat event type.
func (n *NotificationService) Handlers() map[events.EventType]events.EventHandler {
	handlers := map[events.EventType]events.EventHandler{
		events.EventChatRoomCreated: n.handleRoomCreated,
		events.EventChatRoomClosed:  n.handleRoomClosed,
		events.EventChatMessageSent: n.handleMessageSent,
	}
	for _, eventType := range []events.EventType{
		events.EventChatMessageEdited,
		events.EventChatMessageDeleted,
		events.EventChatMessagePinned,
		events.EventChatMessageUnpinned,
		events.EventChatMessagesRead,
	} {
		handlers[eventType] = n.handleMessageChanged
	}
	return handlers
}

// RegisterHandlers subscribes the handlers synchronously on the dispatcher.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType, handler := range n.Handlers() {
		n.dispatcher.Subscribe(eventType, handler)
	}
}

func (n *NotificationService) handleRoomCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("ChatRoomCreated", zap.String("room_id", event.RoomID), zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleRoomClosed(ctx context.Context, event events.Event) error {
	n.logger.Info("ChatRoomClosed", zap.String("room_id", event.RoomID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageSent(ctx context.Context, event events.Event) error {
	n.logger.Info("ChatMessageSent",
		zap.String("room_id", event.RoomID),
		zap.String("sender_id", event.Actor.PartyID),
		zap.String("sender_role", string(event.Actor.Role)))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMessageChanged(ctx context.Context, event events.Event) error {
	n.logger.Debug("ChatMessageChanged",
		zap.String("event_type", string(event.Type)),
		zap.String("room_id", event.RoomID),
		zap.String("party_id", event.Actor.PartyID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("room_id", event.RoomID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("room_id", event.RoomID),
		zap.String("event_type", string(event.Type)))
}
