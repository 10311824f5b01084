package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/service"
)

func TestNotificationWorkerDeliversAsynchronously(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifications := service.NewNotificationService(dispatcher, logger, config.NotificationConfig{
		WebhookURL: "https://hooks.example.com/chat",
	})
	w := NewNotificationWorker(Config{QueueSize: 8}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartNotificationWorker(ctx, dispatcher, notifications, w)

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventChatMessageSent, RoomID: "r1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventChatRoomClosed, RoomID: "r1"}))

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("sendWebhookNotificationStub").Len() == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("ChatMessageSent").Len())

	w.Stop()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventChatMessageSent, RoomID: "r2"}))
	assert.Equal(t, 1, logs.FilterMessage("ChatMessageSent").Len())
}

func TestNotificationWorkerDropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w := NewNotificationWorker(Config{QueueSize: 1}, zap.New(core))

	handler := w.enqueue(func(context.Context, events.Event) error { return nil })
	require.NoError(t, handler(context.Background(), events.Event{Type: events.EventChatMessageSent, RoomID: "r1"}))
	require.NoError(t, handler(context.Background(), events.Event{Type: events.EventChatMessageSent, RoomID: "r1"}))

	assert.Equal(t, 1, logs.FilterMessage("notification queue full, dropping event").Len())
	assert.Len(t, w.queue, 1)
}
