package events

import (
	"time"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventChatRoomCreated     EventType = "chat_room_created"
	EventChatRoomClosed      EventType = "chat_room_closed"
	EventChatMessageSent     EventType = "chat_message_sent"
	EventChatMessageEdited   EventType = "chat_message_edited"
	EventChatMessageDeleted  EventType = "chat_message_deleted"
	EventChatMessagePinned   EventType = "chat_message_pinned"
	EventChatMessageUnpinned EventType = "chat_message_unpinned"
	EventChatMessagesRead    EventType = "chat_messages_read"
)

// Actor identifies the party behind an event.
type Actor struct {
	PartyID string           `json:"party_id"`
	Role    domain.PartyRole `json:"role"`
}

// ActorFrom converts a resolved party into an event actor.
func ActorFrom(party domain.Party) Actor {
	return Actor{PartyID: party.ID, Role: party.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	RoomID    string      `json:"room_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// RoomCreatedPayload payload.
type RoomCreatedPayload struct {
	Kind           domain.ChatRoomKind `json:"kind"`
	AdminID        string              `json:"admin_id"`
	CounterpartyID string              `json:"counterparty_id"`
	ProductID      *string             `json:"product_id,omitempty"`
	RfqID          *string             `json:"rfq_id,omitempty"`
	WelcomeID      string              `json:"welcome_message_id"`
}

// RoomClosedPayload payload.
type RoomClosedPayload struct {
	Kind           domain.ChatRoomKind `json:"kind"`
	CounterpartyID string              `json:"counterparty_id"`
}

// MessagePayload describes a single message mutation.
type MessagePayload struct {
	MessageID   string           `json:"message_id"`
	SenderID    string           `json:"sender_id"`
	SenderRole  domain.PartyRole `json:"sender_role"`
	BodyPreview string           `json:"body_preview,omitempty"`
}

// MessagesReadPayload payload.
type MessagesReadPayload struct {
	RequestedIDs []string `json:"requested_ids"`
	UpdatedCount int64    `json:"updated_count"`
}
