package dto

import (
	"time"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

// CreateRoomRequest payload.
type CreateRoomRequest struct {
	Kind           domain.ChatRoomKind `json:"kind" validate:"required,oneof=SELLER_ADMIN BUYER_ADMIN"`
	ProductID      *string             `json:"product_id" validate:"omitempty,uuid"`
	RfqID          *string             `json:"rfq_id" validate:"omitempty,uuid"`
	CounterpartyID *string             `json:"counterparty_id" validate:"omitempty,uuid"`
}

// SendMessageRequest payload.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// EditMessageRequest payload.
type EditMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// MarkReadRequest payload. Ids are checked individually by the ledger.
type MarkReadRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1"`
}

// ChatRoomResponse describes a room.
type ChatRoomResponse struct {
	ID        string                `json:"id"`
	Kind      domain.ChatRoomKind   `json:"kind"`
	AdminID   string                `json:"admin_id"`
	SellerID  *string               `json:"seller_id,omitempty"`
	BuyerID   *string               `json:"buyer_id,omitempty"`
	ProductID *string               `json:"product_id,omitempty"`
	RfqID     *string               `json:"rfq_id,omitempty"`
	Status    domain.ChatRoomStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// ChatMessageResponse describes one ledger entry.
type ChatMessageResponse struct {
	ID         string           `json:"id"`
	ChatRoomID string           `json:"chat_room_id"`
	SenderID   string           `json:"sender_id"`
	SenderRole domain.PartyRole `json:"sender_role"`
	Content    string           `json:"content"`
	SentAt     time.Time        `json:"sent_at"`
	Read       bool             `json:"read"`
	Edited     bool             `json:"edited"`
	Deleted    bool             `json:"deleted"`
	IsPinned   bool             `json:"is_pinned"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// RoomActivityResponse is one inbox line of the activity summary.
type RoomActivityResponse struct {
	Room          ChatRoomResponse     `json:"room"`
	LatestMessage *ChatMessageResponse `json:"latest_message"`
	UnreadCount   int64                `json:"unread_count"`
}

// UnreadCountResponse wraps a room's unread total.
type UnreadCountResponse struct {
	RoomID      string `json:"room_id"`
	UnreadCount int64  `json:"unread_count"`
}

// MarkReadResponse reports how many messages changed state.
type MarkReadResponse struct {
	UpdatedCount int64 `json:"updated_count"`
}
