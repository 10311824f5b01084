package domain

import "time"

// ChatRoomKind identifies which counterparty talks to the admin.
type ChatRoomKind string

const (
	RoomKindSellerAdmin ChatRoomKind = "SELLER_ADMIN"
	RoomKindBuyerAdmin  ChatRoomKind = "BUYER_ADMIN"
)

// Valid reports whether k is a known room kind.
func (k ChatRoomKind) Valid() bool {
	return k == RoomKindSellerAdmin || k == RoomKindBuyerAdmin
}

// CounterpartyRole returns the non-admin role a room of this kind holds.
func (k ChatRoomKind) CounterpartyRole() PartyRole {
	if k == RoomKindBuyerAdmin {
		return RoleBuyer
	}
	return RoleSeller
}

// ChatRoomStatus enumerates room lifecycle states. ACTIVE -> CLOSED is one-way.
type ChatRoomStatus string

const (
	RoomStatusActive ChatRoomStatus = "ACTIVE"
	RoomStatusClosed ChatRoomStatus = "CLOSED"
)

// ChatRoom is a conversation between one admin and one seller or buyer.
type ChatRoom struct {
	ID        string
	Kind      ChatRoomKind
	AdminID   string
	SellerID  *string
	BuyerID   *string
	ProductID *string
	RfqID     *string
	Status    ChatRoomStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CounterpartyID returns the seller or buyer id depending on the room kind.
func (r *ChatRoom) CounterpartyID() string {
	switch r.Kind {
	case RoomKindBuyerAdmin:
		return deref(r.BuyerID)
	default:
		return deref(r.SellerID)
	}
}

// ContextID returns the listing or RFQ id the room is tied to, or "".
func (r *ChatRoom) ContextID() string {
	if r.RfqID != nil {
		return *r.RfqID
	}
	return deref(r.ProductID)
}

// DedupKey is the storage-level uniqueness key of the room.
func (r *ChatRoom) DedupKey() string {
	return RoomDedupKey(r.Kind, r.CounterpartyID(), r.ContextID())
}

// IsClosed reports whether the room reached its terminal state.
func (r *ChatRoom) IsClosed() bool {
	return r.Status == RoomStatusClosed
}

// RoomDedupKey builds the (kind, counterparty, context) key.
func RoomDedupKey(kind ChatRoomKind, counterpartyID, contextID string) string {
	return string(kind) + ":" + counterpartyID + ":" + contextID
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
