package service

import (
	"github.com/google/uuid"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// ChatGuard decides whether a party may act on a room or message. Membership is
// always derived from the stored room, never from caller assertions.
type ChatGuard struct{}

// NewChatGuard returns the guard.
func NewChatGuard() *ChatGuard {
	return &ChatGuard{}
}

// memberSlot returns the room field that the given role occupies.
func memberSlot(room *domain.ChatRoom, role domain.PartyRole) string {
	switch role {
	case domain.RoleAdmin:
		return room.AdminID
	case domain.RoleSeller:
		if room.SellerID == nil {
			return ""
		}
		return *room.SellerID
	case domain.RoleBuyer:
		if room.BuyerID == nil {
			return ""
		}
		return *room.BuyerID
	default:
		return ""
	}
}

// IsMember reports room-level membership.
func (g *ChatGuard) IsMember(party domain.Party, room *domain.ChatRoom) bool {
	slot := memberSlot(room, party.Role)
	return slot != "" && slot == party.ID
}

// RequireMember fails with Forbidden unless party belongs to room.
func (g *ChatGuard) RequireMember(party domain.Party, room *domain.ChatRoom) error {
	if !g.IsMember(party, room) {
		return apperrors.NewForbidden("not a member of this chat room")
	}
	return nil
}

// RequireSender gates edit and delete: room membership and authorship are both required.
func (g *ChatGuard) RequireSender(party domain.Party, room *domain.ChatRoom, msg *domain.ChatMessage) error {
	if err := g.RequireMember(party, room); err != nil {
		return err
	}
	if msg.SenderID != party.ID {
		return apperrors.NewForbidden("only the sender may modify this message")
	}
	return nil
}

// RequirePinRights allows any member to pin or unpin.
func (g *ChatGuard) RequirePinRights(party domain.Party, room *domain.ChatRoom) error {
	return g.RequireMember(party, room)
}

// RequireAdmin gates room lifecycle actions.
func (g *ChatGuard) RequireAdmin(party domain.Party, room *domain.ChatRoom) error {
	if err := g.RequireMember(party, room); err != nil {
		return err
	}
	if !party.IsAdmin() {
		return apperrors.NewForbidden("only the room admin may perform this action")
	}
	return nil
}

// ListScope narrows a room listing to what party may see. Admins see every room
// unless memberOnly is set; sellers and buyers only ever see their own rooms.
func (g *ChatGuard) ListScope(party domain.Party, memberOnly bool) repository.RoomFilter {
	id := party.ID
	switch party.Role {
	case domain.RoleAdmin:
		if memberOnly {
			return repository.RoomFilter{AdminID: &id}
		}
		return repository.RoomFilter{}
	case domain.RoleSeller:
		return repository.RoomFilter{SellerID: &id}
	case domain.RoleBuyer:
		return repository.RoomFilter{BuyerID: &id}
	default:
		// Unknown roles match nothing.
		none := uuid.Nil.String()
		return repository.RoomFilter{AdminID: &none}
	}
}
