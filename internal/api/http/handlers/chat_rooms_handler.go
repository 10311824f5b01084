package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-chat/internal/api/dto"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/service"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// ChatRoomsHandler serves room registry and inbox endpoints.
type ChatRoomsHandler struct {
	rooms    *service.RoomService
	messages *service.MessageService
	unread   *service.UnreadService
}

// NewChatRoomsHandler constructs handler.
func NewChatRoomsHandler(rooms *service.RoomService, messages *service.MessageService, unread *service.UnreadService) *ChatRoomsHandler {
	return &ChatRoomsHandler{rooms: rooms, messages: messages, unread: unread}
}

// CreateRoom POST /chat/rooms.
func (h *ChatRoomsHandler) CreateRoom(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	var req dto.CreateRoomRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	room, created, err := h.rooms.GetOrCreateRoom(c.UserContext(), party, service.CreateRoomInput{
		Kind:           req.Kind,
		CounterpartyID: req.CounterpartyID,
		ProductID:      req.ProductID,
		RfqID:          req.RfqID,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": roomResponse(room), "created": created})
}

// ListRooms GET /chat/rooms.
func (h *ChatRoomsHandler) ListRooms(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	filter, err := parseRoomListFilter(c)
	if err != nil {
		return err
	}
	rooms, err := h.rooms.ListRoomsForParty(c.UserContext(), party, filter)
	if err != nil {
		return err
	}
	items := make([]dto.ChatRoomResponse, 0, len(rooms))
	for i := range rooms {
		items = append(items, roomResponse(&rooms[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetRoom GET /chat/rooms/:id.
func (h *ChatRoomsHandler) GetRoom(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	room, err := h.rooms.GetRoom(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roomResponse(room)})
}

// CloseRoom POST /chat/rooms/:id/close.
func (h *ChatRoomsHandler) CloseRoom(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	room, err := h.rooms.CloseRoom(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": roomResponse(room)})
}

// UnreadCount GET /chat/rooms/:id/unread.
func (h *ChatRoomsHandler) UnreadCount(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	count, err := h.unread.UnreadCountForParty(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UnreadCountResponse{RoomID: c.Params("id"), UnreadCount: count}})
}

// ListPinned GET /chat/rooms/:id/pinned.
func (h *ChatRoomsHandler) ListPinned(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	msgs, err := h.messages.ListPinned(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageList(msgs)})
}

// Summary GET /chat/summary.
func (h *ChatRoomsHandler) Summary(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	activities, err := h.unread.RecentActivitySummary(c.UserContext(), party, parseIntQuery(c, "limit", 0))
	if err != nil {
		return err
	}
	items := make([]dto.RoomActivityResponse, 0, len(activities))
	for _, activity := range activities {
		items = append(items, activityResponse(activity))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseRoomListFilter(c *fiber.Ctx) (service.RoomListFilter, error) {
	var filter service.RoomListFilter
	if statusStr := c.Query("status"); statusStr != "" {
		status := domain.ChatRoomStatus(statusStr)
		if status != domain.RoomStatusActive && status != domain.RoomStatusClosed {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": statusStr})
		}
		filter.Status = &status
	}
	hasProduct, err := parseBoolQuery(c, "has_product")
	if err != nil {
		return filter, err
	}
	filter.HasProduct = hasProduct
	assignedOnly, err := parseBoolQuery(c, "assigned_only")
	if err != nil {
		return filter, err
	}
	filter.AssignedOnly = assignedOnly != nil && *assignedOnly
	filter.Page = parseIntQuery(c, "page", 1)
	filter.PageSize = parseIntQuery(c, "page_size", 0)
	return filter, nil
}
