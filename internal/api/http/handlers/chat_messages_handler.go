package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-chat/internal/api/dto"
	"github.com/spec-kit/marketplace-chat/internal/service"
)

// ChatMessagesHandler serves message ledger endpoints.
type ChatMessagesHandler struct {
	service *service.MessageService
}

// NewChatMessagesHandler constructs handler.
func NewChatMessagesHandler(messageService *service.MessageService) *ChatMessagesHandler {
	return &ChatMessagesHandler{service: messageService}
}

// ListMessages GET /chat/rooms/:id/messages.
func (h *ChatMessagesHandler) ListMessages(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	redact, err := parseBoolQuery(c, "redact_deleted")
	if err != nil {
		return err
	}
	msgs, err := h.service.List(c.UserContext(), party, c.Params("id"), service.ListOptions{
		Page:          parseIntQuery(c, "page", 1),
		PageSize:      parseIntQuery(c, "page_size", 0),
		RedactDeleted: redact,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageList(msgs)})
}

// SendMessage POST /chat/rooms/:id/messages.
func (h *ChatMessagesHandler) SendMessage(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	var req dto.SendMessageRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	msg, err := h.service.Send(c.UserContext(), party, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// MarkRead POST /chat/rooms/:id/read.
func (h *ChatMessagesHandler) MarkRead(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	var req dto.MarkReadRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	count, err := h.service.MarkRead(c.UserContext(), party, c.Params("id"), req.MessageIDs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.MarkReadResponse{UpdatedCount: count}})
}

// EditMessage PATCH /chat/messages/:id.
func (h *ChatMessagesHandler) EditMessage(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	var req dto.EditMessageRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	msg, err := h.service.Edit(c.UserContext(), party, c.Params("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}

// DeleteMessage DELETE /chat/messages/:id.
func (h *ChatMessagesHandler) DeleteMessage(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	msg, err := h.service.SoftDelete(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}

// PinMessage POST /chat/messages/:id/pin.
func (h *ChatMessagesHandler) PinMessage(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	msg, err := h.service.Pin(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}

// UnpinMessage DELETE /chat/messages/:id/pin.
func (h *ChatMessagesHandler) UnpinMessage(c *fiber.Ctx) error {
	party, err := currentParty(c)
	if err != nil {
		return err
	}
	msg, err := h.service.Unpin(c.UserContext(), party, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": messageResponse(msg)})
}
