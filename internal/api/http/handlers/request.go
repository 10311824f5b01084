package handlers

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-chat/internal/api/dto"
	"github.com/spec-kit/marketplace-chat/internal/auth"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/service"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bindBody parses the JSON payload into req and runs its validation tags.
func bindBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return apperrors.NewValidationError("invalid payload", nil)
		}
		details := make(map[string]any, len(fieldErrs))
		for _, fe := range fieldErrs {
			rule := fe.Tag()
			if fe.Param() != "" {
				rule += "=" + fe.Param()
			}
			details[fe.Field()] = rule
		}
		return apperrors.NewValidationError("validation failed", details)
	}
	return nil
}

func currentParty(c *fiber.Ctx) (domain.Party, error) {
	party, ok := auth.PartyFromContext(c)
	if !ok {
		return domain.Party{}, apperrors.NewUnauthorized("authentication required")
	}
	return party, nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}

func parseBoolQuery(c *fiber.Ctx, key string) (*bool, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{key: val})
	}
	return &parsed, nil
}

func roomResponse(room *domain.ChatRoom) dto.ChatRoomResponse {
	return dto.ChatRoomResponse{
		ID:        room.ID,
		Kind:      room.Kind,
		AdminID:   room.AdminID,
		SellerID:  room.SellerID,
		BuyerID:   room.BuyerID,
		ProductID: room.ProductID,
		RfqID:     room.RfqID,
		Status:    room.Status,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func messageResponse(msg *domain.ChatMessage) dto.ChatMessageResponse {
	return dto.ChatMessageResponse{
		ID:         msg.ID,
		ChatRoomID: msg.ChatRoomID,
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		Content:    msg.Content,
		SentAt:     msg.SentAt,
		Read:       msg.Read,
		Edited:     msg.Edited,
		Deleted:    msg.Deleted,
		IsPinned:   msg.IsPinned,
		UpdatedAt:  msg.UpdatedAt,
	}
}

func messageList(msgs []domain.ChatMessage) []dto.ChatMessageResponse {
	items := make([]dto.ChatMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return items
}

func activityResponse(activity service.RoomActivity) dto.RoomActivityResponse {
	resp := dto.RoomActivityResponse{
		Room:        roomResponse(&activity.Room),
		UnreadCount: activity.UnreadCount,
	}
	if activity.LatestMessage != nil {
		latest := messageResponse(activity.LatestMessage)
		resp.LatestMessage = &latest
	}
	return resp
}
