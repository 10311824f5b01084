package service

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/events"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// ContentSanitizer strips unsafe markup from message bodies.
type ContentSanitizer interface {
	Sanitize(text string) string
}

// OpsRecorder counts chat operations by outcome.
type OpsRecorder interface {
	RecordChatOp(operation, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordChatOp(string, string) {}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(text string) string { return text }

type publisher struct {
	dispatcher events.Dispatcher
	now        func() time.Time
}

func (p publisher) publish(ctx context.Context, event events.Event) {
	if p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	_ = p.dispatcher.Publish(ctx, event)
}

// parseID canonicalizes an entity id. Malformed ids cannot name an existing
// entity, so they surface as NotFound for the given resource.
func parseID(raw, resource string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", apperrors.NewNotFound(resource, map[string]any{"id": raw})
	}
	return id.String(), nil
}

// parseOptionalID validates an optional input id and returns it canonicalized.
func parseOptionalID(raw *string, field string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperrors.NewValidationError("malformed identifier", map[string]any{field: *raw})
	}
	canonical := id.String()
	return &canonical, nil
}

// pageWindow converts a 1-based page into limit/offset. Pages whose offset
// does not fit in an int are rejected.
func pageWindow(page, pageSize, defaultSize, maxSize int) (int, int, error) {
	if defaultSize <= 0 {
		defaultSize = 20
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if maxSize > 0 && pageSize > maxSize {
		pageSize = maxSize
	}
	if page < 1 {
		page = 1
	}
	if page-1 > math.MaxInt/pageSize {
		return 0, 0, apperrors.NewValidationError("page out of range", map[string]any{"page": page, "page_size": pageSize})
	}
	return pageSize, (page - 1) * pageSize, nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(apperrors.ToDomainError(err).Code)
}

func internalError(logger *zap.Logger, action string, err error, fields ...zap.Field) error {
	logger.Error(action+" failed", append(fields, zap.Error(err))...)
	return apperrors.NewInternalError(err)
}
