package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-chat/internal/auth"
	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/directory"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/observability"
	"github.com/spec-kit/marketplace-chat/internal/repository/memstore"
	"github.com/spec-kit/marketplace-chat/internal/sanitize"
	"github.com/spec-kit/marketplace-chat/internal/service"
)

type apiEnv struct {
	t       *testing.T
	app     *fiber.App
	tokens  *auth.TokenManager
	store   *memstore.Store
	admin   domain.Party
	seller  domain.Party
	buyer   domain.Party
	listing domain.ListingContext
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memstore.New()
	env := &apiEnv{
		t:      t,
		store:  store,
		tokens: auth.NewTokenManager("test-secret", 5),
		admin:  domain.Party{ID: uuid.NewString(), Role: domain.RoleAdmin},
		seller: domain.Party{ID: uuid.NewString(), Role: domain.RoleSeller},
		buyer:  domain.Party{ID: uuid.NewString(), Role: domain.RoleBuyer},
	}
	for _, p := range []domain.Party{env.admin, env.seller, env.buyer} {
		store.AddParty(domain.PartyProfile{ID: p.ID, Role: p.Role, DisplayName: string(p.Role), Active: true})
	}
	env.listing = domain.ListingContext{ProductID: uuid.NewString(), SellerID: env.seller.ID, Title: "Copper wire"}
	store.AddListing(env.listing)

	cfg := config.ChatConfig{
		EditWindowMinutes:      15,
		PinLimit:               3,
		MaxContentLength:       5000,
		MarkReadBatchMax:       100,
		DefaultPageSize:        20,
		MaxPageSize:            100,
		SummaryLimit:           10,
		WelcomeListingTemplate: "Hello about {title}",
		WelcomeRfqTemplate:     "Hello about {title}",
		WelcomeGeneralTemplate: "Hello",
	}
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	dir := directory.New(env.tokens, store.Parties(), logger)
	guard := service.NewChatGuard()
	sanitizer := sanitize.New()

	rooms := service.NewRoomService(service.RoomDependencies{
		RoomRepo:    store.Rooms(),
		ContextRepo: store.Contexts(),
		Parties:     dir,
		Assigner:    directory.NewRoundRobinAssigner(store.Parties()),
		Guard:       guard,
		Sanitizer:   sanitizer,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Config:      cfg,
	})
	messages := service.NewMessageService(service.MessageDependencies{
		RoomRepo:    store.Rooms(),
		MessageRepo: store.Messages(),
		Guard:       guard,
		Sanitizer:   sanitizer,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Config:      cfg,
	})
	unread := service.NewUnreadService(service.UnreadDependencies{
		Rooms:       rooms,
		RoomRepo:    store.Rooms(),
		MessageRepo: store.Messages(),
		Guard:       guard,
		Logger:      logger,
		Config:      cfg,
	})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("marketplace-chat", "test", nil),
		Rooms:          handlers.NewChatRoomsHandler(rooms, messages, unread),
		Messages:       handlers.NewChatMessagesHandler(messages),
		AuthMiddleware: auth.NewAuthMiddleware(dir),
		Metrics:        metrics,
	})
	env.app = app
	return env
}

type apiResponse struct {
	Status int
	Body   map[string]any
	Raw    string
}

func (e *apiEnv) do(party *domain.Party, method, path string, body any) apiResponse {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if party != nil {
		token, _, err := e.tokens.GenerateToken(*party)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	out := apiResponse{Status: resp.StatusCode, Raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(e.t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

func (r apiResponse) data() map[string]any {
	data, _ := r.Body["data"].(map[string]any)
	return data
}

func (r apiResponse) list() []any {
	items, _ := r.Body["data"].([]any)
	return items
}

func (r apiResponse) errorCode() string {
	errBody, _ := r.Body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func (e *apiEnv) openSellerRoom() string {
	e.t.Helper()
	resp := e.do(&e.seller, nethttp.MethodPost, "/chat/rooms", map[string]any{
		"kind":       "SELLER_ADMIN",
		"product_id": e.listing.ProductID,
	})
	require.Equal(e.t, nethttp.StatusCreated, resp.Status, resp.Raw)
	return resp.data()["id"].(string)
}

func TestHealthLive(t *testing.T) {
	env := newAPIEnv(t)
	resp := env.do(nil, nethttp.MethodGet, "/health/live", nil)
	assert.Equal(t, nethttp.StatusOK, resp.Status)
	assert.Equal(t, "alive", resp.Body["status"])

	ready := env.do(nil, nethttp.MethodGet, "/health/ready", nil)
	assert.Equal(t, nethttp.StatusOK, ready.Status)
}

func TestChatRoutesRequireBearerToken(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(nil, nethttp.MethodGet, "/chat/rooms", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, resp.Status)
	assert.Equal(t, "UNAUTHORIZED", resp.errorCode())

	stranger := domain.Party{ID: uuid.NewString(), Role: domain.RoleSeller}
	resp = env.do(&stranger, nethttp.MethodGet, "/chat/rooms", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, resp.Status)
}

func TestCreateRoomIsIdempotent(t *testing.T) {
	env := newAPIEnv(t)
	body := map[string]any{"kind": "SELLER_ADMIN", "product_id": env.listing.ProductID}

	first := env.do(&env.seller, nethttp.MethodPost, "/chat/rooms", body)
	require.Equal(t, nethttp.StatusCreated, first.Status, first.Raw)
	assert.Equal(t, true, first.Body["created"])
	assert.Equal(t, env.admin.ID, first.data()["admin_id"])

	second := env.do(&env.seller, nethttp.MethodPost, "/chat/rooms", body)
	require.Equal(t, nethttp.StatusOK, second.Status, second.Raw)
	assert.Equal(t, false, second.Body["created"])
	assert.Equal(t, first.data()["id"], second.data()["id"])
	assert.Equal(t, 1, env.store.RoomCount())
}

func TestCreateRoomValidation(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(&env.seller, nethttp.MethodPost, "/chat/rooms", map[string]any{"kind": "SUPPORT"})
	assert.Equal(t, nethttp.StatusBadRequest, resp.Status)
	assert.Equal(t, "VALIDATION_FAILED", resp.errorCode())
	details := resp.Body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "kind")

	resp = env.do(&env.seller, nethttp.MethodPost, "/chat/rooms", map[string]any{
		"kind":       "SELLER_ADMIN",
		"product_id": "not-a-uuid",
	})
	assert.Equal(t, nethttp.StatusBadRequest, resp.Status)

	resp = env.do(&env.buyer, nethttp.MethodPost, "/chat/rooms", map[string]any{"kind": "BUYER_ADMIN"})
	assert.Equal(t, nethttp.StatusBadRequest, resp.Status)
}

func TestMessageFlowOverHTTP(t *testing.T) {
	env := newAPIEnv(t)
	roomID := env.openSellerRoom()

	sent := env.do(&env.seller, nethttp.MethodPost, "/chat/rooms/"+roomID+"/messages", map[string]any{
		"content": "  Is <b>bulk</b> pricing available?  ",
	})
	require.Equal(t, nethttp.StatusCreated, sent.Status, sent.Raw)
	assert.Equal(t, "Is bulk pricing available?", sent.data()["content"])
	msgID := sent.data()["id"].(string)

	listed := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms/"+roomID+"/messages", nil)
	require.Equal(t, nethttp.StatusOK, listed.Status)
	assert.Len(t, listed.list(), 2)

	unread := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms/"+roomID+"/unread", nil)
	require.Equal(t, nethttp.StatusOK, unread.Status)
	assert.EqualValues(t, 1, unread.data()["unread_count"])

	read := env.do(&env.admin, nethttp.MethodPost, "/chat/rooms/"+roomID+"/read", map[string]any{
		"message_ids": []string{msgID, msgID},
	})
	require.Equal(t, nethttp.StatusOK, read.Status, read.Raw)
	assert.EqualValues(t, 1, read.data()["updated_count"])

	unread = env.do(&env.admin, nethttp.MethodGet, "/chat/rooms/"+roomID+"/unread", nil)
	assert.EqualValues(t, 0, unread.data()["unread_count"])

	edited := env.do(&env.seller, nethttp.MethodPatch, "/chat/messages/"+msgID, map[string]any{"content": "Is bulk pricing available for 500m?"})
	require.Equal(t, nethttp.StatusOK, edited.Status, edited.Raw)
	assert.Equal(t, true, edited.data()["edited"])

	forbidden := env.do(&env.admin, nethttp.MethodPatch, "/chat/messages/"+msgID, map[string]any{"content": "hijack"})
	assert.Equal(t, nethttp.StatusForbidden, forbidden.Status)

	pinned := env.do(&env.admin, nethttp.MethodPost, "/chat/messages/"+msgID+"/pin", nil)
	require.Equal(t, nethttp.StatusOK, pinned.Status, pinned.Raw)
	assert.Equal(t, true, pinned.data()["is_pinned"])

	again := env.do(&env.admin, nethttp.MethodPost, "/chat/messages/"+msgID+"/pin", nil)
	assert.Equal(t, nethttp.StatusConflict, again.Status)

	pins := env.do(&env.seller, nethttp.MethodGet, "/chat/rooms/"+roomID+"/pinned", nil)
	assert.Len(t, pins.list(), 1)

	unpinned := env.do(&env.admin, nethttp.MethodDelete, "/chat/messages/"+msgID+"/pin", nil)
	require.Equal(t, nethttp.StatusOK, unpinned.Status)
	assert.Equal(t, false, unpinned.data()["is_pinned"])

	deleted := env.do(&env.seller, nethttp.MethodDelete, "/chat/messages/"+msgID, nil)
	require.Equal(t, nethttp.StatusOK, deleted.Status)
	assert.Equal(t, true, deleted.data()["deleted"])

	redacted := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms/"+roomID+"/messages?redact_deleted=true", nil)
	require.Equal(t, nethttp.StatusOK, redacted.Status)
	for _, item := range redacted.list() {
		msg := item.(map[string]any)
		if msg["id"] == msgID {
			assert.Equal(t, "", msg["content"])
		}
	}
}

func TestRoomAccessControl(t *testing.T) {
	env := newAPIEnv(t)
	roomID := env.openSellerRoom()

	resp := env.do(&env.buyer, nethttp.MethodGet, "/chat/rooms/"+roomID, nil)
	assert.Equal(t, nethttp.StatusForbidden, resp.Status)

	resp = env.do(&env.buyer, nethttp.MethodPost, "/chat/rooms/"+roomID+"/messages", map[string]any{"content": "hi"})
	assert.Equal(t, nethttp.StatusForbidden, resp.Status)

	resp = env.do(&env.seller, nethttp.MethodGet, "/chat/rooms/"+uuid.NewString(), nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode())

	resp = env.do(&env.seller, nethttp.MethodGet, "/chat/rooms/not-a-uuid", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.Status)
}

func TestCloseRoomLifecycle(t *testing.T) {
	env := newAPIEnv(t)
	roomID := env.openSellerRoom()

	resp := env.do(&env.seller, nethttp.MethodPost, "/chat/rooms/"+roomID+"/close", nil)
	assert.Equal(t, nethttp.StatusForbidden, resp.Status)

	resp = env.do(&env.admin, nethttp.MethodPost, "/chat/rooms/"+roomID+"/close", nil)
	require.Equal(t, nethttp.StatusOK, resp.Status, resp.Raw)
	assert.Equal(t, "CLOSED", resp.data()["status"])

	resp = env.do(&env.admin, nethttp.MethodPost, "/chat/rooms/"+roomID+"/close", nil)
	assert.Equal(t, nethttp.StatusConflict, resp.Status)

	resp = env.do(&env.seller, nethttp.MethodPost, "/chat/rooms/"+roomID+"/messages", map[string]any{"content": "still there?"})
	assert.Equal(t, nethttp.StatusConflict, resp.Status)

	closed := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms?status=CLOSED", nil)
	require.Equal(t, nethttp.StatusOK, closed.Status)
	assert.Len(t, closed.list(), 1)

	active := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms?status=ACTIVE", nil)
	assert.Empty(t, active.list())

	bad := env.do(&env.admin, nethttp.MethodGet, "/chat/rooms?status=ARCHIVED", nil)
	assert.Equal(t, nethttp.StatusBadRequest, bad.Status)
}

func TestSummaryListsRecentRooms(t *testing.T) {
	env := newAPIEnv(t)
	roomID := env.openSellerRoom()

	resp := env.do(&env.seller, nethttp.MethodGet, "/chat/summary?limit=5", nil)
	require.Equal(t, nethttp.StatusOK, resp.Status, resp.Raw)
	items := resp.list()
	require.Len(t, items, 1)
	activity := items[0].(map[string]any)
	assert.Equal(t, roomID, activity["room"].(map[string]any)["id"])
	assert.NotNil(t, activity["latest_message"])
	assert.EqualValues(t, 1, activity["unread_count"])

	resp = env.do(&env.buyer, nethttp.MethodGet, "/chat/summary", nil)
	require.Equal(t, nethttp.StatusOK, resp.Status)
	assert.Empty(t, resp.list())
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(nil, nethttp.MethodGet, "/nope", nil)
	assert.Equal(t, nethttp.StatusNotFound, resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode())

	metrics := env.do(nil, nethttp.MethodGet, "/metrics", nil)
	require.Equal(t, nethttp.StatusOK, metrics.Status)
	assert.Contains(t, metrics.Raw, "marketplace_chat_http_requests_total")
	assert.Contains(t, metrics.Raw, "marketplace_chat_http_errors_total")
}
