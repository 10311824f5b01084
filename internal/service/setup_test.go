package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	"github.com/spec-kit/marketplace-chat/internal/repository/memstore"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// tagStripper drops literal <b> tags so tests can observe sanitizer alteration.
type tagStripper struct{}

func (tagStripper) Sanitize(text string) string {
	return strings.NewReplacer("<b>", "", "</b>", "").Replace(text)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) handler(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type chatEnv struct {
	t        *testing.T
	clock    *fakeClock
	store    *memstore.Store
	rooms    *RoomService
	messages *MessageService
	unread   *UnreadService
	recorded *recordedEvents

	admin   domain.Party
	admin2  domain.Party
	seller  domain.Party
	seller2 domain.Party
	buyer   domain.Party
	listing domain.ListingContext
	rfq     domain.RfqContext
}

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		EditWindowMinutes:      15,
		PinLimit:               3,
		MaxContentLength:       5000,
		MarkReadBatchMax:       100,
		DefaultPageSize:        20,
		MaxPageSize:            100,
		SummaryLimit:           10,
		WelcomeListingTemplate: "Welcome! Let's talk about {title}.",
		WelcomeRfqTemplate:     "Welcome! We received your request for {title}.",
		WelcomeGeneralTemplate: "Welcome! How can we help?",
	}
}

func newChatEnv(t *testing.T, mutate ...func(*config.ChatConfig)) *chatEnv {
	t.Helper()
	cfg := testChatConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	clock := newFakeClock()
	store := memstore.New().WithClock(clock.Now)
	dispatcher := events.NewInMemoryDispatcher(nil)
	recorded := &recordedEvents{}
	for _, et := range []events.EventType{
		events.EventChatRoomCreated, events.EventChatRoomClosed, events.EventChatMessageSent,
		events.EventChatMessageEdited, events.EventChatMessageDeleted, events.EventChatMessagePinned,
		events.EventChatMessageUnpinned, events.EventChatMessagesRead,
	} {
		dispatcher.Subscribe(et, recorded.handler)
	}

	env := &chatEnv{
		t:        t,
		clock:    clock,
		store:    store,
		recorded: recorded,
		admin:    domain.Party{ID: uuid.NewString(), Role: domain.RoleAdmin},
		admin2:   domain.Party{ID: uuid.NewString(), Role: domain.RoleAdmin},
		seller:   domain.Party{ID: uuid.NewString(), Role: domain.RoleSeller},
		seller2:  domain.Party{ID: uuid.NewString(), Role: domain.RoleSeller},
		buyer:    domain.Party{ID: uuid.NewString(), Role: domain.RoleBuyer},
	}
	for _, p := range []domain.Party{env.admin, env.seller, env.seller2, env.buyer} {
		store.AddParty(domain.PartyProfile{ID: p.ID, Role: p.Role, DisplayName: string(p.Role), Active: true})
	}
	env.listing = domain.ListingContext{ProductID: uuid.NewString(), SellerID: env.seller.ID, Title: "Steel pipes"}
	env.rfq = domain.RfqContext{RfqID: uuid.NewString(), ProductID: env.listing.ProductID, SellerID: env.seller.ID, BuyerID: env.buyer.ID, Title: "500 steel pipes"}
	store.AddListing(env.listing)
	store.AddRfq(env.rfq)

	guard := NewChatGuard()
	env.rooms = NewRoomService(RoomDependencies{
		RoomRepo:    store.Rooms(),
		ContextRepo: store.Contexts(),
		Parties:     partyLookup{store: store},
		Assigner:    firstAdmin{store: store},
		Guard:       guard,
		Sanitizer:   tagStripper{},
		Dispatcher:  dispatcher,
		Config:      cfg,
		Now:         clock.Now,
	})
	env.messages = NewMessageService(MessageDependencies{
		RoomRepo:    store.Rooms(),
		MessageRepo: store.Messages(),
		Guard:       guard,
		Sanitizer:   tagStripper{},
		Dispatcher:  dispatcher,
		Config:      cfg,
		Now:         clock.Now,
	})
	env.unread = NewUnreadService(UnreadDependencies{
		Rooms:       env.rooms,
		RoomRepo:    store.Rooms(),
		MessageRepo: store.Messages(),
		Guard:       guard,
		Config:      cfg,
	})
	return env
}

type partyLookup struct {
	store *memstore.Store
}

func (p partyLookup) Resolve(ctx context.Context, party domain.Party) (*domain.PartyProfile, error) {
	profile, err := p.store.Parties().GetProfile(ctx, party.Role, party.ID)
	if repository.IsNoRows(err) {
		return nil, apperrors.NewNotFound("party", nil)
	}
	return profile, err
}

type firstAdmin struct {
	store *memstore.Store
}

func (f firstAdmin) AssignAdmin(ctx context.Context) (string, error) {
	admins, err := f.store.Parties().ListActiveAdmins(ctx)
	if err != nil {
		return "", err
	}
	if len(admins) == 0 {
		return "", apperrors.NewNotFound("active admin", nil)
	}
	return admins[0].ID, nil
}

// sellerRoom opens the listing room as the seller.
func (e *chatEnv) sellerRoom() *domain.ChatRoom {
	e.t.Helper()
	room, _, err := e.rooms.GetOrCreateRoom(context.Background(), e.seller, CreateRoomInput{
		Kind:      domain.RoomKindSellerAdmin,
		ProductID: &e.listing.ProductID,
	})
	require.NoError(e.t, err)
	return room
}

// buyerRoom opens the RFQ room as the buyer.
func (e *chatEnv) buyerRoom() *domain.ChatRoom {
	e.t.Helper()
	room, _, err := e.rooms.GetOrCreateRoom(context.Background(), e.buyer, CreateRoomInput{
		Kind:  domain.RoomKindBuyerAdmin,
		RfqID: &e.rfq.RfqID,
	})
	require.NoError(e.t, err)
	return room
}

// send posts content and advances the clock so messages order deterministically.
func (e *chatEnv) send(party domain.Party, roomID, content string) *domain.ChatMessage {
	e.t.Helper()
	e.clock.Advance(time.Second)
	msg, err := e.messages.Send(context.Background(), party, roomID, content)
	require.NoError(e.t, err)
	return msg
}
