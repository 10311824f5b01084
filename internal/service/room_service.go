package service

import (
	"context"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-chat/internal/config"
	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/events"
	"github.com/spec-kit/marketplace-chat/internal/repository"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

// RoomLocker serializes work on a key across service replicas.
type RoomLocker interface {
	WithLock(ctx context.Context, key string, fn func() error) error
}

// AdminAssigner picks the admin for rooms opened by sellers and buyers.
type AdminAssigner interface {
	AssignAdmin(ctx context.Context) (string, error)
}

// PartyResolver looks up directory profiles.
type PartyResolver interface {
	Resolve(ctx context.Context, party domain.Party) (*domain.PartyProfile, error)
}

// RoomService owns room identity, dedup-on-create and room listings.
type RoomService struct {
	rooms     repository.ChatRoomRepository
	contexts  repository.ContextRepository
	parties   PartyResolver
	assigner  AdminAssigner
	locker    RoomLocker
	guard     *ChatGuard
	sanitizer ContentSanitizer
	metrics   OpsRecorder
	events    publisher
	logger    *zap.Logger
	cfg       config.ChatConfig
	now       func() time.Time
}

// RoomDependencies bundles collaborators for the room service.
type RoomDependencies struct {
	RoomRepo    repository.ChatRoomRepository
	ContextRepo repository.ContextRepository
	Parties     PartyResolver
	Assigner    AdminAssigner
	Locker      RoomLocker
	Guard       *ChatGuard
	Sanitizer   ContentSanitizer
	Metrics     OpsRecorder
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	Config      config.ChatConfig
	Now         func() time.Time
}

// CreateRoomInput describes a room request. ProductID ties a SELLER_ADMIN room to
// a listing; RfqID is mandatory for BUYER_ADMIN rooms. CounterpartyID is only
// read when an admin opens a general seller room.
type CreateRoomInput struct {
	Kind           domain.ChatRoomKind
	CounterpartyID *string
	ProductID      *string
	RfqID          *string
}

// RoomListFilter describes room listing filters.
type RoomListFilter struct {
	Status       *domain.ChatRoomStatus
	HasProduct   *bool
	AssignedOnly bool
	Page         int
	PageSize     int
}

// NewRoomService constructs the service.
func NewRoomService(deps RoomDependencies) *RoomService {
	svc := &RoomService{
		rooms:     deps.RoomRepo,
		contexts:  deps.ContextRepo,
		parties:   deps.Parties,
		assigner:  deps.Assigner,
		locker:    deps.Locker,
		guard:     deps.Guard,
		sanitizer: deps.Sanitizer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		cfg:       deps.Config,
		now:       deps.Now,
	}
	if svc.guard == nil {
		svc.guard = NewChatGuard()
	}
	if svc.sanitizer == nil {
		svc.sanitizer = passthroughSanitizer{}
	}
	if svc.metrics == nil {
		svc.metrics = nopRecorder{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	svc.events = publisher{dispatcher: deps.Dispatcher, now: svc.now}
	return svc
}

// roomPlan is a resolved creation request: who the parties are and what the
// welcome message says.
type roomPlan struct {
	kind           domain.ChatRoomKind
	counterpartyID string
	productID      *string
	rfqID          *string
	title          string
	template       string
}

func (p roomPlan) dedupKey() string {
	contextID := ""
	if p.rfqID != nil {
		contextID = *p.rfqID
	} else if p.productID != nil {
		contextID = *p.productID
	}
	return domain.RoomDedupKey(p.kind, p.counterpartyID, contextID)
}

// GetOrCreateRoom returns the room for (kind, counterparty, context), creating it
// together with its welcome message when absent. created is true only for the
// call that inserted the room.
func (s *RoomService) GetOrCreateRoom(ctx context.Context, actor domain.Party, input CreateRoomInput) (room *domain.ChatRoom, created bool, err error) {
	defer func() { s.metrics.RecordChatOp("get_or_create_room", outcomeOf(err)) }()

	plan, err := s.planRoom(ctx, actor, input)
	if err != nil {
		return nil, false, err
	}

	var adminID string
	switch actor.Role {
	case domain.RoleAdmin:
		adminID = actor.ID
	default:
		// Repeat requests must not rotate the assigner.
		existing, err := s.rooms.GetByDedupKey(ctx, plan.dedupKey())
		if err == nil {
			return existing, false, nil
		}
		if !repository.IsNoRows(err) {
			return nil, false, internalError(s.logger, "lookup chat room", err, zap.String("party_id", actor.ID))
		}
		if adminID, err = s.assigner.AssignAdmin(ctx); err != nil {
			return nil, false, err
		}
	}

	candidate := &domain.ChatRoom{
		Kind:      plan.kind,
		AdminID:   adminID,
		ProductID: plan.productID,
		RfqID:     plan.rfqID,
		Status:    domain.RoomStatusActive,
	}
	counterparty := plan.counterpartyID
	if plan.kind == domain.RoomKindBuyerAdmin {
		candidate.BuyerID = &counterparty
	} else {
		candidate.SellerID = &counterparty
	}

	welcome := &domain.ChatMessage{
		SenderID:   adminID,
		SenderRole: domain.RoleAdmin,
		Content:    s.welcomeContent(plan),
		SentAt:     s.now(),
	}

	attempted := false
	insert := func() error {
		attempted = true
		var insertErr error
		room, created, insertErr = s.rooms.CreateIfAbsent(ctx, candidate, welcome)
		return insertErr
	}

	if s.locker != nil {
		err = s.locker.WithLock(ctx, plan.dedupKey(), insert)
		if err != nil && !attempted {
			// The unique dedup key still guarantees a single room.
			s.logger.Warn("room lock unavailable; relying on storage uniqueness",
				zap.String("dedup_key", plan.dedupKey()), zap.Error(err))
			err = insert()
		}
	} else {
		err = insert()
	}
	if err != nil {
		return nil, false, internalError(s.logger, "create chat room", err,
			zap.String("party_id", actor.ID), zap.String("dedup_key", plan.dedupKey()))
	}

	if created {
		s.events.publish(ctx, events.Event{
			Type:   events.EventChatRoomCreated,
			RoomID: room.ID,
			Actor:  events.ActorFrom(actor),
			Payload: events.RoomCreatedPayload{
				Kind:           room.Kind,
				AdminID:        room.AdminID,
				CounterpartyID: room.CounterpartyID(),
				ProductID:      room.ProductID,
				RfqID:          room.RfqID,
				WelcomeID:      welcome.ID,
			},
		})
	}
	return room, created, nil
}

func (s *RoomService) planRoom(ctx context.Context, actor domain.Party, input CreateRoomInput) (roomPlan, error) {
	if !input.Kind.Valid() {
		return roomPlan{}, apperrors.NewValidationError("unknown chat room kind", map[string]any{"kind": input.Kind})
	}
	productID, err := parseOptionalID(input.ProductID, "product_id")
	if err != nil {
		return roomPlan{}, err
	}
	rfqID, err := parseOptionalID(input.RfqID, "rfq_id")
	if err != nil {
		return roomPlan{}, err
	}
	counterpartyID, err := parseOptionalID(input.CounterpartyID, "counterparty_id")
	if err != nil {
		return roomPlan{}, err
	}

	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleSeller, domain.RoleBuyer:
		if input.Kind.CounterpartyRole() != actor.Role {
			return roomPlan{}, apperrors.NewForbidden("party cannot open this kind of chat room")
		}
	default:
		return roomPlan{}, apperrors.NewForbidden("unknown party role")
	}

	plan := roomPlan{kind: input.Kind}
	switch input.Kind {
	case domain.RoomKindBuyerAdmin:
		if rfqID == nil {
			return roomPlan{}, apperrors.NewValidationError("rfq_id is required for buyer rooms", nil)
		}
		if productID != nil {
			return roomPlan{}, apperrors.NewValidationError("buyer rooms are tied to an rfq, not a listing", nil)
		}
		rfq, err := s.contexts.ResolveRfq(ctx, *rfqID)
		if err != nil {
			return roomPlan{}, s.contextError(err, "rfq", *rfqID)
		}
		if strings.TrimSpace(rfq.BuyerID) == "" {
			return roomPlan{}, apperrors.NewNotFound("rfq buyer", map[string]any{"rfq_id": *rfqID})
		}
		plan.counterpartyID = rfq.BuyerID
		plan.rfqID = rfqID
		plan.title = rfq.Title
		plan.template = s.cfg.WelcomeRfqTemplate

	case domain.RoomKindSellerAdmin:
		if rfqID != nil {
			return roomPlan{}, apperrors.NewValidationError("seller rooms cannot reference an rfq", nil)
		}
		if productID != nil {
			listing, err := s.contexts.ResolveListing(ctx, *productID)
			if err != nil {
				return roomPlan{}, s.contextError(err, "listing", *productID)
			}
			if strings.TrimSpace(listing.SellerID) == "" {
				return roomPlan{}, apperrors.NewNotFound("listing seller", map[string]any{"product_id": *productID})
			}
			plan.counterpartyID = listing.SellerID
			plan.productID = productID
			plan.title = listing.Title
			plan.template = s.cfg.WelcomeListingTemplate
			break
		}
		plan.template = s.cfg.WelcomeGeneralTemplate
		if actor.Role == domain.RoleSeller {
			plan.counterpartyID = actor.ID
			break
		}
		if counterpartyID == nil {
			return roomPlan{}, apperrors.NewValidationError("counterparty_id is required for general seller rooms", nil)
		}
		if err := s.requireActiveParty(ctx, domain.Party{ID: *counterpartyID, Role: domain.RoleSeller}); err != nil {
			return roomPlan{}, err
		}
		plan.counterpartyID = *counterpartyID
	}

	if actor.Role != domain.RoleAdmin && plan.counterpartyID != actor.ID {
		return roomPlan{}, apperrors.NewForbidden("party is not the counterparty of this context")
	}
	if actor.Role == domain.RoleAdmin && counterpartyID != nil && *counterpartyID != plan.counterpartyID {
		return roomPlan{}, apperrors.NewValidationError("counterparty does not match the referenced context",
			map[string]any{"counterparty_id": *counterpartyID})
	}
	return plan, nil
}

func (s *RoomService) requireActiveParty(ctx context.Context, party domain.Party) error {
	if s.parties == nil {
		return nil
	}
	profile, err := s.parties.Resolve(ctx, party)
	if err != nil {
		return err
	}
	if !profile.Active {
		return apperrors.NewNotFound(strings.ToLower(string(party.Role)), map[string]any{"id": party.ID})
	}
	return nil
}

func (s *RoomService) contextError(err error, resource, id string) error {
	if repository.IsNoRows(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return internalError(s.logger, "resolve "+resource, err, zap.String("id", id))
}

func (s *RoomService) welcomeContent(plan roomPlan) string {
	title := strings.TrimSpace(s.sanitizer.Sanitize(plan.title))
	content := strings.TrimSpace(strings.ReplaceAll(plan.template, "{title}", title))
	if content == "" {
		content = "Welcome!"
	}
	max := s.cfg.MaxContentLength
	if max <= 0 {
		max = 5000
	}
	return stringPreview(content, max)
}

// GetRoom returns a room the actor belongs to.
func (s *RoomService) GetRoom(ctx context.Context, actor domain.Party, roomID string) (*domain.ChatRoom, error) {
	return loadMemberRoom(ctx, s.rooms, s.guard, s.logger, actor, roomID)
}

// ListRoomsForParty returns one page of rooms visible to actor, most recently
// active first.
func (s *RoomService) ListRoomsForParty(ctx context.Context, actor domain.Party, filter RoomListFilter) ([]domain.ChatRoom, error) {
	repoFilter := s.guard.ListScope(actor, filter.AssignedOnly)
	repoFilter.Status = filter.Status
	repoFilter.HasProduct = filter.HasProduct
	limit, offset, err := pageWindow(filter.Page, filter.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
	if err != nil {
		return nil, err
	}
	repoFilter.Limit, repoFilter.Offset = limit, offset

	rooms, err := s.rooms.List(ctx, repoFilter)
	if err != nil {
		return nil, internalError(s.logger, "list chat rooms", err, zap.String("party_id", actor.ID))
	}
	return rooms, nil
}

// RoomsForParty lazily walks every page of rooms visible to actor starting at
// filter.Page. The sequence ends after the first short page or on error.
func (s *RoomService) RoomsForParty(ctx context.Context, actor domain.Party, filter RoomListFilter) iter.Seq2[domain.ChatRoom, error] {
	return func(yield func(domain.ChatRoom, error) bool) {
		page := filter
		if page.Page < 1 {
			page.Page = 1
		}
		size, _, _ := pageWindow(page.Page, page.PageSize, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)
		page.PageSize = size
		for {
			rooms, err := s.ListRoomsForParty(ctx, actor, page)
			if err != nil {
				yield(domain.ChatRoom{}, err)
				return
			}
			for _, room := range rooms {
				if !yield(room, nil) {
					return
				}
			}
			if len(rooms) < size {
				return
			}
			page.Page++
		}
	}
}

// CloseRoom moves an active room to CLOSED. Only the room's admin may close it.
func (s *RoomService) CloseRoom(ctx context.Context, actor domain.Party, roomID string) (room *domain.ChatRoom, err error) {
	defer func() { s.metrics.RecordChatOp("close_room", outcomeOf(err)) }()

	current, err := loadRoom(ctx, s.rooms, s.logger, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.guard.RequireAdmin(actor, current); err != nil {
		return nil, err
	}
	if current.IsClosed() {
		return nil, apperrors.NewConflict("chat room already closed", map[string]any{"room_id": current.ID})
	}

	closed, err := s.rooms.Close(ctx, current.ID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewConflict("chat room already closed", map[string]any{"room_id": current.ID})
		}
		return nil, internalError(s.logger, "close chat room", err, zap.String("room_id", current.ID))
	}

	s.events.publish(ctx, events.Event{
		Type:   events.EventChatRoomClosed,
		RoomID: closed.ID,
		Actor:  events.ActorFrom(actor),
		Payload: events.RoomClosedPayload{
			Kind:           closed.Kind,
			CounterpartyID: closed.CounterpartyID(),
		},
	})
	return closed, nil
}

func loadRoom(ctx context.Context, rooms repository.ChatRoomRepository, logger *zap.Logger, rawID string) (*domain.ChatRoom, error) {
	roomID, err := parseID(rawID, "chat room")
	if err != nil {
		return nil, err
	}
	room, err := rooms.GetByID(ctx, roomID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, apperrors.NewNotFound("chat room", map[string]any{"id": roomID})
		}
		return nil, internalError(logger, "load chat room", err, zap.String("room_id", roomID))
	}
	return room, nil
}

func loadMemberRoom(ctx context.Context, rooms repository.ChatRoomRepository, guard *ChatGuard, logger *zap.Logger, actor domain.Party, rawID string) (*domain.ChatRoom, error) {
	room, err := loadRoom(ctx, rooms, logger, rawID)
	if err != nil {
		return nil, err
	}
	if err := guard.RequireMember(actor, room); err != nil {
		return nil, err
	}
	return room, nil
}
