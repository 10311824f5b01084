// Package memstore keeps chat state in process memory. It backs local
// development when no Postgres DSN is configured and drives the service tests.
// Every mutation runs under one mutex, which gives the same atomicity the
// Postgres implementation gets from unique indexes and row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	"github.com/spec-kit/marketplace-chat/internal/repository"
)

// Store holds rooms, messages, parties and listing/RFQ context.
type Store struct {
	mu       sync.Mutex
	rooms    map[string]*domain.ChatRoom
	dedup    map[string]string
	messages map[string]*domain.ChatMessage
	parties  map[domain.PartyRole]map[string]*domain.PartyProfile
	admins   []string
	listings map[string]*domain.ListingContext
	rfqs     map[string]*domain.RfqContext
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		rooms:    make(map[string]*domain.ChatRoom),
		dedup:    make(map[string]string),
		messages: make(map[string]*domain.ChatMessage),
		parties: map[domain.PartyRole]map[string]*domain.PartyProfile{
			domain.RoleAdmin:  {},
			domain.RoleSeller: {},
			domain.RoleBuyer:  {},
		},
		listings: make(map[string]*domain.ListingContext),
		rfqs:     make(map[string]*domain.RfqContext),
		now:      time.Now,
	}
}

// WithClock overrides the clock used for room updated_at bookkeeping.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Rooms exposes the store as a ChatRoomRepository.
func (s *Store) Rooms() repository.ChatRoomRepository { return (*roomRepo)(s) }

// Messages exposes the store as a ChatMessageRepository.
func (s *Store) Messages() repository.ChatMessageRepository { return (*messageRepo)(s) }

// Parties exposes the store as a PartyRepository.
func (s *Store) Parties() repository.PartyRepository { return (*partyRepo)(s) }

// Contexts exposes the store as a ContextRepository.
func (s *Store) Contexts() repository.ContextRepository { return (*contextRepo)(s) }

// AddParty registers an admin, seller or buyer.
func (s *Store) AddParty(profile domain.PartyProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := profile
	if _, exists := s.parties[p.Role][p.ID]; !exists && p.Role == domain.RoleAdmin {
		s.admins = append(s.admins, p.ID)
	}
	s.parties[p.Role][p.ID] = &p
}

// AddListing registers a listing.
func (s *Store) AddListing(listing domain.ListingContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := listing
	s.listings[l.ProductID] = &l
}

// AddRfq registers a request for quote.
func (s *Store) AddRfq(rfq domain.RfqContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rfq
	s.rfqs[r.RfqID] = &r
}

// SetMessageSentAt rewrites a message timestamp; used to age messages in tests.
func (s *Store) SetMessageSentAt(id string, sentAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.SentAt = sentAt
	}
}

// RoomCount returns the number of stored rooms.
func (s *Store) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// MessagesInRoom returns a snapshot of every message of a room, sentAt ascending.
func (s *Store) MessagesInRoom(roomID string) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomMessagesLocked(roomID, func(*domain.ChatMessage) bool { return true })
}

func (s *Store) roomMessagesLocked(roomID string, keep func(*domain.ChatMessage) bool) []domain.ChatMessage {
	var result []domain.ChatMessage
	for _, msg := range s.messages {
		if msg.ChatRoomID == roomID && keep(msg) {
			result = append(result, *msg)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SentAt.Equal(result[j].SentAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].SentAt.Before(result[j].SentAt)
	})
	return result
}

type roomRepo Store

func (r *roomRepo) CreateIfAbsent(_ context.Context, room *domain.ChatRoom, welcome *domain.ChatMessage) (*domain.ChatRoom, bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	key := room.DedupKey()
	if id, exists := s.dedup[key]; exists {
		existing := *s.rooms[id]
		return &existing, false, nil
	}

	now := s.now()
	created := *room
	created.ID = uuid.NewString()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.rooms[created.ID] = &created
	s.dedup[key] = created.ID

	if welcome != nil {
		welcome.ChatRoomID = created.ID
		s.insertMessageLocked(welcome)
	}
	out := created
	return &out, true, nil
}

func (r *roomRepo) GetByID(_ context.Context, id string) (*domain.ChatRoom, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *room
	return &out, nil
}

func (r *roomRepo) GetByDedupKey(_ context.Context, key string) (*domain.ChatRoom, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.dedup[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *s.rooms[id]
	return &out, nil
}

func (r *roomRepo) List(_ context.Context, filter repository.RoomFilter) ([]domain.ChatRoom, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []domain.ChatRoom
	for _, room := range s.rooms {
		if roomMatches(room, filter) {
			matched = append(matched, *room)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func roomMatches(room *domain.ChatRoom, filter repository.RoomFilter) bool {
	memberFilter := filter.AdminID != nil || filter.SellerID != nil || filter.BuyerID != nil
	if memberFilter {
		member := (filter.AdminID != nil && room.AdminID == *filter.AdminID) ||
			(filter.SellerID != nil && room.SellerID != nil && *room.SellerID == *filter.SellerID) ||
			(filter.BuyerID != nil && room.BuyerID != nil && *room.BuyerID == *filter.BuyerID)
		if !member {
			return false
		}
	}
	if filter.Status != nil && room.Status != *filter.Status {
		return false
	}
	if filter.HasProduct != nil && (room.ProductID != nil) != *filter.HasProduct {
		return false
	}
	return true
}

func (r *roomRepo) Close(_ context.Context, id string) (*domain.ChatRoom, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok || room.Status != domain.RoomStatusActive {
		return nil, pgx.ErrNoRows
	}
	room.Status = domain.RoomStatusClosed
	room.UpdatedAt = s.now()
	out := *room
	return &out, nil
}

type partyRepo Store

func (r *partyRepo) GetProfile(_ context.Context, role domain.PartyRole, id string) (*domain.PartyProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.parties[role]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	profile, ok := byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *profile
	return &out, nil
}

func (r *partyRepo) ListActiveAdmins(_ context.Context) ([]domain.PartyProfile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.PartyProfile
	for _, id := range s.admins {
		if profile := s.parties[domain.RoleAdmin][id]; profile.Active {
			result = append(result, *profile)
		}
	}
	return result, nil
}

type contextRepo Store

func (r *contextRepo) ResolveListing(_ context.Context, productID string) (*domain.ListingContext, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[productID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *listing
	return &out, nil
}

func (r *contextRepo) ResolveRfq(_ context.Context, rfqID string) (*domain.RfqContext, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	rfq, ok := s.rfqs[rfqID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *rfq
	return &out, nil
}
