package memstore

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-chat/internal/domain"
)

func TestLoadSeedFileRegistersDirectory(t *testing.T) {
	store := New()
	require.NoError(t, store.LoadSeedFile("../../../configs/dev-seed.json"))
	ctx := context.Background()

	admins, err := store.Parties().ListActiveAdmins(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	seller, err := store.Parties().GetProfile(ctx, domain.RoleSeller, "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0001")
	require.NoError(t, err)
	assert.Equal(t, "Acme Supplies", seller.DisplayName)
	assert.True(t, seller.Active)

	listing, err := store.Contexts().ResolveListing(ctx, "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d0001")
	require.NoError(t, err)
	assert.Equal(t, seller.ID, listing.SellerID)

	rfq, err := store.Contexts().ResolveRfq(ctx, "f1e2d3c4-b5a6-4978-8a6b-5c4d3e2f0001")
	require.NoError(t, err)
	assert.Equal(t, "c3d1a7e5-2b8f-4f6a-9c0d-4e7b8a9f0001", rfq.BuyerID)
}

func TestLoadSeedHonoursInactiveFlag(t *testing.T) {
	store := New()
	seed := `{"parties": [{"id": "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0009", "role": "SELLER", "active": false}]}`
	require.NoError(t, store.LoadSeed(strings.NewReader(seed)))

	p, err := store.Parties().GetProfile(context.Background(), domain.RoleSeller, "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0009")
	require.NoError(t, err)
	assert.False(t, p.Active)
}

func TestLoadSeedRejectsBadFixtures(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{name: "not json", seed: `parties:`},
		{name: "no parties", seed: `{"listings": []}`},
		{name: "unknown role", seed: `{"parties": [{"id": "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0001", "role": "OWNER"}]}`},
		{name: "bad id", seed: `{"parties": [{"id": "42", "role": "ADMIN"}]}`},
		{name: "unknown field", seed: `{"parties": [], "users": []}`},
		{
			name: "listing without seller",
			seed: `{"parties": [{"id": "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0001", "role": "ADMIN"}],
				"listings": [{"product_id": "9e8d7c6b-5a4f-4e3d-8c2b-1a0f9e8d0001"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := New()
			assert.Error(t, store.LoadSeed(strings.NewReader(tt.seed)))
			admins, err := store.Parties().ListActiveAdmins(context.Background())
			require.NoError(t, err)
			assert.Empty(t, admins)
		})
	}

	assert.Error(t, New().LoadSeedFile("does-not-exist.json"))
}

func TestListByRoomClampsOffset(t *testing.T) {
	store := New().WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) })
	ctx := context.Background()
	sellerID := "6a2e9f3b-7d44-4c0e-8e2b-1f9c3a5b0001"
	room, _, err := store.Rooms().CreateIfAbsent(ctx, &domain.ChatRoom{
		Kind:     domain.RoomKindSellerAdmin,
		AdminID:  "0b6f4d0e-3c1a-4a51-9d57-5d1c2f0a0001",
		SellerID: &sellerID,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Messages().Create(ctx, &domain.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   sellerID,
		SenderRole: domain.RoleSeller,
		Content:    "hi",
		SentAt:     time.Date(2024, 5, 1, 9, 1, 0, 0, time.UTC),
	}))

	var msgs []domain.ChatMessage
	assert.NotPanics(t, func() {
		msgs, err = store.Messages().ListByRoom(ctx, room.ID, 20, -20)
	})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
