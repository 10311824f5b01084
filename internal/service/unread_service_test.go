package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-chat/internal/domain"
	apperrors "github.com/spec-kit/marketplace-chat/pkg/util"
)

func TestUnreadCountForParty(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()
	room := env.sellerRoom()

	a1 := env.send(env.admin, room.ID, "one")
	env.send(env.admin, room.ID, "two")
	deleted := env.send(env.admin, room.ID, "three")
	env.send(env.seller, room.ID, "reply")
	_, err := env.messages.SoftDelete(ctx, env.admin, deleted.ID)
	require.NoError(t, err)

	// Welcome + two live admin messages.
	count, err := env.unread.UnreadCountForParty(ctx, env.seller, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = env.unread.UnreadCountForParty(ctx, env.admin, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = env.messages.MarkRead(ctx, env.seller, room.ID, []string{a1.ID})
	require.NoError(t, err)
	count, err = env.unread.UnreadCountForParty(ctx, env.seller, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = env.unread.UnreadCountForParty(ctx, env.buyer, room.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestRecentActivitySummary(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()

	listingRoom := env.sellerRoom()
	env.clock.Advance(time.Minute)
	rfqRoom := env.buyerRoom()
	env.clock.Advance(time.Minute)

	last := env.send(env.seller, listingRoom.ID, "latest in listing room")
	gone := env.send(env.seller, listingRoom.ID, "deleted afterwards")
	_, err := env.messages.SoftDelete(ctx, env.seller, gone.ID)
	require.NoError(t, err)

	summary, err := env.unread.RecentActivitySummary(ctx, env.admin, 0)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, listingRoom.ID, summary[0].Room.ID)
	require.NotNil(t, summary[0].LatestMessage)
	assert.Equal(t, last.ID, summary[0].LatestMessage.ID)
	assert.Equal(t, int64(1), summary[0].UnreadCount)
	assert.Equal(t, rfqRoom.ID, summary[1].Room.ID)
	assert.Equal(t, int64(0), summary[1].UnreadCount)

	summary, err = env.unread.RecentActivitySummary(ctx, env.admin, 1)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, listingRoom.ID, summary[0].Room.ID)

	summary, err = env.unread.RecentActivitySummary(ctx, env.buyer, 10)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, rfqRoom.ID, summary[0].Room.ID)
	assert.Equal(t, int64(1), summary[0].UnreadCount, "welcome message is unread")
}

func TestRecentActivitySummaryOnlyMemberRooms(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()
	env.sellerRoom()

	summary, err := env.unread.RecentActivitySummary(ctx, env.admin2, 10)
	require.NoError(t, err)
	assert.Empty(t, summary)

	stranger := domain.Party{ID: uuid.NewString(), Role: domain.RoleBuyer}
	summary, err = env.unread.RecentActivitySummary(ctx, stranger, 10)
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestRecentActivitySummaryEmptyRoom(t *testing.T) {
	env := newChatEnv(t)
	ctx := context.Background()
	room := env.sellerRoom()

	welcome := env.store.MessagesInRoom(room.ID)[0]
	_, err := env.messages.SoftDelete(ctx, env.admin, welcome.ID)
	require.NoError(t, err)

	summary, err := env.unread.RecentActivitySummary(ctx, env.seller, 5)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Nil(t, summary[0].LatestMessage)
	assert.Zero(t, summary[0].UnreadCount)
}
