// ABOUTME: Tests for the generic row helpers
// ABOUTME: Round-trips nullable, boolean and timestamp columns and checks error mapping

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestInsertAndGet(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	stream := &ChatStreams{
		StreamID:       "stream-1",
		CreateTime:     1700000000.5,
		GroupPlatform:  ptr("qq"),
		GroupID:        ptr("123"),
		LastActiveTime: 1700000100.25,
		Platform:       "qq",
		UserPlatform:   "qq",
		UserID:         "42",
		UserNickname:   "mai",
	}
	require.NoError(t, Insert(ctx, store.DB(), stream))
	assert.NotZero(t, stream.ID)

	got, err := Get[ChatStreams](ctx, store.DB(), stream.ID)
	require.NoError(t, err)
	assert.Equal(t, stream, got)
	assert.Nil(t, got.GroupName)
	assert.Nil(t, got.UserCardname)
}

func TestGet_NotFound(t *testing.T) {
	store := newInitializedStore(t)

	_, err := Get[Emoji](context.Background(), store.DB(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsert_NullableBooleans(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	msg := &Messages{
		MessageID:        "m1",
		Time:             1.5,
		ChatID:           "chat",
		IsMentioned:      ptr(true),
		IsAt:             ptr(false),
		ChatInfoStreamID: "stream",
		IsEmoji:          true,
	}
	require.NoError(t, Insert(ctx, store.DB(), msg))

	got, err := Get[Messages](ctx, store.DB(), msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.IsMentioned)
	require.NotNil(t, got.IsAt)
	assert.True(t, *got.IsMentioned)
	assert.False(t, *got.IsAt)
	assert.True(t, got.IsEmoji)
	assert.False(t, got.IsCommand)
	assert.Nil(t, got.InterestValue)
}

func TestInsert_StampsAutoNow(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	before := time.Now()
	online := &OnlineTime{Duration: 5}
	require.NoError(t, Insert(ctx, store.DB(), online))

	assert.False(t, online.StartTimestamp.Before(before))
	assert.False(t, online.EndTimestamp.IsZero())
	assert.NotEmpty(t, online.Timestamp)

	got, err := Get[OnlineTime](ctx, store.DB(), online.ID)
	require.NoError(t, err)
	assert.True(t, online.StartTimestamp.Equal(got.StartTimestamp), "want %v got %v", online.StartTimestamp, got.StartTimestamp)
	assert.True(t, online.EndTimestamp.Equal(got.EndTimestamp))
	assert.Equal(t, online.Timestamp, got.Timestamp)
	assert.Equal(t, 5, got.Duration)
}

func TestInsert_KeepsExplicitTime(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	at := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	usage := &LLMUsage{ModelName: "m", UserID: "u", RequestType: "chat", Endpoint: "/v1", Status: "success", Timestamp: at}
	require.NoError(t, Insert(ctx, store.DB(), usage))

	got, err := Get[LLMUsage](ctx, store.DB(), usage.ID)
	require.NoError(t, err)
	assert.True(t, at.Equal(got.Timestamp))
}

func TestInsert_UniqueViolation(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	emoji := func() *Emoji {
		return &Emoji{FullPath: "/data/emoji/a.png", Format: "png", EmojiHash: "h", Description: "d", RecordTime: 1}
	}
	require.NoError(t, Insert(ctx, store.DB(), emoji()))
	err := Insert(ctx, store.DB(), emoji())
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestFind(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	for _, chat := range []string{"a", "b", "a"} {
		require.NoError(t, Insert(ctx, store.DB(), &Expression{
			Situation: "greeting",
			Style:     "hi " + chat,
			Count:     1,
			ChatID:    chat,
			Type:      "style",
		}))
	}

	rows, err := Find[Expression](ctx, store.DB(), `"chat_id" = ?`, "a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Less(t, rows[0].ID, rows[1].ID)

	all, err := Find[Expression](ctx, store.DB(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := Find[Expression](ctx, store.DB(), `"chat_id" = ?`, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := Count[Expression](ctx, store.DB(), `"chat_id" = ?`, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdate(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	person := &PersonInfo{PersonID: "p1", Platform: "qq", UserID: "1"}
	require.NoError(t, Insert(ctx, store.DB(), person))

	person.IsKnown = true
	person.PersonName = ptr("Mai")
	person.KnowTimes = ptr(3.0)
	require.NoError(t, Update(ctx, store.DB(), person))

	got, err := Get[PersonInfo](ctx, store.DB(), person.ID)
	require.NoError(t, err)
	assert.Equal(t, person, got)

	person.PersonName = nil
	require.NoError(t, Update(ctx, store.DB(), person))
	got, err = Get[PersonInfo](ctx, store.DB(), person.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PersonName)
}

func TestUpdate_NotFound(t *testing.T) {
	store := newInitializedStore(t)

	err := Update(context.Background(), store.DB(), &GroupInfo{ID: 7, GroupID: "g", Platform: "qq"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := newInitializedStore(t)
	ctx := context.Background()

	conflict := &MemoryConflict{ConflictContent: "x", CreateTime: 1, UpdateTime: 2}
	require.NoError(t, Insert(ctx, store.DB(), conflict))

	require.NoError(t, Delete[MemoryConflict](ctx, store.DB(), conflict.ID))
	_, err := Get[MemoryConflict](ctx, store.DB(), conflict.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = Delete[MemoryConflict](ctx, store.DB(), conflict.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
