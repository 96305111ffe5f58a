package repository

import (
	"context"
	"testing"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessage(metaMsgID, waID string, ts int64) *model.Message {
	return &model.Message{
		MetaMsgID: metaMsgID,
		WaID:      waID,
		From:      waID,
		Text:      "hello",
		Type:      "text",
		Timestamp: ts,
		Status:    model.MessageStatusSent,
	}
}

func TestMessageRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	t.Run("create message successfully", func(t *testing.T) {
		msg := newMessage("wamid.1", "919937320320", 100)

		created, err := repo.Create(ctx, msg)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.Equal(t, msg.MetaMsgID, created.MetaMsgID)
		assert.Equal(t, msg.WaID, created.WaID)
		assert.Equal(t, msg.Text, created.Text)
	})

	t.Run("duplicate meta_msg_id fails", func(t *testing.T) {
		_, err := repo.Create(ctx, newMessage("wamid.dup", "1", 100))
		require.NoError(t, err)

		_, err = repo.Create(ctx, newMessage("wamid.dup", "1", 200))
		assert.Error(t, err)
	})
}

func TestMessageRepository_InsertIfAbsent(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	t.Run("first insert creates the row", func(t *testing.T) {
		created, err := repo.InsertIfAbsent(ctx, newMessage("wamid.a", "1", 100))
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("second insert is a no-op", func(t *testing.T) {
		dup := newMessage("wamid.a", "1", 999)
		dup.Text = "changed"

		created, err := repo.InsertIfAbsent(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)

		// The original row is untouched.
		got, err := repo.GetByMetaMsgID(ctx, "wamid.a")
		require.NoError(t, err)
		assert.Equal(t, "hello", got.Text)
		assert.Equal(t, int64(100), got.Timestamp)
	})
}

func TestMessageRepository_ApplyStatus(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, newMessage("wamid.s", "1", 100))
	require.NoError(t, err)

	t.Run("advances sent to delivered", func(t *testing.T) {
		applied, err := repo.ApplyStatus(ctx, "wamid.s", model.MessageStatusDelivered)
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetByMetaMsgID(ctx, "wamid.s")
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusDelivered, got.Status)
	})

	t.Run("does not regress delivered to sent", func(t *testing.T) {
		applied, err := repo.ApplyStatus(ctx, "wamid.s", model.MessageStatusSent)
		require.NoError(t, err)
		assert.False(t, applied)

		got, err := repo.GetByMetaMsgID(ctx, "wamid.s")
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusDelivered, got.Status)
	})

	t.Run("advances delivered to read", func(t *testing.T) {
		applied, err := repo.ApplyStatus(ctx, "wamid.s", model.MessageStatusRead)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("unknown tag always applies", func(t *testing.T) {
		applied, err := repo.ApplyStatus(ctx, "wamid.s", model.MessageStatus("played"))
		require.NoError(t, err)
		assert.True(t, applied)

		got, err := repo.GetByMetaMsgID(ctx, "wamid.s")
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatus("played"), got.Status)
	})

	t.Run("missing message modifies nothing", func(t *testing.T) {
		applied, err := repo.ApplyStatus(ctx, "wamid.missing", model.MessageStatusRead)
		require.NoError(t, err)
		assert.False(t, applied)
	})
}

func TestMessageRepository_Exists(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, newMessage("wamid.e", "1", 100))
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, "wamid.e")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, "wamid.nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMessageRepository_GetByMetaMsgID(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByMetaMsgID(ctx, "wamid.nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMessageRepository_ListByConversation(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	// Inserted out of chronological order on purpose.
	for _, m := range []*model.Message{
		newMessage("wamid.c3", "111", 300),
		newMessage("wamid.c1", "111", 100),
		newMessage("wamid.c2", "111", 200),
		newMessage("wamid.other", "222", 150),
	} {
		_, err := repo.Create(ctx, m)
		require.NoError(t, err)
	}

	t.Run("ascending by timestamp", func(t *testing.T) {
		messages, err := repo.ListByConversation(ctx, "111")
		require.NoError(t, err)
		require.Len(t, messages, 3)
		assert.Equal(t, "wamid.c1", messages[0].MetaMsgID)
		assert.Equal(t, "wamid.c2", messages[1].MetaMsgID)
		assert.Equal(t, "wamid.c3", messages[2].MetaMsgID)
	})

	t.Run("unknown conversation is empty", func(t *testing.T) {
		messages, err := repo.ListByConversation(ctx, "000")
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestMessageRepository_ListConversations(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewMessageRepository(db)
	ctx := context.Background()

	older := newMessage("wamid.l1", "111", 100)
	newerA := newMessage("wamid.l2", "111", 200)
	newerA.Text = "latest in 111"
	newerB := newMessage("wamid.l3", "222", 300)
	newerB.Text = "latest in 222"

	for _, m := range []*model.Message{older, newerA, newerB} {
		_, err := repo.Create(ctx, m)
		require.NoError(t, err)
	}

	conversations, err := repo.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)

	// Newest conversation first, each represented by its latest message.
	assert.Equal(t, "222", conversations[0].WaID)
	assert.Equal(t, "latest in 222", conversations[0].LastMessage)
	assert.Equal(t, int64(300), conversations[0].LastTimestamp)

	assert.Equal(t, "111", conversations[1].WaID)
	assert.Equal(t, "latest in 111", conversations[1].LastMessage)
	assert.Equal(t, int64(200), conversations[1].LastTimestamp)
}
