package repository

import (
	"context"
	"testing"

	"github.com/chatdeck/webhook-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingStatusRepository_Upsert(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPendingStatusRepository(db)
	ctx := context.Background()

	t.Run("insert new pending status", func(t *testing.T) {
		err := repo.Upsert(ctx, &model.PendingStatusUpdate{
			MetaMsgID: "wamid.p1",
			Status:    model.MessageStatusDelivered,
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "wamid.p1")
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusDelivered, got.Status)
	})

	t.Run("last write wins", func(t *testing.T) {
		err := repo.Upsert(ctx, &model.PendingStatusUpdate{
			MetaMsgID: "wamid.p2",
			Status:    model.MessageStatusDelivered,
		})
		require.NoError(t, err)

		err = repo.Upsert(ctx, &model.PendingStatusUpdate{
			MetaMsgID: "wamid.p2",
			Status:    model.MessageStatusRead,
		})
		require.NoError(t, err)

		got, err := repo.Get(ctx, "wamid.p2")
		require.NoError(t, err)
		assert.Equal(t, model.MessageStatusRead, got.Status)
	})
}

func TestPendingStatusRepository_Get(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPendingStatusRepository(db)
	ctx := context.Background()

	_, err := repo.Get(ctx, "wamid.absent")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestPendingStatusRepository_Delete(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewPendingStatusRepository(db)
	ctx := context.Background()

	t.Run("delete existing record", func(t *testing.T) {
		err := repo.Upsert(ctx, &model.PendingStatusUpdate{
			MetaMsgID: "wamid.d1",
			Status:    model.MessageStatusRead,
		})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, "wamid.d1"))

		_, err = repo.Get(ctx, "wamid.d1")
		assert.ErrorIs(t, err, ErrPendingNotFound)
	})

	t.Run("delete absent record is not an error", func(t *testing.T) {
		assert.NoError(t, repo.Delete(ctx, "wamid.never"))
	})
}
