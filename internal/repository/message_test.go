package repository

import (
	"context"
	"testing"
	"time"

	"courtyard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages(t *testing.T, repo MessageRepository, roomID uint, n int, base time.Time) []*models.Message {
	ctx := context.Background()
	msgs := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := &models.Message{
			RoomID:            roomID,
			SenderID:          1,
			SenderDisplayName: "Ana",
			Body:              "msg",
			CreatedAt:         base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, msg))
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestMessageRepository_ListBefore(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	roomRepo := NewRoomRepository(db)
	ctx := context.Background()

	room := &models.Room{Kind: models.RoomDirect, RoomKey: models.DirectRoomKey(1, 2)}
	_, err := roomRepo.CreateIdempotent(ctx, room)
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	all := seedMessages(t, repo, room.ID, 25, base)

	t.Run("NewestPageWithoutCursor", func(t *testing.T) {
		page, err := repo.ListBefore(ctx, room.ID, nil, 0, 10)
		assert.NoError(t, err)
		require.Len(t, page, 10)
		// Ascending within the page, ending at the newest message.
		assert.Equal(t, all[15].ID, page[0].ID)
		assert.Equal(t, all[24].ID, page[9].ID)
		for i := 1; i < len(page); i++ {
			assert.True(t, page[i-1].CreatedAt.Before(page[i].CreatedAt))
		}
	})

	t.Run("WalkIsCompleteAndNonOverlapping", func(t *testing.T) {
		var collected []uint
		var before *time.Time
		var beforeID uint
		for {
			page, err := repo.ListBefore(ctx, room.ID, before, beforeID, 10)
			require.NoError(t, err)
			for i := len(page) - 1; i >= 0; i-- {
				collected = append(collected, page[i].ID)
			}
			if len(page) < 10 {
				// Short page signals end of history, no count query needed.
				break
			}
			oldest := page[0].CreatedAt
			before = &oldest
			beforeID = page[0].ID
		}

		require.Len(t, collected, 25)
		seen := make(map[uint]bool, len(collected))
		for _, id := range collected {
			assert.False(t, seen[id], "message %d appeared twice", id)
			seen[id] = true
		}
	})

	t.Run("ConcurrentAppendDoesNotDisturbWalk", func(t *testing.T) {
		first, err := repo.ListBefore(ctx, room.ID, nil, 0, 10)
		require.NoError(t, err)
		oldest := first[0].CreatedAt

		// A new message lands at the tail mid-walk.
		late := &models.Message{
			RoomID:            room.ID,
			SenderID:          2,
			SenderDisplayName: "Bo",
			Body:              "late arrival",
			CreatedAt:         base.Add(time.Hour),
		}
		require.NoError(t, repo.Create(ctx, late))

		second, err := repo.ListBefore(ctx, room.ID, &oldest, first[0].ID, 10)
		assert.NoError(t, err)
		require.Len(t, second, 10)
		for _, msg := range second {
			assert.True(t, msg.CreatedAt.Before(oldest))
			assert.NotEqual(t, late.ID, msg.ID)
		}
	})

	t.Run("EqualTimestampsAcrossPageBoundary", func(t *testing.T) {
		burst := &models.Room{Kind: models.RoomDirect, RoomKey: models.DirectRoomKey(5, 6)}
		_, err := roomRepo.CreateIdempotent(ctx, burst)
		require.NoError(t, err)

		// Six messages sharing one timestamp, paged two at a time. The id
		// part of the cursor must keep the walk complete.
		at := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
		for i := 0; i < 6; i++ {
			require.NoError(t, repo.Create(ctx, &models.Message{
				RoomID:            burst.ID,
				SenderID:          5,
				SenderDisplayName: "Ana",
				Body:              "burst",
				CreatedAt:         at,
			}))
		}

		var collected []uint
		var before *time.Time
		var beforeID uint
		for {
			page, err := repo.ListBefore(ctx, burst.ID, before, beforeID, 2)
			require.NoError(t, err)
			for i := len(page) - 1; i >= 0; i-- {
				collected = append(collected, page[i].ID)
			}
			if len(page) < 2 {
				break
			}
			oldest := page[0].CreatedAt
			before = &oldest
			beforeID = page[0].ID
		}

		require.Len(t, collected, 6)
		seen := make(map[uint]bool, len(collected))
		for _, id := range collected {
			assert.False(t, seen[id], "message %d appeared twice", id)
			seen[id] = true
		}
	})

	t.Run("EmptyRoom", func(t *testing.T) {
		other := &models.Room{Kind: models.RoomDirect, RoomKey: models.DirectRoomKey(3, 4)}
		_, err := roomRepo.CreateIdempotent(ctx, other)
		require.NoError(t, err)

		page, err := repo.ListBefore(ctx, other.ID, nil, 0, 10)
		assert.NoError(t, err)
		assert.Empty(t, page)
	})
}

func TestMessageRepository_SaveEdits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	roomRepo := NewRoomRepository(db)
	ctx := context.Background()

	room := &models.Room{Kind: models.RoomDirect, RoomKey: models.DirectRoomKey(1, 2)}
	_, err := roomRepo.CreateIdempotent(ctx, room)
	require.NoError(t, err)

	msg := &models.Message{
		RoomID:            room.ID,
		SenderID:          1,
		SenderDisplayName: "Ana",
		Body:              "before",
	}
	require.NoError(t, repo.Create(ctx, msg))
	createdAt := msg.CreatedAt

	now := time.Now().UTC()
	msg.Body = "after"
	msg.EditedAt = &now
	require.NoError(t, repo.SaveEdits(ctx, msg))

	got, err := repo.GetByID(ctx, msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, "after", got.Body)
	require.NotNil(t, got.EditedAt)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Second)
	assert.Nil(t, got.DeletedAt)

	msg.DeletedAt = &now
	require.NoError(t, repo.SaveEdits(ctx, msg))

	got, err = repo.GetByID(ctx, msg.ID)
	assert.NoError(t, err)
	assert.True(t, got.Deleted())
}

func TestMessageRepository_AttachmentPreload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	roomRepo := NewRoomRepository(db)
	attRepo := NewAttachmentRepository(db)
	ctx := context.Background()

	room := &models.Room{Kind: models.RoomDirect, RoomKey: models.DirectRoomKey(1, 2)}
	_, err := roomRepo.CreateIdempotent(ctx, room)
	require.NoError(t, err)

	att := &models.Attachment{
		Category:     models.CategoryImage,
		StorageKey:   "abc/master.jpg",
		Backend:      "local",
		OriginalName: "cat.jpg",
		SizeBytes:    1234,
		MimeType:     "image/jpeg",
		UploadedBy:   1,
	}
	require.NoError(t, attRepo.Create(ctx, att))

	msg := &models.Message{
		RoomID:            room.ID,
		SenderID:          1,
		SenderDisplayName: "Ana",
		AttachmentID:      &att.ID,
	}
	require.NoError(t, repo.Create(ctx, msg))

	page, err := repo.ListBefore(ctx, room.ID, nil, 0, 10)
	assert.NoError(t, err)
	require.Len(t, page, 1)
	require.NotNil(t, page[0].Attachment)
	assert.Equal(t, models.CategoryImage, page[0].Attachment.Category)
}
