package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktracker/internal/models"
)

func TestShare(t *testing.T) {
	db := newTestDB(t)
	libSvc := newLibraryService(t, db)
	svc := newSharingService(t, db)
	alice := newTestUser(t, db, "alice")
	newTestUser(t, db, "bobby")

	_, err := libSvc.AddOrUpdateBook(alice.ID, sampleAttrs(), models.StatusCompleted)
	require.NoError(t, err)
	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", alice.ID).Error)

	msg, err := svc.Share(alice.ID, entry.ID, "bobby", models.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, `Shared "Book One" with bobby.`, msg)

	var share models.ShareEvent
	require.NoError(t, db.First(&share, "from_user_id = ?", alice.ID).Error)
	assert.Equal(t, entry.BookID, share.BookID)
	assert.Equal(t, models.StatusCompleted, share.Status)
}

func TestShareUnknownUser(t *testing.T) {
	db := newTestDB(t)
	libSvc := newLibraryService(t, db)
	svc := newSharingService(t, db)
	alice := newTestUser(t, db, "alice")

	_, err := libSvc.AddOrUpdateBook(alice.ID, sampleAttrs(), models.StatusWishlist)
	require.NoError(t, err)
	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", alice.ID).Error)

	_, err = svc.Share(alice.ID, entry.ID, "nobody", models.StatusWishlist)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var n int64
	require.NoError(t, db.Model(&models.ShareEvent{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestShareWithSelf(t *testing.T) {
	db := newTestDB(t)
	libSvc := newLibraryService(t, db)
	svc := newSharingService(t, db)
	alice := newTestUser(t, db, "alice")

	_, err := libSvc.AddOrUpdateBook(alice.ID, sampleAttrs(), models.StatusWishlist)
	require.NoError(t, err)
	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", alice.ID).Error)

	_, err = svc.Share(alice.ID, entry.ID, "alice", models.StatusWishlist)
	assert.ErrorIs(t, err, ErrSelfShare)
}

func TestShareForeignEntry(t *testing.T) {
	db := newTestDB(t)
	libSvc := newLibraryService(t, db)
	svc := newSharingService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bobby")
	newTestUser(t, db, "carol")

	_, err := libSvc.AddOrUpdateBook(alice.ID, sampleAttrs(), models.StatusWishlist)
	require.NoError(t, err)
	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", alice.ID).Error)

	// Bob does not own Alice's entry.
	_, err = svc.Share(bob.ID, entry.ID, "carol", models.StatusWishlist)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = svc.Share(bob.ID, uuid.New(), "carol", models.StatusWishlist)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	var n int64
	require.NoError(t, db.Model(&models.ShareEvent{}).Count(&n).Error)
	assert.EqualValues(t, 0, n)
}

func TestFeedPaginationAndOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newSharingService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bobby")

	book := &models.Book{Title: "Shared Book", Author: "Someone"}
	require.NoError(t, db.Create(book).Error)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		share := &models.ShareEvent{
			FromUserID: alice.ID,
			ToUserID:   bob.ID,
			BookID:     book.ID,
			Status:     models.StatusCompleted,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, db.Create(share).Error)
	}

	// Bob sees shares where he is the recipient.
	page1, err := svc.Feed(bob.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page1.Feed, 10)
	assert.Equal(t, 2, page1.Pages)
	assert.True(t, page1.HasNext)
	assert.False(t, page1.HasPrev)

	// Newest first.
	assert.Equal(t, base.Add(14*time.Hour).Format("2006-01-02 15:04"), page1.Feed[0].Timestamp)
	assert.Equal(t, "alice", page1.Feed[0].FromUsername)
	assert.Equal(t, "bobby", page1.Feed[0].ToUsername)
	assert.Equal(t, "Completed", page1.Feed[0].Status)

	page2, err := svc.Feed(bob.ID, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2.Feed, 5)
	assert.False(t, page2.HasNext)
	assert.True(t, page2.HasPrev)

	// A third user sees nothing.
	carol := newTestUser(t, db, "carol")
	empty, err := svc.Feed(carol.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Feed)
	assert.Equal(t, 0, empty.Pages)
}
