package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktracker/internal/models"
)

func sampleAttrs() BookAttrs {
	return BookAttrs{
		CatalogID:   "gid1",
		Title:       "Book One",
		Author:      "Author One",
		Genre:       "Fiction",
		Description: "Desc",
		CoverURL:    "http://example.com/cover.jpg",
		PageCount:   100,
	}
}

func TestAddBookTwiceUpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	user := newTestUser(t, db, "reader")

	msg, err := svc.AddOrUpdateBook(user.ID, sampleAttrs(), models.StatusWishlist)
	require.NoError(t, err)
	assert.Equal(t, MsgBookAdded, msg)

	msg, err = svc.AddOrUpdateBook(user.ID, sampleAttrs(), models.StatusCurrentlyReading)
	require.NoError(t, err)
	assert.Equal(t, MsgBookUpdated, msg)

	var entries []models.LibraryEntry
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusCurrentlyReading, entries[0].Status)

	var books int64
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	assert.EqualValues(t, 1, books)
}

func TestCompletionTimestampSetAndCleared(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	user := newTestUser(t, db, "reader")

	_, err := svc.AddOrUpdateBook(user.ID, sampleAttrs(), models.StatusCompleted)
	require.NoError(t, err)

	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", user.ID).Error)
	require.NotNil(t, entry.CompletedAt)
	assert.WithinDuration(t, time.Now().UTC(), *entry.CompletedAt, time.Minute)

	_, err = svc.AddOrUpdateBook(user.ID, sampleAttrs(), models.StatusCurrentlyReading)
	require.NoError(t, err)

	require.NoError(t, db.First(&entry, "user_id = ?", user.ID).Error)
	assert.Nil(t, entry.CompletedAt)
}

func TestAddBookFillsEmptyFieldsOnly(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bobby")

	sparse := sampleAttrs()
	sparse.Genre = ""
	sparse.PageCount = 0
	_, err := svc.AddOrUpdateBook(alice.ID, sparse, models.StatusWishlist)
	require.NoError(t, err)

	full := sampleAttrs()
	full.Title = "Renamed"
	_, err = svc.AddOrUpdateBook(bob.ID, full, models.StatusWishlist)
	require.NoError(t, err)

	var book models.Book
	require.NoError(t, db.First(&book, "catalog_id = ?", "gid1").Error)
	require.NotNil(t, book.Genre)
	assert.Equal(t, "Fiction", *book.Genre)
	require.NotNil(t, book.PageCount)
	assert.Equal(t, 100, *book.PageCount)
	// Populated fields are never overwritten.
	assert.Equal(t, "Book One", book.Title)
}

func TestDedupByTitleAuthorWithoutCatalogID(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	alice := newTestUser(t, db, "alice")
	bob := newTestUser(t, db, "bobby")

	attrs := sampleAttrs()
	attrs.CatalogID = ""
	_, err := svc.AddOrUpdateBook(alice.ID, attrs, models.StatusWishlist)
	require.NoError(t, err)
	_, err = svc.AddOrUpdateBook(bob.ID, attrs, models.StatusCompleted)
	require.NoError(t, err)

	var books int64
	require.NoError(t, db.Model(&models.Book{}).Count(&books).Error)
	assert.EqualValues(t, 1, books)
}

func TestInvalidStatusRejected(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	user := newTestUser(t, db, "reader")

	_, err := svc.AddOrUpdateBook(user.ID, sampleAttrs(), models.ReadingStatus("reading-ish"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestRemoveBook(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	owner := newTestUser(t, db, "owner")
	other := newTestUser(t, db, "other")

	_, err := svc.AddOrUpdateBook(owner.ID, sampleAttrs(), models.StatusWishlist)
	require.NoError(t, err)
	var entry models.LibraryEntry
	require.NoError(t, db.First(&entry, "user_id = ?", owner.ID).Error)

	assert.ErrorIs(t, svc.RemoveBook(owner.ID, uuid.New()), ErrEntryNotFound)
	assert.ErrorIs(t, svc.RemoveBook(other.ID, entry.ID), ErrNotEntryOwner)

	require.NoError(t, svc.RemoveBook(owner.ID, entry.ID))
	var remaining int64
	require.NoError(t, db.Model(&models.LibraryEntry{}).Where("user_id = ?", owner.ID).Count(&remaining).Error)
	assert.EqualValues(t, 0, remaining)
}

func TestListForUser(t *testing.T) {
	db := newTestDB(t)
	svc := newLibraryService(t, db)
	user := newTestUser(t, db, "reader")

	attrs := sampleAttrs()
	attrs.CoverURL = ""
	_, err := svc.AddOrUpdateBook(user.ID, attrs, models.StatusWishlist)
	require.NoError(t, err)

	views, err := svc.ListForUser(user.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Book One", views[0].Title)
	assert.Equal(t, "gid1", views[0].CatalogID)
	assert.Equal(t, string(models.StatusWishlist), views[0].Status)
	// Books without a cover get the placeholder image.
	assert.Equal(t, placeholderCover, views[0].CoverURL)
	assert.Empty(t, views[0].DateCompleted)
}
