package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"booktracker/internal/models"
	"booktracker/internal/repositories"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrEntryNotFound is returned when a referenced library entry does not exist.
	ErrEntryNotFound = errors.New("library entry not found")

	// ErrNotEntryOwner is returned when a caller acts on another user's entry.
	ErrNotEntryOwner = errors.New("library entry belongs to another user")

	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid reading status")
)

// ─── Messages ─────────────────────────────────────────────────────────────────

const (
	MsgBookAdded   = "Book added to your library!"
	MsgBookUpdated = "Book status updated in your library!"

	// placeholderCover is substituted for books without a cover image.
	placeholderCover = "https://via.placeholder.com/60x90?text=No+Cover"
)

// BookAttrs carries the catalog fields submitted with an add-book request.
// Empty strings and a zero page count mean "unknown".
type BookAttrs struct {
	CatalogID   string
	Title       string
	Author      string
	Genre       string
	Description string
	CoverURL    string
	PageCount   int
}

// EntryView is a library entry flattened with its book for display.
type EntryView struct {
	ID            uuid.UUID `json:"id"`
	CatalogID     string    `json:"catalog_id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Genre         string    `json:"genre"`
	CoverURL      string    `json:"cover_url"`
	Status        string    `json:"status"`
	DateAdded     string    `json:"date_added"`
	DateCompleted string    `json:"date_completed"`
}

// ─── Service Interface ────────────────────────────────────────────────────────

// LibraryService manages a user's book list and reading statuses.
type LibraryService interface {
	// AddOrUpdateBook finds or creates the catalog book, then upserts the
	// caller's entry for it with the given status. Returns a user-facing
	// message saying whether the entry was added or updated.
	AddOrUpdateBook(userID uuid.UUID, attrs BookAttrs, status models.ReadingStatus) (string, error)
	RemoveBook(userID, entryID uuid.UUID) error
	ListForUser(userID uuid.UUID) ([]EntryView, error)
}

type libraryService struct {
	db       *gorm.DB
	bookRepo repositories.BookRepository
	libRepo  repositories.LibraryRepository
	log      *zap.Logger
	now      func() time.Time
}

func NewLibraryService(
	db *gorm.DB,
	bookRepo repositories.BookRepository,
	libRepo repositories.LibraryRepository,
	log *zap.Logger,
) LibraryService {
	return &libraryService{
		db:       db,
		bookRepo: bookRepo,
		libRepo:  libRepo,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ─── Implementation ───────────────────────────────────────────────────────────

func (s *libraryService) AddOrUpdateBook(userID uuid.UUID, attrs BookAttrs, status models.ReadingStatus) (string, error) {
	if !status.Valid() {
		return "", ErrInvalidStatus
	}

	var message string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		book, err := s.findOrCreateBook(tx, attrs)
		if err != nil {
			return err
		}

		entry, err := s.libRepo.GetByUserAndBook(tx, userID, book.ID)
		switch {
		case err == nil:
			message = MsgBookUpdated
			entry.Status = status
			if status == models.StatusCompleted {
				now := s.now()
				entry.CompletedAt = &now
			} else {
				entry.CompletedAt = nil
			}
			return s.libRepo.Save(tx, entry)
		case errors.Is(err, gorm.ErrRecordNotFound):
			message = MsgBookAdded
			entry := &models.LibraryEntry{
				UserID: userID,
				BookID: book.ID,
				Status: status,
			}
			if status == models.StatusCompleted {
				now := s.now()
				entry.CompletedAt = &now
			}
			return s.libRepo.Create(tx, entry)
		default:
			return err
		}
	})
	if err != nil {
		s.log.Error("add book failed", zap.String("user_id", userID.String()), zap.Error(err))
		return "", err
	}

	s.log.Info("library entry written",
		zap.String("user_id", userID.String()),
		zap.String("title", attrs.Title),
		zap.String("status", string(status)))
	return message, nil
}

// findOrCreateBook resolves the catalog book for attrs: by catalog id when
// present, otherwise by (title, author). An existing row only has its empty
// fields filled from attrs; populated fields are never overwritten.
func (s *libraryService) findOrCreateBook(tx *gorm.DB, attrs BookAttrs) (*models.Book, error) {
	var (
		book *models.Book
		err  error
	)
	if attrs.CatalogID != "" {
		book, err = s.bookRepo.GetByCatalogID(tx, attrs.CatalogID)
	} else {
		book, err = s.bookRepo.GetByTitleAuthor(tx, attrs.Title, attrs.Author)
	}
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		book = &models.Book{
			CatalogID:   optString(attrs.CatalogID),
			Title:       attrs.Title,
			Author:      attrs.Author,
			Genre:       optString(attrs.Genre),
			Description: optString(attrs.Description),
			CoverURL:    optString(attrs.CoverURL),
			PageCount:   optInt(attrs.PageCount),
		}
		if err := s.bookRepo.Create(tx, book); err != nil {
			return nil, err
		}
		return book, nil
	}

	updated := false
	if book.Genre == nil && attrs.Genre != "" {
		book.Genre = optString(attrs.Genre)
		updated = true
	}
	if book.Description == nil && attrs.Description != "" {
		book.Description = optString(attrs.Description)
		updated = true
	}
	if book.CoverURL == nil && attrs.CoverURL != "" {
		book.CoverURL = optString(attrs.CoverURL)
		updated = true
	}
	if book.PageCount == nil && attrs.PageCount > 0 {
		book.PageCount = optInt(attrs.PageCount)
		updated = true
	}
	if book.CatalogID == nil && attrs.CatalogID != "" {
		book.CatalogID = optString(attrs.CatalogID)
		updated = true
	}
	if updated {
		if err := s.bookRepo.Save(tx, book); err != nil {
			return nil, err
		}
	}
	return book, nil
}

func (s *libraryService) RemoveBook(userID, entryID uuid.UUID) error {
	entry, err := s.libRepo.GetByID(nil, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	if entry.UserID != userID {
		return ErrNotEntryOwner
	}
	if err := s.libRepo.Delete(nil, entryID); err != nil {
		return err
	}
	s.log.Info("library entry removed",
		zap.String("user_id", userID.String()),
		zap.String("entry_id", entryID.String()))
	return nil
}

func (s *libraryService) ListForUser(userID uuid.UUID) ([]EntryView, error) {
	entries, err := s.libRepo.ListByUser(nil, userID)
	if err != nil {
		return nil, err
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView(e))
	}
	return views, nil
}

func entryView(e models.LibraryEntry) EntryView {
	v := EntryView{
		ID:        e.ID,
		Title:     e.Book.Title,
		Author:    e.Book.Author,
		CoverURL:  placeholderCover,
		Status:    string(e.Status),
		DateAdded: e.CreatedAt.Format(time.RFC3339),
	}
	if e.Book.CatalogID != nil {
		v.CatalogID = *e.Book.CatalogID
	}
	if e.Book.Genre != nil {
		v.Genre = *e.Book.Genre
	}
	if e.Book.CoverURL != nil {
		v.CoverURL = *e.Book.CoverURL
	}
	if e.CompletedAt != nil {
		v.DateCompleted = e.CompletedAt.Format(time.RFC3339)
	}
	return v
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(n int) *int {
	if n <= 0 {
		return nil
	}
	return &n
}
