package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReadingStatus string

const (
	StatusWishlist         ReadingStatus = "wishlist"
	StatusCurrentlyReading ReadingStatus = "currently_reading"
	StatusCompleted        ReadingStatus = "completed"
)

// Valid reports whether s is one of the three known reading statuses.
func (s ReadingStatus) Valid() bool {
	switch s {
	case StatusWishlist, StatusCurrentlyReading, StatusCompleted:
		return true
	}
	return false
}

// Label returns the human-readable form used in feeds and breakdowns.
func (s ReadingStatus) Label() string {
	switch s {
	case StatusWishlist:
		return "Wishlist"
	case StatusCurrentlyReading:
		return "Currently Reading"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email        *string   `gorm:"size:150;uniqueIndex" json:"email,omitempty"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Book is a shared catalog row; many library entries may reference one book.
// CatalogID is the external catalog key (nullable); when absent, (title, author)
// is the dedup key.
type Book struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CatalogID   *string   `gorm:"size:40;uniqueIndex" json:"catalog_id,omitempty"`
	Title       string    `gorm:"size:150;not null" json:"title"`
	Author      string    `gorm:"size:150;not null" json:"author"`
	Genre       *string   `gorm:"size:100" json:"genre,omitempty"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`
	CoverURL    *string   `gorm:"size:300" json:"cover_url,omitempty"`
	PageCount   *int      `json:"page_count,omitempty"`
}

func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// LibraryEntry ties a user to a book with a reading status. CompletedAt is
// non-nil exactly while Status == StatusCompleted.
type LibraryEntry struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_entries_user_book" json:"user_id"`
	User        User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	BookID      uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_entries_user_book" json:"book_id"`
	Book        Book          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status      ReadingStatus `gorm:"size:30;not null" json:"status"`
	CreatedAt   time.Time     `gorm:"not null" json:"date_added"`
	CompletedAt *time.Time    `json:"date_completed,omitempty"`
}

func (e *LibraryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ShareEvent records one user recommending a book to another, with the sender's
// reading status at share time. Rows are never updated or deleted.
type ShareEvent struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	FromUserID uuid.UUID     `gorm:"type:uuid;not null;index" json:"from_user_id"`
	FromUser   User          `gorm:"foreignKey:FromUserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ToUserID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"to_user_id"`
	ToUser     User          `gorm:"foreignKey:ToUserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	BookID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"book_id"`
	Book       Book          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Status     ReadingStatus `gorm:"size:30;not null" json:"status"`
	CreatedAt  time.Time     `gorm:"not null;index" json:"timestamp"`
}

func (s *ShareEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// AutoMigrate brings the schema up to date for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Book{}, &LibraryEntry{}, &ShareEvent{})
}
