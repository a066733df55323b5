package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"booktracker/internal/models"
)

// BookRecord is a flattened library entry joined with its book, used by the
// statistics aggregations so they never touch gorm relations directly.
type BookRecord struct {
	Title       string
	Author      string
	Genre       *string
	PageCount   *int
	Status      models.ReadingStatus
	CompletedAt *time.Time
}

type UserRepository interface {
	Create(db *gorm.DB, user *models.User) error
	GetByUsername(db *gorm.DB, username string) (*models.User, error)
	GetByEmail(db *gorm.DB, email string) (*models.User, error)
	ListUsernamesExcluding(db *gorm.DB, excludeID uuid.UUID) ([]string, error)
}

type BookRepository interface {
	Create(db *gorm.DB, book *models.Book) error
	Save(db *gorm.DB, book *models.Book) error
	GetByCatalogID(db *gorm.DB, catalogID string) (*models.Book, error)
	GetByTitleAuthor(db *gorm.DB, title, author string) (*models.Book, error)
}

type LibraryRepository interface {
	Create(db *gorm.DB, entry *models.LibraryEntry) error
	Save(db *gorm.DB, entry *models.LibraryEntry) error
	Delete(db *gorm.DB, id uuid.UUID) error
	GetByID(db *gorm.DB, id uuid.UUID) (*models.LibraryEntry, error)
	GetByUserAndBook(db *gorm.DB, userID, bookID uuid.UUID) (*models.LibraryEntry, error)
	ListByUser(db *gorm.DB, userID uuid.UUID) ([]models.LibraryEntry, error)
	RecordsByUser(db *gorm.DB, userID uuid.UUID) ([]BookRecord, error)
}

type ShareRepository interface {
	Create(db *gorm.DB, share *models.ShareEvent) error
	CountForUser(db *gorm.DB, userID uuid.UUID) (int64, error)
	CountSentBy(db *gorm.DB, userID uuid.UUID) (int64, error)
	ListForUser(db *gorm.DB, userID uuid.UUID, offset, limit int) ([]models.ShareEvent, error)
}

// concrete implementations

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(db *gorm.DB, user *models.User) error {
	if db == nil {
		db = r.db
	}
	return db.Create(user).Error
}

func (r *userRepository) GetByUsername(db *gorm.DB, username string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(db *gorm.DB, email string) (*models.User, error) {
	if db == nil {
		db = r.db
	}
	var user models.User
	if err := db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListUsernamesExcluding(db *gorm.DB, excludeID uuid.UUID) ([]string, error) {
	if db == nil {
		db = r.db
	}
	var usernames []string
	err := db.Model(&models.User{}).
		Where("id <> ?", excludeID).
		Order("username ASC").
		Pluck("username", &usernames).Error
	if err != nil {
		return nil, err
	}
	return usernames, nil
}

type bookRepository struct {
	db *gorm.DB
}

func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Create(book).Error
}

func (r *bookRepository) Save(db *gorm.DB, book *models.Book) error {
	if db == nil {
		db = r.db
	}
	return db.Save(book).Error
}

func (r *bookRepository) GetByCatalogID(db *gorm.DB, catalogID string) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "catalog_id = ?", catalogID).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) GetByTitleAuthor(db *gorm.DB, title, author string) (*models.Book, error) {
	if db == nil {
		db = r.db
	}
	var book models.Book
	if err := db.First(&book, "title = ? AND author = ?", title, author).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

type libraryRepository struct {
	db *gorm.DB
}

func NewLibraryRepository(db *gorm.DB) LibraryRepository {
	return &libraryRepository{db: db}
}

func (r *libraryRepository) Create(db *gorm.DB, entry *models.LibraryEntry) error {
	if db == nil {
		db = r.db
	}
	return db.Create(entry).Error
}

func (r *libraryRepository) Save(db *gorm.DB, entry *models.LibraryEntry) error {
	if db == nil {
		db = r.db
	}
	return db.Save(entry).Error
}

func (r *libraryRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	if db == nil {
		db = r.db
	}
	return db.Delete(&models.LibraryEntry{}, "id = ?", id).Error
}

func (r *libraryRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.LibraryEntry, error) {
	if db == nil {
		db = r.db
	}
	var entry models.LibraryEntry
	if err := db.Preload("Book").First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *libraryRepository) GetByUserAndBook(db *gorm.DB, userID, bookID uuid.UUID) (*models.LibraryEntry, error) {
	if db == nil {
		db = r.db
	}
	var entry models.LibraryEntry
	err := db.Where("user_id = ? AND book_id = ?", userID, bookID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *libraryRepository) ListByUser(db *gorm.DB, userID uuid.UUID) ([]models.LibraryEntry, error) {
	if db == nil {
		db = r.db
	}
	var entries []models.LibraryEntry
	err := db.Preload("Book").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *libraryRepository) RecordsByUser(db *gorm.DB, userID uuid.UUID) ([]BookRecord, error) {
	if db == nil {
		db = r.db
	}
	var records []BookRecord
	err := db.Model(&models.LibraryEntry{}).
		Select("books.title, books.author, books.genre, books.page_count, library_entries.status, library_entries.completed_at").
		Joins("JOIN books ON books.id = library_entries.book_id").
		Where("library_entries.user_id = ?", userID).
		Order("library_entries.created_at ASC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

type shareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) Create(db *gorm.DB, share *models.ShareEvent) error {
	if db == nil {
		db = r.db
	}
	return db.Create(share).Error
}

func (r *shareRepository) CountForUser(db *gorm.DB, userID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.ShareEvent{}).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Count(&count).Error
	return count, err
}

func (r *shareRepository) CountSentBy(db *gorm.DB, userID uuid.UUID) (int64, error) {
	if db == nil {
		db = r.db
	}
	var count int64
	err := db.Model(&models.ShareEvent{}).
		Where("from_user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *shareRepository) ListForUser(db *gorm.DB, userID uuid.UUID, offset, limit int) ([]models.ShareEvent, error) {
	if db == nil {
		db = r.db
	}
	var shares []models.ShareEvent
	err := db.Preload("Book").Preload("FromUser").Preload("ToUser").
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&shares).Error
	if err != nil {
		return nil, err
	}
	return shares, nil
}
