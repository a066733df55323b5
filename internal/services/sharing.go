package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"booktracker/internal/models"
	"booktracker/internal/repositories"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrSelfShare is returned when a user tries to share a book with themselves.
	ErrSelfShare = errors.New("cannot share a book with yourself")
)

// ─── Feed Types ───────────────────────────────────────────────────────────────

// feedTimeLayout matches the timestamp format the dashboard renders.
const feedTimeLayout = "2006-01-02 15:04"

type FeedItem struct {
	Title        string `json:"title"`
	CoverURL     string `json:"cover_url"`
	Status       string `json:"status"`
	FromUsername string `json:"from_username"`
	ToUsername   string `json:"to_username"`
	Timestamp    string `json:"timestamp"`
	CatalogID    string `json:"catalog_id"`
}

type FeedPage struct {
	Feed    []FeedItem `json:"feed"`
	Page    int        `json:"page"`
	Pages   int        `json:"pages"`
	HasNext bool       `json:"has_next"`
	HasPrev bool       `json:"has_prev"`
}

// ─── Service Interface ────────────────────────────────────────────────────────

// SharingService records share events and serves the community feed.
type SharingService interface {
	// Share creates an immutable share event from the owner of entryID to the
	// named user. Returns a user-facing confirmation message.
	Share(fromUserID, entryID uuid.UUID, toUsername string, status models.ReadingStatus) (string, error)
	Feed(userID uuid.UUID, page, pageSize int) (*FeedPage, error)
}

type sharingService struct {
	db        *gorm.DB
	userRepo  repositories.UserRepository
	libRepo   repositories.LibraryRepository
	shareRepo repositories.ShareRepository
	log       *zap.Logger
}

func NewSharingService(
	db *gorm.DB,
	userRepo repositories.UserRepository,
	libRepo repositories.LibraryRepository,
	shareRepo repositories.ShareRepository,
	log *zap.Logger,
) SharingService {
	return &sharingService{
		db:        db,
		userRepo:  userRepo,
		libRepo:   libRepo,
		shareRepo: shareRepo,
		log:       log,
	}
}

// ─── Implementation ───────────────────────────────────────────────────────────

func (s *sharingService) Share(fromUserID, entryID uuid.UUID, toUsername string, status models.ReadingStatus) (string, error) {
	if !status.Valid() {
		return "", ErrInvalidStatus
	}

	toUser, err := s.userRepo.GetByUsername(nil, toUsername)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	if toUser.ID == fromUserID {
		return "", ErrSelfShare
	}

	entry, err := s.libRepo.GetByID(nil, entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrEntryNotFound
		}
		return "", err
	}
	if entry.UserID != fromUserID {
		// Foreign entries are reported as missing so callers cannot confirm
		// which entry ids exist.
		return "", ErrEntryNotFound
	}

	share := &models.ShareEvent{
		FromUserID: fromUserID,
		ToUserID:   toUser.ID,
		BookID:     entry.BookID,
		Status:     status,
	}
	if err := s.shareRepo.Create(nil, share); err != nil {
		s.log.Error("share failed",
			zap.String("from_user_id", fromUserID.String()),
			zap.String("to_username", toUsername),
			zap.Error(err))
		return "", err
	}

	s.log.Info("book shared",
		zap.String("from_user_id", fromUserID.String()),
		zap.String("to_username", toUsername),
		zap.String("title", entry.Book.Title))
	return fmt.Sprintf("Shared %q with %s.", entry.Book.Title, toUsername), nil
}

func (s *sharingService) Feed(userID uuid.UUID, page, pageSize int) (*FeedPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	total, err := s.shareRepo.CountForUser(nil, userID)
	if err != nil {
		return nil, err
	}
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))

	shares, err := s.shareRepo.ListForUser(nil, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	feed := make([]FeedItem, 0, len(shares))
	for _, sh := range shares {
		item := FeedItem{
			Title:        sh.Book.Title,
			Status:       sh.Status.Label(),
			FromUsername: sh.FromUser.Username,
			ToUsername:   sh.ToUser.Username,
			Timestamp:    sh.CreatedAt.Format(feedTimeLayout),
		}
		if sh.Book.CoverURL != nil {
			item.CoverURL = *sh.Book.CoverURL
		}
		if sh.Book.CatalogID != nil {
			item.CatalogID = *sh.Book.CatalogID
		}
		feed = append(feed, item)
	}

	return &FeedPage{
		Feed:    feed,
		Page:    page,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}, nil
}
