package services

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"booktracker/internal/models"
	"booktracker/internal/repositories"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	require.NoError(t, err)
	email := username + "@example.com"
	user := &models.User{Username: username, Email: &email, PasswordHash: string(hash)}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newAccountService(t *testing.T, db *gorm.DB) AccountService {
	t.Helper()
	return NewAccountService(db, repositories.NewUserRepository(db), zap.NewNop())
}

func newLibraryService(t *testing.T, db *gorm.DB) LibraryService {
	t.Helper()
	return NewLibraryService(db, repositories.NewBookRepository(db), repositories.NewLibraryRepository(db), zap.NewNop())
}

func newSharingService(t *testing.T, db *gorm.DB) SharingService {
	t.Helper()
	return NewSharingService(db,
		repositories.NewUserRepository(db),
		repositories.NewLibraryRepository(db),
		repositories.NewShareRepository(db),
		zap.NewNop())
}

func newStatsService(t *testing.T, db *gorm.DB) StatsService {
	t.Helper()
	return NewStatsService(db, repositories.NewLibraryRepository(db), repositories.NewShareRepository(db))
}

func userCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	return n
}
