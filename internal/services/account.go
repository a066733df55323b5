package services

import (
	"errors"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"booktracker/internal/models"
	"booktracker/internal/repositories"
)

// ─── Sentinel Errors ──────────────────────────────────────────────────────────

var (
	// ErrInvalidCredentials is returned for unknown usernames and wrong
	// passwords alike, so callers cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrUserNotFound is returned when a referenced user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// ─── Validation ───────────────────────────────────────────────────────────────

// FieldErrors maps a form field name to its accumulated validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Empty reports whether no field collected any message.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

var (
	emailPattern     = regexp.MustCompile(`^[\w.-]+@([\w-]+\.)+[\w-]{2,4}$`)
	lowercasePattern = regexp.MustCompile(`[a-z]`)
	uppercasePattern = regexp.MustCompile(`[A-Z]`)
	digitPattern     = regexp.MustCompile(`\d`)
)

type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// ValidateRegistration applies the format rules for registration input. It is
// a pure function; uniqueness checks against the store happen in Register.
func ValidateRegistration(in RegisterInput) FieldErrors {
	fe := FieldErrors{}

	if in.Username == "" {
		fe.add("username", "Username is required")
	} else if len(in.Username) < 5 {
		fe.add("username", "Username must be at least 5 characters")
	}

	if in.Email == "" {
		fe.add("email", "Email is required")
	} else if !emailPattern.MatchString(in.Email) {
		fe.add("email", "Invalid email address")
	}

	if in.Password == "" {
		fe.add("password", "Password is required")
	} else if len(in.Password) < 6 {
		fe.add("password", "Password must be at least 6 characters")
	}
	if !lowercasePattern.MatchString(in.Password) {
		fe.add("password", "Password must contain a lowercase letter")
	}
	if !uppercasePattern.MatchString(in.Password) {
		fe.add("password", "Password must contain an uppercase letter")
	}
	if !digitPattern.MatchString(in.Password) {
		fe.add("password", "Password must contain a number")
	}

	if in.ConfirmPassword == "" {
		fe.add("confirm_password", "Must confirm password")
	}
	if in.Password != in.ConfirmPassword {
		fe.add("confirm_password", "Passwords do not match")
	}

	return fe
}

// ─── Service Interface ────────────────────────────────────────────────────────

// AccountService owns registration, authentication, and user lookups.
type AccountService interface {
	// Register validates the input and creates the user. A non-empty
	// FieldErrors with a nil error means the input was rejected.
	Register(in RegisterInput) (*models.User, FieldErrors, error)
	Authenticate(username, password string) (*models.User, error)
	// Usernames lists every username except the given user's own, for the
	// share dialog.
	Usernames(excludeID uuid.UUID) ([]string, error)
}

type accountService struct {
	db       *gorm.DB
	userRepo repositories.UserRepository
	log      *zap.Logger
}

func NewAccountService(db *gorm.DB, userRepo repositories.UserRepository, log *zap.Logger) AccountService {
	return &accountService{db: db, userRepo: userRepo, log: log}
}

// ─── Implementation ───────────────────────────────────────────────────────────

func (s *accountService) Register(in RegisterInput) (*models.User, FieldErrors, error) {
	fe := ValidateRegistration(in)

	if in.Username != "" {
		if _, err := s.userRepo.GetByUsername(nil, in.Username); err == nil {
			fe.add("username", "Username already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}
	if in.Email != "" {
		if _, err := s.userRepo.GetByEmail(nil, in.Email); err == nil {
			fe.add("email", "Email already exists")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}

	if !fe.Empty() {
		return nil, fe, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	email := in.Email
	user := &models.User{
		Username:     in.Username,
		Email:        &email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(nil, user); err != nil {
		s.log.Error("register: failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, nil, err
	}

	s.log.Info("registered user", zap.String("username", user.Username), zap.String("user_id", user.ID.String()))
	return user, nil, nil
}

func (s *accountService) Authenticate(username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(nil, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *accountService) Usernames(excludeID uuid.UUID) ([]string, error) {
	return s.userRepo.ListUsernamesExcluding(nil, excludeID)
}
