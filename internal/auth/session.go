// Package auth provides signed-cookie sessions and CSRF protection for the
// HTTP layer. Sessions are stateless JWTs carried in an HttpOnly cookie.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SessionCookie = "session"

	userIDKey   = "auth.user_id"
	usernameKey = "auth.username"
)

var ErrInvalidSession = errors.New("invalid or expired session")

type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies session cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(secret []byte, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: secret, ttl: ttl}
}

// Issue signs a session token for the user and sets it as an HttpOnly cookie.
func (m *SessionManager) Issue(c *gin.Context, userID uuid.UUID, username string) error {
	now := time.Now()
	claims := SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(m.ttl.Seconds()), "/", "", false, true)
	return nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(c *gin.Context) {
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
}

// Verify parses and validates a session token, returning its claims.
func (m *SessionManager) Verify(token string) (*SessionClaims, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSession
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	return &claims, nil
}

// RequireSession rejects requests without a valid session cookie and stores
// the resolved identity on the gin context.
func RequireSession(m *SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		claims, err := m.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(userIDKey, userID)
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's id set by RequireSession.
func CurrentUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(userIDKey)
	userID, _ := id.(uuid.UUID)
	return userID
}

// CurrentUsername returns the authenticated username set by RequireSession.
func CurrentUsername(c *gin.Context) string {
	name, _ := c.Get(usernameKey)
	username, _ := name.(string)
	return username
}
