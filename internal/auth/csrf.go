package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CSRFCookie = "csrf_token"
	CSRFHeader = "X-CSRF-Token"

	csrfTokenBytes = 32
)

// IssueCSRFToken generates a random token, sets it as a cookie readable by the
// front-end, and returns it. Double-submit: the client must echo the token in
// the CSRF header on every mutating request.
func IssueCSRFToken(c *gin.Context) (string, error) {
	raw := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CSRFCookie, token, 0, "/", "", false, false)
	return token, nil
}

// csrfSafeMethods are exempt from the token check.
func csrfSafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// CSRF enforces the double-submit check on mutating methods.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if csrfSafe(c.Request.Method) {
			c.Next()
			return
		}
		cookie, err := c.Cookie(CSRFCookie)
		header := c.GetHeader(CSRFHeader)
		if err != nil || cookie == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF token missing or invalid"})
			return
		}
		c.Next()
	}
}
