package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"booktracker/internal/auth"
	"booktracker/internal/models"
	"booktracker/internal/services"
)

// Services bundles the application services the HTTP layer depends on.
type Services struct {
	Accounts services.AccountService
	Library  services.LibraryService
	Sharing  services.SharingService
	Stats    services.StatsService
}

type apiHandler struct {
	svc      Services
	sessions *auth.SessionManager
	log      *zap.Logger
}

// RegisterRoutes wires the full endpoint surface onto the router.
func RegisterRoutes(r *gin.Engine, svc Services, sessions *auth.SessionManager, log *zap.Logger) {
	h := &apiHandler{svc: svc, sessions: sessions, log: log}

	// Public endpoints
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.GET("/csrf-token", h.csrfToken)

	// Session-protected endpoints; mutations also require the CSRF token.
	authed := r.Group("", auth.RequireSession(sessions), auth.CSRF())
	authed.GET("/logout", h.logout)
	authed.GET("/current_username", h.currentUsername)
	authed.GET("/all_usernames", h.allUsernames)

	authed.GET("/my_library_books", h.myLibraryBooks)
	authed.POST("/add_book", h.addBook)
	authed.DELETE("/delete_book/:id", h.deleteBook)

	authed.POST("/share_book", h.shareBook)
	authed.GET("/community_feed", h.communityFeed)

	authed.GET("/stats/summary", h.statsSummary)
	authed.GET("/stats/books_over_time", h.statsBooksOverTime)
	authed.GET("/stats/pages_over_time", h.statsPagesOverTime)
	authed.GET("/stats/genres", h.statsGenres)
	authed.GET("/stats/authors", h.statsAuthors)
	authed.GET("/stats/statuses", h.statsStatuses)
}

// ─── Account ──────────────────────────────────────────────────────────────────

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *apiHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, fieldErrs, err := h.svc.Accounts.Register(services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	if fieldErrs != nil && !fieldErrs.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": fieldErrs})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *apiHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.svc.Accounts.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if err := h.sessions.Issue(c, user.ID, user.Username); err != nil {
		h.log.Error("failed to issue session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "username": user.Username})
}

func (h *apiHandler) logout(c *gin.Context) {
	h.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *apiHandler) csrfToken(c *gin.Context) {
	token, err := auth.IssueCSRFToken(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"csrf_token": token})
}

func (h *apiHandler) currentUsername(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": auth.CurrentUsername(c)})
}

func (h *apiHandler) allUsernames(c *gin.Context) {
	usernames, err := h.svc.Accounts.Usernames(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"usernames": usernames})
}

// ─── Library ──────────────────────────────────────────────────────────────────

func (h *apiHandler) myLibraryBooks(c *gin.Context) {
	books, err := h.svc.Library.ListForUser(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load library"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

type addBookRequest struct {
	CatalogID   string `json:"catalog_id"`
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	Genre       string `json:"genre"`
	PageCount   int    `json:"page_count"`
	Status      string `json:"status" binding:"required"`
}

func (h *apiHandler) addBook(c *gin.Context) {
	var req addBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.svc.Library.AddOrUpdateBook(auth.CurrentUserID(c), services.BookAttrs{
		CatalogID:   req.CatalogID,
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		PageCount:   req.PageCount,
	}, models.ReadingStatus(req.Status))
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save book"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func (h *apiHandler) deleteBook(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	err = h.svc.Library.RemoveBook(auth.CurrentUserID(c), entryID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, services.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Book not found in your library."})
	case errors.Is(err, services.ErrNotEntryOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete book"})
	}
}

// ─── Sharing ──────────────────────────────────────────────────────────────────

type shareBookRequest struct {
	EntryID   string   `json:"entry_id" binding:"required,uuid"`
	Usernames []string `json:"usernames" binding:"required,min=1"`
	Status    string   `json:"status" binding:"required"`
}

func (h *apiHandler) shareBook(c *gin.Context) {
	var req shareBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entryID, err := uuid.Parse(req.EntryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}

	fromUserID := auth.CurrentUserID(c)
	messages := make([]string, 0, len(req.Usernames))
	failures := map[string]string{}
	var firstErr error
	for _, username := range req.Usernames {
		msg, err := h.svc.Sharing.Share(fromUserID, entryID, username, models.ReadingStatus(req.Status))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failures[username] = shareErrorMessage(err)
			continue
		}
		messages = append(messages, msg)
	}

	if len(messages) == 0 && firstErr != nil {
		c.JSON(shareErrorStatus(firstErr), gin.H{"success": false, "errors": failures})
		return
	}
	resp := gin.H{"success": true, "messages": messages}
	if len(failures) > 0 {
		resp["errors"] = failures
	}
	c.JSON(http.StatusOK, resp)
}

func shareErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		return "User not found."
	case errors.Is(err, services.ErrSelfShare):
		return "You cannot share with yourself."
	case errors.Is(err, services.ErrEntryNotFound):
		return "Book not found in your library."
	case errors.Is(err, services.ErrInvalidStatus):
		return "Invalid status."
	}
	return "Could not share book."
}

func shareErrorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound), errors.Is(err, services.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSelfShare), errors.Is(err, services.ErrInvalidStatus):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *apiHandler) communityFeed(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	feed, err := h.svc.Sharing.Feed(auth.CurrentUserID(c), page, 10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load feed"})
		return
	}
	c.JSON(http.StatusOK, feed)
}

// ─── Statistics ───────────────────────────────────────────────────────────────

func (h *apiHandler) statsSummary(c *gin.Context) {
	summary, err := h.svc.Stats.Summary(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *apiHandler) statsBooksOverTime(c *gin.Context) {
	rng := services.ParseRange(c.Query("range"))
	series, err := h.svc.Stats.BooksOverTime(auth.CurrentUserID(c), rng)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute series"})
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *apiHandler) statsPagesOverTime(c *gin.Context) {
	rng := services.ParseRange(c.Query("range"))
	series, err := h.svc.Stats.PagesOverTime(auth.CurrentUserID(c), rng)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute series"})
		return
	}
	c.JSON(http.StatusOK, series)
}

func (h *apiHandler) statsGenres(c *gin.Context) {
	counts, err := h.svc.Stats.GenreBreakdown(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute genres"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *apiHandler) statsAuthors(c *gin.Context) {
	counts, err := h.svc.Stats.AuthorBreakdown(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute authors"})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *apiHandler) statsStatuses(c *gin.Context) {
	counts, err := h.svc.Stats.StatusBreakdown(auth.CurrentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute statuses"})
		return
	}
	c.JSON(http.StatusOK, counts)
}
