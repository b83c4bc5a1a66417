package handler

import (
	"net/http"
	"time"

	"github.com/gfearing/fearings-services/internal/estimator"
	"github.com/gfearing/fearings-services/internal/logger"
	"github.com/gfearing/fearings-services/internal/middleware"
	"github.com/gfearing/fearings-services/internal/policy"
	"github.com/gfearing/fearings-services/internal/session"
	"github.com/gin-gonic/gin"
)

// PageData is everything the page template renders
type PageData struct {
	Policy    *policy.Policy
	Snapshot  estimator.Snapshot
	CSRFToken string
	Year      int
}

// PageHandler renders the marketing page
type PageHandler struct {
	policy *policy.Policy
	store  *session.Store
	csrf   *middleware.CSRFMiddleware
}

// NewPageHandler creates a new page handler
func NewPageHandler(p *policy.Policy, store *session.Store, csrf *middleware.CSRFMiddleware) *PageHandler {
	return &PageHandler{
		policy: p,
		store:  store,
		csrf:   csrf,
	}
}

// Index renders the full page with the visitor's current estimate state
func (h *PageHandler) Index(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	token, err := h.csrf.TokenFor(sessionID)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Msg("Failed to generate CSRF token")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.HTML(http.StatusOK, "index.html", PageData{
		Policy:    h.policy,
		Snapshot:  h.store.GetOrCreate(sessionID).Snapshot(),
		CSRFToken: token,
		Year:      time.Now().Year(),
	})
}
