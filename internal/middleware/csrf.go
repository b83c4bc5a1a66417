package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// CSRFTokenHeader is the header name for CSRF token
	CSRFTokenHeader = "X-CSRF-Token"
	// CSRFTokenLength is the length of the CSRF token in bytes
	CSRFTokenLength = 32
)

// CSRFToken represents a CSRF token with expiration
type CSRFToken struct {
	Token     string
	ExpiresAt time.Time
}

// CSRFConfig contains configuration for CSRF protection
type CSRFConfig struct {
	TokenDuration time.Duration
}

// CSRFMiddleware issues one token per session and checks it on state-changing requests
type CSRFMiddleware struct {
	config CSRFConfig
	tokens map[string]*CSRFToken // sessionID -> CSRFToken
	mu     sync.RWMutex
}

// NewCSRFMiddleware creates a new CSRF middleware
func NewCSRFMiddleware(config CSRFConfig) *CSRFMiddleware {
	if config.TokenDuration == 0 {
		config.TokenDuration = 24 * time.Hour
	}

	return &CSRFMiddleware{
		config: config,
		tokens: make(map[string]*CSRFToken),
	}
}

// GenerateToken generates a new CSRF token for a session
func (m *CSRFMiddleware) GenerateToken(sessionID string) (string, error) {
	bytes := make([]byte, CSRFTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(bytes)

	m.mu.Lock()
	m.tokens[sessionID] = &CSRFToken{
		Token:     token,
		ExpiresAt: time.Now().Add(m.config.TokenDuration),
	}
	m.mu.Unlock()

	return token, nil
}

// TokenFor returns the session's live token, generating one if needed.
// A live token gets a full lifetime again, so a freshly rendered page
// always carries a token valid for TokenDuration.
func (m *CSRFMiddleware) TokenFor(sessionID string) (string, error) {
	now := time.Now()

	m.mu.Lock()
	if csrfToken, ok := m.tokens[sessionID]; ok && !now.After(csrfToken.ExpiresAt) {
		csrfToken.ExpiresAt = now.Add(m.config.TokenDuration)
		m.mu.Unlock()
		return csrfToken.Token, nil
	}
	m.mu.Unlock()

	return m.GenerateToken(sessionID)
}

// ValidateToken validates a CSRF token for a session
func (m *CSRFMiddleware) ValidateToken(sessionID, token string) bool {
	m.mu.RLock()
	csrfToken, exists := m.tokens[sessionID]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	if time.Now().After(csrfToken.ExpiresAt) {
		m.mu.Lock()
		delete(m.tokens, sessionID)
		m.mu.Unlock()
		return false
	}

	return subtle.ConstantTimeCompare([]byte(csrfToken.Token), []byte(token)) == 1
}

// GetToken retrieves the current CSRF token for a session
func (m *CSRFMiddleware) GetToken(sessionID string) (string, bool) {
	m.mu.RLock()
	csrfToken, exists := m.tokens[sessionID]
	m.mu.RUnlock()

	if !exists || time.Now().After(csrfToken.ExpiresAt) {
		return "", false
	}

	return csrfToken.Token, true
}

// RequireCSRF validates the token header on state-changing requests.
// Must run after Session.
func (m *CSRFMiddleware) RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		sessionID := GetSessionID(c)
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Session not found",
				"code":    "SESSION_NOT_FOUND",
			})
			return
		}

		token := c.GetHeader(CSRFTokenHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Missing CSRF token",
				"code":    "CSRF_TOKEN_MISSING",
			})
			return
		}

		if !m.ValidateToken(sessionID, token) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "Invalid or expired CSRF token",
				"code":    "CSRF_TOKEN_INVALID",
			})
			return
		}

		c.Next()
	}
}

// CleanupExpiredTokens removes expired CSRF tokens
func (m *CSRFMiddleware) CleanupExpiredTokens() int {
	now := time.Now()
	removed := 0

	m.mu.Lock()
	for sessionID, token := range m.tokens {
		if now.After(token.ExpiresAt) {
			delete(m.tokens, sessionID)
			removed++
		}
	}
	m.mu.Unlock()

	return removed
}
