// internal/session/handler.go
package session

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	apperrors "intake-crm/internal/common/errors"
	"intake-crm/internal/common/logger"

	"github.com/gin-gonic/gin"
)

// ContextUserKey holds the authenticated username on the gin context.
const ContextUserKey = "crmUser"

// WebhookUser is the principal recorded for requests carrying the webhook token.
const WebhookUser = "webhook"

type Config struct {
	AdminUser    string
	AdminPass    string
	WebhookToken string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	config *Config
	store  Store
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store Store, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"component": "crm-auth"})
	return &Handler{
		config: config,
		store:  store,
		errors: apperrors.NewErrorHandler(scoped),
		logger: scoped,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	auth := r.Group("/api/auth")
	auth.POST("/login", h.Login)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", h.Me)
}

// TokenFromRequest reads the token from Authorization (with or without the
// Bearer prefix) or X-CRM-Token.
func TokenFromRequest(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		auth = r.Header.Get("X-CRM-Token")
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing credentials"})
		return
	}

	userOK := secureEqual(req.Username, h.config.AdminUser)
	passOK := secureEqual(req.Password, h.config.AdminPass)
	if !userOK || !passOK {
		h.logger.Warn("Login rejected", map[string]interface{}{"event": "login_failed", "username": req.Username})
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials"})
		return
	}

	sess, err := h.store.Create(c.Request.Context(), req.Username)
	if err != nil {
		h.errors.Respond(c, "login_error", apperrors.NewPersistenceError("creating session", err))
		return
	}

	h.logger.Info("Login succeeded", map[string]interface{}{"event": "login_success", "username": sess.Username})
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     sess.Token,
		"username":  sess.Username,
		"expiresAt": sess.ExpiresAt,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	token := TokenFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing token"})
		return
	}

	if _, err := h.store.Revoke(c.Request.Context(), token); err != nil {
		h.errors.Respond(c, "logout_error", apperrors.NewPersistenceError("revoking session", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

// Me never fails authentication; an absent or stale token reports authenticated=false.
func (h *Handler) Me(c *gin.Context) {
	token := TokenFromRequest(c.Request)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "authenticated": false})
		return
	}

	sess, err := h.store.Verify(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			h.errors.Respond(c, "me_error", apperrors.NewPersistenceError("verifying session", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": false, "authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "authenticated": true, "user": sess})
}

// RequireAuth admits requests carrying a live session token or the static
// webhook token.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			h.errors.Respond(c, "auth_missing", apperrors.NewAuthenticationError("Missing auth token"))
			return
		}

		if h.config.WebhookToken != "" && secureEqual(token, h.config.WebhookToken) {
			c.Set(ContextUserKey, WebhookUser)
			c.Next()
			return
		}

		sess, err := h.store.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				h.errors.Respond(c, "auth_rejected", apperrors.NewAuthenticationError("Invalid or expired token"))
				return
			}
			h.errors.Respond(c, "auth_error", apperrors.NewPersistenceError("verifying session", err))
			return
		}

		c.Set(ContextUserKey, sess.Username)
		c.Next()
	}
}
