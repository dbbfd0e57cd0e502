package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/rangda/core"
	"github.com/layer-3/rangda/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
		TokenID string `json:"token_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	challenge, err := h.authService.RequestChallenge(req.Address, req.TokenID)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address or token id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    challenge.Message,
		"nonce":      challenge.Nonce,
		"expires_at": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		TokenID   string `json:"token_id" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Address, req.TokenID, req.Message, req.Signature)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Authentication failed"

		// Map specific errors to appropriate status codes
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid request"
		case errors.Is(err, core.ErrChallengeExpired):
			statusCode = http.StatusBadRequest
			errorMsg = "Challenge expired or already used"
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrNotOwner):
			statusCode = http.StatusForbidden
			errorMsg = "Address does not own this token"
		case errors.Is(err, core.ErrOracleUnavailable):
			statusCode = http.StatusServiceUnavailable
			errorMsg = "Ownership check unavailable, try again later"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credential":   result.RawCredential,
		"token_type":   "Bearer",
		"expires_in":   int(time.Until(result.Credential.ExpiresAt).Seconds()),
		"session_id":   result.SessionID,
		"owned_tokens": result.OwnedTokens,
		"traits":       traitsPayload(result.Traits),
	})
}

// Refresh rotates a credential that is inside its refresh window
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		Credential string `json:"credential" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	raw, cred, err := h.authService.Rotate(c.Request.Context(), req.Credential)
	if err != nil {
		if errors.Is(err, core.ErrCredentialInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Credential not eligible for refresh"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"credential": raw,
		"token_type": "Bearer",
		"expires_in": int(time.Until(cred.ExpiresAt).Seconds()),
	})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		Credential string `json:"credential" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.Credential); err != nil {
		// An already-dead credential means there is nothing left to revoke.
		if errors.Is(err, core.ErrCredentialInvalid) {
			c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ChatHandlers contains HTTP handlers for the authenticated persona API
type ChatHandlers struct {
	authService *service.AuthService
	chatService *service.ChatService
}

// NewChatHandlers creates new chat handlers
func NewChatHandlers(authService *service.AuthService, chatService *service.ChatService) *ChatHandlers {
	return &ChatHandlers{
		authService: authService,
		chatService: chatService,
	}
}

// Chat sends a message to the active persona and returns its reply
func (h *ChatHandlers) Chat(c *gin.Context) {
	cred, ok := credentialFrom(c)
	if !ok {
		return
	}
	if !cred.HasPermission(core.PermissionChat) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Credential lacks chat permission"})
		return
	}

	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	reply, err := h.chatService.Chat(c.Request.Context(), cred.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Message must not be empty"})
		case errors.Is(err, core.ErrSessionNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "Persona is unavailable, try again"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

// Switch changes the session's active persona to another owned token
func (h *ChatHandlers) Switch(c *gin.Context) {
	cred, ok := credentialFrom(c)
	if !ok {
		return
	}
	if !cred.HasPermission(core.PermissionSwitch) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Credential lacks switch permission"})
		return
	}

	var req struct {
		TokenID string `json:"token_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	descriptor, err := h.authService.SwitchActiveToken(c.Request.Context(), cred.SessionID, req.TokenID)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token id"})
		case errors.Is(err, core.ErrNotOwned):
			c.JSON(http.StatusForbidden, gin.H{"error": "Token is not in the session's owned set"})
		case errors.Is(err, core.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many persona switches, slow down"})
		case errors.Is(err, core.ErrSessionNotFound):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to switch persona"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"traits": traitsPayload(descriptor)})
}

// Me returns information about the authenticated session
func (h *ChatHandlers) Me(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":      session.Address,
		"session_id":   session.ID,
		"active_token": session.ActiveToken,
		"owned_tokens": session.OwnedTokens,
		"expires_at":   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Traits returns the active persona's trait descriptor
func (h *ChatHandlers) Traits(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{"traits": traitsPayload(session.Traits)})
}

// History returns the session's conversation window
func (h *ChatHandlers) History(c *gin.Context) {
	cred, ok := credentialFrom(c)
	if !ok {
		return
	}

	messages, err := h.chatService.History(cred.SessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		entry := gin.H{
			"type":    m.Type,
			"content": m.Content,
			"at":      m.At.UTC().Format(time.RFC3339),
		}
		if m.Type == core.MessageTypeSwitch {
			entry["from"] = m.From
			entry["to"] = m.To
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{"messages": out})
}

func traitsPayload(d *core.TraitDescriptor) gin.H {
	if d == nil {
		return nil
	}
	return gin.H{
		"token_id":    d.TokenID,
		"personality": d.Personality,
		"style":       d.Style,
		"expertise":   d.Expertise,
		"rarity":      d.Rarity,
		"modifiers": gin.H{
			"temperature": d.Modifiers.Temperature,
			"verbosity":   d.Modifiers.Verbosity,
			"humor":       d.Modifiers.Humor,
			"formality":   d.Modifiers.Formality,
			"energy":      d.Modifiers.Energy,
		},
	}
}

func credentialFrom(c *gin.Context) (*core.Credential, bool) {
	v, exists := c.Get(contextKeyCredential)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Credential not found in context"})
		return nil, false
	}
	return v.(*core.Credential), true
}

func sessionFrom(c *gin.Context) (*core.Session, bool) {
	v, exists := c.Get(contextKeySession)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return nil, false
	}
	return v.(*core.Session), true
}
