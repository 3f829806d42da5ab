package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ContextUserKey         = "user"
	ContextSessionIndexKey = "sessionIndex"
)

// RequireAuthMiddleware authenticates bearer tokens against the account's
// active session list.
type RequireAuthMiddleware struct {
	Store  *store.Store
	Tokens *utils.TokenManager
	Logger *zap.Logger
}

// NewRequireAuthMiddleware wires the middleware dependencies.
func NewRequireAuthMiddleware(st *store.Store, tokens *utils.TokenManager, logger *zap.Logger) *RequireAuthMiddleware {
	return &RequireAuthMiddleware{Store: st, Tokens: tokens, Logger: logger}
}

// RequireAuth validates the Authorization header, resolves the matching
// session by slow-hash comparison and attaches the account plus the session
// index to the context. Every verification failure answers with the same 401
// body; a signed-but-revoked token is indistinguishable from a malformed one.
func (m *RequireAuthMiddleware) RequireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token requerido"})
		return
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token requerido"})
		return
	}

	claims, err := m.Tokens.Parse(tokenStr)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autorizado"})
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autorizado"})
		return
	}

	user, err := m.Store.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autorizado"})
			return
		}
		m.Logger.Error("session lookup failed", zap.Uint("user_id", userID), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
		return
	}

	now := time.Now()
	pruned := user.ClearExpiredSessions(now)

	sessionIndex := -1
	for i := range user.Sessions {
		if utils.CompareSessionToken(tokenStr, user.Sessions[i].TokenHash) {
			sessionIndex = i
			break
		}
	}

	// Persist the pruning even when the token no longer matches a session.
	if pruned {
		if err := m.Store.Save(c.Request.Context(), user); err != nil {
			m.Logger.Error("failed to persist pruned sessions", zap.Uint("user_id", user.ID), zap.Error(err))
		}
	}

	if sessionIndex == -1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autorizado"})
		return
	}

	c.Set(ContextUserKey, user)
	c.Set(ContextSessionIndexKey, sessionIndex)
	c.Next()
}

// RequireRoles guards a route behind an allow-list of roles. It must run
// after RequireAuth.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[models.NormalizeRole(string(r))] = true
	}
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No autenticado"})
			return
		}
		user := v.(*models.User)
		if !allowed[models.NormalizeRole(string(user.Role))] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No autorizado"})
			return
		}
		c.Next()
	}
}
