package controllers

import (
	"net/http"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/config"
	"github.com/eduardohgo/pry-lapape/internals/middleware"
	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/throttle"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Mailer is the fire-and-forget notification contract. Controllers call it
// from goroutines; delivery failures never fail the triggering operation.
type Mailer interface {
	SendVerificationCode(toEmail, code string) error
	SendLoginCode(toEmail, code string) error
	SendResetCode(toEmail, code string) error
	SendVerifiedNotice(toEmail, nombre string) error
}

// AuthController implements the authentication state machine: registration,
// verification, the multi-step login protocol, logout, login-method
// configuration and password recovery.
type AuthController struct {
	Store    *store.Store
	Mailer   Mailer
	Tokens   *utils.TokenManager
	Throttle throttle.Config
	Cfg      *config.Config
	Logger   *zap.Logger
}

// NewAuthController wires the controller dependencies.
func NewAuthController(st *store.Store, mailer Mailer, tokens *utils.TokenManager, th throttle.Config, cfg *config.Config, logger *zap.Logger) *AuthController {
	return &AuthController{
		Store:    st,
		Mailer:   mailer,
		Tokens:   tokens,
		Throttle: th,
		Cfg:      cfg,
		Logger:   logger,
	}
}

func (a *AuthController) serverError(c *gin.Context, msg string, err error) {
	a.Logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
}

// loginResult is the payload every successful authentication path returns.
type loginResult struct {
	Token            string    `json:"token"`
	ExpiresAt        time.Time `json:"expiresAt"`
	ExpiresInSeconds int       `json:"expiresInSeconds"`
}

// finalizeLogin is the shared terminal step for all successful paths: prune
// expired sessions, mint a token, record the session with client metadata,
// stamp last-login and persist.
func finalizeLogin(c *gin.Context, st *store.Store, tokens *utils.TokenManager, user *models.User) (*loginResult, error) {
	now := time.Now()
	user.ClearExpiredSessions(now)

	token, expiresAt, err := tokens.Sign(user)
	if err != nil {
		return nil, err
	}
	tokenHash, err := utils.HashSessionToken(token)
	if err != nil {
		return nil, err
	}

	userAgent := c.Request.UserAgent()
	if userAgent == "" {
		userAgent = "unknown"
	}
	user.Sessions = append(user.Sessions, models.Session{
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		UserAgent: userAgent,
		IPAddress: c.ClientIP(),
		CreatedAt: now,
	})
	user.LastLoginAt = &now

	if err := st.Save(c.Request.Context(), user); err != nil {
		return nil, err
	}

	return &loginResult{
		Token:            token,
		ExpiresAt:        expiresAt,
		ExpiresInSeconds: int(time.Until(expiresAt).Round(time.Second).Seconds()),
	}, nil
}

// contextUser pulls the account attached by RequireAuth.
func contextUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
