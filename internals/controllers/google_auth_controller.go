package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/config"
	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const googleTimeout = 10 * time.Second

// GoogleAuthController handles the two Google entry points: the ID-token
// assertion flow used by the frontend, and the classic consent-redirect flow.
// Both end in the same upsert + finalize-login terminal step.
type GoogleAuthController struct {
	Store  *store.Store
	Tokens *utils.TokenManager
	OAuth  *oauth2.Config
	Logger *zap.Logger

	clientID string
	// validate is swappable in tests; defaults to idtoken.Validate.
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

// NewGoogleAuthController builds the controller; the oauth2 config is
// constructed once at startup.
func NewGoogleAuthController(st *store.Store, tokens *utils.TokenManager, gcfg config.GoogleConfig, logger *zap.Logger) *GoogleAuthController {
	return &GoogleAuthController{
		Store:  st,
		Tokens: tokens,
		OAuth: &oauth2.Config{
			ClientID:     gcfg.ClientID,
			ClientSecret: gcfg.ClientSecret,
			RedirectURL:  gcfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		Logger:   logger,
		clientID: gcfg.ClientID,
		validate: idtoken.Validate,
	}
}

func (g *GoogleAuthController) configured(c *gin.Context) bool {
	if g.clientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Login con Google no está configurado"})
		return false
	}
	return true
}

// LoginWithToken accepts a Google ID-token assertion, verifies it against
// Google's keys and logs the mapped account in.
func (g *GoogleAuthController) LoginWithToken(c *gin.Context) {
	if !g.configured(c) {
		return
	}

	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IDToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Falta el token de Google"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), googleTimeout)
	defer cancel()

	payload, err := g.validate(ctx, body.IDToken, g.clientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token de Google inválido"})
		return
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token de Google inválido"})
		return
	}
	name, _ := payload.Claims["name"].(string)
	if name == "" {
		name, _ = payload.Claims["given_name"].(string)
	}
	avatar, _ := payload.Claims["picture"].(string)
	emailVerified, _ := payload.Claims["email_verified"].(bool)

	g.completeLogin(c, googleIdentity{
		Email:         email,
		Name:          name,
		Subject:       payload.Subject,
		AvatarURL:     avatar,
		EmailVerified: emailVerified,
	})
}

// Login starts the consent-redirect flow.
func (g *GoogleAuthController) Login(c *gin.Context) {
	if !g.configured(c) {
		return
	}
	state := uuid.New().String()
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, g.OAuth.AuthCodeURL(state))
}

// Callback finishes the consent-redirect flow: state check, code exchange,
// userinfo fetch, then the same account mapping as the assertion flow.
func (g *GoogleAuthController) Callback(c *gin.Context) {
	if !g.configured(c) {
		return
	}

	state, err := c.Cookie("oauth_state")
	if err != nil || state == "" || c.Query("state") != state {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Estado de OAuth inválido"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), googleTimeout)
	defer cancel()

	token, err := g.OAuth.Exchange(ctx, c.Query("code"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token de Google inválido"})
		return
	}

	resp, err := g.OAuth.Client(ctx, token).Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		g.Logger.Error("google userinfo fetch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
		return
	}
	defer resp.Body.Close()

	var info struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil || info.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token de Google inválido"})
		return
	}

	g.completeLogin(c, googleIdentity{
		Email:         info.Email,
		Name:          info.Name,
		Subject:       info.ID,
		AvatarURL:     info.Picture,
		EmailVerified: info.VerifiedEmail,
	})
}

type googleIdentity struct {
	Email         string
	Name          string
	Subject       string
	AvatarURL     string
	EmailVerified bool
}

// completeLogin maps a verified Google identity onto the local account model
// and finalizes login through the shared terminal step.
func (g *GoogleAuthController) completeLogin(c *gin.Context, id googleIdentity) {
	email := models.NormalizeEmail(id.Email)
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	user, err := g.Store.FindByEmail(c.Request.Context(), email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Google already verified the mailbox; the account gets a random
		// unusable password and the password-only method.
		passwordHash, hashErr := utils.HashSecret(uuid.New().String())
		if hashErr != nil {
			g.serverError(c, "failed to hash placeholder password", hashErr)
			return
		}
		user = &models.User{
			Nombre:       name,
			Email:        email,
			PasswordHash: passwordHash,
			Role:         models.RoleCliente,
			Provider:     models.ProviderGoogle,
			ProviderID:   id.Subject,
			AvatarURL:    id.AvatarURL,
			IsVerified:   true,
			LoginMethod:  models.MethodPasswordOnly,
		}
		if err := g.Store.Create(c.Request.Context(), user); err != nil {
			g.serverError(c, "failed to create google account", err)
			return
		}

	case err != nil:
		g.serverError(c, "google login lookup failed", err)
		return

	default:
		// Backfill linkage without overwriting anything already set.
		if user.Provider == "" {
			user.Provider = models.ProviderLocal
		}
		if user.ProviderID == "" {
			user.ProviderID = id.Subject
		}
		if !user.IsVerified && id.EmailVerified {
			user.IsVerified = true
		}
		if user.AvatarURL == "" && id.AvatarURL != "" {
			user.AvatarURL = id.AvatarURL
		}
		if err := g.Store.Save(c.Request.Context(), user); err != nil {
			g.serverError(c, "failed to persist google linkage", err)
			return
		}
	}

	result, err := finalizeLogin(c, g.Store, g.Tokens, user)
	if err != nil {
		g.serverError(c, "failed to finalize google login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"token":            result.Token,
		"expiresAt":        result.ExpiresAt,
		"expiresInSeconds": result.ExpiresInSeconds,
		"user":             user.Public(),
	})
}

func (g *GoogleAuthController) serverError(c *gin.Context, msg string, err error) {
	g.Logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno"})
}
