package controllers

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

// Register creates an unverified account and mails its verification code.
// Duplicate email is the one place account existence is revealed on purpose,
// so the client can offer "log in instead".
func (a *AuthController) Register(c *gin.Context) {
	var body struct {
		Nombre   string `json:"nombre"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Rol      string `json:"rol"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}

	nombre := utils.SanitizeText(body.Nombre, 200)
	if nombre == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El nombre es obligatorio"})
		return
	}
	if !utils.IsEmail(body.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Correo inválido"})
		return
	}
	if !utils.IsStrongPassword(body.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "La contraseña no cumple los requisitos de seguridad"})
		return
	}

	// The boundary accepts both spellings; internally there is one role field.
	roleInput := body.Rol
	if roleInput == "" {
		roleInput = body.Role
	}
	if roleInput != "" && !models.ValidRole(roleInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rol inválido"})
		return
	}

	passwordHash, err := utils.HashSecret(body.Password)
	if err != nil {
		a.serverError(c, "failed to hash password", err)
		return
	}

	code := utils.Random6()
	verifyHash, err := utils.HashSecret(code)
	if err != nil {
		a.serverError(c, "failed to hash verification code", err)
		return
	}
	verifyExpires := utils.ExpMinutes(a.Cfg.VerifyCodeTTLMinutes)

	user := &models.User{
		Nombre:            nombre,
		Email:             models.NormalizeEmail(body.Email),
		PasswordHash:      passwordHash,
		Role:              models.NormalizeRole(roleInput),
		Provider:          models.ProviderLocal,
		LoginMethod:       models.MethodPassword2FA,
		VerifyCodeHash:    verifyHash,
		VerifyCodeExpires: &verifyExpires,
	}

	if err := a.Store.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "El correo ya está registrado"})
			return
		}
		a.serverError(c, "failed to create account", err)
		return
	}

	go a.Mailer.SendVerificationCode(user.Email, code)

	c.JSON(http.StatusCreated, gin.H{
		"ok":      true,
		"message": "Registro exitoso. Revisa tu correo para validar la cuenta.",
		"user":    user.Public(),
	})
}

// VerifyEmail consumes the verification code. The code is single-use: it is
// cleared in the same save that flips the verified flag, so a second call
// with the same code fails as invalid.
func (a *AuthController) VerifyEmail(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}

	code := strings.TrimSpace(body.Code)
	if !utils.IsEmail(body.Email) || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}

	user, err := a.Store.FindByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same answer as a wrong code: no account enumeration here.
			c.JSON(http.StatusBadRequest, gin.H{"error": "Código inválido"})
			return
		}
		a.serverError(c, "verify-email lookup failed", err)
		return
	}
	if user.VerifyCodeHash == "" || user.VerifyCodeExpires == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código inválido"})
		return
	}
	if time.Now().After(*user.VerifyCodeExpires) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El código ha expirado"})
		return
	}
	if !utils.CompareSecret(code, user.VerifyCodeHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código incorrecto"})
		return
	}

	user.IsVerified = true
	user.VerifyCodeHash = ""
	user.VerifyCodeExpires = nil

	if err := a.Store.Save(c.Request.Context(), user); err != nil {
		a.serverError(c, "failed to persist verification", err)
		return
	}

	// Best effort: the confirmation notice never fails the operation.
	go func(email, nombre string) {
		if err := a.Mailer.SendVerifiedNotice(email, nombre); err != nil {
			a.Logger.Warn("verified notice delivery failed", zap.String("email", email), zap.Error(err))
		}
	}(user.Email, user.Nombre)

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Correo verificado correctamente"})
}
