package controllers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/middleware"
	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/throttle"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
)

func (a *AuthController) loginState(user *models.User) throttle.LoginState {
	return throttle.LoginState{FailedAttempts: user.FailedLoginAttempts, LockUntil: user.LockUntil}
}

func applyLoginState(user *models.User, st throttle.LoginState) {
	user.FailedLoginAttempts = st.FailedAttempts
	user.LockUntil = st.LockUntil
}

// LoginStep1 checks the password and branches on the account's login method.
// A nonexistent email answers exactly like a wrong password.
func (a *AuthController) LoginStep1(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !utils.IsEmail(body.Email) || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credenciales inválidas"})
		return
	}

	user, err := a.Store.FindByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Credenciales inválidas"})
			return
		}
		a.serverError(c, "login lookup failed", err)
		return
	}

	now := time.Now()
	if remaining, locked := throttle.LockRemaining(a.loginState(user), now); locked {
		c.JSON(http.StatusLocked, gin.H{
			"error":       "Cuenta bloqueada por intentos fallidos. Intenta de nuevo más tarde.",
			"locked":      true,
			"minutesLeft": int(math.Ceil(remaining.Minutes())),
		})
		return
	}

	if !utils.CompareSecret(body.Password, user.PasswordHash) {
		applyLoginState(user, throttle.RecordFailure(a.Throttle, a.loginState(user), now))
		if err := a.Store.Save(c.Request.Context(), user); err != nil {
			a.serverError(c, "failed to persist login failure", err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credenciales inválidas"})
		return
	}

	applyLoginState(user, throttle.ClearFailures(a.loginState(user)))

	if !user.IsVerified {
		if err := a.Store.Save(c.Request.Context(), user); err != nil {
			a.serverError(c, "failed to persist login state", err)
			return
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "Verifica tu correo antes de continuar",
			"needEmailVerify": true,
		})
		return
	}

	switch user.ResolveLoginMethod() {
	case models.MethodPasswordOnly:
		result, err := finalizeLogin(c, a.Store, a.Tokens, user)
		if err != nil {
			a.serverError(c, "failed to finalize login", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":               true,
			"stage":            "done",
			"token":            result.Token,
			"expiresAt":        result.ExpiresAt,
			"expiresInSeconds": result.ExpiresInSeconds,
			"user":             user.Public(),
		})

	case models.MethodPasswordSecret:
		if !user.HasSecretQuestion() {
			if err := a.Store.Save(c.Request.Context(), user); err != nil {
				a.serverError(c, "failed to persist login state", err)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No hay pregunta secreta configurada para esta cuenta"})
			return
		}
		if err := a.Store.Save(c.Request.Context(), user); err != nil {
			a.serverError(c, "failed to persist login state", err)
			return
		}
		// The question text is only ever revealed here, mid-login, after a
		// correct password.
		c.JSON(http.StatusOK, gin.H{
			"ok":             true,
			"stage":          "secret-question",
			"email":          user.Email,
			"secretQuestion": user.SecretQuestion,
			"user":           user.Public(),
		})

	default: // PASSWORD_2FA
		code := utils.Random6()
		hash, err := utils.HashSecret(code)
		if err != nil {
			a.serverError(c, "failed to hash login code", err)
			return
		}
		// Replacing the hash invalidates any previously issued, unconsumed
		// code for this account.
		exp := utils.ExpMinutes(a.Cfg.OTPTTLMinutes)
		user.TwoFAHash = hash
		user.TwoFAExp = &exp

		if err := a.Store.Save(c.Request.Context(), user); err != nil {
			a.serverError(c, "failed to persist login code", err)
			return
		}

		go a.Mailer.SendLoginCode(user.Email, code)

		c.JSON(http.StatusOK, gin.H{
			"ok":      true,
			"stage":   "2fa",
			"needOtp": true,
			"email":   user.Email,
			"user":    user.Public(),
			"message": "Hemos enviado un código a tu correo",
		})
	}
}

// Verify2FA is step 2 of the email-OTP path. Only valid while the account's
// active method is PASSWORD_2FA.
func (a *AuthController) Verify2FA(c *gin.Context) {
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
			c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
			return
		}
		a.serverError(c, "verify-2fa lookup failed", err)
		return
	}
	if user.ResolveLoginMethod() != models.MethodPassword2FA {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}
	if user.TwoFAHash == "" || user.TwoFAExp == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No hay un código activo"})
		return
	}
	if time.Now().After(*user.TwoFAExp) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El código 2FA ha expirado"})
		return
	}
	if !utils.CompareSecret(code, user.TwoFAHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código 2FA incorrecto"})
		return
	}

	user.ClearLoginOTP()

	result, err := finalizeLogin(c, a.Store, a.Tokens, user)
	if err != nil {
		a.serverError(c, "failed to finalize login", err)
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

// VerifySecretQuestion is step 2 of the secret-question path. The answer is
// compared with the same slow hash as passwords.
func (a *AuthController) VerifySecretQuestion(c *gin.Context) {
	var body struct {
		Email  string `json:"email"`
		Answer string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}
	answer := strings.TrimSpace(body.Answer)
	if !utils.IsEmail(body.Email) || answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}

	user, err := a.Store.FindByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
			return
		}
		a.serverError(c, "verify-secret lookup failed", err)
		return
	}
	if user.ResolveLoginMethod() != models.MethodPasswordSecret {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}
	if !user.HasSecretQuestion() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No hay pregunta secreta activa"})
		return
	}
	if !utils.CompareSecret(answer, user.SecretAnswerHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Respuesta incorrecta"})
		return
	}

	result, err := finalizeLogin(c, a.Store, a.Tokens, user)
	if err != nil {
		a.serverError(c, "failed to finalize login", err)
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

// Logout removes exactly the session the middleware resolved for the
// presented token.
func (a *AuthController) Logout(c *gin.Context) {
	user, ok := contextUser(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se pudo cerrar la sesión"})
		return
	}
	idx, ok := c.Get(middleware.ContextSessionIndexKey)
	sessionIndex, isInt := idx.(int)
	if !ok || !isInt || sessionIndex < 0 || sessionIndex >= len(user.Sessions) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se pudo cerrar la sesión"})
		return
	}

	user.Sessions = append(user.Sessions[:sessionIndex], user.Sessions[sessionIndex+1:]...)
	if err := a.Store.Save(c.Request.Context(), user); err != nil {
		a.serverError(c, "failed to persist logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Sesión cerrada"})
}
