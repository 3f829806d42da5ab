package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eduardohgo/pry-lapape/internals/store"
	"github.com/eduardohgo/pry-lapape/internals/throttle"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// forgotAck is the single acknowledgement every forgot-password call gets.
// Invalid email, unknown email, reset-blocked account: all four cases answer
// with this exact body so callers cannot enumerate accounts.
const forgotAck = "Si el correo existe, enviaremos un código"

func forgotResponse(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": forgotAck})
}

// ForgotPassword requests a password-reset code. The response is uniform by
// design; all throttling here is silent.
func (a *AuthController) ForgotPassword(c *gin.Context) {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || !utils.IsEmail(body.Email) {
		forgotResponse(c)
		return
	}

	user, err := a.Store.FindByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.Logger.Error("forgot-password lookup failed", zap.Error(err))
		}
		forgotResponse(c)
		return
	}

	now := time.Now()
	st := throttle.ResetState{
		Attempts:      user.ResetAttempts,
		LastAttemptAt: user.ResetLastAttemptAt,
		BlockedUntil:  user.ResetBlockedUntil,
	}

	if throttle.IsResetBlocked(st, now) {
		forgotResponse(c)
		return
	}

	st, allowed := throttle.RecordResetRequest(a.Throttle, st, now)
	user.ResetAttempts = st.Attempts
	user.ResetLastAttemptAt = st.LastAttemptAt
	user.ResetBlockedUntil = st.BlockedUntil

	if !allowed {
		if err := a.Store.Save(c.Request.Context(), user); err != nil {
			a.Logger.Error("failed to persist reset block", zap.Error(err))
		}
		forgotResponse(c)
		return
	}

	code := utils.Random6()
	hash, err := utils.HashSecret(code)
	if err != nil {
		a.Logger.Error("failed to hash reset code", zap.Error(err))
		forgotResponse(c)
		return
	}
	exp := utils.ExpMinutes(a.Cfg.OTPTTLMinutes)
	user.ResetOTPHash = hash
	user.ResetOTPExp = &exp

	if err := a.Store.Save(c.Request.Context(), user); err != nil {
		a.Logger.Error("failed to persist reset code", zap.Error(err))
		forgotResponse(c)
		return
	}

	go a.Mailer.SendResetCode(user.Email, code)

	forgotResponse(c)
}

// ResetPassword consumes the reset code and sets the new password. A valid
// code proves control of the mailbox, so the daily-cap rejection here is
// allowed to be distinguishable.
func (a *AuthController) ResetPassword(c *gin.Context) {
	var body struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos"})
		return
	}
	code := strings.TrimSpace(body.Code)
	if !utils.IsEmail(body.Email) || code == "" || !utils.IsStrongPassword(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos"})
		return
	}

	user, err := a.Store.FindByEmail(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
			return
		}
		a.serverError(c, "reset-password lookup failed", err)
		return
	}
	if user.ResetOTPHash == "" || user.ResetOTPExp == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}
	if time.Now().After(*user.ResetOTPExp) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "El código ha expirado"})
		return
	}
	if !utils.CompareSecret(code, user.ResetOTPHash) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Código incorrecto"})
		return
	}

	now := time.Now()
	st := throttle.ChangeState{Count: user.PasswordChangesCount, Date: user.PasswordChangesDate}
	st, allowed := throttle.AllowPasswordChange(a.Throttle, st, now)
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":                  "Ya realizaste varios cambios de contraseña hoy. Inténtalo de nuevo más tarde.",
			"tooManyPasswordChanges": true,
			"limit":                  a.Throttle.MaxDailyPasswordChanges,
		})
		return
	}

	passwordHash, err := utils.HashSecret(body.NewPassword)
	if err != nil {
		a.serverError(c, "failed to hash new password", err)
		return
	}

	user.PasswordHash = passwordHash
	user.ClearResetOTP()
	user.ClearLoginOTP()

	// A password reset revokes every session and clears all throttle state.
	user.Sessions = nil
	user.LastLoginAt = nil
	user.ResetAttempts = 0
	user.ResetLastAttemptAt = nil
	user.ResetBlockedUntil = nil
	user.FailedLoginAttempts = 0
	user.LockUntil = nil

	st = throttle.RecordPasswordChange(st, now)
	user.PasswordChangesCount = st.Count
	user.PasswordChangesDate = st.Date

	if err := a.Store.Save(c.Request.Context(), user); err != nil {
		a.serverError(c, "failed to persist password reset", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "Contraseña actualizada"})
}
