package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgotPasswordAnswersUniformly(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified("Ana", "ana@example.com")

	blockedEmail := "bloqueada@example.com"
	env.registerVerified("Bea", blockedEmail)
	blocked := env.user(blockedEmail)
	until := time.Now().Add(30 * time.Minute)
	blocked.ResetBlockedUntil = &until
	env.save(blocked)

	payloads := []gin.H{
		{"email": "not-an-email"},
		{"email": "nadie@example.com"},
		{"email": "ana@example.com"},
		{"email": blockedEmail},
	}
	var bodies []string
	for _, p := range payloads {
		w := env.do(http.MethodPost, "/auth/forgot-password", p, "")
		require.Equal(t, http.StatusOK, w.Code)
		bodies = append(bodies, w.Body.String())
	}
	for _, body := range bodies[1:] {
		assert.JSONEq(t, bodies[0], body)
	}

	// Only the real, unblocked account got a code.
	env.mailer.takeResetCode(t, "ana@example.com")
	assert.Equal(t, 1, env.mailer.resetSentCount())
}

func TestResetPasswordRevokesEverySession(t *testing.T) {
	env := newTestEnv(t)
	email := "ana@example.com"
	env.registerVerified("Ana", email)
	first := env.login2FA(email)
	second := env.login2FA(email)

	w := env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)
	code := env.mailer.takeResetCode(t, email)

	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "weak",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Datos inválidos", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": "000000", "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Código incorrecto", decode(t, w)["error"])

	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Contraseña actualizada", decode(t, w)["message"])

	// Both outstanding sessions are gone.
	for _, tok := range []string{first, second} {
		w := env.do(http.MethodGet, "/auth/me", nil, tok)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	// The code was consumed with the change.
	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Solicitud inválida", decode(t, w)["error"])

	// Old password is dead, the new one goes through the normal flow.
	w = env.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": testPassword}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/auth/login", gin.H{"email": email, "password": "Nueva#Clave9"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2fa", decode(t, w)["stage"])
}

func TestResetPasswordExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	email := "ana@example.com"
	env.registerVerified("Ana", email)

	w := env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)
	code := env.mailer.takeResetCode(t, email)

	user := env.user(email)
	past := time.Now().Add(-time.Minute)
	user.ResetOTPExp = &past
	env.save(user)

	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "El código ha expirado", decode(t, w)["error"])
}

func TestForgotPasswordWindowArmsSilentBlock(t *testing.T) {
	env := newTestEnv(t)
	email := "ana@example.com"
	env.registerVerified("Ana", email)

	for i := 0; i < 3; i++ {
		w := env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
		require.Equal(t, http.StatusOK, w.Code)
		env.mailer.takeResetCode(t, email)
	}
	require.Equal(t, 3, env.mailer.resetSentCount())
	hashBefore := env.user(email).ResetOTPHash

	// The fourth request inside the window arms the block but still answers
	// with the uniform acknowledgement and issues no code.
	w := env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)

	user := env.user(email)
	require.NotNil(t, user.ResetBlockedUntil)
	assert.True(t, user.ResetBlockedUntil.After(time.Now()))
	assert.Equal(t, hashBefore, user.ResetOTPHash)
	assert.Equal(t, 3, env.mailer.resetSentCount())

	// While blocked, further requests do not even touch the counters.
	attemptsBefore := user.ResetAttempts
	w = env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, attemptsBefore, env.user(email).ResetAttempts)
}

func TestResetPasswordDailyCap(t *testing.T) {
	env := newTestEnv(t)
	email := "ana@example.com"
	env.registerVerified("Ana", email)

	now := time.Now()
	user := env.user(email)
	user.PasswordChangesCount = 3
	user.PasswordChangesDate = &now
	env.save(user)

	w := env.do(http.MethodPost, "/auth/forgot-password", gin.H{"email": email}, "")
	require.Equal(t, http.StatusOK, w.Code)
	code := env.mailer.takeResetCode(t, email)

	// A valid code proves mailbox control, so this rejection may be explicit.
	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["tooManyPasswordChanges"])
	assert.Equal(t, float64(3), body["limit"])

	// The cap did not consume the code, and a new calendar day resets it.
	user = env.user(email)
	yesterday := now.Add(-24 * time.Hour)
	user.PasswordChangesDate = &yesterday
	env.save(user)

	w = env.do(http.MethodPost, "/auth/reset-password", gin.H{
		"email": email, "code": code, "newPassword": "Nueva#Clave9",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	user = env.user(email)
	assert.Equal(t, 1, user.PasswordChangesCount)
}
