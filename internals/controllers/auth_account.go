package controllers

import (
	"net/http"
	"strings"

	"github.com/eduardohgo/pry-lapape/internals/models"
	"github.com/eduardohgo/pry-lapape/internals/utils"

	"github.com/gin-gonic/gin"
)

// Me returns the caller's profile view.
func (a *AuthController) Me(c *gin.Context) {
	user, ok := contextUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No autenticado"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user.Public()})
}

// UpdateLoginMethod switches the active login method. Selecting the
// secret-question method requires a usable question/answer pair; leaving the
// 2FA method clears any outstanding login code.
func (a *AuthController) UpdateLoginMethod(c *gin.Context) {
	user, ok := contextUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No autenticado"})
		return
	}

	var body struct {
		Method   string `json:"method"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Solicitud inválida"})
		return
	}

	method := models.LoginMethod(strings.ToUpper(strings.TrimSpace(body.Method)))
	if !models.ValidLoginMethod(string(method)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Método de acceso inválido"})
		return
	}

	question := utils.SanitizeText(body.Question, 200)
	answer := strings.TrimSpace(body.Answer)

	if method == models.MethodPasswordSecret {
		finalQuestion := question
		if finalQuestion == "" {
			finalQuestion = strings.TrimSpace(user.SecretQuestion)
		}
		if finalQuestion == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Debes definir la pregunta secreta"})
			return
		}
		if answer == "" && user.SecretAnswerHash == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Debes definir la respuesta secreta"})
			return
		}
		user.SecretQuestion = finalQuestion
		if answer != "" {
			hash, err := utils.HashSecret(answer)
			if err != nil {
				a.serverError(c, "failed to hash secret answer", err)
				return
			}
			user.SecretAnswerHash = hash
		}
	} else {
		// Question/answer may still be (re)configured while another method
		// is active.
		if question != "" {
			user.SecretQuestion = question
		}
		if answer != "" {
			hash, err := utils.HashSecret(answer)
			if err != nil {
				a.serverError(c, "failed to hash secret answer", err)
				return
			}
			user.SecretAnswerHash = hash
		}
	}

	user.LoginMethod = method
	if method != models.MethodPassword2FA {
		user.ClearLoginOTP()
	}

	if err := a.Store.Save(c.Request.Context(), user); err != nil {
		a.serverError(c, "failed to persist login method", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":      true,
		"message": "Método de inicio de sesión actualizado",
		"user":    user.Public(),
	})
}
