package utils

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/eduardohgo/pry-lapape/internals/config"

	"go.uber.org/zap"
)

// EmailManager delivers one-time codes and notices over SMTP. Delivery is
// best-effort: callers fire it from a goroutine and only log failures. When
// no SMTP user is configured the manager runs in dev mode and logs the code
// instead of sending, mirroring the console fallback of the old backend.
type EmailManager struct {
	cfg        config.SMTPConfig
	appName    string
	otpMinutes int
	logger     *zap.Logger
}

// NewEmailManager builds a manager. otpMinutes is only used in the email
// copy; the authoritative expiry lives on the account record.
func NewEmailManager(cfg config.SMTPConfig, appName string, otpMinutes int, logger *zap.Logger) *EmailManager {
	return &EmailManager{cfg: cfg, appName: appName, otpMinutes: otpMinutes, logger: logger}
}

func (em *EmailManager) send(toEmail, subject, body, devLog string) error {
	if em.cfg.User == "" {
		em.logger.Debug("smtp not configured, logging code instead",
			zap.String("to", toEmail),
			zap.String("dev", devLog))
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", em.cfg.From),
		fmt.Sprintf("To: %s", toEmail),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}
	message := strings.Join(headers, "\r\n")

	addr := fmt.Sprintf("%s:%d", em.cfg.Host, em.cfg.Port)
	auth := smtp.PlainAuth("", em.cfg.User, em.cfg.Password, em.cfg.Host)

	if err := smtp.SendMail(addr, auth, em.cfg.From, []string{toEmail}, []byte(message)); err != nil {
		em.logger.Error("email delivery failed",
			zap.String("to", toEmail),
			zap.String("subject", subject),
			zap.Error(err))
		return err
	}
	return nil
}

func (em *EmailManager) otpBody(intro, code string) string {
	return fmt.Sprintf(
		"Hola,\n\n%s\n\nCódigo: %s\n\nEste código expira en %d minutos.\n\nSaludos,\nEl equipo de %s",
		intro, code, em.otpMinutes, em.appName)
}

// SendVerificationCode mails the account-verification code issued at
// registration.
func (em *EmailManager) SendVerificationCode(toEmail, code string) error {
	subject := fmt.Sprintf("Verifica tu cuenta | %s", em.appName)
	body := em.otpBody("Usa este código para verificar tu correo:", code)
	return em.send(toEmail, subject, body, "TOKEN VERIFICACIÓN: "+code)
}

// SendLoginCode mails the 2FA login code.
func (em *EmailManager) SendLoginCode(toEmail, code string) error {
	subject := fmt.Sprintf("Código de acceso (2FA) | %s", em.appName)
	body := em.otpBody("Tu código de acceso (2FA) es:", code)
	return em.send(toEmail, subject, body, "CÓDIGO 2FA: "+code)
}

// SendResetCode mails the password-recovery code.
func (em *EmailManager) SendResetCode(toEmail, code string) error {
	subject := fmt.Sprintf("Código para recuperar contraseña | %s", em.appName)
	body := em.otpBody("Usa este código para recuperar tu contraseña:", code)
	return em.send(toEmail, subject, body, "CÓDIGO RESET: "+code)
}

// SendVerifiedNotice mails the post-verification confirmation. Best-effort:
// verification never fails because of it.
func (em *EmailManager) SendVerifiedNotice(toEmail, nombre string) error {
	subject := fmt.Sprintf("Cuenta verificada | %s", em.appName)
	body := fmt.Sprintf(
		"Hola %s,\n\nTu cuenta fue verificada correctamente. Ya puedes iniciar sesión.\n\nSaludos,\nEl equipo de %s",
		nombre, em.appName)
	return em.send(toEmail, subject, body, "")
}
