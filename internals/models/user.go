package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the closed RBAC set. It travels uppercase in tokens and profile
// views; the API boundary accepts either the "rol" or "role" spelling.
type Role string

const (
	RoleCliente    Role = "CLIENTE"
	RoleTrabajador Role = "TRABAJADOR"
	RoleDueno      Role = "DUENO"
	RoleAdmin      Role = "ADMIN"
)

// ValidRole reports whether s names a role from the closed set, in any case.
func ValidRole(s string) bool {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleCliente, RoleTrabajador, RoleDueno, RoleAdmin:
		return true
	}
	return false
}

// NormalizeRole uppercases s and falls back to CLIENTE when empty.
func NormalizeRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RoleCliente
	}
	return Role(s)
}

// LoginMethod selects how login continues after the password check.
// Exactly one method is active per account; the old twoFAEnabled boolean is
// derived from it instead of being stored alongside.
type LoginMethod string

const (
	MethodPasswordOnly   LoginMethod = "PASSWORD_ONLY"
	MethodPassword2FA    LoginMethod = "PASSWORD_2FA"
	MethodPasswordSecret LoginMethod = "PASSWORD_SECRET"
)

// ValidLoginMethod reports whether s is one of the three login methods.
func ValidLoginMethod(s string) bool {
	switch LoginMethod(s) {
	case MethodPasswordOnly, MethodPassword2FA, MethodPasswordSecret:
		return true
	}
	return false
}

// Identity providers.
const (
	ProviderLocal  = "LOCAL"
	ProviderGoogle = "GOOGLE"
)

// User is one account record. It owns its Sessions and carries every
// per-account secret, counter and timestamp the auth flows need; callers load
// the whole record, mutate it and persist it back through store.Store.
type User struct {
	gorm.Model
	Nombre       string `gorm:"column:nombre"`
	Email        string `gorm:"column:email;uniqueIndex"`
	PasswordHash string `gorm:"column:password_hash"`
	Role         Role   `gorm:"column:role;default:CLIENTE"`

	// Social login linkage
	Provider   string `gorm:"column:provider;default:LOCAL"`
	ProviderID string `gorm:"column:provider_id"`
	AvatarURL  string `gorm:"column:avatar_url"`

	// Email verification
	IsVerified        bool       `gorm:"column:is_verified;default:false"`
	VerifyCodeHash    string     `gorm:"column:verify_code_hash"`
	VerifyCodeExpires *time.Time `gorm:"column:verify_code_expires"`

	// Login configuration
	LoginMethod      LoginMethod `gorm:"column:login_method;default:PASSWORD_2FA"`
	SecretQuestion   string      `gorm:"column:secret_question"`
	SecretAnswerHash string      `gorm:"column:secret_answer_hash"`

	// Outstanding login OTP (only while a 2FA login is in flight)
	TwoFAHash string     `gorm:"column:two_fa_hash"`
	TwoFAExp  *time.Time `gorm:"column:two_fa_exp"`

	// Outstanding password-reset OTP
	ResetOTPHash string     `gorm:"column:reset_otp_hash"`
	ResetOTPExp  *time.Time `gorm:"column:reset_otp_exp"`

	// Reset-request throttling
	ResetAttempts      int        `gorm:"column:reset_attempts;default:0"`
	ResetLastAttemptAt *time.Time `gorm:"column:reset_last_attempt_at"`
	ResetBlockedUntil  *time.Time `gorm:"column:reset_blocked_until"`

	// Failed-login throttling
	FailedLoginAttempts int        `gorm:"column:failed_login_attempts;default:0"`
	LockUntil           *time.Time `gorm:"column:lock_until"`

	// Daily password-change cap
	PasswordChangesCount int        `gorm:"column:password_changes_count;default:0"`
	PasswordChangesDate  *time.Time `gorm:"column:password_changes_date"`

	LastLoginAt *time.Time `gorm:"column:last_login_at"`
	Sessions    []Session  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// ResolveLoginMethod returns the active login method, defaulting to
// PASSWORD_2FA when the stored value is missing or unknown (the registration
// default).
func (u *User) ResolveLoginMethod() LoginMethod {
	if ValidLoginMethod(string(u.LoginMethod)) {
		return u.LoginMethod
	}
	return MethodPassword2FA
}

// TwoFAEnabled is derived from the login method; there is no separate flag to
// keep in sync.
func (u *User) TwoFAEnabled() bool {
	return u.ResolveLoginMethod() == MethodPassword2FA
}

// HasSecretQuestion reports whether the secret-question method is usable:
// both the question text and an answer hash must be present.
func (u *User) HasSecretQuestion() bool {
	return strings.TrimSpace(u.SecretQuestion) != "" && u.SecretAnswerHash != ""
}

// ClearExpiredSessions drops sessions whose expiry is not after now and
// reports whether anything was removed.
func (u *User) ClearExpiredSessions(now time.Time) bool {
	if len(u.Sessions) == 0 {
		return false
	}
	active := u.Sessions[:0]
	for _, s := range u.Sessions {
		if s.ExpiresAt.After(now) {
			active = append(active, s)
		}
	}
	changed := len(active) != len(u.Sessions)
	u.Sessions = active
	return changed
}

// ClearLoginOTP wipes any outstanding 2FA login code.
func (u *User) ClearLoginOTP() {
	u.TwoFAHash = ""
	u.TwoFAExp = nil
}

// ClearResetOTP wipes any outstanding password-reset code.
func (u *User) ClearResetOTP() {
	u.ResetOTPHash = ""
	u.ResetOTPExp = nil
}

// NormalizeEmail lowercases and trims an email for lookups and writes.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
