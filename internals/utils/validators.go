package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsEmail reports whether value looks like an email address. Same shape check
// the frontend applies; uniqueness and deliverability are handled elsewhere.
func IsEmail(value string) bool {
	return emailRe.MatchString(value)
}

// IsStrongPassword enforces the password policy: at least 8 characters with
// an upper-case letter, a lower-case letter, a digit and a symbol.
func IsStrongPassword(value string) bool {
	password := strings.TrimSpace(value)
	if len(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

var (
	scriptRe  = regexp.MustCompile(`(?i)<script[^>]*>[\s\S]*?</script>`)
	tagRe     = regexp.MustCompile(`</?[^>]+(>|$)`)
	controlRe = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
)

// SanitizeText trims free-form input (names, secret questions), strips HTML
// and control characters and caps the length.
func SanitizeText(value string, maxLength int) string {
	clean := strings.TrimSpace(value)
	clean = scriptRe.ReplaceAllString(clean, "")
	clean = tagRe.ReplaceAllString(clean, "")
	clean = controlRe.ReplaceAllString(clean, "")
	if maxLength > 0 && len(clean) > maxLength {
		clean = clean[:maxLength]
	}
	return clean
}
