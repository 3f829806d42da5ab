package models

import "time"

// Session is one issued bearer token, tracked server-side for revocability.
// Only the bcrypt hash of the token is stored; matching a presented token to
// its session requires the slow-hash comparison in utils.
type Session struct {
	ID        uint      `gorm:"primarykey"`
	UserID    uint      `gorm:"column:user_id;index"`
	TokenHash string    `gorm:"column:token_hash"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
	UserAgent string    `gorm:"column:user_agent"`
	IPAddress string    `gorm:"column:ip_address"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
