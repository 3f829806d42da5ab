package models

import "time"

// PublicUser is the profile view returned by the API. It never carries the
// password hash, any OTP or session hashes, the secret-question text, or raw
// throttling counters.
type PublicUser struct {
	ID                uint       `json:"id"`
	Nombre            string     `json:"nombre"`
	Email             string     `json:"email"`
	Role              string     `json:"role"`
	IsVerified        bool       `json:"isVerified"`
	TwoFAEnabled      bool       `json:"twoFAEnabled"`
	LoginMethod       string     `json:"loginMethod"`
	HasSecretQuestion bool       `json:"hasSecretQuestion"`
	LastLoginAt       *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	Provider          string     `json:"provider"`
	AvatarURL         string     `json:"avatarUrl,omitempty"`
}

// Public builds the profile view for u.
func (u *User) Public() PublicUser {
	provider := u.Provider
	if provider == "" {
		provider = ProviderLocal
	}
	return PublicUser{
		ID:                u.ID,
		Nombre:            u.Nombre,
		Email:             u.Email,
		Role:              string(NormalizeRole(string(u.Role))),
		IsVerified:        u.IsVerified,
		TwoFAEnabled:      u.TwoFAEnabled(),
		LoginMethod:       string(u.ResolveLoginMethod()),
		HasSecretQuestion: u.HasSecretQuestion(),
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
		Provider:          provider,
		AvatarURL:         u.AvatarURL,
	}
}
