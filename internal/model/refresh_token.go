package model

import "time"

// RefreshToken is one entry in the active refresh-token set. Presence of
// the row is what makes a refresh token live: a token whose jti has no
// row is invalid no matter how its signature checks out.
type RefreshToken struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	JTI       string    `json:"jti" gorm:"uniqueIndex;not null"`
	ClientID  string    `json:"client_id" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }
