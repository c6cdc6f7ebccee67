package model

import "time"

// UsageLog records one validation attempt against a license.
type UsageLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ClientID  string    `json:"client_id" gorm:"index"`
	Action    string    `json:"action"` // "validate", "refresh", etc.
	Outcome   string    `json:"outcome"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Timestamp time.Time `json:"timestamp"`
}

func (UsageLog) TableName() string { return "usage_logs" }
