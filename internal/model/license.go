package model

import (
	"encoding/json"
	"time"
)

// License statuses. A record whose status is active but whose ExpiresAt
// lies in the past is effectively expired; validation treats both the
// same way.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// LicenseRecord is the authoritative row for one client. The registry
// exclusively owns these; nothing else writes them.
type LicenseRecord struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	ClientID     string    `json:"client_id" gorm:"uniqueIndex;not null"`
	Plan         string    `json:"plan" gorm:"not null"`
	Status       string    `json:"status" gorm:"not null;default:'active'"`
	Modules      string    `json:"-" gorm:"column:modules"` // JSON-encoded list
	Token        string    `json:"token,omitempty"`
	CompanyName  string    `json:"company_name"`
	ContactEmail string    `json:"contact_email"`
	IssuedAt     time.Time `json:"issued_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	UsageCount   int64     `json:"usage_count"`
	LastCheck    time.Time `json:"last_check"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (LicenseRecord) TableName() string { return "license_records" }

// ModuleList decodes the stored module set. A corrupt or empty column
// yields an empty list; modules are opaque names and an unreadable set
// simply grants nothing.
func (r *LicenseRecord) ModuleList() []string {
	if r.Modules == "" {
		return []string{}
	}
	var modules []string
	if err := json.Unmarshal([]byte(r.Modules), &modules); err != nil {
		return []string{}
	}
	return modules
}

// SetModules stores the module set, preserving order.
func (r *LicenseRecord) SetModules(modules []string) {
	if modules == nil {
		modules = []string{}
	}
	b, _ := json.Marshal(modules)
	r.Modules = string(b)
}

// Expired reports whether the record's stored expiry has passed.
func (r *LicenseRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Info returns the non-secret view served by the info endpoint: no
// token, no internal row id.
func (r *LicenseRecord) Info() map[string]interface{} {
	return map[string]interface{}{
		"client_id":     r.ClientID,
		"plan":          r.Plan,
		"status":        r.Status,
		"modules":       r.ModuleList(),
		"company_name":  r.CompanyName,
		"contact_email": r.ContactEmail,
		"issued_at":     r.IssuedAt,
		"expires_at":    r.ExpiresAt,
		"usage_count":   r.UsageCount,
		"last_check":    r.LastCheck,
	}
}
