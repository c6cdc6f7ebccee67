package model

import "time"

// DailyUsage aggregates validation traffic for one day.
type DailyUsage struct {
	Date        time.Time `json:"date"`
	Clients     int       `json:"clients"`
	TotalChecks int       `json:"total_checks"`
}

// LicenseStatistics is the admin dashboard summary.
type LicenseStatistics struct {
	TotalLicenses     int64          `json:"total_licenses"`
	ActiveLicenses    int64          `json:"active_licenses"`
	InactiveLicenses  int64          `json:"inactive_licenses"`
	SuspendedLicenses int64          `json:"suspended_licenses"`
	ExpiredLicenses   int64          `json:"expired_licenses"`
	ExpiringLicenses  int64          `json:"expiring_licenses"` // within 30 days
	LicensesByPlan    map[string]int `json:"licenses_by_plan"`
	TotalChecks       int64          `json:"total_checks"`
	ChecksByOutcome   map[string]int `json:"checks_by_outcome"`
	DailyUsage        []DailyUsage   `json:"daily_usage"`
}
