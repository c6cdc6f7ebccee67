package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// PlanConfig describes a named license tier: how long a license issued
// under it stays valid and which product modules it unlocks.
type PlanConfig struct {
	Duration string   `json:"duration"` // e.g. "14d", "1y"
	Modules  []string `json:"modules"`
}

// Config carries everything the process needs at startup. The core
// components receive it by value from main; nothing reads the
// environment after Load returns.
type Config struct {
	ListenAddr string
	DBPath     string

	// Token signing.
	Secret string
	Issuer string

	// Refresh token pair settings.
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SweepInterval    time.Duration
	RefreshRetention time.Duration

	// Default admin account seeded on first start.
	AdminUsername string
	AdminPassword string

	// Optional Google Sheets mirror of the license table.
	SheetSyncEnabled bool
	SheetCredential  string
	SpreadsheetID    string
	SheetName        string

	Plans map[string]PlanConfig
}

var defaultPlans = map[string]PlanConfig{
	"demo":       {Duration: "14d", Modules: []string{"ceniki"}},
	"basic":      {Duration: "1y", Modules: []string{"ceniki", "rezervacije"}},
	"premium":    {Duration: "1y", Modules: []string{"ceniki", "rezervacije", "gosti", "analitika"}},
	"enterprise": {Duration: "1y", Modules: []string{"ceniki", "rezervacije", "gosti", "analitika", "izvoz", "api"}},
}

// Load reads configuration from the environment, consulting a .env file
// when present. Plan definitions can be overridden wholesale with a JSON
// file pointed to by PLANS_FILE.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DBPath:           getenv("DB_PATH", "data/license.db"),
		Secret:           getenv("LICENSE_SECRET", ""),
		Issuer:           getenv("TOKEN_ISSUER", "omni-license-server"),
		AccessTTL:        getduration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL:       getduration("REFRESH_TOKEN_TTL", 90*24*time.Hour),
		SweepInterval:    getduration("REFRESH_SWEEP_INTERVAL", 24*time.Hour),
		RefreshRetention: getduration("REFRESH_RETENTION", 30*24*time.Hour),
		AdminUsername:    getenv("ADMIN_USERNAME", "admin"),
		AdminPassword:    getenv("ADMIN_PASSWORD", "admin"),
		SheetSyncEnabled: getbool("SHEET_SYNC_ENABLED", false),
		SheetCredential:  getenv("SHEET_CREDENTIAL_PATH", "credentials.json"),
		SpreadsheetID:    getenv("SPREADSHEET_ID", ""),
		SheetName:        getenv("SHEET_NAME", "Licenses"),
		Plans:            defaultPlans,
	}

	if cfg.Secret == "" {
		return nil, fmt.Errorf("LICENSE_SECRET must be set")
	}

	if path := os.Getenv("PLANS_FILE"); path != "" {
		plans, err := loadPlans(path)
		if err != nil {
			return nil, fmt.Errorf("load plans from %s: %w", path, err)
		}
		cfg.Plans = plans
	}

	return cfg, nil
}

// DefaultPlans returns the built-in plan table. Tests use it so they
// stay in sync with whatever the defaults grant.
func DefaultPlans() map[string]PlanConfig {
	return defaultPlans
}

func loadPlans(path string) (map[string]PlanConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plans map[string]PlanConfig
	if err := json.Unmarshal(b, &plans); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("plan table is empty")
	}
	return plans, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
