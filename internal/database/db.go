package database

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"omni-license-server/internal/config"
	"omni-license-server/internal/model"

	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitDB opens the sqlite database, migrates the schema and seeds the
// default admin account on first start.
func InitDB(cfg *config.Config) {
	var err error

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatal("create data directory:", err)
	}

	DB, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatal("open database:", err)
	}

	err = DB.AutoMigrate(
		&model.User{},
		&model.LicenseRecord{},
		&model.RefreshToken{},
		&model.UsageLog{},
		&model.OperationLog{},
		&model.LoginLog{},
	)
	if err != nil {
		log.Fatal("migrate database:", err)
	}

	var adminCount int64
	DB.Model(&model.User{}).Where("username = ?", cfg.AdminUsername).Count(&adminCount)

	if adminCount == 0 {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal("hash admin password:", err)
		}

		admin := &model.User{
			Username:  cfg.AdminUsername,
			Password:  string(hashedPassword),
			Email:     "admin@example.com",
			Role:      "admin",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}

		if err := DB.Create(admin).Error; err != nil {
			log.Fatal("create admin account:", err)
		}

		log.Println("created default admin account")
	}
}
