package database

import (
	"omni-license-server/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func InitTestDB() {
	var err error
	DB, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		panic("failed to connect test database")
	}

	// Single connection so concurrent writers queue instead of hitting
	// SQLITE_BUSY on the shared in-memory database.
	sqlDB, err := DB.DB()
	if err != nil {
		panic("failed to access test database pool")
	}
	sqlDB.SetMaxOpenConns(1)

	err = DB.AutoMigrate(
		&model.User{},
		&model.LicenseRecord{},
		&model.RefreshToken{},
		&model.UsageLog{},
		&model.OperationLog{},
		&model.LoginLog{},
	)
	if err != nil {
		panic("failed to migrate test database")
	}
}

func CleanTestDB() {
	sqlDB, err := DB.DB()
	if err != nil {
		return
	}
	sqlDB.Close()
}
