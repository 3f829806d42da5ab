package initializers

import (
	"github.com/eduardohgo/pry-lapape/internals/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDB opens the SQLite credential store.
func ConnectDB(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{})
}

// Migrate syncs the account schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Session{})
}
