package main

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/nlstn/go-rql/cmd/devserver/entities"
)

// seedDatabase drops and recreates all tables and fills them with sample data.
func seedDatabase(db *gorm.DB) error {
	// Drop all tables (GORM handles the correct order based on foreign keys)
	if err := db.Migrator().DropTable(&entities.Post{}, &entities.User{}, &entities.Account{}, &entities.Tenant{}); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := db.AutoMigrate(&entities.Tenant{}, &entities.Account{}, &entities.User{}, &entities.Post{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	tenants := entities.GetSampleTenants()
	if err := db.Create(&tenants).Error; err != nil {
		return fmt.Errorf("failed to seed tenants: %w", err)
	}
	accounts := entities.GetSampleAccounts()
	if err := db.Create(&accounts).Error; err != nil {
		return fmt.Errorf("failed to seed accounts: %w", err)
	}
	users := entities.GetSampleUsers()
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	posts := entities.GetSamplePosts()
	if err := db.Create(&posts).Error; err != nil {
		return fmt.Errorf("failed to seed posts: %w", err)
	}
	return nil
}
