package database

import (
	"fmt"

	"gorm.io/gorm"

	"pocketbook/internal/logger"
	"pocketbook/internal/models"
)

// SeedGlobalCategories inserts a global category for each name that does not
// already exist as one. It is safe to run on every start.
func SeedGlobalCategories(db *gorm.DB, names []string) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			var count int64
			if err := tx.Model(&models.Category{}).
				Where("user_id IS NULL AND name = ?", name).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&models.Category{Name: name}).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to seed global categories: %w", err)
	}
	if created > 0 {
		logger.Get().Infow("Seeded global categories", "count", created)
	}
	return created, nil
}
