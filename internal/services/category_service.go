package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
)

// categoryService handles category-related business logic.
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a new CategoryServicer.
func NewCategoryService(db *gorm.DB) CategoryServicer {
	return &categoryService{db: db}
}

// visibleCategories restricts a query to the caller's own and global categories.
func visibleCategories(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(categories.user_id = ? OR categories.user_id IS NULL)", userID)
	}
}

// ListCategories returns every category visible to the user.
func (s *categoryService) ListCategories(userID string) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.Scopes(visibleCategories(userID)).
		Order("name ASC").Order("id ASC").
		Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

// CreateCategory creates a category owned by userID
func (s *categoryService) CreateCategory(userID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	owner := userID
	category := &models.Category{
		Name:   name,
		UserID: &owner,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return category, nil
}

// GetCategoryByID retrieves a category the user can see.
func (s *categoryService) GetCategoryByID(userID, categoryID string) (*models.Category, error) {
	var category models.Category
	if err := s.db.Scopes(visibleCategories(userID)).
		Where("categories.id = ?", categoryID).
		First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCategoryNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &category, nil
}

// getOwnedCategory retrieves a category the user may modify. Global
// categories are visible but read-only.
func (s *categoryService) getOwnedCategory(userID, categoryID string) (*models.Category, error) {
	category, err := s.GetCategoryByID(userID, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.OwnedBy(userID) {
		return nil, apperrors.ErrCategoryReadOnly
	}
	return category, nil
}

// UpdateCategory renames a category owned by the user
func (s *categoryService) UpdateCategory(userID, categoryID, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "category name is required")
	}

	category, err := s.getOwnedCategory(userID, categoryID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(category).Update("name", name).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	category.Name = name
	return category, nil
}

// DeleteCategory permanently deletes a category owned by the user. Expenses
// that referenced it keep existing with no category.
func (s *categoryService) DeleteCategory(userID, categoryID string) error {
	category, err := s.getOwnedCategory(userID, categoryID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Expense{}).
			Where("category_id = ?", category.ID).
			Update("category_id", nil).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(category).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}
