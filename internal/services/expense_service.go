package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
)

// expenseService handles expense-related business logic.
type expenseService struct {
	db         *gorm.DB
	categories CategoryServicer
	now        func() time.Time
}

// NewExpenseService creates a new ExpenseServicer. Category references are
// checked against what categories reports as visible to the caller.
func NewExpenseService(db *gorm.DB, categories CategoryServicer) ExpenseServicer {
	return &expenseService{db: db, categories: categories, now: time.Now}
}

// ownedExpenses restricts a query to the caller's expenses. It is applied
// before any filter and no filter value can widen it.
func ownedExpenses(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("expenses.user_id = ?", userID)
	}
}

// ListExpenses returns the caller's expenses matching every set filter,
// newest date first.
func (s *expenseService) ListExpenses(userID string, filter ExpenseFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	query := applyExpenseFilters(s.db.Model(&models.Expense{}).Scopes(ownedExpenses(userID)), filter)

	var totalItems int64
	if err := query.Session(&gorm.Session{}).Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := query.Session(&gorm.Session{}).
		Preload("Category").
		Order("expenses.date DESC").
		Order("expenses.created_at DESC").
		Order("expenses.id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page, totalItems)
	return &result, nil
}

// applyExpenseFilters ANDs each set filter onto q. Dates are compared as
// YYYY-MM-DD strings and the end bound as "before the next day" so the
// comparison is inclusive on every supported driver.
func applyExpenseFilters(q *gorm.DB, f ExpenseFilter) *gorm.DB {
	if f.StartDate != nil {
		q = q.Where("expenses.date >= ?", f.StartDate.Format(models.DateLayout))
	}
	if f.EndDate != nil {
		q = q.Where("expenses.date < ?", f.EndDate.AddDate(0, 0, 1).Format(models.DateLayout))
	}
	if f.CategoryID != nil {
		q = q.Where("expenses.category_id = ?", *f.CategoryID)
	}
	if f.Type != nil {
		q = q.Where("expenses.type = ?", *f.Type)
	}
	if f.Search != "" {
		// Fold both sides with the same LOWER so an exact-case search always matches.
		q = q.Where(`LOWER(expenses.title) LIKE LOWER(?) ESCAPE '\'`, "%"+escapeLike(f.Search)+"%")
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// CreateExpense records a new expense owned by userID
func (s *expenseService) CreateExpense(userID string, input ExpenseInput) (*models.Expense, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
	}
	if err := checkAmount(input.Amount); err != nil {
		return nil, err
	}
	if !input.Type.Valid() {
		return nil, apperrors.ErrInvalidExpenseType
	}
	if err := s.checkCategory(userID, input.CategoryID); err != nil {
		return nil, err
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}

	expense := &models.Expense{
		UserID:     userID,
		CategoryID: input.CategoryID,
		Title:      title,
		Amount:     input.Amount,
		Date:       models.NormalizeDate(date),
		Type:       input.Type,
	}

	if err := s.db.Create(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return s.GetExpenseByID(userID, expense.ID)
}

// checkAmount enforces a positive amount that fits numeric(12,2) exactly.
func checkAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	case !amount.Equal(amount.Round(models.AmountPlaces)):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must have at most 2 decimal places")
	case amount.GreaterThanOrEqual(models.MaxAmount):
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount is too large")
	}
	return nil
}

// checkCategory verifies an optional category reference is visible to userID.
func (s *expenseService) checkCategory(userID string, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	if _, err := s.categories.GetCategoryByID(userID, *categoryID); err != nil {
		if errors.Is(err, apperrors.ErrCategoryNotFound) {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "category does not exist")
		}
		return err
	}
	return nil
}

// GetExpenseByID retrieves one of the user's expenses
func (s *expenseService) GetExpenseByID(userID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.Scopes(ownedExpenses(userID)).
		Preload("Category").
		Where("expenses.id = ?", expenseID).
		First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// UpdateExpense applies the set fields to one of the user's expenses. The
// owner is never among the updatable columns.
func (s *expenseService) UpdateExpense(userID, expenseID string, fields ExpenseUpdateFields) (*models.Expense, error) {
	expense, err := s.GetExpenseByID(userID, expenseID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if title == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "title is required")
		}
		updates["title"] = title
	}
	if fields.Amount != nil {
		if err := checkAmount(*fields.Amount); err != nil {
			return nil, err
		}
		updates["amount"] = *fields.Amount
	}
	if fields.Date != nil {
		updates["date"] = models.NormalizeDate(*fields.Date)
	}
	if fields.Type != nil {
		if !fields.Type.Valid() {
			return nil, apperrors.ErrInvalidExpenseType
		}
		updates["type"] = *fields.Type
	}
	if fields.CategoryID != nil {
		categoryID := *fields.CategoryID
		if err := s.checkCategory(userID, categoryID); err != nil {
			return nil, err
		}
		if categoryID == nil {
			updates["category_id"] = nil
		} else {
			updates["category_id"] = *categoryID
		}
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Expense{}).
			Scopes(ownedExpenses(userID)).
			Where("expenses.id = ?", expense.ID).
			Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	return s.GetExpenseByID(userID, expense.ID)
}

// DeleteExpense permanently deletes one of the user's expenses
func (s *expenseService) DeleteExpense(userID, expenseID string) error {
	result := s.db.Scopes(ownedExpenses(userID)).
		Where("expenses.id = ?", expenseID).
		Delete(&models.Expense{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrExpenseNotFound
	}
	return nil
}
