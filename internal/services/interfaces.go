package services

import (
	"time"

	"github.com/shopspring/decimal"

	"pocketbook/internal/models"
	"pocketbook/internal/pagination"
)

// Every method takes the authenticated caller's id as an explicit argument.
// Handlers get it from the auth middleware; services never look it up.

// UserServicer defines the contract for account and credential management.
type UserServicer interface {
	CreateUser(username, password string) (*models.User, error)
	Authenticate(username, password string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	ListCategories(userID string) ([]models.Category, error)
	CreateCategory(userID, name string) (*models.Category, error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID, name string) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// ExpenseFilter holds the optional filters for listing expenses. A nil field
// or empty Search means the filter is not applied.
type ExpenseFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID *string
	Type       *models.ExpenseType
	Search     string
}

// ExpenseInput carries the client-writable fields of a new expense. There is
// deliberately no owner field.
type ExpenseInput struct {
	Title      string
	Amount     decimal.Decimal
	Date       time.Time
	Type       models.ExpenseType
	CategoryID *string
}

// ExpenseUpdateFields holds the fields to change on an expense. Nil means
// unchanged; CategoryID pointing at a nil pointer clears the category.
type ExpenseUpdateFields struct {
	Title      *string
	Amount     *decimal.Decimal
	Date       *time.Time
	Type       *models.ExpenseType
	CategoryID **string
}

// ExpenseServicer defines the contract for expense-related business logic.
type ExpenseServicer interface {
	ListExpenses(userID string, filter ExpenseFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Expense], error)
	CreateExpense(userID string, input ExpenseInput) (*models.Expense, error)
	GetExpenseByID(userID, expenseID string) (*models.Expense, error)
	UpdateExpense(userID, expenseID string, fields ExpenseUpdateFields) (*models.Expense, error)
	DeleteExpense(userID, expenseID string) error
}
