package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pocketbook/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates an active user with a unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithUsername(t, db, fmt.Sprintf("user%d", nextID()))
}

// CreateTestUserWithUsername creates an active user with the given username.
func CreateTestUserWithUsername(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCategory creates a category owned by userID.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string) *models.Category {
	t.Helper()

	owner := userID
	category := &models.Category{
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		UserID: &owner,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestGlobalCategory creates an ownerless category with the given name.
func CreateTestGlobalCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{Name: name}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create global category: %v", err)
	}
	return category
}

// ExpenseOption customizes a fixture expense.
type ExpenseOption func(e *models.Expense)

// WithTitle sets the expense title.
func WithTitle(title string) ExpenseOption {
	return func(e *models.Expense) { e.Title = title }
}

// WithType sets the expense type.
func WithType(expenseType models.ExpenseType) ExpenseOption {
	return func(e *models.Expense) { e.Type = expenseType }
}

// WithCategory sets the expense category.
func WithCategory(categoryID string) ExpenseOption {
	return func(e *models.Expense) {
		id := categoryID
		e.CategoryID = &id
	}
}

// WithAmount sets the amount from a decimal string such as "12.50".
func WithAmount(amount string) ExpenseOption {
	return func(e *models.Expense) { e.Amount = decimal.RequireFromString(amount) }
}

// CreateTestExpense creates an expense owned by userID on the given
// YYYY-MM-DD date. Without options it is a 10.00 "expense".
func CreateTestExpense(t *testing.T, db *gorm.DB, userID, date string, opts ...ExpenseOption) *models.Expense {
	t.Helper()

	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		t.Fatalf("invalid fixture date %q: %v", date, err)
	}

	expense := &models.Expense{
		UserID: userID,
		Title:  fmt.Sprintf("Test Expense %d", nextID()),
		Amount: decimal.NewFromInt(10),
		Date:   d,
		Type:   models.ExpenseTypeExpense,
	}
	for _, opt := range opts {
		opt(expense)
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}

// MustDate parses a YYYY-MM-DD date or fails the test.
func MustDate(t *testing.T, date string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, date)
	if err != nil {
		t.Fatalf("invalid date %q: %v", date, err)
	}
	return d
}
