package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExpenseType tags an expense as money in or money out.
type ExpenseType string

const (
	ExpenseTypeIncome  ExpenseType = "income"
	ExpenseTypeExpense ExpenseType = "expense"
)

// Valid reports whether t is a known expense type.
func (t ExpenseType) Valid() bool {
	switch t {
	case ExpenseTypeIncome, ExpenseTypeExpense:
		return true
	}
	return false
}

// DateLayout is the wire and query format for expense dates.
const DateLayout = "2006-01-02"

// AmountPlaces is the number of decimal places an amount may carry.
const AmountPlaces = 2

// MaxAmount is the exclusive upper bound of numeric(12,2).
var MaxAmount = decimal.New(1, 10)

// Expense is a single income or expense entry owned by exactly one user.
// Amount is a fixed-point value with AmountPlaces decimal places.
type Expense struct {
	Base
	UserID     string          `gorm:"type:uuid;not null;index" json:"user"`
	CategoryID *string         `gorm:"type:uuid;index" json:"category"`
	Title      string          `gorm:"size:200;not null" json:"title"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Date       time.Time       `gorm:"type:date;not null;index" json:"date"`
	Type       ExpenseType     `gorm:"size:16;not null" json:"type"`

	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"-"`
}

// CategoryName returns the referenced category's name, or nil when the
// expense has no category or it was not loaded.
func (e *Expense) CategoryName() *string {
	if e.Category == nil {
		return nil
	}
	name := e.Category.Name
	return &name
}

// NormalizeDate truncates t to midnight UTC of its calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
