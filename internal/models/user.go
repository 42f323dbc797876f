package models

// User represents an account holder. Usernames are case-sensitive.
type User struct {
	Base
	Username   string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Password   string     `gorm:"not null" json:"-"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	Categories []Category `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Expenses   []Expense  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
