package models

// Category groups expenses. A nil UserID marks a global category that every
// user can see but nobody can modify through the API.
type Category struct {
	Base
	Name   string  `gorm:"size:100;not null" json:"name"`
	UserID *string `gorm:"type:uuid;index" json:"user"`
}

// IsGlobal reports whether the category has no owner.
func (c *Category) IsGlobal() bool {
	return c.UserID == nil
}

// OwnedBy reports whether userID owns the category.
func (c *Category) OwnedBy(userID string) bool {
	return c.UserID != nil && *c.UserID == userID
}
