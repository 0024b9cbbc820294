package model

import "time"

// DefaultTempoIncrement is the step size given to rudiments created without one.
const DefaultTempoIncrement = 5

// Rudiment is a named drumming pattern. Standard rudiments are shared and have no owner;
// custom rudiments belong to exactly one user.
type Rudiment struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name           string    `json:"name" gorm:"size:120;not null;index"`
	Category       string    `json:"category" gorm:"size:80"`
	Description    *string   `json:"description,omitempty" gorm:"type:text"`
	TempoIncrement int       `json:"tempoIncrement" gorm:"not null;default:5"`
	IsStandard     bool      `json:"isStandard" gorm:"not null;index"`
	UserID         *int64    `json:"userId" gorm:"index"`
	User           *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Rudiment) TableName() string {
	return "rudiments"
}

// OwnedBy reports whether userID owns this rudiment. Standard rudiments are owned by nobody.
func (r *Rudiment) OwnedBy(userID int64) bool {
	return !r.IsStandard && r.UserID != nil && *r.UserID == userID
}

// VisibleTo reports whether userID may see and reference this rudiment.
func (r *Rudiment) VisibleTo(userID int64) bool {
	return r.IsStandard || r.OwnedBy(userID)
}
