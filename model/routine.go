package model

import "time"

// TempoMode decides how a routine item's target tempo is resolved.
type TempoMode string

const (
	// TempoModeManual plays the stored target tempo as-is.
	TempoModeManual TempoMode = "MANUAL"
	// TempoModeSmart replaces the target tempo with a fresh suggestion at read time.
	TempoModeSmart TempoMode = "SMART"
)

// Valid reports whether m is a known mode.
func (m TempoMode) Valid() bool {
	return m == TempoModeManual || m == TempoModeSmart
}

// Routine defaults applied to items that omit a field.
const (
	DefaultTargetTempo  = ColdStartTempo
	DefaultRestDuration = 0
	MaxRoutineNameLen   = 100
)

// Routine is an ordered, user-defined sequence of drills.
type Routine struct {
	ID          int64         `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      int64         `json:"userId" gorm:"not null;index"`
	User        *User         `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Name        string        `json:"name" gorm:"size:100;not null"`
	Description *string       `json:"description,omitempty" gorm:"type:text"`
	Items       []RoutineItem `json:"items" gorm:"foreignKey:RoutineID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time     `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// TableName 指定表名
func (Routine) TableName() string {
	return "routines"
}

// RoutineItem is one drill inside a routine. Position is 0-based and contiguous.
type RoutineItem struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RoutineID    int64     `json:"routineId" gorm:"not null;index"`
	RudimentID   int64     `json:"rudimentId" gorm:"not null;index"`
	Rudiment     *Rudiment `json:"rudiment,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Duration     int       `json:"duration" gorm:"not null"`
	Position     int       `json:"order" gorm:"column:position;not null"`
	TempoMode    TempoMode `json:"tempoMode" gorm:"size:10;not null;default:'MANUAL'"`
	TargetTempo  int       `json:"targetTempo" gorm:"not null;default:60"`
	RestDuration int       `json:"restDuration" gorm:"not null;default:0"`
}

// TableName 指定表名
func (RoutineItem) TableName() string {
	return "routine_items"
}

// AllModels lists every persisted model in migration order.
func AllModels() []interface{} {
	return []interface{}{&User{}, &Rudiment{}, &PracticeSession{}, &Routine{}, &RoutineItem{}}
}
