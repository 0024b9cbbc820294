package model

import "time"

// Session bounds enforced when a practice session is logged.
const (
	MinTempo       = 30
	MaxTempo       = 300
	MaxDuration    = 1440 // minutes in a day
	MinQuality     = QualitySloppy
	MaxQuality     = QualityFlawless
	ColdStartTempo = 60
)

// Quality is the 1-4 self rating of a practice session.
type Quality int

const (
	QualitySloppy   Quality = 1
	QualityOkay     Quality = 2
	QualityGood     Quality = 3
	QualityFlawless Quality = 4
)

func (q Quality) String() string {
	switch q {
	case QualitySloppy:
		return "Sloppy"
	case QualityOkay:
		return "Okay"
	case QualityGood:
		return "Good"
	case QualityFlawless:
		return "Flawless"
	default:
		return "Unknown"
	}
}

// Valid reports whether q is one of the four ratings.
func (q Quality) Valid() bool {
	return q >= MinQuality && q <= MaxQuality
}

// PracticeSession is one completed practice attempt. Sessions are never updated.
type PracticeSession struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID     int64     `json:"userId" gorm:"not null;index:idx_sessions_user_rudiment_date,priority:1"`
	User       *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	RudimentID int64     `json:"rudimentId" gorm:"not null;index:idx_sessions_user_rudiment_date,priority:2"`
	Rudiment   *Rudiment `json:"rudiment,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Date       time.Time `json:"date" gorm:"not null;index:idx_sessions_user_rudiment_date,priority:3"`
	Duration   int       `json:"duration" gorm:"not null"`
	Tempo      int       `json:"tempo" gorm:"not null"`
	Quality    Quality   `json:"quality" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName 指定表名
func (PracticeSession) TableName() string {
	return "practice_sessions"
}

// RudimentName returns the joined rudiment's display name, if loaded.
func (s *PracticeSession) RudimentName() string {
	if s.Rudiment == nil {
		return ""
	}
	return s.Rudiment.Name
}

// DailyPractice is the number of minutes practised on one UTC calendar date.
type DailyPractice struct {
	Date  string `json:"date"`  // YYYY-MM-DD
	Count int    `json:"count"` // total minutes
}
