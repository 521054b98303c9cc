package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestDraft     TestStatus = "Draft"
	TestPublished TestStatus = "Published"
	TestArchived  TestStatus = "Archived"
)

// DefaultMaxAttempts applies when a test does not set its own limit.
const DefaultMaxAttempts = 3

type QuestionType string

const (
	SingleChoice   QuestionType = "SINGLE"
	MultipleChoice QuestionType = "MULTIPLE"
	TrueFalse      QuestionType = "TRUEFALSE"
	OpenEnded      QuestionType = "OPEN"
	Numeric        QuestionType = "NUMERIC"
)

type Test struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Title           string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description     *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null" validate:"required,test_duration"`
	PassingScore    int        `json:"passing_score" gorm:"not null" validate:"passing_score"`
	MaxAttempts     int        `json:"max_attempts" gorm:"default:0" validate:"omitempty,max_attempts"`
	Status          TestStatus `json:"status" gorm:"default:Draft;index"`
	CourseID        *uint      `json:"course_id" gorm:"index"`

	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question    `json:"questions" gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE"`
	Attempts  []TestAttempt `json:"-" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalPoints   int `json:"total_points" gorm:"-"`
}

// EffectiveMaxAttempts resolves the attempt quota, falling back to the
// platform default when the test leaves it unset.
func (t *Test) EffectiveMaxAttempts() int {
	if t.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return t.MaxAttempts
}

type Question struct {
	ID       uint         `json:"-" gorm:"primaryKey"`
	TestID   uint         `json:"-" gorm:"not null;index"`
	PublicID string       `json:"id" gorm:"not null;uniqueIndex;size:36"`
	Type     QuestionType `json:"type" gorm:"not null" validate:"required,question_type"`
	Text     string       `json:"text" gorm:"type:text;not null" validate:"required,max=2000"`
	Points   int          `json:"points" gorm:"default:1" validate:"min=1,max=100"`
	Position int          `json:"position" gorm:"default:0"`

	// Reference answer for NUMERIC questions. Choice-based types carry
	// correctness on their choices instead.
	CorrectAnswer *string `json:"correct_answer,omitempty" gorm:"size:255"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	// Relations
	Choices []Choice `json:"choices" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

type Choice struct {
	ID         uint   `json:"-" gorm:"primaryKey"`
	QuestionID uint   `json:"-" gorm:"not null;index"`
	PublicID   string `json:"id" gorm:"not null;uniqueIndex;size:36"`
	Text       string `json:"text" gorm:"type:text;not null" validate:"required"`
	IsCorrect  bool   `json:"correct"`
	Position   int    `json:"position" gorm:"default:0"`
}

// IsChoiceBased reports whether answers reference choice ids rather than text.
func (qt QuestionType) IsChoiceBased() bool {
	return qt == SingleChoice || qt == MultipleChoice || qt == TrueFalse
}

// IsAutoGradable reports whether the scoring engine can grade the type
// without human review.
func (qt QuestionType) IsAutoGradable() bool {
	return qt != OpenEnded
}

func (Test) TableName() string {
	return "tests"
}

func (Question) TableName() string {
	return "questions"
}

func (Choice) TableName() string {
	return "choices"
}
