package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// SubmitTrigger records why an attempt left the in_progress state.
type SubmitTrigger string

const (
	TriggerManual     SubmitTrigger = "manual"
	TriggerTimeExpiry SubmitTrigger = "time_expiry"
)

type TestAttempt struct {
	ID     uint          `json:"id" gorm:"primaryKey"`
	TestID uint          `json:"test_id" gorm:"not null;index:idx_attempt_test_user"`
	UserID string        `json:"user_id" gorm:"not null;index:idx_attempt_test_user;size:255"`
	Status AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing. ExpiresAt is fixed at start; the service evaluates expiry
	// lazily against it, there is no background timer.
	StartedAt     time.Time      `json:"started_at" gorm:"not null"`
	ExpiresAt     time.Time      `json:"expires_at" gorm:"not null"`
	SubmittedAt   *time.Time     `json:"submitted_at"`
	GradedAt      *time.Time     `json:"graded_at"`
	SubmitTrigger *SubmitTrigger `json:"submit_trigger" gorm:"size:20"`

	// Scoring (populated when graded)
	EarnedPoints float64 `json:"earned_points"`
	TotalPoints  float64 `json:"total_points"`
	Score        float64 `json:"score"` // 0..100
	Passed       bool    `json:"passed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test    Test            `json:"-" gorm:"foreignKey:TestID"`
	Answers []AttemptAnswer `json:"answers" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

// IsTerminal reports whether the attempt can no longer change.
func (a *TestAttempt) IsTerminal() bool {
	return a.Status == AttemptSubmitted || a.Status == AttemptGraded
}

// IsExpired reports whether the deadline has passed at the given instant.
func (a *TestAttempt) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

type AttemptAnswer struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	AttemptID uint `json:"attempt_id" gorm:"not null;index:idx_answer_attempt_question,unique"`

	// QuestionID is the question's stable public id, matching what clients
	// see in the test payload.
	QuestionID string `json:"question_id" gorm:"not null;index:idx_answer_attempt_question,unique;size:36"`

	// Selection for choice-based questions ([]string of choice public ids).
	SelectedChoiceIDs datatypes.JSON `json:"selected_choice_ids" gorm:"type:jsonb"`
	// Free-form answer for OPEN and NUMERIC questions.
	TextAnswer *string `json:"text_answer" gorm:"type:text"`

	// Grading outcome. IsCorrect stays nil for OPEN questions.
	IsCorrect    *bool   `json:"is_correct"`
	EarnedPoints float64 `json:"earned_points"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt TestAttempt `json:"-" gorm:"foreignKey:AttemptID"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
