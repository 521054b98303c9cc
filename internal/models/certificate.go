package models

import "time"

// Certificate is issued once per (test, user) when a graded attempt reaches
// the test's passing score.
type Certificate struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	TestID    uint   `json:"test_id" gorm:"not null;index:idx_certificate_test_user,unique"`
	UserID    string `json:"user_id" gorm:"not null;index:idx_certificate_test_user,unique;size:255"`
	AttemptID uint   `json:"attempt_id" gorm:"not null"`

	Score            float64   `json:"score"`
	VerificationCode string    `json:"verification_code" gorm:"not null;uniqueIndex;size:8"`
	IssuedAt         time.Time `json:"issued_at" gorm:"not null"`

	// Relations
	Test Test `json:"-" gorm:"foreignKey:TestID"`
}

func (Certificate) TableName() string {
	return "certificates"
}
