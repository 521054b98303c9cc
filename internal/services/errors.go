package services

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP statuses in the handlers.
var (
	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotPublished = errors.New("test is not published")
	ErrTestHasAttempts  = errors.New("test has existing attempts")

	ErrQuestionNotFound = errors.New("question not found in test")

	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")
	ErrAttemptTimeExpired      = errors.New("attempt time expired")
	ErrAttemptLimitExceeded    = errors.New("attempt limit exceeded")

	ErrCertificateNotFound  = errors.New("certificate not found")
	ErrCertificateNotEarned = errors.New("no passing attempt for certificate")
)

// PermissionError is returned when a user acts on a resource they do not
// own or lack the role for.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError carries a rule violation that is not a plain validation
// failure, mapped to 422 in the handlers.
type BusinessRuleError struct {
	Rule    string
	Message string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message}
}
