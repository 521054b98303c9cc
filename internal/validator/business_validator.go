package validator

import (
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateTestCreate validates test creation business rules
func (bv *BusinessValidator) ValidateTestCreate(req *TestCreateRequest) ValidationErrors {
	var errors ValidationErrors

	// Basic struct validation
	errors = append(errors, bv.Validate(req)...)

	// Question-level consistency checks
	for i, q := range req.Questions {
		errors = append(errors, bv.validateQuestionRules(i, &q)...)
	}

	return errors
}

// ValidateTestUpdate validates test update business rules
func (bv *BusinessValidator) ValidateTestUpdate(req *TestUpdateRequest, existing *models.Test) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	for i, q := range req.Questions {
		errors = append(errors, bv.validateQuestionRules(i, &q)...)
	}

	// Published tests keep their scoring contract stable
	if existing.Status == models.TestPublished {
		if req.PassingScore != nil && *req.PassingScore != existing.PassingScore {
			errors = append(errors, ValidationError{
				Field:   "passing_score",
				Message: "cannot be changed for published tests",
				Value:   *req.PassingScore,
				Rule:    "business_logic",
			})
		}
		if req.DurationMinutes != nil && *req.DurationMinutes != existing.DurationMinutes {
			errors = append(errors, ValidationError{
				Field:   "duration_minutes",
				Message: "cannot be changed for published tests",
				Value:   *req.DurationMinutes,
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// ValidateStatusTransition validates test status transitions
func (bv *BusinessValidator) ValidateStatusTransition(currentStatus, newStatus models.TestStatus, questionCount int) ValidationErrors {
	var errors ValidationErrors

	// Define allowed transitions
	allowedTransitions := map[models.TestStatus][]models.TestStatus{
		models.TestDraft:     {models.TestPublished, models.TestArchived},
		models.TestPublished: {models.TestArchived},
		models.TestArchived:  {}, // No transitions from archived
	}

	allowed := false
	for _, allowedStatus := range allowedTransitions[currentStatus] {
		if newStatus == allowedStatus {
			allowed = true
			break
		}
	}

	if !allowed {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", currentStatus, newStatus),
			Value:   newStatus,
			Rule:    "status_transition",
		})
	}

	// A test needs content before students can take it
	if newStatus == models.TestPublished && questionCount == 0 {
		errors = append(errors, ValidationError{
			Field:   "questions",
			Message: "test must have at least one question before publishing",
			Value:   questionCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateDeletePermission validates if a test can be deleted
func (bv *BusinessValidator) ValidateDeletePermission(hasAttempts bool) ValidationErrors {
	var errors ValidationErrors

	if hasAttempts {
		errors = append(errors, ValidationError{
			Field:   "attempts",
			Message: "cannot delete test with existing attempts",
			Value:   hasAttempts,
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Test duration validation (1-300 minutes)
	bv.validate.RegisterValidation("test_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 300
	})

	// Passing score validation (0-100)
	bv.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	// Max attempts validation (1-10); zero means platform default and is
	// covered by omitempty on the tag
	bv.validate.RegisterValidation("max_attempts", func(fl validator.FieldLevel) bool {
		attempts := fl.Field().Int()
		return attempts >= 1 && attempts <= 10
	})

	// question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := models.QuestionType(fl.Field().String())
		switch qType {
		case models.SingleChoice, models.MultipleChoice, models.TrueFalse,
			models.OpenEnded, models.Numeric:
			return true
		}
		return false
	})
}

// validateQuestionRules checks per-type structural consistency of a question
func (bv *BusinessValidator) validateQuestionRules(index int, q *QuestionRequest) ValidationErrors {
	var errors ValidationErrors
	qType := models.QuestionType(q.Type)

	field := func(name string) string {
		return fmt.Sprintf("questions[%d].%s", index, name)
	}

	if qType.IsChoiceBased() {
		if len(q.Choices) < 2 {
			errors = append(errors, ValidationError{
				Field:   field("choices"),
				Message: "choice-based questions need at least two choices",
				Value:   len(q.Choices),
				Rule:    "business_logic",
			})
			return errors
		}

		correct := 0
		for _, c := range q.Choices {
			if c.IsCorrect {
				correct++
			}
		}

		switch qType {
		case models.SingleChoice:
			if correct != 1 {
				errors = append(errors, ValidationError{
					Field:   field("choices"),
					Message: "single-choice questions need exactly one correct choice",
					Value:   correct,
					Rule:    "business_logic",
				})
			}
		case models.TrueFalse:
			if len(q.Choices) != 2 || correct != 1 {
				errors = append(errors, ValidationError{
					Field:   field("choices"),
					Message: "true/false questions need exactly two choices with one correct",
					Value:   correct,
					Rule:    "business_logic",
				})
			}
		case models.MultipleChoice:
			if correct == 0 {
				errors = append(errors, ValidationError{
					Field:   field("choices"),
					Message: "multiple-choice questions need at least one correct choice",
					Value:   correct,
					Rule:    "business_logic",
				})
			}
		}
	}

	if qType == models.Numeric && (q.CorrectAnswer == nil || *q.CorrectAnswer == "") {
		errors = append(errors, ValidationError{
			Field:   field("correct_answer"),
			Message: "numeric questions need a reference answer",
			Rule:    "business_logic",
		})
	}

	return errors
}
