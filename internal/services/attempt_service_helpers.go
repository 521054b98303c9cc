package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/datatypes"
)

// loadOwnedAttempt fetches an attempt under a row lock and verifies ownership
// and the test binding from the URL. The lock keeps the status check valid
// until the surrounding transaction commits.
func (s *attemptService) loadOwnedAttempt(ctx context.Context, r repositories.Repository, testID, attemptID uint, userID, action string) (*models.TestAttempt, error) {
	attempt, err := r.Attempt().GetByIDForUpdate(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", action, "not owned by user")
	}
	if attempt.TestID != testID {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}

// finalizeAttempt moves an in-progress attempt to graded inside the current
// transaction. Timeout submissions are clamped to the deadline so recorded
// durations never exceed the allowed time.
func (s *attemptService) finalizeAttempt(ctx context.Context, r repositories.Repository, attempt *models.TestAttempt, test *models.Test, trigger models.SubmitTrigger) error {
	submittedAt := time.Now()
	if trigger == models.TriggerTimeExpiry && submittedAt.After(attempt.ExpiresAt) {
		submittedAt = attempt.ExpiresAt
	}

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &submittedAt
	t := trigger
	attempt.SubmitTrigger = &t

	if err := s.grading.GradeAttempt(ctx, r, attempt, test); err != nil {
		return fmt.Errorf("failed to grade attempt: %w", err)
	}

	if err := r.Attempt().Update(ctx, attempt); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}
	return nil
}

// afterGraded runs post-commit side effects: the graded event and, for
// passing attempts, certificate issuance. Failures are logged, never
// propagated, because the grade itself is already durable.
func (s *attemptService) afterGraded(ctx context.Context, attempt *models.TestAttempt, test *models.Test) {
	trigger := ""
	if attempt.SubmitTrigger != nil {
		trigger = string(*attempt.SubmitTrigger)
	}
	gradedAt := time.Now()
	if attempt.GradedAt != nil {
		gradedAt = *attempt.GradedAt
	}

	if err := s.events.PublishAttemptGraded(events.AttemptGraded{
		AttemptID:    attempt.ID,
		TestID:       attempt.TestID,
		UserID:       attempt.UserID,
		Score:        attempt.Score,
		EarnedPoints: attempt.EarnedPoints,
		TotalPoints:  attempt.TotalPoints,
		Passed:       attempt.Passed,
		Trigger:      trigger,
		GradedAt:     gradedAt,
	}); err != nil {
		s.logger.Error("Failed to publish graded event",
			"attempt_id", attempt.ID,
			"error", err)
	}

	if attempt.Passed && s.certificates != nil {
		if _, err := s.certificates.IssueOrGet(ctx, attempt.TestID, attempt.UserID); err != nil {
			s.logger.Error("Failed to issue certificate",
				"attempt_id", attempt.ID,
				"test_id", attempt.TestID,
				"user_id", attempt.UserID,
				"error", err)
		}
	}
}

// buildAnswer converts a save request into the storage row, checking that
// the answer shape matches the question type.
func buildAnswer(attemptID uint, question *models.Question, req *SaveAnswerRequest) (*models.AttemptAnswer, error) {
	answer := &models.AttemptAnswer{
		AttemptID:  attemptID,
		QuestionID: question.PublicID,
	}

	if question.Type.IsChoiceBased() {
		if len(req.SelectedChoiceIDs) == 0 {
			return nil, NewBusinessRuleError("answer_shape", "choice-based questions require selected_choice_ids")
		}
		valid := make(map[string]bool, len(question.Choices))
		for _, choice := range question.Choices {
			valid[choice.PublicID] = true
		}
		for _, id := range req.SelectedChoiceIDs {
			if !valid[id] {
				return nil, NewBusinessRuleError("answer_shape", fmt.Sprintf("choice %s does not belong to question", id))
			}
		}
		raw, err := json.Marshal(req.SelectedChoiceIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode selected choices: %w", err)
		}
		answer.SelectedChoiceIDs = datatypes.JSON(raw)
		return answer, nil
	}

	if req.TextAnswer == nil {
		return nil, NewBusinessRuleError("answer_shape", "text questions require text_answer")
	}
	answer.TextAnswer = req.TextAnswer
	return answer, nil
}

// findQuestion resolves a question by its public id within the test.
func findQuestion(test *models.Test, publicID string) *models.Question {
	for i := range test.Questions {
		if test.Questions[i].PublicID == publicID {
			return &test.Questions[i]
		}
	}
	return nil
}

// buildAttemptResponse derives the timing fields students poll for. The
// test's questions are attached (sanitized) when includeQuestions is set.
func (s *attemptService) buildAttemptResponse(attempt *models.TestAttempt, test *models.Test, includeQuestions bool) *AttemptResponse {
	resp := &AttemptResponse{TestAttempt: attempt}

	now := time.Now()
	if attempt.Status == models.AttemptInProgress {
		if remaining := attempt.ExpiresAt.Sub(now); remaining > 0 {
			resp.TimeRemainingSeconds = int(remaining.Seconds())
		}
		resp.CanSubmit = now.Before(attempt.ExpiresAt.Add(submitGracePeriod))
	}

	if includeQuestions && test != nil {
		resp.Questions = sanitizeQuestions(test)
	}
	return resp
}

// sanitizeQuestions copies the test's questions with grading data stripped,
// so students never see correct answers while answering.
func sanitizeQuestions(test *models.Test) []*models.Question {
	questions := make([]*models.Question, len(test.Questions))
	for i := range test.Questions {
		q := test.Questions[i]
		q.CorrectAnswer = nil
		choices := make([]models.Choice, len(q.Choices))
		for j, choice := range q.Choices {
			choice.IsCorrect = false
			choices[j] = choice
		}
		q.Choices = choices
		questions[i] = &q
	}
	return questions
}
