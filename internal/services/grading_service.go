package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type gradingService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewGradingService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) GradingService {
	return &gradingService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// GradeAttempt scores every question of the test against the stored answers
// and fills the attempt's scoring fields. repo must be the transaction-scoped
// repository of the surrounding submit; the caller persists the attempt.
func (s *gradingService) GradeAttempt(ctx context.Context, repo repositories.Repository, attempt *models.TestAttempt, test *models.Test) error {
	answers, err := repo.Answer().GetByAttempt(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("failed to load answers for grading: %w", err)
	}

	byQuestion := make(map[string]*models.AttemptAnswer, len(answers))
	for _, answer := range answers {
		byQuestion[answer.QuestionID] = answer
	}

	var earnedPoints, totalPoints float64
	graded := make([]*models.AttemptAnswer, 0, len(test.Questions))

	for i := range test.Questions {
		question := &test.Questions[i]
		totalPoints += float64(question.Points)

		answer := byQuestion[question.PublicID]
		if answer == nil {
			// Unanswered questions score zero but still get a row, so the
			// graded attempt is self-contained.
			answer = &models.AttemptAnswer{
				AttemptID:  attempt.ID,
				QuestionID: question.PublicID,
			}
		}

		points, isCorrect := s.CalculateScore(question, answer)
		answer.EarnedPoints = points
		answer.IsCorrect = isCorrect
		earnedPoints += points

		graded = append(graded, answer)
	}

	if err := repo.Answer().UpdateBatch(ctx, graded); err != nil {
		return fmt.Errorf("failed to persist graded answers: %w", err)
	}

	attempt.EarnedPoints = earnedPoints
	attempt.TotalPoints = totalPoints
	if totalPoints > 0 {
		attempt.Score = 100 * earnedPoints / totalPoints
	} else {
		attempt.Score = 0
	}
	attempt.Passed = attempt.Score >= float64(test.PassingScore)
	attempt.Status = models.AttemptGraded
	attempt.GradedAt = timePtr(time.Now())

	s.logger.Info("Attempt graded",
		"attempt_id", attempt.ID,
		"test_id", test.ID,
		"score", attempt.Score,
		"passed", attempt.Passed)

	return nil
}

// CalculateScore grades a single question. Open-ended questions return a nil
// correctness marker and zero points; everything else is all-or-nothing.
func (s *gradingService) CalculateScore(question *models.Question, answer *models.AttemptAnswer) (float64, *bool) {
	switch question.Type {
	case models.OpenEnded:
		// Needs human review; contributes to the total but never auto-scores.
		return 0, nil

	case models.SingleChoice, models.TrueFalse:
		selected := decodeChoiceIDs(answer.SelectedChoiceIDs)
		correct := correctChoiceIDs(question)
		ok := len(selected) == 1 && len(correct) == 1 && selected[0] == correct[0]
		return scoreFor(question, ok)

	case models.MultipleChoice:
		selected := decodeChoiceIDs(answer.SelectedChoiceIDs)
		correct := correctChoiceIDs(question)
		// Exact set match, no partial credit.
		sort.Strings(selected)
		sort.Strings(correct)
		ok := len(selected) > 0 && reflect.DeepEqual(selected, correct)
		return scoreFor(question, ok)

	case models.Numeric:
		if answer.TextAnswer == nil || question.CorrectAnswer == nil {
			return scoreFor(question, false)
		}
		given := strings.TrimSpace(*answer.TextAnswer)
		expected := strings.TrimSpace(*question.CorrectAnswer)
		ok := given != "" && given == expected
		return scoreFor(question, ok)

	default:
		s.logger.Warn("Unknown question type during grading",
			"question_id", question.PublicID,
			"type", question.Type)
		return scoreFor(question, false)
	}
}

func scoreFor(question *models.Question, correct bool) (float64, *bool) {
	if correct {
		return float64(question.Points), boolPtr(true)
	}
	return 0, boolPtr(false)
}

func correctChoiceIDs(question *models.Question) []string {
	ids := make([]string, 0, len(question.Choices))
	for _, choice := range question.Choices {
		if choice.IsCorrect {
			ids = append(ids, choice.PublicID)
		}
	}
	return ids
}

func decodeChoiceIDs(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}

func boolPtr(b bool) *bool {
	return &b
}

func timePtr(t time.Time) *time.Time {
	return &t
}
