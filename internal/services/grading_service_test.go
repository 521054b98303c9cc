package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"gorm.io/datatypes"
)

func choiceJSON(t *testing.T, ids ...string) datatypes.JSON {
	t.Helper()
	raw, err := json.Marshal(ids)
	if err != nil {
		t.Fatal(err)
	}
	return datatypes.JSON(raw)
}

func TestGradingService_CalculateScore(t *testing.T) {
	svc := NewGradingService(newMockRepository(), testLogger(), validator.New())

	single := &models.Question{
		PublicID: "q-single", Type: models.SingleChoice, Points: 2,
		Choices: []models.Choice{
			{PublicID: "a", IsCorrect: true},
			{PublicID: "b"},
		},
	}
	trueFalse := &models.Question{
		PublicID: "q-tf", Type: models.TrueFalse, Points: 1,
		Choices: []models.Choice{
			{PublicID: "t", IsCorrect: true},
			{PublicID: "f"},
		},
	}
	multi := &models.Question{
		PublicID: "q-multi", Type: models.MultipleChoice, Points: 3,
		Choices: []models.Choice{
			{PublicID: "a", IsCorrect: true},
			{PublicID: "b", IsCorrect: true},
			{PublicID: "c"},
		},
	}
	answer := "3.14"
	numeric := &models.Question{
		PublicID: "q-num", Type: models.Numeric, Points: 2, CorrectAnswer: &answer,
	}
	open := &models.Question{PublicID: "q-open", Type: models.OpenEnded, Points: 5}

	tests := []struct {
		name        string
		question    *models.Question
		answer      *models.AttemptAnswer
		wantPoints  float64
		wantCorrect *bool
	}{
		{
			name:        "single correct",
			question:    single,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "a")},
			wantPoints:  2,
			wantCorrect: boolPtr(true),
		},
		{
			name:        "single wrong",
			question:    single,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "b")},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "single with two selections",
			question:    single,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "a", "b")},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "single unanswered",
			question:    single,
			answer:      &models.AttemptAnswer{},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "true false correct",
			question:    trueFalse,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "t")},
			wantPoints:  1,
			wantCorrect: boolPtr(true),
		},
		{
			name:        "multiple exact match order independent",
			question:    multi,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "b", "a")},
			wantPoints:  3,
			wantCorrect: boolPtr(true),
		},
		{
			name:        "multiple subset gets no partial credit",
			question:    multi,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "a")},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "multiple superset fails",
			question:    multi,
			answer:      &models.AttemptAnswer{SelectedChoiceIDs: choiceJSON(t, "a", "b", "c")},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "multiple empty selection fails",
			question:    multi,
			answer:      &models.AttemptAnswer{},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "numeric exact",
			question:    numeric,
			answer:      &models.AttemptAnswer{TextAnswer: strPtr("3.14")},
			wantPoints:  2,
			wantCorrect: boolPtr(true),
		},
		{
			name:        "numeric trims whitespace",
			question:    numeric,
			answer:      &models.AttemptAnswer{TextAnswer: strPtr("  3.14\n")},
			wantPoints:  2,
			wantCorrect: boolPtr(true),
		},
		{
			name:        "numeric no tolerance",
			question:    numeric,
			answer:      &models.AttemptAnswer{TextAnswer: strPtr("3.140")},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "numeric missing answer",
			question:    numeric,
			answer:      &models.AttemptAnswer{},
			wantPoints:  0,
			wantCorrect: boolPtr(false),
		},
		{
			name:        "open ended is never auto scored",
			question:    open,
			answer:      &models.AttemptAnswer{TextAnswer: strPtr("a thorough essay")},
			wantPoints:  0,
			wantCorrect: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, isCorrect := svc.CalculateScore(tt.question, tt.answer)
			if points != tt.wantPoints {
				t.Errorf("points = %v, want %v", points, tt.wantPoints)
			}
			switch {
			case tt.wantCorrect == nil && isCorrect != nil:
				t.Errorf("is_correct = %v, want nil", *isCorrect)
			case tt.wantCorrect != nil && (isCorrect == nil || *isCorrect != *tt.wantCorrect):
				t.Errorf("is_correct = %v, want %v", isCorrect, *tt.wantCorrect)
			}
		})
	}
}

func TestGradingService_GradeAttempt(t *testing.T) {
	repo := newMockRepository()
	test := fixtureTest()
	repo.addTest(test)
	svc := NewGradingService(repo, testLogger(), validator.New())
	ctx := context.Background()

	attempt := &models.TestAttempt{
		TestID: 1, UserID: "student-1", Status: models.AttemptSubmitted,
		StartedAt: time.Now().Add(-10 * time.Minute),
		ExpiresAt: time.Now().Add(20 * time.Minute),
	}
	if err := repo.Attempt().Create(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	// Only the single-choice question is answered (correctly); the rest of
	// the test still counts toward the total.
	repo.Answer().Upsert(ctx, &models.AttemptAnswer{
		AttemptID:         attempt.ID,
		QuestionID:        qSingle,
		SelectedChoiceIDs: choiceJSON(t, cSingleRight),
	})

	if err := svc.GradeAttempt(ctx, repo, attempt, test); err != nil {
		t.Fatalf("GradeAttempt() error = %v", err)
	}

	if attempt.EarnedPoints != 1 || attempt.TotalPoints != 5 {
		t.Errorf("points = %v/%v, want 1/5", attempt.EarnedPoints, attempt.TotalPoints)
	}
	if attempt.Score != 20 {
		t.Errorf("score = %v, want 20", attempt.Score)
	}
	if attempt.Passed {
		t.Error("passed = true, want false")
	}
	if attempt.Status != models.AttemptGraded || attempt.GradedAt == nil {
		t.Errorf("status = %v graded_at = %v, want graded with timestamp", attempt.Status, attempt.GradedAt)
	}

	// Every question got an answer row, including the unanswered ones.
	answers, err := repo.Answer().GetByAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != len(test.Questions) {
		t.Fatalf("answer rows = %d, want %d", len(answers), len(test.Questions))
	}
	for _, a := range answers {
		if a.QuestionID == qOpen {
			if a.IsCorrect != nil {
				t.Errorf("open question is_correct = %v, want nil", *a.IsCorrect)
			}
		} else if a.QuestionID != qSingle {
			if a.IsCorrect == nil || *a.IsCorrect {
				t.Errorf("unanswered question %s is_correct = %v, want false", a.QuestionID, a.IsCorrect)
			}
		}
	}
}

func TestGradingService_GradeAttempt_EmptyTest(t *testing.T) {
	repo := newMockRepository()
	empty := &models.Test{ID: 7, Title: "empty", DurationMinutes: 10, PassingScore: 50, Status: models.TestPublished, CreatedBy: "teacher-1"}
	repo.addTest(empty)
	svc := NewGradingService(repo, testLogger(), validator.New())
	ctx := context.Background()

	attempt := &models.TestAttempt{
		TestID: 7, UserID: "student-1", Status: models.AttemptSubmitted,
		StartedAt: time.Now(), ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	if err := repo.Attempt().Create(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	if err := svc.GradeAttempt(ctx, repo, attempt, empty); err != nil {
		t.Fatalf("GradeAttempt() error = %v", err)
	}

	// Zero total must not divide by zero; score 0 fails a 50% bar.
	if attempt.Score != 0 || attempt.Passed {
		t.Errorf("score = %v passed = %v, want 0 and false", attempt.Score, attempt.Passed)
	}
}
