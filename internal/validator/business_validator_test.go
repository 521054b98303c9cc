package validator

import (
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func validCreateRequest() *TestCreateRequest {
	return &TestCreateRequest{
		Title:           "Algorithms midterm",
		DurationMinutes: 60,
		PassingScore:    50,
		Questions: []QuestionRequest{
			{
				Type: string(models.SingleChoice),
				Text: "Complexity of binary search?",
				Choices: []ChoiceRequest{
					{Text: "O(log n)", IsCorrect: true},
					{Text: "O(n)"},
				},
			},
		},
	}
}

func TestBusinessValidator_ValidateTestCreate(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name    string
		mutate  func(*TestCreateRequest)
		wantErr bool
	}{
		{
			name:    "valid request",
			mutate:  func(*TestCreateRequest) {},
			wantErr: false,
		},
		{
			name:    "missing title",
			mutate:  func(req *TestCreateRequest) { req.Title = "" },
			wantErr: true,
		},
		{
			name:    "duration below minimum",
			mutate:  func(req *TestCreateRequest) { req.DurationMinutes = 0 },
			wantErr: true,
		},
		{
			name:    "duration above maximum",
			mutate:  func(req *TestCreateRequest) { req.DurationMinutes = 301 },
			wantErr: true,
		},
		{
			name:    "passing score above 100",
			mutate:  func(req *TestCreateRequest) { req.PassingScore = 101 },
			wantErr: true,
		},
		{
			name:    "zero max attempts means platform default",
			mutate:  func(req *TestCreateRequest) { req.MaxAttempts = 0 },
			wantErr: false,
		},
		{
			name:    "max attempts above cap",
			mutate:  func(req *TestCreateRequest) { req.MaxAttempts = 11 },
			wantErr: true,
		},
		{
			name:    "unknown question type",
			mutate:  func(req *TestCreateRequest) { req.Questions[0].Type = "ESSAY" },
			wantErr: true,
		},
		{
			name: "single choice with no correct answer",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0].Choices[0].IsCorrect = false
			},
			wantErr: true,
		},
		{
			name: "single choice with two correct answers",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0].Choices[1].IsCorrect = true
			},
			wantErr: true,
		},
		{
			name: "true false needs exactly two choices",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0].Type = string(models.TrueFalse)
				req.Questions[0].Choices = append(req.Questions[0].Choices, ChoiceRequest{Text: "Maybe"})
			},
			wantErr: true,
		},
		{
			name: "multiple choice needs a correct choice",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0].Type = string(models.MultipleChoice)
				req.Questions[0].Choices[0].IsCorrect = false
			},
			wantErr: true,
		},
		{
			name: "numeric needs a reference answer",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0] = QuestionRequest{
					Type: string(models.Numeric),
					Text: "2+2?",
				}
			},
			wantErr: true,
		},
		{
			name: "numeric with reference answer",
			mutate: func(req *TestCreateRequest) {
				answer := "4"
				req.Questions[0] = QuestionRequest{
					Type:          string(models.Numeric),
					Text:          "2+2?",
					CorrectAnswer: &answer,
				}
			},
			wantErr: false,
		},
		{
			name: "open ended needs no choices",
			mutate: func(req *TestCreateRequest) {
				req.Questions[0] = QuestionRequest{
					Type: string(models.OpenEnded),
					Text: "Explain TCP slow start.",
				}
			},
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)
			errs := bv.ValidateTestCreate(req)
			if errs.HasErrors() != tt.wantErr {
				t.Errorf("ValidateTestCreate() errors = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestBusinessValidator_ValidateStatusTransition(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name      string
		from, to  models.TestStatus
		questions int
		wantErr   bool
	}{
		{"draft to published", models.TestDraft, models.TestPublished, 3, false},
		{"draft to archived", models.TestDraft, models.TestArchived, 0, false},
		{"published to archived", models.TestPublished, models.TestArchived, 3, false},
		{"published back to draft", models.TestPublished, models.TestDraft, 3, true},
		{"archived to published", models.TestArchived, models.TestPublished, 3, true},
		{"publish without questions", models.TestDraft, models.TestPublished, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := bv.ValidateStatusTransition(tt.from, tt.to, tt.questions)
			if errs.HasErrors() != tt.wantErr {
				t.Errorf("ValidateStatusTransition(%s, %s) errors = %v, wantErr %v",
					tt.from, tt.to, errs, tt.wantErr)
			}
		})
	}
}

func TestBusinessValidator_ValidateTestUpdate_PublishedFrozenFields(t *testing.T) {
	bv := NewBusinessValidator()
	existing := &models.Test{
		Status:          models.TestPublished,
		DurationMinutes: 30,
		PassingScore:    60,
	}

	duration := 45
	if errs := bv.ValidateTestUpdate(&TestUpdateRequest{DurationMinutes: &duration}, existing); !errs.HasErrors() {
		t.Error("duration change on published test passed validation")
	}

	score := 70
	if errs := bv.ValidateTestUpdate(&TestUpdateRequest{PassingScore: &score}, existing); !errs.HasErrors() {
		t.Error("passing score change on published test passed validation")
	}

	// Restating the current values is not a change.
	same := 30
	if errs := bv.ValidateTestUpdate(&TestUpdateRequest{DurationMinutes: &same}, existing); errs.HasErrors() {
		t.Errorf("no-op duration update failed validation: %v", errs)
	}

	title := "renamed"
	if errs := bv.ValidateTestUpdate(&TestUpdateRequest{Title: &title}, existing); errs.HasErrors() {
		t.Errorf("title update on published test failed validation: %v", errs)
	}
}
