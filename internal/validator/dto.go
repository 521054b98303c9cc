package validator

// Request DTOs shared between handlers and services. Validation tags mirror
// the model constraints; custom rules are registered in BusinessValidator.

type ChoiceRequest struct {
	ID        string `json:"id" validate:"omitempty,uuid"`
	Text      string `json:"text" validate:"required,max=1000"`
	IsCorrect bool   `json:"correct"`
	Position  int    `json:"position" validate:"min=0"`
}

type QuestionRequest struct {
	ID            string          `json:"id" validate:"omitempty,uuid"`
	Type          string          `json:"type" validate:"required,question_type"`
	Text          string          `json:"text" validate:"required,max=2000"`
	Points        int             `json:"points" validate:"omitempty,min=1,max=100"`
	Position      int             `json:"position" validate:"min=0"`
	CorrectAnswer *string         `json:"correct_answer" validate:"omitempty,max=255"`
	Choices       []ChoiceRequest `json:"choices" validate:"omitempty,max=20,dive"`
}

type TestCreateRequest struct {
	Title           string            `json:"title" validate:"required,min=1,max=200"`
	Description     *string           `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes int               `json:"duration_minutes" validate:"required,test_duration"`
	PassingScore    int               `json:"passing_score" validate:"passing_score"`
	MaxAttempts     int               `json:"max_attempts" validate:"omitempty,max_attempts"`
	CourseID        *uint             `json:"course_id"`
	Questions       []QuestionRequest `json:"questions" validate:"omitempty,max=200,dive"`
}

type TestUpdateRequest struct {
	Title           *string           `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string           `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes *int              `json:"duration_minutes" validate:"omitempty,test_duration"`
	PassingScore    *int              `json:"passing_score" validate:"omitempty,passing_score"`
	MaxAttempts     *int              `json:"max_attempts" validate:"omitempty,max_attempts"`
	CourseID        *uint             `json:"course_id"`
	Questions       []QuestionRequest `json:"questions" validate:"omitempty,max=200,dive"`
}

type SaveAnswerRequest struct {
	QuestionID        string   `json:"question_id" validate:"required,uuid"`
	SelectedChoiceIDs []string `json:"selected_choice_ids" validate:"omitempty,max=20,dive,uuid"`
	TextAnswer        *string  `json:"text_answer" validate:"omitempty,max=10000"`
}

type SubmitAttemptRequest struct {
	Trigger string `json:"trigger" validate:"omitempty,oneof=manual time_expiry"`
}
