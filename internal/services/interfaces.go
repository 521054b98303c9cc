package services

import (
	"context"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ===== REQUEST TYPES (aliased from validator so tags live in one place) =====

type CreateTestRequest = validator.TestCreateRequest
type UpdateTestRequest = validator.TestUpdateRequest
type QuestionRequest = validator.QuestionRequest
type ChoiceRequest = validator.ChoiceRequest
type SaveAnswerRequest = validator.SaveAnswerRequest
type SubmitAttemptRequest = validator.SubmitAttemptRequest

// ===== RESPONSE TYPES =====

// AttemptResponse wraps an attempt with derived timing fields. Questions are
// included (sanitized for students) when loaded with details.
type AttemptResponse struct {
	*models.TestAttempt
	TimeRemainingSeconds int                `json:"time_remaining_seconds"`
	CanSubmit            bool               `json:"can_submit"`
	Questions            []*models.Question `json:"questions,omitempty"`
}

// AttemptsInfoResponse reports the quota state for a (test, user) pair.
type AttemptsInfoResponse struct {
	CompletedAttempts int  `json:"completed_attempts"`
	MaxAttempts       int  `json:"max_attempts"`
	CanStart          bool `json:"can_start"`
}

// TestResponse wraps a test; correct answers and choice correctness are
// stripped for students.
type TestResponse struct {
	*models.Test
}

// CertificateResponse is the public shape of an issued certificate.
type CertificateResponse struct {
	*models.Certificate
	TestTitle string `json:"test_title,omitempty"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error)
	SaveAnswer(ctx context.Context, testID, attemptID uint, req *SaveAnswerRequest, userID string) error
	Submit(ctx context.Context, testID, attemptID uint, req *SubmitAttemptRequest, userID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	GetAttemptsInfo(ctx context.Context, testID uint, userID string) (*AttemptsInfoResponse, error)
}

// GradingService scores a submitted attempt. GradeAttempt runs inside the
// caller's transaction scope and mutates the attempt in place.
type GradingService interface {
	GradeAttempt(ctx context.Context, repo repositories.Repository, attempt *models.TestAttempt, test *models.Test) error
	CalculateScore(question *models.Question, answer *models.AttemptAnswer) (earned float64, isCorrect *bool)
}

type TestService interface {
	Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error)
	GetByID(ctx context.Context, id uint, userID string, role models.UserRole) (*TestResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error)
	Delete(ctx context.Context, id uint, userID string) error
	List(ctx context.Context, filters repositories.TestFilters, role models.UserRole) ([]*TestResponse, int64, error)
	Search(ctx context.Context, query string, filters repositories.TestFilters, role models.UserRole) ([]*TestResponse, int64, error)
	Publish(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Archive(ctx context.Context, id uint, userID string) (*TestResponse, error)
}

type CertificateService interface {
	IssueOrGet(ctx context.Context, testID uint, userID string) (*CertificateResponse, error)
	Verify(ctx context.Context, code string) (*CertificateResponse, error)
}

type LeaderboardService interface {
	GetByTest(ctx context.Context, testID uint, limit int) ([]*repositories.LeaderboardEntry, error)
}

// ReportService produces teacher-facing exports of test results.
type ReportService interface {
	ExportResults(ctx context.Context, testID uint, userID string) ([]byte, string, error)
}

// ServiceManager wires all services together and manages their lifecycle.
type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService
	Test() TestService
	Certificate() CertificateService
	Leaderboard() LeaderboardService
	Report() ReportService

	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
	HealthCheck(ctx context.Context) error
}
