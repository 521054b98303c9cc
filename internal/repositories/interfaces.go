package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	Status    *models.TestStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	CourseID  *uint              `json:"course_id"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	UserID    *string               `json:"user_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type TestStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	CompletedAttempts int     `json:"completed_attempts"`
	AverageScore      float64 `json:"average_score"`
	PassRate          float64 `json:"pass_rate"`
	QuestionCount     int     `json:"question_count"`
	TotalPoints       int     `json:"total_points"`
}

// LeaderboardEntry is one ranked row of a test's leaderboard. Points and
// score come from each user's best graded attempt.
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"user_id"`
	FullName     string  `json:"full_name"`
	TotalPoints  float64 `json:"total_points"`
	AverageScore float64 `json:"average_score"`
	BestScore    float64 `json:"best_score"`
	Attempts     int     `json:"attempts"`
}

// ===== REPOSITORY INTERFACES =====

// TestRepository interface for test definition operations
type TestRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	Delete(ctx context.Context, id uint) error

	// Query operations
	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters TestFilters) ([]*models.Test, int64, error)
	Search(ctx context.Context, query string, filters TestFilters) ([]*models.Test, int64, error)

	// Status management
	UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error

	// Validation and checks
	HasAttempts(ctx context.Context, id uint) (bool, error)
	GetStats(ctx context.Context, id uint) (*TestStats, error)
}

// AttemptRepository interface for test attempt operations
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, attempt *models.TestAttempt) error
	GetByID(ctx context.Context, id uint) (*models.TestAttempt, error)
	// GetByIDForUpdate locks the attempt row; call inside WithTransaction
	// before any status check that a concurrent submit could invalidate.
	GetByIDForUpdate(ctx context.Context, id uint) (*models.TestAttempt, error)
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error)
	Update(ctx context.Context, attempt *models.TestAttempt) error

	// Lifecycle queries. GetActiveAttemptForUpdate takes a row lock so
	// concurrent starts and submits for the same (test, user) serialize.
	GetActiveAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error)
	GetActiveAttemptForUpdate(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error)
	CountCompleted(ctx context.Context, testID uint, userID string) (int64, error)
	GetBestGradedAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error)

	// Query operations
	GetByUser(ctx context.Context, userID string, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetByTest(ctx context.Context, testID uint, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	GetGradedByTest(ctx context.Context, testID uint) ([]*models.TestAttempt, error)
}

// AnswerRepository interface for attempt answer operations
type AnswerRepository interface {
	// Upsert keyed by (attempt, question); last write wins.
	Upsert(ctx context.Context, answer *models.AttemptAnswer) error
	GetByAttemptAndQuestion(ctx context.Context, attemptID uint, questionID string) (*models.AttemptAnswer, error)
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error)
	Update(ctx context.Context, answer *models.AttemptAnswer) error
	UpdateBatch(ctx context.Context, answers []*models.AttemptAnswer) error
}

// CertificateRepository interface for certificate operations
type CertificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	GetByTestAndUser(ctx context.Context, testID uint, userID string) (*models.Certificate, error)
	GetByVerificationCode(ctx context.Context, code string) (*models.Certificate, error)
}

// LeaderboardRepository interface for ranking aggregation over graded attempts
type LeaderboardRepository interface {
	GetByTest(ctx context.Context, testID uint, limit int) ([]*LeaderboardEntry, error)
}

// UserRepository interface for user operations (quiz service is not owner
// of user data; backed by Casdoor)
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
	HasRole(ctx context.Context, id string, role models.UserRole) (bool, error)
}
