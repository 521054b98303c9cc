package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"github.com/google/uuid"
)

type testService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewTestService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) TestService {
	return &testService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== CRUD =====

func (s *testService) Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error) {
	s.logger.Info("Creating test", "title", req.Title, "creator_id", creatorID)

	if errs := s.validator.GetBusinessValidator().ValidateTestCreate(req); errs.HasErrors() {
		return nil, errs
	}

	test := &models.Test{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		PassingScore:    req.PassingScore,
		MaxAttempts:     req.MaxAttempts,
		Status:          models.TestDraft,
		CourseID:        req.CourseID,
		CreatedBy:       creatorID,
		Questions:       buildQuestions(req.Questions),
	}

	if err := s.repo.Test().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	s.logger.Info("Test created", "test_id", test.ID, "creator_id", creatorID)
	return &TestResponse{Test: test}, nil
}

func (s *testService) GetByID(ctx context.Context, id uint, userID string, role models.UserRole) (*TestResponse, error) {
	test, err := s.repo.Test().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if !canManageTest(test, userID, role) {
		if test.Status != models.TestPublished {
			return nil, ErrTestNotFound
		}
		// Students get the test without grading data.
		sanitized := *test
		sanitized.Questions = make([]models.Question, len(test.Questions))
		for i, q := range sanitizeQuestions(test) {
			sanitized.Questions[i] = *q
		}
		return &TestResponse{Test: &sanitized}, nil
	}

	return &TestResponse{Test: test}, nil
}

func (s *testService) Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error) {
	test, err := s.repo.Test().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "test", "update", "not the creator")
	}

	if errs := s.validator.GetBusinessValidator().ValidateTestUpdate(req, test); errs.HasErrors() {
		return nil, errs
	}

	applyTestUpdate(test, req)

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to update test: %w", err)
	}

	s.logger.Info("Test updated", "test_id", id, "user_id", userID)
	return &TestResponse{Test: test}, nil
}

func (s *testService) Delete(ctx context.Context, id uint, userID string) error {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrTestNotFound
		}
		return fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return NewPermissionError(userID, id, "test", "delete", "not the creator")
	}

	hasAttempts, err := s.repo.Test().HasAttempts(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check attempts: %w", err)
	}
	if hasAttempts {
		return ErrTestHasAttempts
	}

	if err := s.repo.Test().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}

	s.logger.Info("Test deleted", "test_id", id, "user_id", userID)
	return nil
}

// ===== LIST AND SEARCH =====

func (s *testService) List(ctx context.Context, filters repositories.TestFilters, role models.UserRole) ([]*TestResponse, int64, error) {
	restrictToPublished(&filters, role)

	tests, total, err := s.repo.Test().List(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tests: %w", err)
	}
	return toResponses(tests), total, nil
}

func (s *testService) Search(ctx context.Context, query string, filters repositories.TestFilters, role models.UserRole) ([]*TestResponse, int64, error) {
	restrictToPublished(&filters, role)

	tests, total, err := s.repo.Test().Search(ctx, query, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search tests: %w", err)
	}
	return toResponses(tests), total, nil
}

// ===== STATUS =====

func (s *testService) Publish(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	return s.transition(ctx, id, userID, models.TestPublished)
}

func (s *testService) Archive(ctx context.Context, id uint, userID string) (*TestResponse, error) {
	return s.transition(ctx, id, userID, models.TestArchived)
}

func (s *testService) transition(ctx context.Context, id uint, userID string, status models.TestStatus) (*TestResponse, error) {
	test, err := s.repo.Test().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		return nil, NewPermissionError(userID, id, "test", "change_status", "not the creator")
	}

	if errs := s.validator.GetBusinessValidator().ValidateStatusTransition(test.Status, status, len(test.Questions)); errs.HasErrors() {
		return nil, errs
	}

	if err := s.repo.Test().UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	test.Status = status

	s.logger.Info("Test status changed",
		"test_id", id,
		"status", string(status),
		"user_id", userID)
	return &TestResponse{Test: test}, nil
}

// ===== HELPERS =====

// buildQuestions converts question requests into models, assigning public
// ids server-side so answers can reference them stably.
func buildQuestions(reqs []validator.QuestionRequest) []models.Question {
	questions := make([]models.Question, len(reqs))
	for i, qr := range reqs {
		position := qr.Position
		if position == 0 {
			position = i
		}
		q := models.Question{
			PublicID:      newPublicID(qr.ID),
			Type:          models.QuestionType(qr.Type),
			Text:          qr.Text,
			Points:        qr.Points,
			Position:      position,
			CorrectAnswer: qr.CorrectAnswer,
			Choices:       make([]models.Choice, len(qr.Choices)),
		}
		if q.Points == 0 {
			q.Points = 1
		}
		for j, cr := range qr.Choices {
			cp := cr.Position
			if cp == 0 {
				cp = j
			}
			q.Choices[j] = models.Choice{
				PublicID:  newPublicID(cr.ID),
				Text:      cr.Text,
				IsCorrect: cr.IsCorrect,
				Position:  cp,
			}
		}
		questions[i] = q
	}
	return questions
}

// newPublicID keeps an id provided on update, otherwise mints a fresh one.
func newPublicID(existing string) string {
	if existing != "" {
		return existing
	}
	return uuid.New().String()
}

func applyTestUpdate(test *models.Test, req *UpdateTestRequest) {
	if req.Title != nil {
		test.Title = *req.Title
	}
	if req.Description != nil {
		test.Description = req.Description
	}
	if req.DurationMinutes != nil {
		test.DurationMinutes = *req.DurationMinutes
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		test.MaxAttempts = *req.MaxAttempts
	}
	if req.CourseID != nil {
		test.CourseID = req.CourseID
	}
	if req.Questions != nil {
		test.Questions = buildQuestions(req.Questions)
	}
}

func canManageTest(test *models.Test, userID string, role models.UserRole) bool {
	return role == models.RoleAdmin || test.CreatedBy == userID
}

func restrictToPublished(filters *repositories.TestFilters, role models.UserRole) {
	if role == models.RoleStudent {
		published := models.TestPublished
		filters.Status = &published
	}
}

func toResponses(tests []*models.Test) []*TestResponse {
	responses := make([]*TestResponse, len(tests))
	for i, test := range tests {
		responses[i] = &TestResponse{Test: test}
	}
	return responses
}
