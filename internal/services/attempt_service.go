package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// submitGracePeriod is how long after the deadline a manual submit is still
// accepted as manual. Beyond it the trigger is coerced to time_expiry.
const submitGracePeriod = 30 * time.Second

type attemptService struct {
	repo         repositories.Repository
	logger       *slog.Logger
	validator    *validator.Validator
	grading      GradingService
	certificates CertificateService
	events       events.Publisher
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, grading GradingService, certificates CertificateService, publisher events.Publisher) AttemptService {
	return &attemptService{
		repo:         repo,
		logger:       logger,
		validator:    validator,
		grading:      grading,
		certificates: certificates,
		events:       publisher,
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

// Start begins an attempt, or returns the unexpired active one unchanged.
// An expired active attempt is auto-submitted first, then the quota decides
// whether a fresh attempt may begin.
func (s *attemptService) Start(ctx context.Context, testID uint, userID string) (*AttemptResponse, error) {
	s.logger.Info("Starting test attempt",
		"test_id", testID,
		"user_id", userID)

	test, err := s.repo.Test().GetByIDWithQuestions(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if test.Status != models.TestPublished {
		return nil, ErrTestNotPublished
	}

	var attempt *models.TestAttempt
	var autoSubmitted *models.TestAttempt

	// An expired active attempt is closed out in its own transaction, so its
	// grade stays durable even when the quota then rejects a new start.
	err = s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		// The row lock serializes concurrent starts for the same test and user.
		active, err := r.Attempt().GetActiveAttemptForUpdate(ctx, testID, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil
			}
			return fmt.Errorf("failed to check active attempt: %w", err)
		}

		if !active.IsExpired(time.Now()) {
			// Idempotent start: the caller gets the running attempt back,
			// with whatever answers it already saved.
			full, err := r.Attempt().GetByIDWithAnswers(ctx, active.ID)
			if err != nil {
				return fmt.Errorf("failed to load active attempt: %w", err)
			}
			attempt = full
			return nil
		}

		if err := s.finalizeAttempt(ctx, r, active, test, models.TriggerTimeExpiry); err != nil {
			return fmt.Errorf("failed to auto-submit expired attempt: %w", err)
		}
		autoSubmitted = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	if autoSubmitted != nil {
		s.afterGraded(ctx, autoSubmitted, test)
	}

	if attempt != nil {
		return s.buildAttemptResponse(attempt, test, true), nil
	}

	err = s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		// Re-check under lock: another request may have begun an attempt
		// between the two transactions.
		active, err := r.Attempt().GetActiveAttemptForUpdate(ctx, testID, userID)
		if err != nil && !repositories.IsNotFoundError(err) {
			return fmt.Errorf("failed to check active attempt: %w", err)
		}
		now := time.Now()
		if active != nil && !active.IsExpired(now) {
			attempt = active
			return nil
		}

		completed, err := r.Attempt().CountCompleted(ctx, testID, userID)
		if err != nil {
			return fmt.Errorf("failed to count completed attempts: %w", err)
		}
		if completed >= int64(test.EffectiveMaxAttempts()) {
			return ErrAttemptLimitExceeded
		}

		attempt = &models.TestAttempt{
			TestID:    testID,
			UserID:    userID,
			Status:    models.AttemptInProgress,
			StartedAt: now,
			ExpiresAt: now.Add(time.Duration(test.DurationMinutes) * time.Minute),
		}
		if err := r.Attempt().Create(ctx, attempt); err != nil {
			return fmt.Errorf("failed to create attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Test attempt started",
		"attempt_id", attempt.ID,
		"test_id", testID,
		"user_id", userID,
		"expires_at", attempt.ExpiresAt)

	return s.buildAttemptResponse(attempt, test, true), nil
}

// SaveAnswer upserts one answer while the clock runs. A save against an
// expired attempt auto-submits it and reports the expiry.
func (s *attemptService) SaveAnswer(ctx context.Context, testID, attemptID uint, req *SaveAnswerRequest, userID string) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	var expired *models.TestAttempt
	var test *models.Test

	err := s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		attempt, err := s.loadOwnedAttempt(ctx, r, testID, attemptID, userID, "save_answer")
		if err != nil {
			return err
		}

		if attempt.IsTerminal() {
			return ErrAttemptNotActive
		}

		test, err = r.Test().GetByIDWithQuestions(ctx, attempt.TestID)
		if err != nil {
			return fmt.Errorf("failed to get test: %w", err)
		}

		if attempt.IsExpired(time.Now()) {
			if err := s.finalizeAttempt(ctx, r, attempt, test, models.TriggerTimeExpiry); err != nil {
				return fmt.Errorf("failed to auto-submit expired attempt: %w", err)
			}
			expired = attempt
			return nil
		}

		question := findQuestion(test, req.QuestionID)
		if question == nil {
			return ErrQuestionNotFound
		}

		answer, err := buildAnswer(attempt.ID, question, req)
		if err != nil {
			return err
		}
		if err := r.Answer().Upsert(ctx, answer); err != nil {
			return fmt.Errorf("failed to save answer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if expired != nil {
		s.afterGraded(ctx, expired, test)
		return ErrAttemptTimeExpired
	}

	s.logger.Info("Answer saved",
		"attempt_id", attemptID,
		"question_id", req.QuestionID,
		"user_id", userID)
	return nil
}

// Submit closes the attempt and grades it in the same transaction. A
// terminal attempt is returned unchanged, making submit idempotent.
func (s *attemptService) Submit(ctx context.Context, testID, attemptID uint, req *SubmitAttemptRequest, userID string) (*AttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	trigger := models.TriggerManual
	if req.Trigger == string(models.TriggerTimeExpiry) {
		trigger = models.TriggerTimeExpiry
	}

	var attempt *models.TestAttempt
	var test *models.Test
	var justGraded bool

	err := s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		var err error
		attempt, err = s.loadOwnedAttempt(ctx, r, testID, attemptID, userID, "submit")
		if err != nil {
			return err
		}

		if attempt.IsTerminal() {
			return nil
		}

		test, err = r.Test().GetByIDWithQuestions(ctx, attempt.TestID)
		if err != nil {
			return fmt.Errorf("failed to get test: %w", err)
		}

		now := time.Now()
		if attempt.IsExpired(now) {
			// Manual submits keep their trigger inside the grace window;
			// anything later counts as a timeout.
			if trigger != models.TriggerManual || now.Sub(attempt.ExpiresAt) > submitGracePeriod {
				trigger = models.TriggerTimeExpiry
			}
		}

		if err := s.finalizeAttempt(ctx, r, attempt, test, trigger); err != nil {
			return err
		}
		justGraded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if justGraded {
		s.afterGraded(ctx, attempt, test)
		s.logger.Info("Test attempt submitted",
			"attempt_id", attempt.ID,
			"user_id", userID,
			"trigger", string(trigger),
			"score", attempt.Score)
	}

	return s.buildAttemptResponse(attempt, nil, false), nil
}

// ===== GET OPERATIONS =====

// GetByID returns the attempt with its answers. Expiry is evaluated lazily:
// an in-progress attempt past its deadline is auto-submitted before being
// returned.
func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	var attempt *models.TestAttempt
	var test *models.Test
	var autoSubmitted bool

	err := s.repo.WithTransaction(ctx, func(r repositories.Repository) error {
		// Lock first so a concurrent submit cannot slip between the status
		// check and the finalize below.
		locked, err := r.Attempt().GetByIDForUpdate(ctx, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if locked.UserID != userID {
			return NewPermissionError(userID, attemptID, "attempt", "read", "not owned by user")
		}

		if locked.Status == models.AttemptInProgress && locked.IsExpired(time.Now()) {
			t, err := r.Test().GetByIDWithQuestions(ctx, locked.TestID)
			if err != nil {
				return fmt.Errorf("failed to get test: %w", err)
			}
			if err := s.finalizeAttempt(ctx, r, locked, t, models.TriggerTimeExpiry); err != nil {
				return fmt.Errorf("failed to auto-submit expired attempt: %w", err)
			}
			autoSubmitted = true
		}

		attempt, err = r.Attempt().GetByIDWithAnswers(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("failed to get attempt: %w", err)
		}
		test = &attempt.Test
		return nil
	})
	if err != nil {
		return nil, err
	}

	if autoSubmitted {
		s.afterGraded(ctx, attempt, test)
	}

	return s.buildAttemptResponse(attempt, test, true), nil
}

// GetAttemptsInfo reports the quota state. An in-progress attempt does not
// block starting, because start is idempotent.
func (s *attemptService) GetAttemptsInfo(ctx context.Context, testID uint, userID string) (*AttemptsInfoResponse, error) {
	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	completed, err := s.repo.Attempt().CountCompleted(ctx, testID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completed attempts: %w", err)
	}

	maxAttempts := test.EffectiveMaxAttempts()
	return &AttemptsInfoResponse{
		CompletedAttempts: int(completed),
		MaxAttempts:       maxAttempts,
		CanStart:          int(completed) < maxAttempts,
	}, nil
}
