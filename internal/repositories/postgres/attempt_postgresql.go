package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAttemptPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.TestAttempt) error {
	return a.db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

// GetByIDForUpdate locks the attempt row so status checks and the writes
// that follow them serialize against concurrent saves and submits.
func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).
		Preload("Answers").
		Preload("Test").
		Preload("Test.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.position ASC")
		}).
		Preload("Test.Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("choices.position ASC")
		}).
		First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attempt with answers: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, attempt *models.TestAttempt) error {
	if err := a.db.WithContext(ctx).Save(attempt).Error; err != nil {
		return err
	}
	if attempt.Status == models.AttemptGraded {
		// A fresh grade changes the ranking; drop the cached leaderboard.
		cache.SafeInvalidatePattern(ctx, a.cacheManager.Leaderboard, fmt.Sprintf("test:%d*", attempt.TestID))
	}
	return nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	return a.getActiveAttempt(ctx, a.db, testID, userID)
}

// GetActiveAttemptForUpdate locks the active attempt row (or the gap) so
// that concurrent starts and submits for the same test and user serialize.
// Call inside WithTransaction.
func (a *AttemptPostgreSQL) GetActiveAttemptForUpdate(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	return a.getActiveAttempt(ctx, a.db.Clauses(clause.Locking{Strength: "UPDATE"}), testID, userID)
}

func (a *AttemptPostgreSQL) getActiveAttempt(ctx context.Context, db *gorm.DB, testID uint, userID string) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := db.WithContext(ctx).
		Where("test_id = ? AND user_id = ? AND status = ?", testID, userID, models.AttemptInProgress).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountCompleted(ctx context.Context, testID uint, userID string) (int64, error) {
	var count int64
	if err := a.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("test_id = ? AND user_id = ? AND status IN ?", testID, userID,
			[]models.AttemptStatus{models.AttemptSubmitted, models.AttemptGraded}).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count completed attempts: %w", err)
	}
	return count, nil
}

// GetBestGradedAttempt returns the user's highest-scoring graded attempt on
// a test.
func (a *AttemptPostgreSQL) GetBestGradedAttempt(ctx context.Context, testID uint, userID string) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).
		Where("test_id = ? AND user_id = ? AND status = ?", testID, userID, models.AttemptGraded).
		Order("score DESC, submitted_at ASC").
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get best graded attempt: %w", err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByUser(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	filters.UserID = &userID
	return a.list(ctx, a.db.WithContext(ctx).Model(&models.TestAttempt{}), filters)
}

func (a *AttemptPostgreSQL) GetByTest(ctx context.Context, testID uint, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.TestAttempt{}).Where("test_id = ?", testID)
	return a.list(ctx, query, filters)
}

func (a *AttemptPostgreSQL) GetGradedByTest(ctx context.Context, testID uint) ([]*models.TestAttempt, error) {
	var attempts []*models.TestAttempt
	if err := a.db.WithContext(ctx).
		Where("test_id = ? AND status = ?", testID, models.AttemptGraded).
		Order("submitted_at ASC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to get graded attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) list(ctx context.Context, query *gorm.DB, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	var attempts []*models.TestAttempt
	var total int64

	// apply filter first
	query = a.helpers.ApplyAttemptFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// then apply pagination and sorting
	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}
