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
)

type TestPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewTestPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.TestRepository {
	return &TestPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (t *TestPostgreSQL) Create(ctx context.Context, test *models.Test) error {
	if err := t.db.WithContext(ctx).Create(test).Error; err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	return nil
}

func (t *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).First(&test, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	return &test, nil
}

func (t *TestPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Test, error) {
	cacheKey := fmt.Sprintf("full:%d", id)
	var test models.Test

	err := t.cacheManager.Test.CacheOrExecute(ctx, cacheKey, &test, cache.TestCacheConfig.TTL, func() (interface{}, error) {
		var dbTest models.Test
		if err := t.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("questions.position ASC")
			}).
			Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
				return db.Order("choices.position ASC")
			}).
			First(&dbTest, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.ErrNotFound
			}
			return nil, fmt.Errorf("failed to get test with questions: %w", err)
		}
		populateComputed(&dbTest)
		return &dbTest, nil
	})
	if err != nil {
		return nil, err
	}
	return &test, nil
}

func (t *TestPostgreSQL) Update(ctx context.Context, test *models.Test) error {
	if err := t.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(test).Error; err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	cache.InvalidateTestCache(ctx, t.cacheManager, test.ID, test.CreatedBy)
	return nil
}

func (t *TestPostgreSQL) Delete(ctx context.Context, id uint) error {
	if err := t.db.WithContext(ctx).Delete(&models.Test{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete test: %w", err)
	}
	t.invalidate(ctx, id)
	return nil
}

func (t *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Test{})
	return t.list(query, filters)
}

func (t *TestPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	filters.CreatedBy = &creatorID
	return t.List(ctx, filters)
}

func (t *TestPostgreSQL) Search(ctx context.Context, query string, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	q := t.db.WithContext(ctx).Model(&models.Test{}).
		Where("title ILIKE ?", "%"+query+"%")
	return t.list(q, filters)
}

func (t *TestPostgreSQL) UpdateStatus(ctx context.Context, id uint, status models.TestStatus) error {
	result := t.db.WithContext(ctx).
		Model(&models.Test{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update test status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	t.invalidate(ctx, id)
	return nil
}

func (t *TestPostgreSQL) HasAttempts(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := t.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Where("test_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count attempts: %w", err)
	}
	return count > 0, nil
}

func (t *TestPostgreSQL) GetStats(ctx context.Context, id uint) (*repositories.TestStats, error) {
	stats := &repositories.TestStats{}

	type row struct {
		Total     int64
		Completed int64
		AvgScore  float64
		Passed    int64
	}
	var r row
	if err := t.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status IN ('submitted','graded')) AS completed,
			COALESCE(AVG(score) FILTER (WHERE status = 'graded'), 0) AS avg_score,
			COUNT(*) FILTER (WHERE status = 'graded' AND passed) AS passed`).
		Where("test_id = ?", id).
		Scan(&r).Error; err != nil {
		return nil, fmt.Errorf("failed to get test stats: %w", err)
	}

	stats.TotalAttempts = int(r.Total)
	stats.CompletedAttempts = int(r.Completed)
	stats.AverageScore = r.AvgScore
	if r.Completed > 0 {
		stats.PassRate = float64(r.Passed) / float64(r.Completed) * 100
	}

	test, err := t.GetByIDWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	stats.QuestionCount = test.QuestionCount
	stats.TotalPoints = test.TotalPoints

	return stats, nil
}

func (t *TestPostgreSQL) list(query *gorm.DB, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	var tests []*models.Test
	var total int64

	query = t.helpers.ApplyTestFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = t.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&tests).Error; err != nil {
		return nil, 0, err
	}

	return tests, total, nil
}

func (t *TestPostgreSQL) invalidate(ctx context.Context, id uint) {
	cache.SafeDelete(ctx, t.cacheManager.Test, fmt.Sprintf("full:%d", id))
	cache.BatchInvalidate(ctx, t.cacheManager.Stats, []string{fmt.Sprintf("test:%d:*", id)})
}

func populateComputed(test *models.Test) {
	test.QuestionCount = len(test.Questions)
	total := 0
	for _, q := range test.Questions {
		total += q.Points
	}
	test.TotalPoints = total
}
