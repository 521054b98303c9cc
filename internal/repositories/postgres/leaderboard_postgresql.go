package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type LeaderboardPostgreSQL struct {
	db *gorm.DB
}

func NewLeaderboardPostgreSQL(db *gorm.DB) repositories.LeaderboardRepository {
	return &LeaderboardPostgreSQL{db: db}
}

// GetByTest ranks users by their graded attempts on a test. Each user
// contributes the earned points of their best attempt; ties break on
// average score across all their graded attempts.
func (l *LeaderboardPostgreSQL) GetByTest(ctx context.Context, testID uint, limit int) ([]*repositories.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []*repositories.LeaderboardEntry
	err := l.db.WithContext(ctx).
		Model(&models.TestAttempt{}).
		Select(`user_id,
			MAX(earned_points) AS total_points,
			AVG(score) AS average_score,
			MAX(score) AS best_score,
			COUNT(*) AS attempts`).
		Where("test_id = ? AND status = ?", testID, models.AttemptGraded).
		Group("user_id").
		Order("total_points DESC, average_score DESC").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard: %w", err)
	}

	for i, entry := range entries {
		entry.Rank = i + 1
	}
	return entries, nil
}
