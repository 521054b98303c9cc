package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type leaderboardService struct {
	repo         repositories.Repository
	logger       *slog.Logger
	cacheManager *cache.CacheManager
}

func NewLeaderboardService(repo repositories.Repository, logger *slog.Logger, cacheManager *cache.CacheManager) LeaderboardService {
	if cacheManager == nil {
		cacheManager = cache.NewCacheManager(nil)
	}
	return &leaderboardService{
		repo:         repo,
		logger:       logger,
		cacheManager: cacheManager,
	}
}

// GetByTest returns the cached ranking for a test. The aggregation is
// recomputed on cache miss; graded writes drop the cached ranking and the
// short TTL covers anything that slips through.
func (s *leaderboardService) GetByTest(ctx context.Context, testID uint, limit int) ([]*repositories.LeaderboardEntry, error) {
	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("test:%d:limit:%d", testID, limit)
	var entries []*repositories.LeaderboardEntry

	err := s.cacheManager.Leaderboard.CacheOrExecute(ctx, cacheKey, &entries, cache.LeaderboardCacheConfig.TTL, func() (interface{}, error) {
		fresh, err := s.repo.Leaderboard().GetByTest(ctx, testID, limit)
		if err != nil {
			return nil, err
		}
		s.enrichNames(ctx, fresh)
		return fresh, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	return entries, nil
}

// enrichNames resolves display names from the user directory; rows keep the
// bare user id when the lookup fails.
func (s *leaderboardService) enrichNames(ctx context.Context, entries []*repositories.LeaderboardEntry) {
	if len(entries) == 0 {
		return
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.UserID
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve leaderboard names", "error", err)
		return
	}

	names := make(map[string]string, len(users))
	for _, user := range users {
		names[user.ID] = user.FullName
	}
	for _, entry := range entries {
		if name, ok := names[entry.UserID]; ok {
			entry.FullName = name
		}
	}
}
