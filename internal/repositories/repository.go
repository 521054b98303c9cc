package repositories

import "context"

// Repository aggregates all repository interfaces
type Repository interface {
	// Test domain
	Test() TestRepository

	// Attempt domain
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// Certificate domain
	Certificate() CertificateRepository

	// Leaderboard aggregation (read-only)
	Leaderboard() LeaderboardRepository

	// User domain (read-only for quiz service)
	User() UserRepository

	// Transaction support. fn receives a Repository whose sub-repositories
	// are scoped to the transaction.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
