package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportResults produces an xlsx workbook with one row per graded attempt of
// the test. Only the creator (or an admin) may export.
func (s *reportService) ExportResults(ctx context.Context, testID uint, userID string) ([]byte, string, error) {
	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, "", ErrTestNotFound
		}
		return nil, "", fmt.Errorf("failed to get test: %w", err)
	}

	if test.CreatedBy != userID {
		isAdmin, roleErr := s.repo.User().HasRole(ctx, userID, models.RoleAdmin)
		if roleErr != nil || !isAdmin {
			return nil, "", NewPermissionError(userID, testID, "test", "export_results", "not the creator")
		}
	}

	attempts, err := s.repo.Attempt().GetGradedByTest(ctx, testID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load graded attempts: %w", err)
	}

	names := s.resolveNames(ctx, attempts)

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Attempt ID", "User", "User ID", "Started At", "Submitted At", "Trigger", "Earned Points", "Total Points", "Score", "Passed"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, attempt := range attempts {
		trigger := ""
		if attempt.SubmitTrigger != nil {
			trigger = string(*attempt.SubmitTrigger)
		}
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.Format(time.RFC3339)
		}

		values := []interface{}{
			attempt.ID,
			names[attempt.UserID],
			attempt.UserID,
			attempt.StartedAt.Format(time.RFC3339),
			submittedAt,
			trigger,
			attempt.EarnedPoints,
			attempt.TotalPoints,
			attempt.Score,
			attempt.Passed,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	filename := fmt.Sprintf("test-%d-results-%s.xlsx", testID, time.Now().Format("2006-01-02"))

	s.logger.Info("Results exported",
		"test_id", testID,
		"rows", len(attempts),
		"user_id", userID)

	return buf.Bytes(), filename, nil
}

func (s *reportService) resolveNames(ctx context.Context, attempts []*models.TestAttempt) map[string]string {
	names := make(map[string]string)
	if len(attempts) == 0 {
		return names
	}

	seen := make(map[string]bool)
	ids := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		if !seen[attempt.UserID] {
			seen[attempt.UserID] = true
			ids = append(ids, attempt.UserID)
		}
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve user names for export", "error", err)
		return names
	}
	for _, user := range users {
		names[user.ID] = user.FullName
	}
	return names
}
