package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/google/uuid"
)

type certificateService struct {
	repo   repositories.Repository
	logger *slog.Logger
	events events.Publisher
}

func NewCertificateService(repo repositories.Repository, logger *slog.Logger, publisher events.Publisher) CertificateService {
	return &certificateService{
		repo:   repo,
		logger: logger,
		events: publisher,
	}
}

// IssueOrGet returns the user's certificate for a test, creating it from the
// best passing attempt when none exists yet. One certificate per (test, user).
func (s *certificateService) IssueOrGet(ctx context.Context, testID uint, userID string) (*CertificateResponse, error) {
	existing, err := s.repo.Certificate().GetByTestAndUser(ctx, testID, userID)
	if err == nil {
		return s.buildResponse(ctx, existing), nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up certificate: %w", err)
	}

	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	best, err := s.repo.Attempt().GetBestGradedAttempt(ctx, testID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCertificateNotEarned
		}
		return nil, fmt.Errorf("failed to get best attempt: %w", err)
	}
	if !best.Passed {
		return nil, ErrCertificateNotEarned
	}

	cert := &models.Certificate{
		TestID:           testID,
		UserID:           userID,
		AttemptID:        best.ID,
		Score:            best.Score,
		VerificationCode: newVerificationCode(),
		IssuedAt:         time.Now(),
	}

	if err := s.repo.Certificate().Create(ctx, cert); err != nil {
		// A concurrent submit may have issued it first; the unique index on
		// (test, user) makes the create fail, so re-read.
		if existing, lookupErr := s.repo.Certificate().GetByTestAndUser(ctx, testID, userID); lookupErr == nil {
			return s.buildResponse(ctx, existing), nil
		}
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	s.logger.Info("Certificate issued",
		"certificate_id", cert.ID,
		"test_id", testID,
		"user_id", userID,
		"score", cert.Score)

	if err := s.events.PublishCertificateIssued(events.CertificateIssued{
		CertificateID:    cert.ID,
		TestID:           cert.TestID,
		UserID:           cert.UserID,
		AttemptID:        cert.AttemptID,
		Score:            cert.Score,
		VerificationCode: cert.VerificationCode,
		IssuedAt:         cert.IssuedAt,
	}); err != nil {
		s.logger.Error("Failed to publish certificate event",
			"certificate_id", cert.ID,
			"error", err)
	}

	resp := s.buildResponse(ctx, cert)
	resp.TestTitle = test.Title
	return resp, nil
}

// Verify resolves a certificate by its public verification code.
func (s *certificateService) Verify(ctx context.Context, code string) (*CertificateResponse, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCertificateNotFound
	}

	cert, err := s.repo.Certificate().GetByVerificationCode(ctx, code)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to verify certificate: %w", err)
	}

	return &CertificateResponse{
		Certificate: cert,
		TestTitle:   cert.Test.Title,
	}, nil
}

func (s *certificateService) buildResponse(ctx context.Context, cert *models.Certificate) *CertificateResponse {
	resp := &CertificateResponse{Certificate: cert}
	if cert.Test.Title != "" {
		resp.TestTitle = cert.Test.Title
	} else if test, err := s.repo.Test().GetByID(ctx, cert.TestID); err == nil {
		resp.TestTitle = test.Title
	}
	return resp
}

// newVerificationCode mints the 8-character uppercase code printed on the
// certificate.
func newVerificationCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}
