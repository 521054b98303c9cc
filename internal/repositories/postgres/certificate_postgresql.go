package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type CertificatePostgreSQL struct {
	db *gorm.DB
}

func NewCertificatePostgreSQL(db *gorm.DB) repositories.CertificateRepository {
	return &CertificatePostgreSQL{db: db}
}

func (c *CertificatePostgreSQL) Create(ctx context.Context, cert *models.Certificate) error {
	if err := c.db.WithContext(ctx).Create(cert).Error; err != nil {
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

func (c *CertificatePostgreSQL) GetByTestAndUser(ctx context.Context, testID uint, userID string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := c.db.WithContext(ctx).
		Where("test_id = ? AND user_id = ?", testID, userID).
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &cert, nil
}

func (c *CertificatePostgreSQL) GetByVerificationCode(ctx context.Context, code string) (*models.Certificate, error) {
	var cert models.Certificate
	if err := c.db.WithContext(ctx).
		Preload("Test").
		Where("verification_code = ?", code).
		First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get certificate by code: %w", err)
	}
	return &cert, nil
}
