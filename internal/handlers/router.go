package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type HandlerManager struct {
	testHandler        *TestHandler
	attemptHandler     *AttemptHandler
	certificateHandler *CertificateHandler
	leaderboardHandler *LeaderboardHandler
	reportHandler      *ReportHandler
	authMiddleware     *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		testHandler:        NewTestHandler(serviceManager.Test(), validator, logger),
		attemptHandler:     NewAttemptHandler(serviceManager.Attempt(), validator, logger),
		certificateHandler: NewCertificateHandler(serviceManager.Certificate(), logger),
		leaderboardHandler: NewLeaderboardHandler(serviceManager.Leaderboard(), logger),
		reportHandler:      NewReportHandler(serviceManager.Report(), logger),
		authMiddleware:     authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Certificate verification is public; everything else requires auth.
	v1.GET("/certificates/verify/:code", hm.certificateHandler.VerifyCertificate)

	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	{
		tests := authed.Group("/tests")
		{
			// Test management - Teachers and Admins only
			tests.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.testHandler.CreateTest)
			tests.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.testHandler.UpdateTest)
			tests.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.testHandler.DeleteTest)
			tests.POST("/:id/publish", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.testHandler.PublishTest)
			tests.POST("/:id/archive", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.testHandler.ArchiveTest)

			// Viewing - all authenticated users; students see published only
			tests.GET("", hm.testHandler.ListTests)
			tests.GET("/search", hm.testHandler.SearchTests)
			tests.GET("/:id", hm.testHandler.GetTest)

			// Attempt lifecycle
			tests.POST("/:id/start", hm.attemptHandler.StartAttempt)
			tests.POST("/:id/attempt/:attempt_id/answer", hm.attemptHandler.SaveAnswer)
			tests.POST("/:id/attempt/:attempt_id/submit", hm.attemptHandler.SubmitAttempt)
			tests.GET("/attempt/:attempt_id", hm.attemptHandler.GetAttempt)
			tests.GET("/:id/attempts-info", hm.attemptHandler.GetAttemptsInfo)

			// Results
			tests.GET("/:id/leaderboard", hm.leaderboardHandler.GetLeaderboard)
			tests.GET("/:id/results/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.reportHandler.ExportResults)

			// Certificates
			tests.POST("/:id/certificate", hm.certificateHandler.IssueCertificate)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "quiz-service",
		})
	})
}
