package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type LeaderboardHandler struct {
	BaseHandler
	leaderboardService services.LeaderboardService
}

func NewLeaderboardHandler(leaderboardService services.LeaderboardService, logger utils.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		BaseHandler:        NewBaseHandler(logger),
		leaderboardService: leaderboardService,
	}
}

// GetLeaderboard returns the ranking of graded attempts on a test
// @Summary Get leaderboard
// @Description Ranks users by their best graded attempts on the test
// @Tags leaderboard
// @Produce json
// @Param id path uint true "Test ID"
// @Param limit query int false "Max entries (default 50)"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Getting leaderboard", "test_id", testID)

	limit := h.parseIntQuery(c, "limit", 50)

	entries, err := h.leaderboardService.GetByTest(c.Request.Context(), testID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"test_id":     testID,
		"leaderboard": entries,
	})
}
