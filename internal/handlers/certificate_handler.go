package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type CertificateHandler struct {
	BaseHandler
	certificateService services.CertificateService
}

func NewCertificateHandler(certificateService services.CertificateService, logger utils.Logger) *CertificateHandler {
	return &CertificateHandler{
		BaseHandler:        NewBaseHandler(logger),
		certificateService: certificateService,
	}
}

// IssueCertificate issues (or returns) the caller's certificate for a test
// @Summary Issue certificate
// @Description Issues a certificate from the caller's best passing attempt, or returns the one already issued
// @Tags certificates
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} services.CertificateResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/certificate [post]
func (h *CertificateHandler) IssueCertificate(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Issuing certificate", "test_id", testID)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	cert, err := h.certificateService.IssueOrGet(c.Request.Context(), testID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cert)
}

// VerifyCertificate resolves a certificate by its verification code. Public,
// no authentication.
// @Summary Verify certificate
// @Tags certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} services.CertificateResponse
// @Failure 404 {object} ErrorResponse
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) VerifyCertificate(c *gin.Context) {
	code := c.Param("code")

	h.LogRequest(c, "Verifying certificate", "code", code)

	cert, err := h.certificateService.Verify(c.Request.Context(), code)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cert)
}
