package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cohortly/attendance-api/internal/service"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
	"github.com/cohortly/attendance-api/pkg/response"
)

// DepositHandler exposes deposit ledger endpoints.
type DepositHandler struct {
	deposits *service.DepositService
}

// NewDepositHandler constructs DepositHandler.
func NewDepositHandler(deposits *service.DepositService) *DepositHandler {
	return &DepositHandler{deposits: deposits}
}

// History godoc
// @Summary List a membership's deposit ledger
// @Tags Deposits
// @Produce json
// @Param id path string true "Cohort membership ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /cohort-members/{id}/deposits [get]
func (h *DepositHandler) History(c *gin.Context) {
	entries, err := h.deposits.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

type adjustDepositRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// Adjust godoc
// @Summary Apply a manual deposit adjustment
// @Tags Deposits
// @Accept json
// @Produce json
// @Param id path string true "Cohort membership ID"
// @Param payload body adjustDepositRequest true "Signed amount and description"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /cohort-members/{id}/deposits/adjustments [post]
func (h *DepositHandler) Adjust(c *gin.Context) {
	var req adjustDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.deposits.Adjust(c.Request.Context(), c.Param("id"), req.Amount, req.Description)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Export godoc
// @Summary Export a membership's deposit ledger
// @Tags Deposits
// @Produce text/csv,application/pdf
// @Param id path string true "Cohort membership ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} byte
// @Security BearerAuth
// @Router /cohort-members/{id}/deposits/export [get]
func (h *DepositHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "pdf" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}

	payload, contentType, err := h.deposits.ExportHistory(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("deposit-history-%s.%s", c.Param("id"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, payload)
}
