package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cohortly/attendance-api/internal/service"
	"github.com/cohortly/attendance-api/pkg/response"
)

// QRTokenHandler exposes check-in token issuance endpoints.
type QRTokenHandler struct {
	tokens *service.QRTokenService
}

// NewQRTokenHandler constructs QRTokenHandler.
func NewQRTokenHandler(tokens *service.QRTokenService) *QRTokenHandler {
	return &QRTokenHandler{tokens: tokens}
}

// Issue godoc
// @Summary Issue a check-in token for a session
// @Tags QRTokens
// @Produce json
// @Param id path string true "Session ID"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id}/qr [post]
func (h *QRTokenHandler) Issue(c *gin.Context) {
	token, err := h.tokens.Issue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}

// Renew godoc
// @Summary Expire a token and issue its replacement
// @Tags QRTokens
// @Produce json
// @Param id path string true "QR token ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /qr-tokens/{id}/renew [put]
func (h *QRTokenHandler) Renew(c *gin.Context) {
	token, err := h.tokens.Renew(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token, nil)
}
