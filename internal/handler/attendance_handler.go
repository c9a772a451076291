package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cohortly/attendance-api/internal/service"
	appErrors "github.com/cohortly/attendance-api/pkg/errors"
	"github.com/cohortly/attendance-api/pkg/response"
)

// AttendanceHandler exposes check-in, registration and correction
// endpoints.
type AttendanceHandler struct {
	attendances *service.AttendanceService
	metrics     *service.MetricsService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendances *service.AttendanceService, metrics *service.MetricsService) *AttendanceHandler {
	return &AttendanceHandler{attendances: attendances, metrics: metrics}
}

// CheckIn godoc
// @Summary Check in with a QR code
// @Tags Attendances
// @Accept json
// @Produce json
// @Param payload body service.CheckInRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Router /attendances/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	var req service.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	att, err := h.attendances.CheckIn(c.Request.Context(), req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordCheckIn(appErrors.FromError(err).Code)
		}
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCheckIn("success")
	}
	response.Created(c, att)
}

// Register godoc
// @Summary Register an attendance outcome
// @Tags Attendances
// @Accept json
// @Produce json
// @Param payload body service.RegisterAttendanceRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /attendances [post]
func (h *AttendanceHandler) Register(c *gin.Context) {
	var req service.RegisterAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	att, err := h.attendances.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// Correct godoc
// @Summary Correct an attendance record
// @Tags Attendances
// @Accept json
// @Produce json
// @Param id path string true "Attendance ID"
// @Param payload body service.CorrectAttendanceRequest true "Correction payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendances/{id} [put]
func (h *AttendanceHandler) Correct(c *gin.Context) {
	var req service.CorrectAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	att, err := h.attendances.Correct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, att, nil)
}

// ListByMember godoc
// @Summary List a member's attendance history
// @Tags Attendances
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /members/{id}/attendances [get]
func (h *AttendanceHandler) ListByMember(c *gin.Context) {
	rows, err := h.attendances.ListByMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ListBySession godoc
// @Summary List attendance records for a session
// @Tags Attendances
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sessions/{id}/attendances [get]
func (h *AttendanceHandler) ListBySession(c *gin.Context) {
	rows, err := h.attendances.ListBySession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Report godoc
// @Summary Download a session attendance report as PDF
// @Tags Attendances
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /sessions/{id}/report [get]
func (h *AttendanceHandler) Report(c *gin.Context) {
	sessionID := c.Param("id")
	payload, err := h.attendances.ExportSessionReport(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "session-report-"+sessionID+".pdf"))
	c.Data(http.StatusOK, "application/pdf", payload)
}

// Summary godoc
// @Summary Summarise a member's attendance and deposit
// @Tags Attendances
// @Produce json
// @Param id path string true "Member ID"
// @Success 200 {object} response.Envelope
// @Router /members/{id}/attendances/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.attendances.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
