package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"cafepos/internal/domain/forecast"
	"cafepos/internal/domain/variance"
	"cafepos/internal/infrastructure/http/v1/dto"
)

// VarianceHandler serves waste, physical counts, variance and reports.
type VarianceHandler struct {
	*BaseHandler
	tracker  *variance.Tracker
	forecast *forecast.Service
}

// NewVarianceHandler creates a variance handler.
func NewVarianceHandler(base *BaseHandler, tracker *variance.Tracker, forecastService *forecast.Service) *VarianceHandler {
	return &VarianceHandler{BaseHandler: base, tracker: tracker, forecast: forecastService}
}

// LogWaste handles POST /ingredients/:id/waste
func (h *VarianceHandler) LogWaste(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.WasteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	log, err := h.tracker.LogWaste(c.Request.Context(), req.ToRequest(ingredientID), h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, log)
}

// RecordCount handles POST /ingredients/:id/counts
func (h *VarianceHandler) RecordCount(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var req dto.PhysicalCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.tracker.RecordPhysicalCount(c.Request.Context(), ingredientID, req.PhysicalQuantity, req.Notes, h.Actor(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, count)
}

// Variance handles GET /ingredients/:id/variance?from=&to=
func (h *VarianceHandler) Variance(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.PeriodQuery
	if !h.BindQuery(c, &q) {
		return
	}
	from, to, ok := h.period(c, q)
	if !ok {
		return
	}

	res, err := h.tracker.CalculateVariance(c.Request.Context(), ingredientID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, res)
}

// RecordVariance handles POST /ingredients/:id/variance
func (h *VarianceHandler) RecordVariance(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.PeriodQuery
	if !h.BindOptionalJSON(c, &q) {
		return
	}
	from, to, ok := h.period(c, q)
	if !ok {
		return
	}

	rec, err := h.tracker.RecordVariance(c.Request.Context(), ingredientID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, rec)
}

// Usage handles GET /ingredients/:id/usage?days=
func (h *VarianceHandler) Usage(c *gin.Context) {
	ingredientID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	var q dto.DaysQuery
	if !h.BindQuery(c, &q) {
		return
	}

	report, err := h.tracker.UsageReport(c.Request.Context(), ingredientID, q.Days)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// WasteReport handles GET /reports/waste?days=&wasteType=
func (h *VarianceHandler) WasteReport(c *gin.Context) {
	var q dto.WasteReportQuery
	if !h.BindQuery(c, &q) {
		return
	}
	wasteType, err := q.Type()
	if err != nil {
		h.Error(c, err)
		return
	}

	report, err := h.tracker.WasteReport(c.Request.Context(), q.Days, wasteType)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

// VarianceAnalysis handles GET /reports/variance?days=
func (h *VarianceHandler) VarianceAnalysis(c *gin.Context) {
	var q dto.DaysQuery
	if !h.BindQuery(c, &q) {
		return
	}

	analysis, err := h.tracker.VarianceAnalysis(c.Request.Context(), q.Days)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, analysis)
}

// Forecast handles GET /reports/forecast?daysBack=&daysAhead=
func (h *VarianceHandler) Forecast(c *gin.Context) {
	back := h.ParseIntQuery(c, "daysBack", forecast.DefaultDaysBack)
	ahead := h.ParseIntQuery(c, "daysAhead", forecast.DefaultDaysAhead)

	f, err := h.forecast.Forecast(c.Request.Context(), back, ahead)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, f)
}

func (h *VarianceHandler) period(c *gin.Context, q dto.PeriodQuery) (from, to *time.Time, ok bool) {
	var err error
	if from, err = dto.ParseTime("from", q.From); err != nil {
		h.Error(c, err)
		return nil, nil, false
	}
	if to, err = dto.ParseTime("to", q.To); err != nil {
		h.Error(c, err)
		return nil, nil, false
	}
	return from, to, true
}
