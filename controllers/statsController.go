package controllers

import (
	"fmt"
	"net/http"
	"strconv"

	"smrms-be/reports"
	"smrms-be/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultSeriesMonths = 12
	maxSeriesMonths     = 60
)

type StatsController struct {
	stats *services.StatsService
	log   *zap.Logger
}

func NewStatsController(stats *services.StatsService, log *zap.Logger) *StatsController {
	return &StatsController{stats: stats, log: log}
}

func (h *StatsController) Dashboard(c *gin.Context) {
	d, err := h.stats.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func monthsParam(c *gin.Context) (int, bool) {
	months, err := strconv.Atoi(c.DefaultQuery("months", strconv.Itoa(defaultSeriesMonths)))
	if err != nil || months < 1 || months > maxSeriesMonths {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("months must be between 1 and %d", maxSeriesMonths)})
		return 0, false
	}
	return months, true
}

func (h *StatsController) Monthly(c *gin.Context) {
	months, ok := monthsParam(c)
	if !ok {
		return
	}
	series, err := h.stats.MonthlySeries(c.Request.Context(), months)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// Export downloads the dashboard and monthly series as an xlsx workbook.
func (h *StatsController) Export(c *gin.Context) {
	months, ok := monthsParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	d, err := h.stats.Dashboard(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	series, err := h.stats.MonthlySeries(ctx, months)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	raw, err := reports.StatsWorkbook(d, series)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	name := fmt.Sprintf("smrms-stats-%s.xlsx", d.GeneratedAt.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, reports.ContentTypeXLSX, raw)
}
