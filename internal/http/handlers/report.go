package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/meridianrefining/refinery-backend/internal/data/repos"
	"github.com/meridianrefining/refinery-backend/internal/http/response"
	"github.com/meridianrefining/refinery-backend/internal/pkg/dbctx"
	"github.com/meridianrefining/refinery-backend/internal/services"
)

type ReportHandler struct {
	reportService services.ReportService
}

func NewReportHandler(reportService services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func parseDateQuery(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseRangeFilter(c *gin.Context) (repos.BatchFilter, error) {
	filter := repos.BatchFilter{Pipeline: c.Query("pipeline")}
	from, err := parseDateQuery(c, "from")
	if err != nil {
		return filter, err
	}
	to, err := parseDateQuery(c, "to")
	if err != nil {
		return filter, err
	}
	filter.From = from
	filter.To = to
	return filter, nil
}

// GET /api/reports/ytd?year=2026&pipeline=gold
func (rh *ReportHandler) YTDStats(c *gin.Context) {
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		year = parsed
	}
	stats, err := rh.reportService.YTDStats(dbctx.Context{Ctx: c.Request.Context()}, year, c.Query("pipeline"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /api/reports/throughput?pipeline=gold&from=2026-01-01&to=2026-06-30
func (rh *ReportHandler) StationThroughput(c *gin.Context) {
	filter, err := parseRangeFilter(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rows, err := rh.reportService.StationThroughput(dbctx.Context{Ctx: c.Request.Context()}, filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"stations": rows})
}

// GET /api/reports/operators?from=2026-01-01&to=2026-06-30
func (rh *ReportHandler) OperatorPerformance(c *gin.Context) {
	filter, err := parseRangeFilter(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rows, err := rh.reportService.OperatorPerformance(dbctx.Context{Ctx: c.Request.Context()}, filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"operators": rows})
}
