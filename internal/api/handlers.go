package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lotradar/server/internal/dedup"
	"lotradar/server/internal/offers"
	"lotradar/server/internal/pipeline"
)

// Runner triggers an out-of-schedule valuation run.
type Runner interface {
	TriggerRun() error
}

type Handler struct {
	archive *offers.Archive
	ledger  *dedup.Ledger
	runner  Runner
	logger  *logrus.Logger

	lastReport *pipeline.RunReport
}

type LotQuery struct {
	Status   string `form:"status"`
	District string `form:"district"`
	Limit    int    `form:"limit"`
}

func NewHandler(archive *offers.Archive, ledger *dedup.Ledger, runner Runner, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		archive: archive,
		ledger:  ledger,
		runner:  runner,
		logger:  logger,
	}
}

// SetRunner attaches the run trigger once the scheduler is built; the
// handler is created first because the run closure reports back into it.
func (h *Handler) SetRunner(runner Runner) {
	h.runner = runner
}

// SetLastReport stores the most recent run report for /api/run status.
func (h *Handler) SetLastReport(report *pipeline.RunReport) {
	h.lastReport = report
}

func (h *Handler) GetLots(c *gin.Context) {
	var query LotQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lots, err := h.archive.ListLots(query.Status, query.District, query.Limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list lots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get lots"})
		return
	}
	c.JSON(http.StatusOK, lots)
}

func (h *Handler) GetLot(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid lot id"})
		return
	}

	lot, err := h.archive.GetLot(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lot not found"})
		return
	}
	c.JSON(http.StatusOK, lot)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.archive.Stats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get lot stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetDedupStats(c *gin.Context) {
	stats, err := h.ledger.Stats()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get dedup stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get dedup stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// TriggerRun starts a valuation run in the background.
func (h *Handler) TriggerRun(c *gin.Context) {
	if h.runner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Runner not configured"})
		return
	}

	go func() {
		if err := h.runner.TriggerRun(); err != nil {
			h.logger.WithError(err).Error("Manual run failed")
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (h *Handler) GetLastRun(c *gin.Context) {
	if h.lastReport == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No runs yet"})
		return
	}
	c.JSON(http.StatusOK, h.lastReport)
}
