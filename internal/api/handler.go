package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/models"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/scheduler"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/updater"
)

// Runner is the subset of *scheduler.Runner the API drives.
type Runner interface {
	Tables() []string
	Running(table string) bool
	RunTable(ctx context.Context, table string) (updater.Result, error)
	Recent(ctx context.Context, table string, limit int) ([]*models.UpdateRun, error)
}

type Handler struct {
	runner  Runner
	service string
	log     zerolog.Logger
}

func NewHandler(runner Runner, service string, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, service: service, log: log}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.service,
	})
}

type tableStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

func (h *Handler) ListTables(c *gin.Context) {
	names := h.runner.Tables()
	tables := make([]tableStatus, 0, len(names))
	for _, name := range names {
		tables = append(tables, tableStatus{Name: name, Running: h.runner.Running(name)})
	}
	c.JSON(http.StatusOK, gin.H{"tables": tables})
}

// TriggerUpdate runs the table update synchronously and returns its result.
func (h *Handler) TriggerUpdate(c *gin.Context) {
	table := c.Param("table")

	res, err := h.runner.RunTable(c.Request.Context(), table)
	if err != nil {
		status := statusFor(err)
		body := gin.H{"error": err.Error(), "table": table}
		if kind := updater.KindOf(err); kind != "" {
			body["kind"] = kind
		}
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("table", table).Msg("Triggered update failed")
		}
		c.JSON(status, body)
		return
	}

	h.log.Info().
		Str("table", table).
		Int("records", res.RecordsProcessed).
		Msg("Triggered update finished")
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListRuns(c *gin.Context) {
	table := c.Param("table")

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	runs, err := h.runner.Recent(c.Request.Context(), table, limit)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("table", table).Msg("Failed to list runs")
		}
		c.JSON(status, gin.H{"error": err.Error(), "table": table})
		return
	}
	if runs == nil {
		runs = []*models.UpdateRun{}
	}
	c.JSON(http.StatusOK, gin.H{"table": table, "runs": runs})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scheduler.ErrUnknownTable):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return http.StatusConflict
	}
	switch updater.KindOf(err) {
	case updater.KindDownload, updater.KindArchiveIntegrity:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
