// backend-go/internal/api/handlers/planning_handler.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type PlanningHandler struct {
	planningService *service.PlanningService
}

func NewPlanningHandler(planningService *service.PlanningService) *PlanningHandler {
	return &PlanningHandler{planningService: planningService}
}

type runRequest struct {
	CompanyID string   `json:"company_id" binding:"required"`
	Kind      string   `json:"kind" binding:"required"`
	ItemIDs   []string `json:"item_ids"`
	DryRun    bool     `json:"dry_run"`
}

// CreateRun plans every item of a company for one kind
func (h *PlanningHandler) CreateRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run request", "details": err.Error()})
		return
	}

	result, err := h.planningService.Run(c.Request.Context(), service.RunRequest{
		CompanyID: req.CompanyID,
		Kind:      domain.Kind(req.Kind),
		ItemIDs:   req.ItemIDs,
		DryRun:    req.DryRun,
	})
	if err != nil {
		respondError(c, err, "failed to run planning")
		return
	}

	status := http.StatusCreated
	if req.DryRun {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// ListRuns returns the most recent runs of a company
func (h *PlanningHandler) ListRuns(c *gin.Context) {
	companyID := c.Query("company_id")
	if companyID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "company_id parameter is required"})
		return
	}
	limit := parsePositiveIntWithDefault(c.Query("limit"), 20)

	runs, err := h.planningService.ListRuns(c.Request.Context(), companyID, limit)
	if err != nil {
		respondError(c, err, "failed to list runs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRunDecisions returns the decisions stored for a run
func (h *PlanningHandler) GetRunDecisions(c *gin.Context) {
	runID := c.Param("id")
	decisions, err := h.planningService.RunDecisions(c.Request.Context(), runID)
	if err != nil {
		respondError(c, err, "failed to fetch run decisions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "decisions": decisions})
}

// Evaluate runs an expression in the sandbox
func (h *PlanningHandler) Evaluate(c *gin.Context) {
	var req service.EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid evaluate request", "details": err.Error()})
		return
	}

	result, err := service.Evaluate(req)
	if err != nil {
		var ee *service.EvalError
		if errors.As(err, &ee) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ee})
			return
		}
		respondError(c, err, "failed to evaluate expression")
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondError maps configuration problems to 400 and everything else to 500.
func respondError(c *gin.Context, err error, message string) {
	if domain.KindOf(err) == domain.ErrKindConfig {
		c.JSON(http.StatusBadRequest, gin.H{"error": message, "details": err.Error()})
		return
	}
	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.JSON(http.StatusInternalServerError, gin.H{"error": message})
}

func parsePositiveIntWithDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
