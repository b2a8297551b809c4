// backend-go/internal/api/handlers/blueprint_handler.go
package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/gin-gonic/gin"
)

const maxBlueprintBytes = 1 << 20

type BlueprintHandler struct {
	planningService *service.PlanningService
}

func NewBlueprintHandler(planningService *service.PlanningService) *BlueprintHandler {
	return &BlueprintHandler{planningService: planningService}
}

func kindParam(c *gin.Context) (domain.Kind, bool) {
	kind, ok := domain.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown planning kind", "kind": c.Param("kind")})
	}
	return kind, ok
}

// GetBlueprint returns the active blueprint of a kind; ?format=yaml renders YAML.
func (h *BlueprintHandler) GetBlueprint(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	bp, err := h.planningService.Blueprint(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err, "failed to fetch blueprint")
		return
	}

	format := blueprint.FormatJSON
	contentType := "application/json; charset=utf-8"
	if strings.EqualFold(c.Query("format"), "yaml") {
		format = blueprint.FormatYAML
		contentType = "application/yaml; charset=utf-8"
	}
	body, err := blueprint.Marshal(bp, format)
	if err != nil {
		respondError(c, err, "failed to encode blueprint")
		return
	}
	c.Data(http.StatusOK, contentType, body)
}

// PutBlueprint stores a JSON or YAML blueprint document for a kind
func (h *BlueprintHandler) PutBlueprint(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBlueprintBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	format := blueprint.FormatJSON
	if strings.Contains(c.ContentType(), "yaml") {
		format = blueprint.FormatYAML
	}
	bp, err := blueprint.Parse(data, format)
	if err != nil {
		respondError(c, err, "invalid blueprint")
		return
	}
	if bp.AgentType != kind {
		c.JSON(http.StatusBadRequest, gin.H{"error": "blueprint agent_type does not match the path", "agent_type": bp.AgentType})
		return
	}

	if err := h.planningService.SaveBlueprint(c.Request.Context(), bp); err != nil {
		respondError(c, err, "failed to save blueprint")
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent_type": bp.AgentType, "default_method": bp.DefaultMethod, "methods": len(bp.Methods)})
}

// CompareBlueprint reports how an agent config deviates from the blueprint
func (h *BlueprintHandler) CompareBlueprint(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var cfg blueprint.AgentConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent config", "details": err.Error()})
		return
	}

	cmp, err := h.planningService.Compare(c.Request.Context(), kind, cfg)
	if err != nil {
		respondError(c, err, "failed to compare agent config")
		return
	}
	c.JSON(http.StatusOK, cmp)
}

// GetSegmentPolicies returns every segment policy of a company for a kind
func (h *BlueprintHandler) GetSegmentPolicies(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	policies, err := h.planningService.SegmentPolicies(c.Request.Context(), c.Param("company"), kind)
	if err != nil {
		respondError(c, err, "failed to fetch segment policies")
		return
	}
	if policies == nil {
		policies = map[string]domain.Policy{}
	}
	c.JSON(http.StatusOK, gin.H{"segments": policies})
}

// PutSegmentPolicy validates and stores one segment policy
func (h *BlueprintHandler) PutSegmentPolicy(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var p domain.Policy
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid policy", "details": err.Error()})
		return
	}

	segment := c.Param("segment")
	if err := h.planningService.SaveSegmentPolicy(c.Request.Context(), c.Param("company"), kind, segment, p); err != nil {
		respondError(c, err, "failed to save segment policy")
		return
	}
	c.JSON(http.StatusOK, gin.H{"segment": segment, "policy": p})
}
