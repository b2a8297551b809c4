// backend-go/internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autoplan/backend-go/internal/api/handlers"
	"github.com/andresuchdata/autoplan/backend-go/internal/api/middleware"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	PlanningService *service.PlanningService
	// Metrics serves /metrics when set
	Metrics http.Handler
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.Metrics != nil {
			router.GET("/metrics", gin.WrapH(services.Metrics))
		}

		if services.PlanningService != nil {
			planningHandler := handlers.NewPlanningHandler(services.PlanningService)
			runGroup := apiGroup.Group("/runs")
			{
				runGroup.POST("", planningHandler.CreateRun)
				runGroup.GET("", planningHandler.ListRuns)
				runGroup.GET("/:id/decisions", planningHandler.GetRunDecisions)
			}
			apiGroup.POST("/sandbox/evaluate", planningHandler.Evaluate)

			blueprintHandler := handlers.NewBlueprintHandler(services.PlanningService)
			blueprintGroup := apiGroup.Group("/blueprints/:kind")
			{
				blueprintGroup.GET("", blueprintHandler.GetBlueprint)
				blueprintGroup.PUT("", blueprintHandler.PutBlueprint)
				blueprintGroup.POST("/compare", blueprintHandler.CompareBlueprint)
			}

			policyGroup := apiGroup.Group("/companies/:company/policies/:kind")
			{
				policyGroup.GET("", blueprintHandler.GetSegmentPolicies)
				policyGroup.PUT("/:segment", blueprintHandler.PutSegmentPolicy)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
