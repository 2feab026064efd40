package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/netharvest/netharvest/pkg/config"
	"github.com/netharvest/netharvest/pkg/harvest"
	v1 "github.com/netharvest/netharvest/server/apis/v1"
)

func Routes(r *gin.Engine, registry *harvest.Store, settings *config.Settings, opts ...v1.HandlerOption) {
	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	v1Routes(r.Group("/api/v1"), registry, settings, opts...)
}

func v1Routes(r gin.IRouter, registry *harvest.Store, settings *config.Settings, opts ...v1.HandlerOption) {
	handler, err := v1.NewHandler(registry, settings, opts...)
	if err != nil {
		panic(err)
	}
	r.GET("/definitions", handler.ListDefinitions)
	r.POST("/definitions", handler.CreateDefinition)
	r.GET("/definitions/:definition", handler.GetDefinition)
	r.POST("/definitions/:definition/seeds", handler.AddSeeds)
	r.GET("/definitions/:definition/jobs", handler.PreviewJobs)
	r.GET("/domains", handler.ListDomains)
	r.GET("/domains/:domain/history", handler.GetDomainHistory)
	r.GET("/schedules", handler.ListSchedules)
	r.POST("/schedules", handler.CreateSchedule)
	r.GET("/batch/status", handler.BatchStatus)
}
