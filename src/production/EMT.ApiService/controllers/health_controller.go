package controllers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
)

// HealthController reports liveness of the service and its stores
type HealthController struct {
	db           *sql.DB
	influxClient influxdb2.Client
	logger       *logger.Logger
}

// NewHealthController creates a new health controller
func NewHealthController(db *sql.DB, influxClient influxdb2.Client, log *logger.Logger) *HealthController {
	return &HealthController{
		db:           db,
		influxClient: influxClient,
		logger:       log.WithComponent("health-controller"),
	}
}

// RegisterRoutes registers the health routes with Gin
func (hc *HealthController) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", hc.Health)
}

func (hc *HealthController) Health(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	checks := gin.H{"status": "ok", "timestamp": time.Now().UTC()}

	if err := hc.db.PingContext(ctx); err != nil {
		hc.logger.ErrorWithError(err, "user store health check failed")
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["database"] = "up"
	}

	if ok, err := hc.influxClient.Ping(ctx); err != nil || !ok {
		hc.logger.Error("measurement store health check failed")
		checks["influx"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		checks["influx"] = "up"
	}

	if status != http.StatusOK {
		checks["status"] = "degraded"
	}

	c.JSON(status, checks)
}
