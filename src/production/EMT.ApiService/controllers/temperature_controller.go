package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	telemetry "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/telemetry"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/middleware"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// TemperatureController handles temperature read and write requests
type TemperatureController struct {
	temperatureService *telemetry.Service
	logger             *logger.Logger
	authMiddleware     *middleware.AuthMiddleware
}

// NewTemperatureController creates a new temperature controller
func NewTemperatureController(temperatureService *telemetry.Service, log *logger.Logger, authMiddleware *middleware.AuthMiddleware) *TemperatureController {
	return &TemperatureController{
		temperatureService: temperatureService,
		logger:             log.WithComponent("temperature-controller"),
		authMiddleware:     authMiddleware,
	}
}

// RegisterRoutes registers the temperature routes with Gin
func (tc *TemperatureController) RegisterRoutes(router *gin.Engine) {
	auth := tc.authMiddleware.RequireAuthenticated()

	temperatures := router.Group("/api/temperature")
	{
		temperatures.GET("", auth, tc.GetAll)
		temperatures.GET("/between/:startDate/:endDate", auth, tc.GetAllBetween)
		temperatures.GET("/since/:timestamp", auth, tc.GetSince)
		temperatures.GET("/last", auth, tc.GetLast)
		temperatures.GET("/last/:count", auth, tc.GetLastN)
		temperatures.GET("/grouped/between/:startDate/:endDate", auth, tc.GetGroupedBetween)
		temperatures.GET("/from/:date", auth, tc.GetAllFromDate)
		temperatures.POST("", auth, tc.AddBatch)
		temperatures.POST("/single", auth, tc.AddSingle)
	}
}

func (tc *TemperatureController) GetAll(c *gin.Context) {
	temperatures, err := tc.temperatureService.FindAll(c.Request.Context(), nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tc.logger.Info(fmt.Sprintf("returned %d temperatures", len(temperatures)))
	c.JSON(http.StatusOK, emptyIfNil(temperatures))
}

func (tc *TemperatureController) GetAllBetween(c *gin.Context) {
	start, ok := parseTimestamp(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseTimestamp(c, "endDate")
	if !ok {
		return
	}

	temperatures, err := tc.temperatureService.FindAllBetween(c.Request.Context(), start, end, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, emptyIfNil(temperatures))
}

func (tc *TemperatureController) GetSince(c *gin.Context) {
	since, ok := parseTimestamp(c, "timestamp")
	if !ok {
		return
	}

	triple, err := tc.temperatureService.GetValueSince(c.Request.Context(), since, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	respondMinMaxMean(c, triple)
}

func (tc *TemperatureController) GetLast(c *gin.Context) {
	last, err := tc.temperatureService.GetLastValue(c.Request.Context(), nil)
	if err != nil {
		if errors.Is(err, emtmodels.ErrNoDataFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, last)
}

func (tc *TemperatureController) GetLastN(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil || count <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
		return
	}

	temperatures, err := tc.temperatureService.GetLastN(c.Request.Context(), count, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, emptyIfNil(temperatures))
}

func (tc *TemperatureController) GetGroupedBetween(c *gin.Context) {
	start, ok := parseTimestamp(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseTimestamp(c, "endDate")
	if !ok {
		return
	}

	triple, err := tc.temperatureService.GetGroupedMinMaxMean(c.Request.Context(), start, end, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	respondMinMaxMean(c, triple)
}

func (tc *TemperatureController) GetAllFromDate(c *gin.Context) {
	date, ok := parseTimestamp(c, "date")
	if !ok {
		return
	}

	triple, err := tc.temperatureService.GetAllValuesFromDate(c.Request.Context(), date, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	respondMinMaxMean(c, triple)
}

func (tc *TemperatureController) AddBatch(c *gin.Context) {
	var temperatures []emtmodels.Measurement
	if err := c.ShouldBindJSON(&temperatures); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := tc.temperatureService.SaveValues(c.Request.Context(), temperatures); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	tc.logger.Info(fmt.Sprintf("added %d temperatures", len(temperatures)))
	c.Status(http.StatusOK)
}

func (tc *TemperatureController) AddSingle(c *gin.Context) {
	var temperature emtmodels.Measurement
	if err := c.ShouldBindJSON(&temperature); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := tc.temperatureService.SaveValue(c.Request.Context(), temperature); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}
