package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	telemetry "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/telemetry"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/middleware"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// ElectricQuantitiesRequest is the batch write payload. Empty sub-lists are
// skipped, not an error.
type ElectricQuantitiesRequest struct {
	Currents        []emtmodels.Measurement `json:"currents"`
	GridFrequencies []emtmodels.Measurement `json:"gridFrequencies"`
	Voltages        []emtmodels.Measurement `json:"voltages"`
}

// ElectricQuantitiesResponse carries raw measurement lists per quantity.
// Quantities that were not requested come back as empty lists, never null.
type ElectricQuantitiesResponse struct {
	Currents        []emtmodels.Measurement `json:"currents"`
	GridFrequencies []emtmodels.Measurement `json:"gridFrequencies"`
	Voltages        []emtmodels.Measurement `json:"voltages"`
}

// ElectricQuantitiesMinMaxMeanResponse carries the aggregate triples per
// quantity in the canonical order min, mean, max.
type ElectricQuantitiesMinMaxMeanResponse struct {
	MinCurrents         []emtmodels.Measurement `json:"minCurrents"`
	MeanCurrents        []emtmodels.Measurement `json:"meanCurrents"`
	MaxCurrents         []emtmodels.Measurement `json:"maxCurrents"`
	MinGridFrequencies  []emtmodels.Measurement `json:"minGridFrequencies"`
	MeanGridFrequencies []emtmodels.Measurement `json:"meanGridFrequencies"`
	MaxGridFrequencies  []emtmodels.Measurement `json:"maxGridFrequencies"`
	MinVoltages         []emtmodels.Measurement `json:"minVoltages"`
	MeanVoltages        []emtmodels.Measurement `json:"meanVoltages"`
	MaxVoltages         []emtmodels.Measurement `json:"maxVoltages"`
}

// ElectricQuantityController handles requests for the electrical quantities.
// Dispatch is a map keyed on the quantity enumerator, each entry carrying
// its own service.
type ElectricQuantityController struct {
	services       map[emtmodels.Quantity]*telemetry.Service
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewElectricQuantityController creates a new electric quantity controller
func NewElectricQuantityController(currentService, voltageService, gridFrequencyService *telemetry.Service, log *logger.Logger, authMiddleware *middleware.AuthMiddleware) *ElectricQuantityController {
	return &ElectricQuantityController{
		services: map[emtmodels.Quantity]*telemetry.Service{
			emtmodels.QuantityCurrent:       currentService,
			emtmodels.QuantityVoltage:       voltageService,
			emtmodels.QuantityGridFrequency: gridFrequencyService,
		},
		logger:         log.WithComponent("electric-controller"),
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the electric routes with Gin. The batch write
// endpoint is public so sensors can push without a session.
func (ec *ElectricQuantityController) RegisterRoutes(router *gin.Engine) {
	auth := ec.authMiddleware.RequireAuthenticated()

	electric := router.Group("/api/electric")
	{
		electric.GET("", auth, ec.GetAll)
		electric.GET("/between/:startDate/:endDate", auth, ec.GetAllBetween)
		electric.GET("/since/:timestamp", auth, ec.GetSince)
		electric.GET("/last", auth, ec.GetLast)
		electric.GET("/last/:count", auth, ec.GetLastN)
		electric.GET("/grouped/between/:startDate/:endDate", auth, ec.GetGroupedBetween)
	}

	router.POST("/api/electric-quantities", ec.AddBatch)
}

// requestedQuantities parses the quantities query parameter. A missing
// parameter selects all three electrical quantities.
func (ec *ElectricQuantityController) requestedQuantities(c *gin.Context) ([]emtmodels.Quantity, bool) {
	raw := c.Query("quantities")
	if raw == "" {
		return []emtmodels.Quantity{
			emtmodels.QuantityCurrent,
			emtmodels.QuantityGridFrequency,
			emtmodels.QuantityVoltage,
		}, true
	}

	var quantities []emtmodels.Quantity
	for _, part := range strings.Split(raw, ",") {
		quantity, err := emtmodels.ParseQuantity(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		if _, known := ec.services[quantity]; !known {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s is not an electric quantity", quantity)})
			return nil, false
		}
		quantities = append(quantities, quantity)
	}
	return quantities, true
}

// phasesFor returns the phase filter for one quantity. Only current and
// voltage accept phase restrictions.
func phasesFor(c *gin.Context, quantity emtmodels.Quantity) ([]emtmodels.Phase, bool) {
	switch quantity {
	case emtmodels.QuantityCurrent:
		return phasesFromQuery(c, "currentPhases")
	case emtmodels.QuantityVoltage:
		return phasesFromQuery(c, "voltagePhases")
	default:
		return nil, true
	}
}

func (ec *ElectricQuantityController) GetAll(c *gin.Context) {
	ec.collectLists(c, func(quantity emtmodels.Quantity, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
		return ec.services[quantity].FindAll(c.Request.Context(), phases)
	})
}

func (ec *ElectricQuantityController) GetAllBetween(c *gin.Context) {
	start, ok := parseTimestamp(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseTimestamp(c, "endDate")
	if !ok {
		return
	}

	ec.collectLists(c, func(quantity emtmodels.Quantity, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
		return ec.services[quantity].FindAllBetween(c.Request.Context(), start, end, phases)
	})
}

func (ec *ElectricQuantityController) GetLastN(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil || count <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid count"})
		return
	}

	ec.collectLists(c, func(quantity emtmodels.Quantity, phases []emtmodels.Phase) ([]emtmodels.Measurement, error) {
		return ec.services[quantity].GetLastN(c.Request.Context(), count, phases)
	})
}

func (ec *ElectricQuantityController) GetLast(c *gin.Context) {
	quantities, ok := ec.requestedQuantities(c)
	if !ok {
		return
	}

	response := gin.H{}
	for _, quantity := range quantities {
		phases, ok := phasesFor(c, quantity)
		if !ok {
			return
		}

		last, err := ec.services[quantity].GetLastValue(c.Request.Context(), phases)
		if err != nil {
			if errors.Is(err, emtmodels.ErrNoDataFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no %s data found", quantity)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response[string(quantity)] = last
	}

	c.JSON(http.StatusOK, response)
}

func (ec *ElectricQuantityController) GetSince(c *gin.Context) {
	since, ok := parseTimestamp(c, "timestamp")
	if !ok {
		return
	}

	ec.collectTriples(c, func(quantity emtmodels.Quantity, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
		return ec.services[quantity].GetValueSince(c.Request.Context(), since, phases)
	})
}

func (ec *ElectricQuantityController) GetGroupedBetween(c *gin.Context) {
	start, ok := parseTimestamp(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseTimestamp(c, "endDate")
	if !ok {
		return
	}

	ec.collectTriples(c, func(quantity emtmodels.Quantity, phases []emtmodels.Phase) (*emtmodels.MinMaxMean, error) {
		return ec.services[quantity].GetGroupedMinMaxMean(c.Request.Context(), start, end, phases)
	})
}

func (ec *ElectricQuantityController) AddBatch(c *gin.Context) {
	var request ElectricQuantitiesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, batch := range []struct {
		quantity emtmodels.Quantity
		values   []emtmodels.Measurement
	}{
		{emtmodels.QuantityCurrent, request.Currents},
		{emtmodels.QuantityGridFrequency, request.GridFrequencies},
		{emtmodels.QuantityVoltage, request.Voltages},
	} {
		if len(batch.values) == 0 {
			continue
		}
		if err := ec.services[batch.quantity].SaveValues(c.Request.Context(), batch.values); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.Status(http.StatusOK)
}

// collectLists fills the raw response for every requested quantity, leaving
// the rest as empty lists.
func (ec *ElectricQuantityController) collectLists(c *gin.Context, fetch func(emtmodels.Quantity, []emtmodels.Phase) ([]emtmodels.Measurement, error)) {
	quantities, ok := ec.requestedQuantities(c)
	if !ok {
		return
	}

	response := ElectricQuantitiesResponse{
		Currents:        []emtmodels.Measurement{},
		GridFrequencies: []emtmodels.Measurement{},
		Voltages:        []emtmodels.Measurement{},
	}

	for _, quantity := range quantities {
		phases, ok := phasesFor(c, quantity)
		if !ok {
			return
		}

		values, err := fetch(quantity, phases)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		switch quantity {
		case emtmodels.QuantityCurrent:
			response.Currents = emptyIfNil(values)
		case emtmodels.QuantityGridFrequency:
			response.GridFrequencies = emptyIfNil(values)
		case emtmodels.QuantityVoltage:
			response.Voltages = emptyIfNil(values)
		}
	}

	c.JSON(http.StatusOK, response)
}

// collectTriples fills the aggregate response for every requested quantity.
// An absent triple for any requested quantity yields a uniform not-found.
func (ec *ElectricQuantityController) collectTriples(c *gin.Context, fetch func(emtmodels.Quantity, []emtmodels.Phase) (*emtmodels.MinMaxMean, error)) {
	quantities, ok := ec.requestedQuantities(c)
	if !ok {
		return
	}

	response := ElectricQuantitiesMinMaxMeanResponse{
		MinCurrents:         []emtmodels.Measurement{},
		MeanCurrents:        []emtmodels.Measurement{},
		MaxCurrents:         []emtmodels.Measurement{},
		MinGridFrequencies:  []emtmodels.Measurement{},
		MeanGridFrequencies: []emtmodels.Measurement{},
		MaxGridFrequencies:  []emtmodels.Measurement{},
		MinVoltages:         []emtmodels.Measurement{},
		MeanVoltages:        []emtmodels.Measurement{},
		MaxVoltages:         []emtmodels.Measurement{},
	}

	for _, quantity := range quantities {
		phases, ok := phasesFor(c, quantity)
		if !ok {
			return
		}

		triple, err := fetch(quantity, phases)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if triple == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no data found to aggregate"})
			return
		}

		ec.logger.Info(fmt.Sprintf("min: %d, mean: %d, max: %d %s values aggregated",
			len(triple.Min), len(triple.Mean), len(triple.Max), quantity))

		switch quantity {
		case emtmodels.QuantityCurrent:
			response.MinCurrents = emptyIfNil(triple.Min)
			response.MeanCurrents = emptyIfNil(triple.Mean)
			response.MaxCurrents = emptyIfNil(triple.Max)
		case emtmodels.QuantityGridFrequency:
			response.MinGridFrequencies = emptyIfNil(triple.Min)
			response.MeanGridFrequencies = emptyIfNil(triple.Mean)
			response.MaxGridFrequencies = emptyIfNil(triple.Max)
		case emtmodels.QuantityVoltage:
			response.MinVoltages = emptyIfNil(triple.Min)
			response.MeanVoltages = emptyIfNil(triple.Mean)
			response.MaxVoltages = emptyIfNil(triple.Max)
		}
	}

	c.JSON(http.StatusOK, response)
}
