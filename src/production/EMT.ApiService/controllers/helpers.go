package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// parseTimestamp parses an RFC3339 path parameter, answering the request
// with a 400 when it is malformed.
func parseTimestamp(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Param(name)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp " + name + ": " + raw})
		return time.Time{}, false
	}
	return t, true
}

// phasesFromQuery parses a comma-separated phase list from a query
// parameter. A missing or empty parameter means no phase restriction.
func phasesFromQuery(c *gin.Context, key string) ([]emtmodels.Phase, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}

	var phases []emtmodels.Phase
	for _, part := range strings.Split(raw, ",") {
		phase, err := emtmodels.ParsePhase(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, false
		}
		phases = append(phases, phase)
	}
	return phases, true
}

// respondMinMaxMean writes an aggregate triple, translating the absent
// triple to a uniform not-found response.
func respondMinMaxMean(c *gin.Context, triple *emtmodels.MinMaxMean) {
	if triple == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data found to aggregate"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min":  emptyIfNil(triple.Min),
		"mean": emptyIfNil(triple.Mean),
		"max":  emptyIfNil(triple.Max),
	})
}

// emptyIfNil keeps JSON responses free of null lists
func emptyIfNil(ms []emtmodels.Measurement) []emtmodels.Measurement {
	if ms == nil {
		return []emtmodels.Measurement{}
	}
	return ms
}
