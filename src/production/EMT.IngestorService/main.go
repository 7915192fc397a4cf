package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Config"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.IngestorService/client"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.IngestorService/ingestor"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
)

func main() {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	log := logger.NewLogger(&cfg.Logging).WithService("ingestor-service")
	log.Info("Starting MQTT Ingestor Service")

	// Create API client
	apiClient := client.NewAPIClient(cfg.ApiServiceURL, cfg.APIUsername, cfg.APIPassword)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create and start MQTT ingestor
	ing := ingestor.New(cfg, apiClient, log)
	if err := ing.Start(ctx); err != nil {
		log.FatalWithError(err, "Failed to start MQTT ingestor")
	}

	// Start health check server
	go startHealthServer(cfg, log, ing, apiClient)

	log.Info("MQTT ingestor running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("Shutting down...")
	cancel()
	ing.Stop()
}

// startHealthServer starts a simple HTTP server for health checks
func startHealthServer(cfg *config.IngestorConfig, log *logger.Logger, ing *ingestor.Ingestor, apiClient *client.APIClient) {
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		mqttStatus := "disconnected"
		if ing.IsConnected() {
			mqttStatus = "connected"
		}

		apiStatus := "disconnected"
		if err := apiClient.Health(ctx); err == nil {
			apiStatus = "connected"
		}

		status := "healthy"
		if mqttStatus != "connected" || apiStatus != "connected" {
			status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if status == "healthy" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		circuitBreakerStatus := apiClient.GetCircuitBreakerStatus()

		fmt.Fprintf(w, `{
			"status": "%s",
			"timestamp": "%s",
			"services": {
				"mqtt": "%s",
				"api_service": "%s"
			},
			"circuit_breaker": {
				"state": "%s",
				"failure_count": %d
			}
		}`, status, time.Now().UTC().Format(time.RFC3339), mqttStatus, apiStatus,
			circuitBreakerStatus["state"], circuitBreakerStatus["failure_count"])
	})

	log.Info("Health server starting on port " + cfg.HealthPort)
	if err := http.ListenAndServe(":"+cfg.HealthPort, nil); err != nil {
		log.FatalWithError(err, "Failed to start health server")
	}
}
