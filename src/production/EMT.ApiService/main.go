package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/controllers"
	container "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Container"
	implementation "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Repository/Implementation"

	// Auth imports
	authService "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/auth"
	jwt "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/jwt"
	telemetry "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/telemetry"
	authMiddleware "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/middleware"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
	api_models "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models/api"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger()
	logger.Info("Starting API Service")

	// Initialize stores
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize user store")
	}
	if err := ctr.InitializeInflux(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize measurement store")
	}

	db, err := ctr.GetDatabase()
	if err != nil {
		logger.FatalWithError(err, "Failed to get database connection")
	}
	influxClient, err := ctr.GetInfluxClient()
	if err != nil {
		logger.FatalWithError(err, "Failed to get influx client")
	}

	// Get configuration
	config := ctr.GetConfig()

	// Create repositories: one generic implementation, one descriptor per quantity
	org := config.Influx.Org
	logQueries := config.Influx.QueryLoggingEnable

	currentRepo := implementation.NewInfluxMeasurementRepository(influxClient, org, implementation.QuantityDescriptor{
		Quantity: emtmodels.QuantityCurrent,
		Bucket:   config.Influx.ElectricBucket,
	}, logQueries, logger)
	voltageRepo := implementation.NewInfluxMeasurementRepository(influxClient, org, implementation.QuantityDescriptor{
		Quantity: emtmodels.QuantityVoltage,
		Bucket:   config.Influx.ElectricBucket,
	}, logQueries, logger)
	gridFrequencyRepo := implementation.NewInfluxMeasurementRepository(influxClient, org, implementation.QuantityDescriptor{
		Quantity: emtmodels.QuantityGridFrequency,
		Bucket:   config.Influx.ElectricBucket,
	}, logQueries, logger)
	temperatureRepo := implementation.NewInfluxMeasurementRepository(influxClient, org, implementation.QuantityDescriptor{
		Quantity: emtmodels.QuantityTemperature,
		Bucket:   config.Influx.TemperatureBucket,
	}, logQueries, logger)
	userRepo := implementation.NewPostgresUserRepository(db)

	// Initialize JWT service for token issue/validation
	jwtConfig := api_models.Config{
		SecretKey:     config.Auth.JWTSecretKey,
		TokenDuration: config.Auth.TokenDuration,
		Issuer:        config.Auth.JWTIssuer,
	}
	jwtService := jwt.NewService(jwtConfig, logger)

	// Create auth middleware
	authMiddlewareInstance := authMiddleware.NewAuthMiddleware(jwtService, logger)

	// Initialize services
	authServiceInstance := authService.NewAuthService(userRepo, jwtService)
	currentService := telemetry.NewService(emtmodels.QuantityCurrent, currentRepo, logger)
	voltageService := telemetry.NewService(emtmodels.QuantityVoltage, voltageRepo, logger)
	gridFrequencyService := telemetry.NewService(emtmodels.QuantityGridFrequency, gridFrequencyRepo, logger)
	temperatureService := telemetry.NewService(emtmodels.QuantityTemperature, temperatureRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	// The token filter runs once per request and never rejects; protected
	// routes enforce via RequireAuthenticated.
	router.Use(authMiddlewareInstance.Identify())

	// Create controllers and register routes
	userController := controllers.NewUserController(authServiceInstance, logger, authMiddlewareInstance)
	temperatureController := controllers.NewTemperatureController(temperatureService, logger, authMiddlewareInstance)
	electricController := controllers.NewElectricQuantityController(currentService, voltageService, gridFrequencyService, logger, authMiddlewareInstance)
	healthController := controllers.NewHealthController(db, influxClient, logger)

	userController.RegisterRoutes(router)
	temperatureController.RegisterRoutes(router)
	electricController.RegisterRoutes(router)
	healthController.RegisterRoutes(router)

	// Get port from configuration
	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
