package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	auth "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/implementation/auth"
	"gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.ApiService/middleware"
	logger "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Logger"
	emtmodels "gitlab.com/gridsense1/emt.telemetry_server/src/production/EMT.Models"
)

// UserController handles registration and credential verification
type UserController struct {
	authService    *auth.AuthService
	logger         *logger.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewUserController creates a new user controller
func NewUserController(authService *auth.AuthService, log *logger.Logger, authMiddleware *middleware.AuthMiddleware) *UserController {
	return &UserController{
		authService:    authService,
		logger:         log.WithComponent("user-controller"),
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers the user routes with Gin. Register and verify
// are the public entry points; everything else needs a valid token.
func (uc *UserController) RegisterRoutes(router *gin.Engine) {
	users := router.Group("/api/user")
	{
		users.GET("", uc.authMiddleware.RequireAuthenticated(), uc.GetAll)
		users.POST("/register", uc.Register)
		users.POST("/verify", uc.Verify)
	}
}

func (uc *UserController) GetAll(c *gin.Context) {
	users, err := uc.authService.FindAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	uc.logger.Info(fmt.Sprintf("returned %d users", len(users)))
	c.JSON(http.StatusOK, users)
}

func (uc *UserController) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := uc.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, emtmodels.ErrUserAlreadyRegistered) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	uc.logger.Info("user " + user.Username + " registered")
	c.JSON(http.StatusOK, user)
}

// Verify checks credentials and, on success, issues the session token in
// the Authorization response header. The body carries the boolean result.
func (uc *UserController) Verify(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := uc.authService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, emtmodels.ErrUserNotFound) {
			uc.logger.Info("user " + req.Username + " was not found")
			c.JSON(http.StatusNotFound, false)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if token == nil {
		uc.logger.Info("user " + req.Username + " has not been successfully verified")
		c.JSON(http.StatusOK, false)
		return
	}

	uc.logger.Info("user " + req.Username + " has been successfully verified")
	c.Header("Authorization", "Bearer "+token.Token)
	c.JSON(http.StatusOK, true)
}
