// Package server assembles the HTTP API: services, handlers, middleware and
// routes under /api.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	_ "pocketbook/internal/docs" // registers the OpenAPI document
	"pocketbook/internal/handlers"
	"pocketbook/internal/logger"
	"pocketbook/internal/middleware"
	"pocketbook/internal/services"
)

// Options configures NewRouter.
type Options struct {
	DB          *gorm.DB
	Tokens      *middleware.TokenManager
	CORSOrigins []string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// NewRouter wires services and handlers over opts.DB and returns the engine.
func NewRouter(opts Options) *gin.Engine {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	userService := services.NewUserServiceWithCost(opts.DB, cost)
	categoryService := services.NewCategoryService(opts.DB)
	expenseService := services.NewExpenseService(opts.DB, categoryService)

	authHandler := handlers.NewAuthHandler(userService, opts.Tokens)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	expenseHandler := handlers.NewExpenseHandler(expenseService)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS(opts.CORSOrigins))
	router.Use(middleware.ErrorHandler())
	router.NoRoute(middleware.NotFound)
	router.NoMethod(middleware.MethodNotAllowed)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group("/api")
	api.GET("/health", healthCheck(opts.DB))

	// Public routes
	api.POST("/signup/", authHandler.Signup)
	api.POST("/token/", authHandler.ObtainToken)
	api.POST("/token/refresh/", authHandler.RefreshToken)

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.Tokens, userService))

	protected.GET("/profile/", authHandler.GetProfile)

	categories := protected.Group("/categories")
	categories.GET("/", categoryHandler.ListCategories)
	categories.POST("/", categoryHandler.CreateCategory)
	categories.GET("/:id/", categoryHandler.GetCategory)
	categories.PUT("/:id/", categoryHandler.UpdateCategory)
	categories.PATCH("/:id/", categoryHandler.UpdateCategory)
	categories.DELETE("/:id/", categoryHandler.DeleteCategory)

	expenses := protected.Group("/expenses")
	expenses.GET("/", expenseHandler.ListExpenses)
	expenses.POST("/", expenseHandler.CreateExpense)
	expenses.GET("/:id/", expenseHandler.GetExpense)
	expenses.PUT("/:id/", expenseHandler.ReplaceExpense)
	expenses.PATCH("/:id/", expenseHandler.PatchExpense)
	expenses.DELETE("/:id/", expenseHandler.DeleteExpense)

	return router
}

// healthCheck reports ok while the database answers a ping.
func healthCheck(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logger.WithRequest(middleware.GetRequestID(c)).Warnw("health check failed", "error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
