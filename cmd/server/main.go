package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/moritani/inventory-api/internal/config"
	"github.com/moritani/inventory-api/internal/database"
	"github.com/moritani/inventory-api/internal/handlers"
	"github.com/moritani/inventory-api/internal/middleware"
	"github.com/moritani/inventory-api/internal/queue"
	"github.com/moritani/inventory-api/internal/repository"
	"github.com/moritani/inventory-api/internal/services"
	"github.com/moritani/inventory-api/internal/token"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	// Connect to database
	if err := database.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis backs the workspace-list cache and one-time codes
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	// Outbound notifications go through RabbitMQ
	notifier := queue.NewAMQPNotifier(cfg.RabbitURL)

	// Token codec
	codec := token.NewCodec(cfg.JWTSecret, cfg.AccessTTL, cfg.RefreshTTL)

	// Repositories
	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	itemRepo := repository.NewItemRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// Services
	authService := services.NewAuthService(userRepo, codec, cfg.BcryptCost)
	workspaceService := services.NewWorkspaceService(workspaceRepo, userRepo, settingRepo, rdb, notifier)
	categoryService := services.NewCategoryService(categoryRepo, userRepo)
	itemService := services.NewItemService(itemRepo, categoryService)
	verificationService := services.NewVerificationService(userRepo, rdb, notifier)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(verificationService)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaceService)
	categoryHandler := handlers.NewCategoryHandler(categoryService)
	itemHandler := handlers.NewItemHandler(itemService)
	sharedHandler := handlers.NewSharedHandler(categoryService, itemService)

	// Initialize Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Inventory API is running",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public except logout/me)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", middleware.RequireAuth(codec), authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(codec), authHandler.GetCurrentUser)
			auth.POST("/email-change", middleware.RequireAuth(codec), userHandler.RequestEmailChange)
			auth.POST("/email-change/confirm", middleware.RequireAuth(codec), userHandler.ConfirmEmailChange)
		}

		// Publicly shared categories (no auth)
		api.GET("/shared/:token", sharedHandler.GetSharedCategory)

		// Workspace routes (protected)
		workspaces := api.Group("/workspaces")
		workspaces.Use(middleware.RequireAuth(codec))
		{
			workspaces.POST("", workspaceHandler.CreateWorkspace)
			workspaces.GET("", workspaceHandler.ListWorkspaces)
			workspaces.GET("/active", workspaceHandler.GetActiveWorkspace)
			workspaces.PUT("/active", workspaceHandler.SetActiveWorkspace)
			workspaces.GET("/:id", workspaceHandler.GetWorkspace)
			workspaces.PUT("/:id", workspaceHandler.UpdateWorkspace)
			workspaces.DELETE("/:id", workspaceHandler.DeleteWorkspace)
			workspaces.POST("/:id/members", workspaceHandler.AddMember)
			workspaces.PUT("/:id/members/:user_id", workspaceHandler.UpdateMemberRole)
			workspaces.DELETE("/:id/members/:user_id", workspaceHandler.RemoveMember)
		}

		// Category routes (protected, workspace-scoped)
		categories := api.Group("/categories")
		categories.Use(middleware.RequireAuth(codec), middleware.RequireWorkspace(workspaceService))
		{
			categories.POST("", categoryHandler.CreateCategory)
			categories.GET("", categoryHandler.ListCategories)
			categories.GET("/:id", categoryHandler.GetCategory)
			categories.PUT("/:id", categoryHandler.UpdateCategory)
			categories.DELETE("/:id", categoryHandler.DeleteCategory)
			categories.GET("/:id/permissions", categoryHandler.ListGrants)
			categories.POST("/:id/permissions", categoryHandler.Grant)
			categories.DELETE("/:id/permissions/:user_id", categoryHandler.Revoke)
			categories.POST("/:id/share", categoryHandler.Share)
			categories.DELETE("/:id/share", categoryHandler.Unshare)
		}

		// Item routes (protected, workspace-scoped)
		items := api.Group("/items")
		items.Use(middleware.RequireAuth(codec), middleware.RequireWorkspace(workspaceService))
		{
			items.POST("", itemHandler.CreateItem)
			items.GET("", itemHandler.ListItems)
			items.GET("/:id", itemHandler.GetItem)
			items.PUT("/:id", itemHandler.UpdateItem)
			items.DELETE("/:id", itemHandler.DeleteItem)
			items.POST("/:id/use", itemHandler.UseItem)
			items.POST("/:id/restock", itemHandler.RestockItem)
			items.GET("/:id/usage", itemHandler.ListUsage)
		}
	}

	// Start server
	log.Printf("Server starting on :%s", cfg.AppPort)
	if err := r.Run(":" + cfg.AppPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
