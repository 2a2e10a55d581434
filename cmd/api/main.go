package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"loanflow/internal/config"
	"loanflow/internal/database"
	"loanflow/internal/handlers"
	"loanflow/internal/logger"
	"loanflow/internal/middleware"
	"loanflow/internal/services"
	"loanflow/internal/validator"

	_ "loanflow/internal/docs" // Import swagger docs
)

// @title           Loanflow API
// @version         1.0
// @description     Loanflow is a commercial loan origination platform that takes borrowers from quote request through funding, with a document needs list and an ops pipeline.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.Migrate(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Register custom request validators
	validator.Register()

	// Initialize collaborators
	documentStore, err := services.NewLocalDocumentStore(appConfig.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	termSheetRenderer := services.NewTextTermSheetRenderer(documentStore)
	emailQueue := services.NewLogEmailQueue(appConfig.EmailFrom)
	paymentGateway := services.NewManualPaymentGateway()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db, emailQueue)
	statusService := services.NewStatusService(db, notificationService)
	eligibilityService := services.NewEligibilityService(nil)
	needsListService := services.NewNeedsListService(db)
	documentService := services.NewDocumentService(db, documentStore, notificationService)
	loanService := services.NewLoanService(db, statusService, eligibilityService, needsListService, notificationService, termSheetRenderer)
	paymentService := services.NewPaymentService(db, paymentGateway, statusService, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	loanHandler := handlers.NewLoanHandler(loanService, statusService, auditService)
	needsListHandler := handlers.NewNeedsListHandler(needsListService, loanService, auditService)
	documentHandler := handlers.NewDocumentHandler(documentService, loanService, auditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// Payment gateway callbacks carry no user token
	v1.POST("/webhooks/payments", paymentHandler.Webhook)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Loan routes
	loans := protected.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.PUT("/:id", loanHandler.UpdateLoan)
	loans.POST("/:id/submit", loanHandler.Submit)
	loans.POST("/:id/credit-authorization", loanHandler.AuthorizeCredit)
	loans.GET("/:id/term-sheet", loanHandler.RenderTermSheet)
	loans.POST("/:id/term-sheet/sign", loanHandler.SignTermSheet)
	loans.GET("/:id/history", loanHandler.GetHistory)
	loans.GET("/:id/needs-list", needsListHandler.GetItems)
	loans.GET("/:id/needs-list/folders", needsListHandler.GetFolders)
	loans.POST("/:id/needs-list/complete", loanHandler.CompleteNeedsList)
	loans.POST("/:id/documents", documentHandler.Upload)
	loans.GET("/:id/documents", documentHandler.GetLoanDocuments)
	loans.POST("/:id/appraisal-payment", paymentHandler.CreateAppraisalIntent)

	// Document routes
	protected.DELETE("/documents/:documentId", documentHandler.Delete)

	// Notification routes
	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.POST("/:notificationId/read", notificationHandler.MarkRead)

	// Ops pipeline routes
	ops := protected.Group("/ops")
	ops.Use(middleware.RequireStaff())
	ops.GET("/pipeline", loanHandler.GetPipeline)
	ops.POST("/loans/:id/quote", loanHandler.ApproveQuote)
	ops.PUT("/loans/:id/status", loanHandler.SetStatus)
	ops.POST("/loans/:id/needs-list", needsListHandler.AddItem)
	ops.POST("/needs-list/:itemId/review", needsListHandler.ReviewItem)

	log.Infof("Starting Loanflow backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
