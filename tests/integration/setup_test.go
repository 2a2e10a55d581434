package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"loanflow/internal/handlers"
	"loanflow/internal/logger"
	"loanflow/internal/middleware"
	"loanflow/internal/models"
	"loanflow/internal/services"
	"loanflow/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.LoanRequest{},
		&models.StatusHistoryEntry{},
		&models.NeedsListItem{},
		&models.Document{},
		&models.Notification{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	// Collaborators
	store, err := services.NewLocalDocumentStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create document store: %v", err)
	}
	renderer := services.NewTextTermSheetRenderer(store)
	emailQueue := services.NewLogEmailQueue("noreply@test.com")
	gateway := services.NewManualPaymentGateway()

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db, emailQueue)
	statusService := services.NewStatusService(db, notificationService)
	eligibilityService := services.NewEligibilityService(nil)
	needsListService := services.NewNeedsListService(db)
	documentService := services.NewDocumentService(db, store, notificationService)
	loanService := services.NewLoanService(db, statusService, eligibilityService, needsListService, notificationService, renderer)
	paymentService := services.NewPaymentService(db, gateway, statusService, notificationService)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	loanHandler := handlers.NewLoanHandler(loanService, statusService, auditService)
	needsListHandler := handlers.NewNeedsListHandler(needsListService, loanService, auditService)
	documentHandler := handlers.NewDocumentHandler(documentService, loanService, auditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	v1.POST("/webhooks/payments", paymentHandler.Webhook)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

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

	protected.DELETE("/documents/:documentId", documentHandler.Delete)

	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.POST("/:notificationId/read", notificationHandler.MarkRead)

	ops := protected.Group("/ops")
	ops.Use(middleware.RequireStaff())
	ops.GET("/pipeline", loanHandler.GetPipeline)
	ops.POST("/loans/:id/quote", loanHandler.ApproveQuote)
	ops.PUT("/loans/:id/status", loanHandler.SetStatus)
	ops.POST("/loans/:id/needs-list", needsListHandler.AddItem)
	ops.POST("/needs-list/:itemId/review", needsListHandler.ReviewItem)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// upload posts a multipart file to the test router.
func (app *testApp) upload(t *testing.T, path, folderName, itemID, fileName, contents, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.WriteString(part, contents); err != nil {
		t.Fatalf("failed to write file contents: %v", err)
	}
	if folderName != "" {
		_ = w.WriteField("folder_name", folderName)
	}
	if itemID != "" {
		_ = w.WriteField("item_id", itemID)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new borrower and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken string, userID float64) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["access_token"].(string), result["refresh_token"].(string), user["id"].(float64)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["access_token"].(string), result["refresh_token"].(string)
}

// createOpsUser provisions a staff account directly and logs it in. Staff
// accounts are never created through the public API.
func (app *testApp) createOpsUser(t *testing.T, email string) (accessToken string) {
	t.Helper()
	userService := services.NewUserService(app.DB)
	if _, err := userService.CreateUser(email, "password123", "Ops", "User", models.RoleOps); err != nil {
		t.Fatalf("failed to create ops user: %v", err)
	}
	token, _ := app.loginUser(t, email, "password123")
	return token
}

// createLoan creates a loan with a healthy financial snapshot and returns its ID.
func (app *testApp) createLoan(t *testing.T, token string) float64 {
	t.Helper()
	rec := app.request("POST", "/api/v1/loans", `{
		"property_type": "multi_family",
		"request_type": "purchase",
		"property_value": 750000,
		"requested_ltv": 75,
		"documentation_type": "full_doc",
		"annual_rental_income": 96000,
		"annual_operating_expenses": 24000,
		"annual_loan_payments": 58500
	}`, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create loan failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	loan := result["loan"].(map[string]interface{})
	return loan["id"].(float64)
}
