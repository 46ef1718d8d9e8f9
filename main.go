package main

import (
	"fmt"
	"log"
	"net/http"

	"profileserver/api"
	"profileserver/config"
	"profileserver/db"
	"profileserver/uploads"
	"profileserver/utils"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware
)

// @title           ProfileServer API
// @version         1.0.0

// @description     ## ProfileServer API
// @description
// @description     **Purpose:** This is a simple biolink-style API server designed for **educational purposes only**. It demonstrates profile hosting, base64 asset uploads, and session-cookie authentication over a JSON-file-backed in-memory store. **It is NOT intended for production use.**
// @description
// @description     **High-Level Overview:**
// @description     ProfileServer allows clients to:
// @description     *   Create, browse, retrieve, and update public profiles identified by username.
// @description     *   Upload base64-encoded assets (avatars, background video/audio) and reference them from profiles by public path.
// @description     *   Record profile view counts.
// @description     *   Optionally register accounts; owned profiles can only be edited by their owner, and the server can be run in a mode requiring a session for all writes.
// @description
// @description     Profiles are public: no authentication is needed to read them. Whether writes need a session depends on the `--require-auth` server flag.

// @license.name  MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token. Browser clients use the session cookie instead.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL: Failed to load configuration: %v", err)
	}

	// --- Database ---
	database, err := db.NewDatabase(cfg)
	if err != nil {
		// NewDatabase logs specifics, including critical parse errors
		log.Fatalf("CRITICAL: Failed to initialize database: %v", err)
	}

	// --- Upload storage ---
	uploadService, err := uploads.NewService(cfg.UploadDir, cfg.PublicUploadPath)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize upload storage: %v", err)
	}

	// --- Gin Router Setup ---
	// Consider gin.ReleaseMode for production, gin.DebugMode for development
	// gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	router.Use(gin.Logger())
	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	router.Use(gin.Recovery())

	authMiddleware := utils.AuthMiddleware(cfg)
	optionalAuth := utils.OptionalAuthMiddleware(cfg)

	// --- Auth Routes ---
	authGroup := router.Group("/api/auth")
	{
		// POST /api/auth/signup
		authGroup.POST("/signup", func(c *gin.Context) {
			api.SignupHandler(c, database, cfg)
		})
		// POST /api/auth/login
		authGroup.POST("/login", func(c *gin.Context) {
			api.LoginHandler(c, database, cfg)
		})
		// POST /api/auth/logout
		authGroup.POST("/logout", func(c *gin.Context) {
			api.LogoutHandler(c, database, cfg)
		})
		// GET /api/auth/me
		authGroup.GET("/me", authMiddleware, func(c *gin.Context) {
			api.MeHandler(c, database, cfg)
		})
	}

	// --- Profile Routes ---
	// Reads are always public. Writes carry optional identity; the handlers
	// enforce ownership and the require-auth mode.
	profileGroup := router.Group("/api/profiles")
	profileGroup.Use(optionalAuth)
	{
		// GET /api/profiles (List/Browse)
		profileGroup.GET("", func(c *gin.Context) {
			api.ListProfilesHandler(c, database, cfg)
		})
		// POST /api/profiles
		profileGroup.POST("", func(c *gin.Context) {
			api.CreateProfileHandler(c, database, cfg)
		})
		// GET /api/profiles/{username}
		profileGroup.GET("/:username", func(c *gin.Context) {
			api.GetProfileHandler(c, database, cfg)
		})
		// PUT /api/profiles/{username}
		profileGroup.PUT("/:username", func(c *gin.Context) {
			api.UpdateProfileHandler(c, database, cfg)
		})
		// POST /api/profiles/{username}/view
		profileGroup.POST("/:username/view", func(c *gin.Context) {
			api.IncrementViewHandler(c, database, cfg)
		})
	}

	// --- Upload Routes ---
	uploadGroup := router.Group("/api/upload")
	{
		// POST /api/upload
		uploadGroup.POST("", func(c *gin.Context) {
			api.UploadFileHandler(c, uploadService, cfg)
		})
		// DELETE /api/upload/{filename}
		uploadGroup.DELETE("/:filename", func(c *gin.Context) {
			api.DeleteFileHandler(c, uploadService, cfg)
		})
	}

	// --- Credential Logging Routes ---
	credGroup := router.Group("/api/credentials")
	{
		// POST /api/credentials/log
		credGroup.POST("/log", func(c *gin.Context) {
			api.LogCredentialHandler(c, database, cfg)
		})
		// GET /api/credentials (requires a session)
		credGroup.GET("", authMiddleware, func(c *gin.Context) {
			api.ListCredentialLogsHandler(c, database, cfg)
		})
	}

	// --- Static uploaded assets ---
	router.Static(cfg.PublicUploadPath, cfg.UploadDir)

	// --- Swagger Route ---
	// Serve static files (CSS, JS, swagger.json) from the docs directory
	router.StaticFS("/docs", http.Dir("docs"))
	// The UI lives on a different path than the served swagger.json to avoid a route conflict.
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	// --- Start Server ---
	listenAddr := fmt.Sprintf("%s:%s", cfg.ListenAddress, cfg.ListenPort)
	log.Printf("INFO: Starting server on %s", listenAddr)

	// Use http.Server for graceful shutdown options if needed later
	server := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("CRITICAL: Server failed to start: %v", err)
	}
}
