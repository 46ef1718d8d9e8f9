package config

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration settings for the application.
type Config struct {
	// Server settings
	ListenAddress string
	ListenPort    string

	// Database settings
	DbFilePath   string
	SaveInterval time.Duration
	EnableBackup bool

	// Upload settings
	UploadDir        string // On-disk directory for uploaded assets
	PublicUploadPath string // URL prefix echoed back to clients

	// Credential log forwarding. Empty disables forwarding silently.
	WebhookURL string

	// Authentication settings
	RequireAuth   bool   // When true, profile create/update demand a session
	JwtSecret     string // The actual secret key
	JwtSecretFile string // Path to the file containing the secret
	TokenLifetime time.Duration
	BcryptCost    int
}

const (
	defaultAddress          = "0.0.0.0"
	defaultPort             = "8080"
	defaultDbFile           = "./profiles.json" // Relative to working dir
	defaultSaveInterval     = 3 * time.Second
	defaultEnableBackup     = true
	defaultUploadDir        = "./public/uploads"
	defaultPublicUploadPath = "/uploads"
	defaultJwtSecretFile    = ""               // No default file
	defaultJwtKeyFile       = "./profiles.key" // Default file if we generate a key
	defaultTokenLifetime    = 24 * time.Hour
	defaultBcryptCost       = 12
)

// LoadConfig loads configuration from defaults, a .env file (if present),
// environment variables, and command-line flags. Flags take precedence over
// environment variables, which take precedence over defaults.
func LoadConfig() (*Config, error) {
	// Populate the environment from .env first so the getEnv fallbacks below
	// see it. A missing file is not an error.
	if err := godotenv.Load(); err == nil {
		log.Printf("INFO: Loaded environment from .env file")
	}

	cfg := &Config{}

	// Use PROFILESERVER_ prefix for environment variables to avoid conflicts
	flag.StringVar(&cfg.ListenAddress, "address", getEnv("PROFILESERVER_LISTEN_ADDRESS", defaultAddress), "Server listen address (Env: PROFILESERVER_LISTEN_ADDRESS)")
	flag.StringVar(&cfg.ListenPort, "port", getEnv("PROFILESERVER_LISTEN_PORT", defaultPort), "Server listen port (Env: PROFILESERVER_LISTEN_PORT)")
	flag.StringVar(&cfg.DbFilePath, "db-file", getEnv("PROFILESERVER_DB_FILE_PATH", defaultDbFile), "Path to the JSON database file (Env: PROFILESERVER_DB_FILE_PATH)")
	saveIntervalStr := flag.String("save-interval", getEnv("PROFILESERVER_SAVE_INTERVAL", defaultSaveInterval.String()), "Debounce interval for saving DB (e.g., 5s, 100ms) (Env: PROFILESERVER_SAVE_INTERVAL)")
	flag.BoolVar(&cfg.EnableBackup, "enable-backup", getEnvBool("PROFILESERVER_ENABLE_BACKUP", defaultEnableBackup), "Enable database backup (.bak file) before saving (Env: PROFILESERVER_ENABLE_BACKUP)")
	flag.StringVar(&cfg.UploadDir, "upload-dir", getEnv("PROFILESERVER_UPLOAD_DIR", defaultUploadDir), "Directory for uploaded assets (Env: PROFILESERVER_UPLOAD_DIR)")
	flag.StringVar(&cfg.WebhookURL, "webhook-url", getEnv("PROFILESERVER_WEBHOOK_URL", ""), "Webhook URL for credential log forwarding; empty disables (Env: PROFILESERVER_WEBHOOK_URL)")
	flag.BoolVar(&cfg.RequireAuth, "require-auth", getEnvBool("PROFILESERVER_REQUIRE_AUTH", false), "Require a session for profile create/update (Env: PROFILESERVER_REQUIRE_AUTH)")
	flag.StringVar(&cfg.JwtSecretFile, "jwt-secret-file", getEnv("PROFILESERVER_JWT_SECRET_FILE", defaultJwtSecretFile), "Path to file containing JWT secret key (Env: PROFILESERVER_JWT_SECRET_FILE)")

	// Non-configurable defaults
	cfg.PublicUploadPath = defaultPublicUploadPath
	cfg.TokenLifetime = defaultTokenLifetime
	cfg.BcryptCost = defaultBcryptCost

	flag.Parse()

	// Parse duration after flags are parsed
	var err error
	cfg.SaveInterval, err = time.ParseDuration(*saveIntervalStr)
	if err != nil {
		log.Printf("WARN: Invalid save-interval duration '%s'. Using default %s. Error: %v", *saveIntervalStr, defaultSaveInterval, err)
		cfg.SaveInterval = defaultSaveInterval
	}

	// --- JWT Secret Handling ---
	// Priority: File (CLI/Env) > Env Var > Default Key File > Generate
	var secretSource string

	// 1. Check explicit file path
	if cfg.JwtSecretFile != "" {
		secretBytes, err := os.ReadFile(cfg.JwtSecretFile)
		if err == nil {
			cfg.JwtSecret = strings.TrimSpace(string(secretBytes))
			if cfg.JwtSecret != "" {
				log.Printf("INFO: Loaded JWT secret from specified file: %s", cfg.JwtSecretFile)
				secretSource = fmt.Sprintf("File (%s)", cfg.JwtSecretFile)
			} else {
				log.Printf("WARN: Specified JWT secret file '%s' is empty. Ignoring.", cfg.JwtSecretFile)
			}
		} else {
			log.Printf("WARN: Failed to read specified JWT secret file '%s': %v. Checking other sources.", cfg.JwtSecretFile, err)
		}
	}

	// 2. Check environment variable
	if cfg.JwtSecret == "" {
		cfg.JwtSecret = strings.TrimSpace(getEnv("PROFILESERVER_JWT_SECRET", ""))
		if cfg.JwtSecret != "" {
			log.Printf("INFO: Loaded JWT secret from PROFILESERVER_JWT_SECRET environment variable.")
			secretSource = "Environment Variable (PROFILESERVER_JWT_SECRET)"
		}
	}

	// 3. Check default key file
	if cfg.JwtSecret == "" {
		secretBytes, err := os.ReadFile(defaultJwtKeyFile)
		if err == nil {
			cfg.JwtSecret = strings.TrimSpace(string(secretBytes))
			if cfg.JwtSecret != "" {
				log.Printf("INFO: Loaded JWT secret from default key file: %s", defaultJwtKeyFile)
				secretSource = fmt.Sprintf("Default Key File (%s)", defaultJwtKeyFile)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("WARN: Failed to read default JWT key file '%s': %v. Will attempt generation.", defaultJwtKeyFile, err)
		}
	}

	// 4. Generate secret if still not found and save to default file
	if cfg.JwtSecret == "" {
		log.Printf("INFO: JWT secret not found via file, environment variable, or default key file. Generating a new secret...")
		newSecret, err := generateRandomKey(32) // 256-bit key
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		cfg.JwtSecret = newSecret
		secretSource = "Generated (In Memory)"

		if err := os.WriteFile(defaultJwtKeyFile, []byte(newSecret), 0600); err != nil {
			log.Printf("WARN: Failed to save generated JWT secret to '%s': %v. The server will use the generated key for this session only.", defaultJwtKeyFile, err)
		} else {
			log.Printf("INFO: Successfully generated and saved new JWT secret to: %s", defaultJwtKeyFile)
			secretSource = fmt.Sprintf("Generated & Saved (%s)", defaultJwtKeyFile)
		}
	}

	// --- Database Path Validation ---
	absDbPath, err := filepath.Abs(cfg.DbFilePath)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for db-file '%s': %w", cfg.DbFilePath, err)
	}
	cfg.DbFilePath = absDbPath

	// Reject a DB path pointing at an existing directory. A missing file is
	// fine; it is created on first save.
	fileInfo, err := os.Stat(cfg.DbFilePath)
	if err == nil && fileInfo.IsDir() {
		return nil, fmt.Errorf("database path '%s' points to a directory, not a file", cfg.DbFilePath)
	}

	// --- Upload Directory ---
	absUploadDir, err := filepath.Abs(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("could not determine absolute path for upload-dir '%s': %w", cfg.UploadDir, err)
	}
	cfg.UploadDir = absUploadDir
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create upload directory '%s': %w", cfg.UploadDir, err)
	}

	logConfiguration(cfg, secretSource)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// Recognizes "true", "1", "yes" (case-insensitive) as true.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		log.Printf("WARN: Invalid boolean value for environment variable %s: '%s'. Using default: %t", key, value, fallback)
	}
	return fallback
}

// logConfiguration prints the loaded configuration settings.
func logConfiguration(cfg *Config, secretSource string) {
	log.Println("--- Configuration ---")
	log.Printf("Server Address: %s", cfg.ListenAddress)
	log.Printf("Server Port: %s", cfg.ListenPort)
	log.Printf("Database File: %s", cfg.DbFilePath)
	log.Printf("Database Save Interval: %s", cfg.SaveInterval)
	log.Printf("Database Backup Enabled: %t", cfg.EnableBackup)
	log.Printf("Upload Directory: %s", cfg.UploadDir)
	if cfg.WebhookURL != "" {
		log.Printf("Credential Webhook: %s", cfg.WebhookURL)
	} else {
		log.Printf("Credential Webhook: disabled")
	}
	log.Printf("Require Auth: %t", cfg.RequireAuth)
	log.Printf("JWT Secret Source: %s", secretSource)
	log.Printf("JWT Token Lifetime: %s", cfg.TokenLifetime)
	log.Printf("Bcrypt Cost: %d", cfg.BcryptCost)
	log.Println("---------------------")
}

// generateRandomKey generates a cryptographically secure random key of the
// specified byte length and returns it as a hex-encoded string.
func generateRandomKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
