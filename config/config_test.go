package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to reset flags and args for isolated tests
func resetFlagsAndArgs(args ...string) func() {
	originalArgs := os.Args
	os.Args = append([]string{"cmd"}, args...)
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	return func() {
		os.Args = originalArgs
	}
}

// Helper to get absolute path for comparison, ignoring errors for simplicity in tests
func absPath(path string) string {
	abs, _ := filepath.Abs(path)
	return abs
}

// unsetServerEnv clears every PROFILESERVER_ variable a previous test or the
// host environment may have left behind.
func unsetServerEnv() {
	for _, key := range []string{
		"PROFILESERVER_LISTEN_ADDRESS",
		"PROFILESERVER_LISTEN_PORT",
		"PROFILESERVER_DB_FILE_PATH",
		"PROFILESERVER_SAVE_INTERVAL",
		"PROFILESERVER_ENABLE_BACKUP",
		"PROFILESERVER_UPLOAD_DIR",
		"PROFILESERVER_WEBHOOK_URL",
		"PROFILESERVER_REQUIRE_AUTH",
		"PROFILESERVER_JWT_SECRET_FILE",
		"PROFILESERVER_JWT_SECRET",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cleanup := resetFlagsAndArgs()
	defer cleanup()

	unsetServerEnv()
	_ = os.Remove(defaultJwtKeyFile)
	t.Cleanup(func() { _ = os.Remove(defaultJwtKeyFile) })

	// Provide a dummy JWT secret via env var so no key file gets generated
	t.Setenv("PROFILESERVER_JWT_SECRET", "test-default-secret")
	// Keep the upload dir inside the test sandbox
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(t.TempDir(), "uploads"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultAddress, cfg.ListenAddress)
	assert.Equal(t, defaultPort, cfg.ListenPort)
	assert.Equal(t, absPath(defaultDbFile), cfg.DbFilePath)
	assert.Equal(t, defaultSaveInterval, cfg.SaveInterval)
	assert.Equal(t, defaultEnableBackup, cfg.EnableBackup)
	assert.Equal(t, defaultPublicUploadPath, cfg.PublicUploadPath)
	assert.Equal(t, "", cfg.WebhookURL, "Webhook forwarding should be disabled by default")
	assert.False(t, cfg.RequireAuth, "Anonymous mode should be the default")
	assert.Equal(t, defaultTokenLifetime, cfg.TokenLifetime)
	assert.Equal(t, defaultBcryptCost, cfg.BcryptCost)
	assert.Equal(t, "test-default-secret", cfg.JwtSecret, "JWT Secret should be loaded from env var")
}

func TestLoadConfig_EnvVars(t *testing.T) {
	cleanup := resetFlagsAndArgs()
	defer cleanup()
	unsetServerEnv()

	tempDir := t.TempDir()
	t.Setenv("PROFILESERVER_LISTEN_ADDRESS", "192.168.1.100")
	t.Setenv("PROFILESERVER_LISTEN_PORT", "9000")
	t.Setenv("PROFILESERVER_DB_FILE_PATH", filepath.Join(tempDir, "env.json"))
	t.Setenv("PROFILESERVER_SAVE_INTERVAL", "15s")
	t.Setenv("PROFILESERVER_ENABLE_BACKUP", "false")
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "assets"))
	t.Setenv("PROFILESERVER_WEBHOOK_URL", "https://hooks.example.com/creds")
	t.Setenv("PROFILESERVER_REQUIRE_AUTH", "true")
	t.Setenv("PROFILESERVER_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.100", cfg.ListenAddress)
	assert.Equal(t, "9000", cfg.ListenPort)
	assert.Equal(t, filepath.Join(tempDir, "env.json"), cfg.DbFilePath)
	assert.Equal(t, 15*time.Second, cfg.SaveInterval)
	assert.False(t, cfg.EnableBackup)
	assert.Equal(t, filepath.Join(tempDir, "assets"), cfg.UploadDir)
	assert.DirExists(t, cfg.UploadDir, "Upload directory should be created on load")
	assert.Equal(t, "https://hooks.example.com/creds", cfg.WebhookURL)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, "env-secret", cfg.JwtSecret)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	tempDir := t.TempDir()
	cleanup := resetFlagsAndArgs(
		"-port", "7777",
		"-db-file", filepath.Join(tempDir, "flag.json"),
		"-require-auth",
		"-webhook-url", "https://hooks.example.com/flag",
	)
	defer cleanup()
	unsetServerEnv()

	t.Setenv("PROFILESERVER_LISTEN_PORT", "9000")
	t.Setenv("PROFILESERVER_JWT_SECRET", "flag-test-secret")
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "uploads"))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7777", cfg.ListenPort, "Flag should take precedence over env var")
	assert.Equal(t, filepath.Join(tempDir, "flag.json"), cfg.DbFilePath)
	assert.True(t, cfg.RequireAuth)
	assert.Equal(t, "https://hooks.example.com/flag", cfg.WebhookURL)
}

func TestLoadConfig_SaveIntervalParsing(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Invalid duration falls back to default", func(t *testing.T) {
		cleanup := resetFlagsAndArgs("-save-interval", "not-a-duration")
		defer cleanup()
		unsetServerEnv()
		t.Setenv("PROFILESERVER_JWT_SECRET", "interval-secret")
		t.Setenv("PROFILESERVER_DB_FILE_PATH", filepath.Join(tempDir, "interval.json"))
		t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "up1"))

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, defaultSaveInterval, cfg.SaveInterval)
	})

	t.Run("Zero duration accepted", func(t *testing.T) {
		cleanup := resetFlagsAndArgs("-save-interval", "0s")
		defer cleanup()
		unsetServerEnv()
		t.Setenv("PROFILESERVER_JWT_SECRET", "interval-secret")
		t.Setenv("PROFILESERVER_DB_FILE_PATH", filepath.Join(tempDir, "interval0.json"))
		t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "up2"))

		cfg, err := LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.SaveInterval)
	})
}

func TestLoadConfig_JWTSecretFromFile(t *testing.T) {
	tempDir := t.TempDir()
	secretFile := filepath.Join(tempDir, "jwt.key")
	require.NoError(t, os.WriteFile(secretFile, []byte("  file-secret\n"), 0600))

	cleanup := resetFlagsAndArgs("-jwt-secret-file", secretFile)
	defer cleanup()
	unsetServerEnv()
	// Env secret present too; the explicit file must win
	t.Setenv("PROFILESERVER_JWT_SECRET", "env-secret")
	t.Setenv("PROFILESERVER_DB_FILE_PATH", filepath.Join(tempDir, "jwt.json"))
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "uploads"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "file-secret", cfg.JwtSecret, "File secret should win and be trimmed")
}

func TestLoadConfig_JWTSecretGenerated(t *testing.T) {
	cleanup := resetFlagsAndArgs()
	defer cleanup()
	unsetServerEnv()

	tempDir := t.TempDir()
	t.Setenv("PROFILESERVER_DB_FILE_PATH", filepath.Join(tempDir, "gen.json"))
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "uploads"))
	_ = os.Remove(defaultJwtKeyFile)
	t.Cleanup(func() { _ = os.Remove(defaultJwtKeyFile) })

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Len(t, cfg.JwtSecret, 64, "Generated secret should be 32 random bytes hex-encoded")
	saved, err := os.ReadFile(defaultJwtKeyFile)
	require.NoError(t, err, "Generated secret should be persisted to the default key file")
	assert.Equal(t, cfg.JwtSecret, string(saved))
}

func TestLoadConfig_DbPathIsDirectory(t *testing.T) {
	cleanup := resetFlagsAndArgs()
	defer cleanup()
	unsetServerEnv()

	tempDir := t.TempDir()
	t.Setenv("PROFILESERVER_JWT_SECRET", "dir-secret")
	t.Setenv("PROFILESERVER_DB_FILE_PATH", tempDir)
	t.Setenv("PROFILESERVER_UPLOAD_DIR", filepath.Join(tempDir, "uploads"))

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestGetEnvBool(t *testing.T) {
	testCases := []struct {
		value    string
		fallback bool
		expected bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"garbage", true, true},
		{"garbage", false, false},
	}

	for _, tc := range testCases {
		t.Setenv("PROFILESERVER_TEST_BOOL", tc.value)
		assert.Equal(t, tc.expected, getEnvBool("PROFILESERVER_TEST_BOOL", tc.fallback),
			"value %q fallback %t", tc.value, tc.fallback)
	}

	os.Unsetenv("PROFILESERVER_TEST_BOOL")
	assert.True(t, getEnvBool("PROFILESERVER_TEST_BOOL", true))
	assert.False(t, getEnvBool("PROFILESERVER_TEST_BOOL", false))
}

func TestGenerateRandomKey(t *testing.T) {
	key1, err := generateRandomKey(32)
	require.NoError(t, err)
	assert.Len(t, key1, 64, "32 bytes hex-encoded is 64 characters")

	key2, err := generateRandomKey(32)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2, "Two generated keys should differ")
}
