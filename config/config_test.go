package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable the loader reads so the host environment
// does not leak into tests. Empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "APP_NAME", "APP_DEBUG", "APP_VERSION", "APP_TIMEZONE", "APP_SHUTDOWN_TIMEOUT",
		"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_URL", "REDIS_HOST", "REDIS_PORT", "REDIS_DISABLED", "REDIS_ANALYTICS_TTL",
		"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_TEMPERATURE", "NARRATOR_TIMEOUT", "NARRATOR_MAX_RETRIES",
		"ATTENDANCE_SAFE_PERCENT", "ATTENDANCE_WARNING_PERCENT", "ATTENDANCE_TARGET",
		"BULK_MAX_PARALLEL", "REFERENCE_INTAKE_YEAR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "Asia/Kolkata", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)

	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 10*time.Minute, cfg.Redis.AnalyticsTTL)
	assert.False(t, cfg.Narrator.Enabled())

	assert.Equal(t, 75, cfg.Analytics.SafePercent)
	assert.Equal(t, 65, cfg.Analytics.WarningPercent)
	assert.InDelta(t, 0.75, cfg.Analytics.TargetFraction, 1e-9)
	assert.Equal(t, 8, cfg.Analytics.BulkParallelism)
	assert.Equal(t, 2024, cfg.Analytics.ReferenceIntake)

	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("ATTENDANCE_SAFE_PERCENT", "80")
	t.Setenv("ATTENDANCE_WARNING_PERCENT", "60")
	t.Setenv("ATTENDANCE_TARGET", "0.8")
	t.Setenv("BULK_MAX_PARALLEL", "2")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("NARRATOR_TIMEOUT", "5s")
	t.Setenv("REDIS_ANALYTICS_TTL", "30s")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := loadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "UTC", cfg.App.Location.String())
	assert.Equal(t, 80, cfg.Analytics.SafePercent)
	assert.Equal(t, 60, cfg.Analytics.WarningPercent)
	assert.InDelta(t, 0.8, cfg.Analytics.TargetFraction, 1e-9)
	assert.Equal(t, 2, cfg.Analytics.BulkParallelism)
	assert.True(t, cfg.Narrator.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Narrator.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Redis.AnalyticsTTL)
	assert.Equal(t, "text", cfg.Observability.LogFormat)
}

func TestLoad_DatabaseURLFromParts(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "attd")
	t.Setenv("DB_PASSWORD", "pw")

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://attd:pw@db:5432/smartattd?sslmode=disable", cfg.Database.URL)
}

func TestLoad_UnknownTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := loadFromEnv()
	assert.Error(t, err)
}

func TestLoad_BadNumbersFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BULK_MAX_PARALLEL", "many")
	t.Setenv("REDIS_ANALYTICS_TTL", "soon")

	cfg, err := loadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Analytics.BulkParallelism)
	assert.Equal(t, 10*time.Minute, cfg.Redis.AnalyticsTTL)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFromEnv()
	require.NoError(t, err)

	cfg.App.Environment = EnvProduction
	assert.True(t, cfg.IsProduction())
	cfg.Analytics.SafePercent = 60
	cfg.Analytics.WarningPercent = 65
	cfg.Analytics.TargetFraction = 1.2
	cfg.Analytics.BulkParallelism = 0

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required in production")
	assert.Contains(t, msg, "0 < WARNING < SAFE <= 100")
	assert.Contains(t, msg, "ATTENDANCE_TARGET must be in (0,1)")
	assert.Contains(t, msg, "BULK_MAX_PARALLEL must be >= 1")
}

func TestValidate_NarratorSettingsOnlyWhenEnabled(t *testing.T) {
	clearEnv(t)
	cfg, err := loadFromEnv()
	require.NoError(t, err)

	cfg.Narrator.Temperature = 5
	assert.NoError(t, cfg.Validate())

	cfg.Narrator.APIKey = "key"
	assert.ErrorContains(t, cfg.Validate(), "GEMINI_TEMPERATURE")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	// godotenv does not override variables that are already set, even empty.
	require.NoError(t, os.Unsetenv("ATTENDANCE_TARGET"))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ATTENDANCE_TARGET=0.7\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ATTENDANCE_TARGET") })

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.Analytics.TargetFraction, 1e-9)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
