package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	cfg := FromEnv()

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, "mysql", cfg.DBDriver)
	require.Equal(t, 0, cfg.TempoMaxSuggestion)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_TTL", "90m")
	t.Setenv("TEMPO_MAX_SUGGESTION", "300")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("AUTH_RATE_LIMIT", "2.5")

	cfg := FromEnv()

	require.True(t, cfg.IsProduction())
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, 3, cfg.RedisDB)
	require.Equal(t, 90*time.Minute, cfg.JWTTTL)
	require.Equal(t, 300, cfg.TempoMaxSuggestion)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.True(t, cfg.MinioUseSSL)
	require.InDelta(t, 2.5, cfg.AuthRateLimit, 0.0001)
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("STATS_CACHE_TTL", "soon")

	cfg := FromEnv()

	require.Equal(t, 0, cfg.RedisDB)
	require.Equal(t, 5*time.Minute, cfg.StatsCacheTTL)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	require.Error(t, FromEnv().Validate(), "empty secret in production")

	os.Unsetenv("JWT_SECRET")
	cfg := FromEnv()
	require.Equal(t, DevJWTSecret, cfg.JWTSecret)
	require.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "a-real-secret")
	require.NoError(t, FromEnv().Validate())

	t.Setenv("TEMPO_MAX_SUGGESTION", "20")
	require.ErrorContains(t, FromEnv().Validate(), "TEMPO_MAX_SUGGESTION")
	t.Setenv("TEMPO_MAX_SUGGESTION", "-5")
	require.Error(t, FromEnv().Validate())
	t.Setenv("TEMPO_MAX_SUGGESTION", "30")
	require.NoError(t, FromEnv().Validate())
}

func TestValidateAllowsDevSecretOutsideProduction(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	require.NoError(t, FromEnv().Validate())
}
