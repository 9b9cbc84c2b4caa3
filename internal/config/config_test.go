package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, DriverSQLite, cfg.DBDriver)
	require.Equal(t, 30, cfg.RateLimitPoints)
	require.Equal(t, time.Minute, cfg.RateLimitWindow)
	require.Equal(t, BlobDisk, cfg.BlobBackend)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_S3NeedsBucket(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("BLOB_BACKEND", "s3")

	_, err := Load()
	require.ErrorContains(t, err, "S3_BUCKET")
}

func TestLoad_RateLimitOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("RATE_LIMIT_POINTS", "5")
	t.Setenv("RATE_LIMIT_WINDOW", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RateLimitPoints)
	require.Equal(t, 10*time.Second, cfg.RateLimitWindow)
}
