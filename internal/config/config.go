package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	BlobDisk = "disk"
	BlobS3   = "s3"
)

type Config struct {
	Addr      string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret string `env:"JWT_SECRET,required"`
	JWTTTLMin int    `env:"JWT_TTL_MIN" envDefault:"1440"`
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver       string `env:"DB_DRIVER" envDefault:"sqlite"`
	SQLITEDsn      string `env:"SQLITE_DSN" envDefault:"file:chat.db?_pragma=foreign_keys(ON)"`
	DatabaseURL    string `env:"DATABASE_URL"`
	PostgresDriver string `env:"POSTGRES_DRIVER" envDefault:"postgres"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	RateLimitPoints int           `env:"RATE_LIMIT_POINTS" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`

	WSSendBuffer int `env:"WS_SEND_BUFFER" envDefault:"256"`

	BlobBackend     string `env:"BLOB_BACKEND" envDefault:"disk"`
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"uploads"`
	UploadURLPrefix string `env:"UPLOAD_URL_PREFIX" envDefault:"/uploads"`
	S3Bucket        string `env:"S3_BUCKET"`
	S3Region        string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`
	S3AccessKey     string `env:"S3_ACCESS_KEY"`
	S3SecretKey     string `env:"S3_SECRET_KEY"`
	S3PublicURL     string `env:"S3_PUBLIC_URL"`

	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	SendGridFrom     string `env:"SENDGRID_FROM"`
	SendGridFromName string `env:"SENDGRID_FROM_NAME" envDefault:"RotateStay"`
}

// Load parses the process environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return cfg
}

func (c Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.BlobBackend {
	case BlobDisk:
	case BlobS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when BLOB_BACKEND=%s", BlobS3)
		}
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q", c.BlobBackend)
	}
	if c.RateLimitPoints <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit points and window must be positive")
	}
	return nil
}

func (c Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLMin) * time.Minute
}
