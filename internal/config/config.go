package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lpernett/godotenv"
)

type Config struct {
	Port string

	UploadDir string
	OutputDir string
	DataDir   string

	Retention     time.Duration
	SweepInterval time.Duration
	WorkerSlots   int64

	GhostscriptPath string
	LibreOfficePath string

	// Optional RabbitMQ activity feed. Empty URL disables it.
	ActivityAMQPURL string
	ActivityQueue   string

	// Optional S3-compatible artifact mirror. Empty endpoint disables it.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		fmt.Println("Warning: .env file not found, using defaults")
	}

	retention, err := time.ParseDuration(getEnvOrDefault("RETENTION_WINDOW", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RETENTION_WINDOW")
	}
	sweep, err := time.ParseDuration(getEnvOrDefault("SWEEP_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SWEEP_INTERVAL")
	}
	slots, err := strconv.ParseInt(getEnvOrDefault("WORKER_SLOTS", "4"), 10, 64)
	if err != nil || slots < 1 {
		return nil, fmt.Errorf("invalid WORKER_SLOTS")
	}

	return &Config{
		Port:            getEnvOrDefault("PORT", ":5011"),
		UploadDir:       getEnvOrDefault("UPLOAD_DIR", "./uploads"),
		OutputDir:       getEnvOrDefault("OUTPUT_DIR", "./converted"),
		DataDir:         getEnvOrDefault("DATA_DIR", "./data/jobs"),
		Retention:       retention,
		SweepInterval:   sweep,
		WorkerSlots:     slots,
		GhostscriptPath: getEnvOrDefault("GS_PATH", "gs"),
		LibreOfficePath: getEnvOrDefault("SOFFICE_PATH", "soffice"),
		ActivityAMQPURL: os.Getenv("ACTIVITY_AMQP_URL"),
		ActivityQueue:   getEnvOrDefault("ACTIVITY_QUEUE", "conversion.activity"),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3AccessKey:     getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:     getEnvOrDefault("S3_SECRET_KEY", "minioadmin123"),
		S3Bucket:        getEnvOrDefault("S3_BUCKET", "conversion-artifacts"),
		S3UseSSL:        getEnvOrDefault("S3_USE_SSL", "false") == "true",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
