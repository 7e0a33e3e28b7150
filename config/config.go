package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Upload calls must finish within a bounded window.
const (
	MinStorageTimeout = 8 * time.Second
	MaxStorageTimeout = 20 * time.Second
)

// Config holds every runtime setting read from the environment.
type Config struct {
	HTTPAddr  string
	Env       string
	LogLevel  string
	LogFormat string

	MongoURI      string
	MongoDatabase string

	RedisAddr        string
	RedisPassword    string
	IssueLimitPrefix string
	IssueDailyLimit  int
	StatsCacheTTL    time.Duration
	StatsTimezone    string

	JWTSecret        string
	TokenTTL         time.Duration
	ServiceAuthToken string
	CookieDomain     string
	CORSOrigins      []string

	StorageDriver      string
	StorageTimeout     time.Duration
	S3Bucket           string
	S3Region           string
	S3Endpoint         string
	S3PathStyle        bool
	S3PublicBaseURL    string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	SupabaseURL        string
	SupabaseBucket     string
	SupabaseServiceKey string

	KafkaBroker string
	KafkaTopic  string

	DefaultStaffPassword     string
	DefaultStudentDepartment string
}

// LoadDotEnv reads .env into the process environment. A missing file is not
// an error; it returns false so the caller can log it.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

func Load() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		Env:       getenv("GO_ENV", "development"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),

		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getenv("MONGODB_DATABASE", "smrms"),

		RedisAddr:        os.Getenv("REDIS_ADDRESS"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		IssueLimitPrefix: getenv("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue-limit"),
		IssueDailyLimit:  getenvInt("ISSUE_DAILY_LIMIT", 20),
		StatsCacheTTL:    getenvDuration("STATS_CACHE_TTL", 30*time.Second),
		StatsTimezone:    os.Getenv("STATS_TIMEZONE"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		TokenTTL:         getenvDuration("TOKEN_TTL", 72*time.Hour),
		ServiceAuthToken: os.Getenv("SERVICE_AUTH_TOKEN"),
		CookieDomain:     os.Getenv("DOMAIN"),
		CORSOrigins:      getenvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		StorageDriver:      strings.ToLower(getenv("STORAGE_DRIVER", "memory")),
		StorageTimeout:     getenvDuration("STORAGE_TIMEOUT", 20*time.Second),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3Region:           getenv("S3_REGION", "us-east-1"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3PathStyle:        getenvBool("S3_PATH_STYLE", false),
		S3PublicBaseURL:    os.Getenv("S3_PUBLIC_BASE_URL"),
		S3AccessKeyID:      os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:  os.Getenv("S3_SECRET_ACCESS_KEY"),
		SupabaseURL:        strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseBucket:     os.Getenv("SUPABASE_BUCKET"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),

		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		KafkaTopic:  getenv("KAFKA_TOPIC", "issue-events"),

		DefaultStaffPassword:     getenv("DEFAULT_STAFF_PASSWORD", "password123"),
		DefaultStudentDepartment: getenv("DEFAULT_STUDENT_DEPARTMENT", "BSIT"),
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.MongoURI == "" && c.IsProduction() {
		errs = append(errs, errors.New("MONGODB_URI is required in production"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.StorageDriver {
	case "memory":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required for the s3 driver"))
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseBucket == "" || c.SupabaseServiceKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL, SUPABASE_BUCKET and SUPABASE_SERVICE_KEY are required for the supabase driver"))
		}
	default:
		errs = append(errs, errors.New("STORAGE_DRIVER must be one of s3, supabase, memory"))
	}
	if c.StorageTimeout < MinStorageTimeout || c.StorageTimeout > MaxStorageTimeout {
		errs = append(errs, fmt.Errorf("STORAGE_TIMEOUT must be between %s and %s", MinStorageTimeout, MaxStorageTimeout))
	}
	if _, err := c.StatsLocation(); err != nil {
		errs = append(errs, fmt.Errorf("STATS_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// StatsLocation is the calendar used for monthly statistics. Empty means
// the server's local zone.
func (c Config) StatsLocation() (*time.Location, error) {
	if c.StatsTimezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.StatsTimezone)
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
