package config // package config loads application configuration from environment variables

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supported values for DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  MySQL connection fields are only required when
// DBDriver is "mysql"; the SQLite driver only needs SQLitePath.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // "mysql" or "sqlite"
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	SQLitePath     string // database file for the sqlite driver
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	UploadDir      string // root directory for uploaded documents
	MaxUploadMB    int    // per-file upload ceiling in megabytes
	GeminiAPIKey   string // key for the speech-to-text service; empty disables it
	GeminiModel    string // model used for transcription
	AMQPURL        string // broker URL for activity events; empty disables publishing
	ActivityQueue  string // queue receiving activity events
	ActivityLogDir string // directory the activity consumer writes to
	LogLevel       string // debug, info, warn, error
}

// Load reads a .env file when present, then builds the Config from the
// environment.  Required variables are enforced by must() and an invalid
// combination of values aborts startup with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // a missing .env file is not an error

	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           must("APP_PORT"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", DriverMySQL)),
		DBUser:         os.Getenv("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         os.Getenv("DB_NAME"),
		SQLitePath:     envStr("SQLITE_PATH", "./data/wedding.db"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		UploadDir:      envStr("UPLOAD_DIR", "./uploads"),
		MaxUploadMB:    envInt("MAX_UPLOAD_MB", 10),
		GeminiAPIKey:   firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:    envStr("GEMINI_MODEL", "gemini-1.5-flash"),
		AMQPURL:        firstNonEmpty(os.Getenv("AMQP_URL"), os.Getenv("RABBITMQ_URL")),
		ActivityQueue:  envStr("ACTIVITY_QUEUE", "wedding.activity"),
		ActivityLogDir: envStr("ACTIVITY_LOG_DIR", "logs"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %q", c.Port))
	}
	switch c.DBDriver {
	case DriverMySQL:
		for name, v := range map[string]string{"DB_USER": c.DBUser, "DB_HOST": c.DBHost, "DB_NAME": c.DBName} {
			if v == "" {
				problems = append(problems, name+" is required for the mysql driver")
			}
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}
	if c.AccessTTLMin < 1 {
		problems = append(problems, "ACCESS_TOKEN_TTL_MIN must be positive")
	}
	if c.RefreshTTLDays < 1 {
		problems = append(problems, "REFRESH_TOKEN_TTL_DAYS must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if c.UploadDir == "" {
		problems = append(problems, "UPLOAD_DIR cannot be empty")
	}
	if c.MaxUploadMB < 1 {
		problems = append(problems, "MAX_UPLOAD_MB must be positive")
	}

	if len(problems) > 0 {
		sort.Strings(problems) // map iteration above is unordered
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// MaxUploadBytes is the per-file ceiling in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
