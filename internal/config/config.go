package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Optional values fall back to defaults that suit
// a single canteen running locally.
type Config struct {
	Env            string         // application environment ("development", "production")
	Port           string         // HTTP port to listen on
	DBUser         string         // database username
	DBPass         string         // database password (optional)
	DBHost         string         // database host address
	DBPort         string         // database port number
	DBName         string         // database name
	DBMigrate      bool           // apply embedded migrations on startup
	JWTSecret      string         // secret used to sign JWTs
	AccessTTLMin   int            // access token time-to-live in minutes
	RefreshTTLDays int            // refresh token time-to-live in days
	BcryptCost     int            // bcrypt cost for password hashing
	Timezone       string         // IANA zone that defines the canteen's "today"
	Location       *time.Location // parsed Timezone
	RabbitURL      string         // AMQP URL; empty disables order events
	OrderQueue     string         // queue receiving order.confirmed events
	OrderLogPath   string         // kitchen ticket file written by the consumer
	CORSOrigins    []string       // allowed browser origins
}

// Load reads configuration values from the environment, after merging a
// local .env file when one exists.  Variables already set in the process
// environment take precedence over the file.  Required variables are
// enforced by must() and a missing value exits the program.
func Load() Config {
	// .env is optional; deployments usually inject real env vars.
	_ = godotenv.Load()

	cfg := Config{
		Env:            envStr("APP_ENV", "development"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		DBMigrate:      envBool("DB_MIGRATE", false),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     envInt("BCRYPT_COST", 10),
		Timezone:       envStr("APP_TIMEZONE", "Local"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		OrderQueue:     envStr("ORDER_QUEUE", "orders.confirmed"),
		OrderLogPath:   envStr("ORDER_LOG_PATH", "logs/orders.log"),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("invalid APP_TIMEZONE %q: %v", cfg.Timezone, err)
	}
	cfg.Location = loc
	return cfg
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool { return strings.EqualFold(c.Env, "production") }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
