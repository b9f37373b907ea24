package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTSecret []byte
	JWTTTL    time.Duration

	KafkaBrokers       []string
	KafkaPurchaseTopic string
	KafkaGroupID       string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	AdminEmail    string
	AdminPassword string

	parseErrs []error
}

func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env file not found: %v. Using system environment variables", err)
	}

	var parseErrs []error
	port, err := EnvIntDefault("SERVER_PORT", 8080)
	if err != nil {
		parseErrs = append(parseErrs, err)
	}
	ttl, err := EnvDurationDefault("JWT_TTL", 24*time.Hour)
	if err != nil {
		parseErrs = append(parseErrs, err)
	}

	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "book_market"),
		ServerPort:  port,
		LogLevel:    os.Getenv("LOG_LEVEL"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		JWTTTL:    ttl,

		KafkaBrokers:       CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaPurchaseTopic: EnvDefault("KAFKA_PURCHASE_TOPIC", "purchase_events"),
		KafkaGroupID:       EnvDefault("KAFKA_GROUP_ID", "book_market-sold-items"),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "items"),

		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),

		parseErrs: parseErrs,
	}
}

func (c Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if len(c.JWTSecret) == 0 {
		errs = append(errs, errors.New("missing required env JWT_SECRET"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, errors.New("DB_DRIVER must be postgres or sqlite"))
	}
	return errors.Join(errs...)
}

func (c Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

func (c Config) SearchEnabled() bool { return c.ESURL != "" }

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvIntDefault returns def when key is unset. A value that is set but not
// an integer is an error, not a silent fallback.
func EnvIntDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func EnvDurationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
