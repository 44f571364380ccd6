package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. PARKING_HTTP_ADDRESS.
const EnvPrefix = "PARKING"

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	LockModeRow   = "row"
	LockModeRedis = "redis"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http" split_words:"true"`
	Storage     StorageConfig     `yaml:"storage" split_words:"true"`
	Database    DatabaseConfig    `yaml:"database" split_words:"true"`
	Redis       RedisConfig       `yaml:"redis" split_words:"true"`
	Kafka       KafkaConfig       `yaml:"kafka" split_words:"true"`
	Reservation ReservationConfig `yaml:"reservation" split_words:"true"`
	Pricing     PricingConfig     `yaml:"pricing" split_words:"true"`
	Worker      WorkerConfig      `yaml:"worker" split_words:"true"`
	Log         LogConfig         `yaml:"log" split_words:"true"`
}

type HTTPConfig struct {
	Address         string          `yaml:"address" split_words:"true"`
	BasePath        string          `yaml:"base_path" split_words:"true"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" split_words:"true"`
	Swagger         bool            `yaml:"swagger" split_words:"true"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" split_words:"true"`
	CORS            CORSConfig      `yaml:"cors" split_words:"true"`
}

// RateLimitConfig limits requests per client IP. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" split_words:"true"`
	Burst int     `yaml:"burst" split_words:"true"`
}

type CORSConfig struct {
	AllowOrigins []string      `yaml:"allow_origins" split_words:"true"`
	AllowMethods []string      `yaml:"allow_methods" split_words:"true"`
	AllowHeaders []string      `yaml:"allow_headers" split_words:"true"`
	MaxAge       time.Duration `yaml:"max_age" split_words:"true"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" split_words:"true"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" split_words:"true"`
	Port           int    `yaml:"port" split_words:"true"`
	User           string `yaml:"user" split_words:"true"`
	Password       string `yaml:"password" split_words:"true"`
	Name           string `yaml:"name" split_words:"true"`
	SSLMode        string `yaml:"ssl_mode" split_words:"true"`
	MaxConns       int32  `yaml:"max_conns" split_words:"true"`
	MigrateOnStart bool   `yaml:"migrate_on_start" split_words:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig enables the availability cache and slot leases when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	DB       int    `yaml:"db" split_words:"true"`
}

// KafkaConfig enables reservation events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers          []string `yaml:"brokers" split_words:"true"`
	ReservationTopic string   `yaml:"reservation_topic" split_words:"true"`
	GroupID          string   `yaml:"group_id" split_words:"true"`
	MaxAttempts      int      `yaml:"max_attempts" split_words:"true"`
}

type ReservationConfig struct {
	MaxDuration          time.Duration `yaml:"max_duration" split_words:"true"`
	Location             string        `yaml:"location" split_words:"true"`
	LockMode             string        `yaml:"lock_mode" split_words:"true"`
	LockTTL              time.Duration `yaml:"lock_ttl" split_words:"true"`
	LockRetryInterval    time.Duration `yaml:"lock_retry_interval" split_words:"true"`
	AvailabilityCacheTTL time.Duration `yaml:"availability_cache_ttl" split_words:"true"`
	MaxPageSize          int           `yaml:"max_page_size" split_words:"true"`
	CancelRetries        int           `yaml:"cancel_retries" split_words:"true"`
}

// PricingConfig overrides hourly rates per vehicle class.
type PricingConfig struct {
	HourlyRates map[string]int64 `yaml:"hourly_rates" split_words:"true"`
}

type WorkerConfig struct {
	OccupancyCron string `yaml:"occupancy_cron" split_words:"true"`
}

type LogConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Address:         ":8080",
			BasePath:        "/v1/api",
			ShutdownTimeout: 5 * time.Second,
			Swagger:         true,
			CORS: CORSConfig{
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
				MaxAge:       12 * time.Hour,
			},
		},
		Storage: StorageConfig{Driver: StorageMemory},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Kafka: KafkaConfig{
			ReservationTopic: "parking.reservations",
			GroupID:          "parking-worker",
			MaxAttempts:      3,
		},
		Reservation: ReservationConfig{
			MaxDuration:          24 * time.Hour,
			Location:             "UTC",
			LockMode:             LockModeRow,
			LockTTL:              10 * time.Second,
			LockRetryInterval:    25 * time.Millisecond,
			AvailabilityCacheTTL: 30 * time.Second,
			MaxPageSize:          100,
			CancelRetries:        3,
		},
		Worker: WorkerConfig{OccupancyCron: "@every 5m"},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig layers defaults, the YAML file at path (if present), a .env
// file in the working directory (if present) and PARKING_* variables.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config")
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, errors.Wrap(err, "failed to read config")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return errors.Newf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Reservation.LockMode {
	case LockModeRow:
	case LockModeRedis:
		if c.Redis.Addr == "" {
			return errors.New("lock_mode redis requires redis.addr")
		}
	default:
		return errors.Newf("unknown lock mode %q", c.Reservation.LockMode)
	}
	if c.Reservation.MaxDuration <= 0 || c.Reservation.MaxDuration%time.Hour != 0 {
		return errors.New("reservation.max_duration must be a positive whole number of hours")
	}
	if c.Reservation.MaxPageSize <= 0 {
		return errors.New("reservation.max_page_size must be positive")
	}
	if _, err := time.LoadLocation(c.Reservation.Location); err != nil {
		return errors.Wrapf(err, "invalid reservation.location %q", c.Reservation.Location)
	}
	for class, rate := range c.Pricing.HourlyRates {
		if !domain.VehicleType(class).Valid() {
			return errors.Newf("pricing.hourly_rates: unknown vehicle type %q", class)
		}
		if rate <= 0 {
			return errors.Newf("pricing.hourly_rates: rate for %s must be positive", class)
		}
	}
	return nil
}

// TimeLocation resolves the zone used for timestamps without an offset.
func (r ReservationConfig) TimeLocation() *time.Location {
	loc, err := time.LoadLocation(r.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
