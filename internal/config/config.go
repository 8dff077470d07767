package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the returns service
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Borzo    BorzoConfig    `mapstructure:"borzo"`
	Geocode  GeocodeConfig  `mapstructure:"geocode"`
	Razorpay RazorpayConfig `mapstructure:"razorpay"`
	Returns  ReturnsConfig  `mapstructure:"returns"`
	Services ServicesConfig `mapstructure:"services"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RedisConfig holds Redis cache configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL string `mapstructure:"url"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// SentryConfig holds Sentry error tracking configuration
type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
	Release     string `mapstructure:"release"`
}

// BorzoConfig holds Borzo courier API configuration
type BorzoConfig struct {
	AuthToken string `mapstructure:"auth_token"`
	IsSandbox bool   `mapstructure:"is_sandbox"`
	Matter    string `mapstructure:"matter"`
}

// GeocodeConfig holds geocoding configuration, including the fallback
// coordinates used when address resolution fails.
type GeocodeConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	UserAgent         string  `mapstructure:"user_agent"`
	FallbackPickupLat float64 `mapstructure:"fallback_pickup_lat"`
	FallbackPickupLon float64 `mapstructure:"fallback_pickup_lon"`
	FallbackDropLat   float64 `mapstructure:"fallback_drop_lat"`
	FallbackDropLon   float64 `mapstructure:"fallback_drop_lon"`
}

// RazorpayConfig holds payment gateway credentials for refunds
type RazorpayConfig struct {
	Key    string `mapstructure:"key"`
	Secret string `mapstructure:"secret"`
}

// ReturnsConfig holds return policy configuration
type ReturnsConfig struct {
	WindowDays      int     `mapstructure:"window_days"`
	DefaultWeightKg float64 `mapstructure:"default_weight_kg"`
}

// ServicesConfig holds URLs for other microservices
type ServicesConfig struct {
	CatalogURL string `mapstructure:"catalog_url"`
	UserURL    string `mapstructure:"user_url"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Automatically load environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("") // No prefix, read exact variable names

	// Bind specific environment variables
	_ = v.BindEnv("app.name", "APP_NAME")
	_ = v.BindEnv("app.env", "APP_ENV")
	_ = v.BindEnv("app.port", "APP_PORT")

	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.name", "DB_NAME")
	_ = v.BindEnv("database.ssl_mode", "DB_SSLMODE")

	_ = v.BindEnv("nats.url", "NATS_URL")

	// Redis
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")

	_ = v.BindEnv("jwt.secret", "JWT_SECRET")

	_ = v.BindEnv("sentry.dsn", "SENTRY_DSN")
	_ = v.BindEnv("sentry.environment", "APP_ENV")
	_ = v.BindEnv("sentry.release", "APP_VERSION")

	// Borzo courier
	_ = v.BindEnv("borzo.auth_token", "BORZO_AUTH_TOKEN")
	_ = v.BindEnv("borzo.is_sandbox", "BORZO_SANDBOX")
	_ = v.BindEnv("borzo.matter", "BORZO_MATTER")

	// Geocoding
	_ = v.BindEnv("geocode.base_url", "GEOCODE_BASE_URL")
	_ = v.BindEnv("geocode.user_agent", "GEOCODE_USER_AGENT")
	_ = v.BindEnv("geocode.fallback_pickup_lat", "GEOCODE_FALLBACK_PICKUP_LAT")
	_ = v.BindEnv("geocode.fallback_pickup_lon", "GEOCODE_FALLBACK_PICKUP_LON")
	_ = v.BindEnv("geocode.fallback_drop_lat", "GEOCODE_FALLBACK_DROP_LAT")
	_ = v.BindEnv("geocode.fallback_drop_lon", "GEOCODE_FALLBACK_DROP_LON")

	// Razorpay
	_ = v.BindEnv("razorpay.key", "RAZORPAY_KEY")
	_ = v.BindEnv("razorpay.secret", "RAZORPAY_SECRET")

	// Return policy
	_ = v.BindEnv("returns.window_days", "RETURN_WINDOW_DAYS")
	_ = v.BindEnv("returns.default_weight_kg", "RETURN_DEFAULT_WEIGHT_KG")

	// Services
	_ = v.BindEnv("services.catalog_url", "SERVICE_CATALOG_URL")
	_ = v.BindEnv("services.user_url", "SERVICE_USER_URL")

	// Set defaults
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "service-returns")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8011")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.ssl_mode", "disable")

	// NATS
	v.SetDefault("nats.url", "nats://localhost:4222")

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Borzo
	v.SetDefault("borzo.is_sandbox", true)
	v.SetDefault("borzo.matter", "Automobile Parts Delivery")

	// Geocoding
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "niaga-service-returns/1.0")
	v.SetDefault("geocode.fallback_pickup_lat", 28.583905)
	v.SetDefault("geocode.fallback_pickup_lon", 77.322733)
	v.SetDefault("geocode.fallback_drop_lat", 28.57908)
	v.SetDefault("geocode.fallback_drop_lon", 77.31912)

	// Return policy
	v.SetDefault("returns.window_days", 7)
	v.SetDefault("returns.default_weight_kg", 3.0)

	// Services
	v.SetDefault("services.catalog_url", "http://localhost:8082")
	v.SetDefault("services.user_url", "http://localhost:8081")

	// Sentry
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.release", "1.0.0")
}
