package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Token store backends.
const (
	StorePostgres  = "postgres"
	StoreSupabase  = "supabase"
	StoreFirestore = "firestore"
)

// Push transports. Both speak the FCM HTTP v1 API.
const (
	TransportHTTP     = "http"
	TransportFirebase = "firebase"
)

type Config struct {
	Port    string
	GinMode string

	// Logging
	LogLevel  string
	LogFormat string

	// Database (service-role connection, bypasses row-level security)
	DatabaseURL       string
	DBRunMigrations   bool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // in minutes

	// Supabase REST
	SupabaseURL            string
	SupabaseServiceRoleKey string

	// Firebase service account JSON (project_id, client_email, private_key)
	FirebaseServiceAccount string

	TokenStore    string // "postgres", "supabase" or "firestore"
	ContactStore  string // "postgres" or "supabase"
	PushTransport string // "http" or "firebase"

	// Upstream endpoints, overridable for staging and tests.
	// An empty GoogleTokenURL defers to the service account's token_uri.
	GoogleTokenURL string
	FCMBaseURL     string
	FCMScope       string

	// Outbound calls
	OutboundTimeout    time.Duration
	OutboundMaxRetries int

	// Webhook shared secret; empty disables the check
	WebhookSecret string

	// Public site
	SiteURL            string
	CORSAllowedOrigins string

	// Server
	ServerShutdownTimeoutSeconds int

	// Notification presentation, from the YAML config file
	Notification NotificationConfig
}

// NotificationConfig holds the presentation of the new-booking push.
type NotificationConfig struct {
	Title              string `yaml:"title"`
	Icon               string `yaml:"icon"`
	Badge              string `yaml:"badge"`
	Link               string `yaml:"link"`
	Urgency            string `yaml:"urgency"`
	RequireInteraction bool   `yaml:"require_interaction"`
	DefaultBusiness    string `yaml:"default_business"`
}

// fileConfig is the shape of the optional YAML config file. Pointer fields
// distinguish "left out" from zero values.
type fileConfig struct {
	Notification struct {
		Title              *string `yaml:"title"`
		Icon               *string `yaml:"icon"`
		Badge              *string `yaml:"badge"`
		Link               *string `yaml:"link"`
		Urgency            *string `yaml:"urgency"`
		RequireInteraction *bool   `yaml:"require_interaction"`
		DefaultBusiness    *string `yaml:"default_business"`
	} `yaml:"notification"`
}

// DefaultNotification is used for any presentation field the config file leaves out.
func DefaultNotification() NotificationConfig {
	return NotificationConfig{
		Title:              "New Booking Alert!",
		Icon:               "https://www.dekaandassociates.in/logo.webp",
		Badge:              "https://www.dekaandassociates.in/dekalogo.png",
		Link:               "https://www.dekaandassociates.in/admin.html",
		Urgency:            "high",
		RequireInteraction: true,
		DefaultBusiness:    "a client",
	}
}

// Load reads configuration from the environment (and .env when present), then the
// optional YAML file named by CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		DBRunMigrations:   getEnvOrDefault("DB_RUN_MIGRATIONS", "false") == "true",
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 5),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		SupabaseURL:            strings.TrimRight(getEnvOrDefault("SUPABASE_URL", ""), "/"),
		SupabaseServiceRoleKey: strings.TrimSpace(getEnvOrDefault("SUPABASE_SERVICE_ROLE_KEY", "")),

		FirebaseServiceAccount: getEnvOrDefault("FIREBASE_SERVICE_ACCOUNT", ""),

		TokenStore:    strings.ToLower(getEnvOrDefault("TOKEN_STORE", "")),
		ContactStore:  strings.ToLower(getEnvOrDefault("CONTACT_STORE", "")),
		PushTransport: strings.ToLower(getEnvOrDefault("PUSH_TRANSPORT", TransportHTTP)),

		GoogleTokenURL: getEnvOrDefault("GOOGLE_TOKEN_URL", ""),
		FCMBaseURL:     strings.TrimRight(getEnvOrDefault("FCM_BASE_URL", "https://fcm.googleapis.com"), "/"),
		FCMScope:       getEnvOrDefault("FCM_SCOPE", "https://www.googleapis.com/auth/firebase.messaging"),

		OutboundTimeout:    getEnvAsDuration("OUTBOUND_TIMEOUT", 10*time.Second),
		OutboundMaxRetries: getEnvAsInt("OUTBOUND_MAX_RETRIES", 2),

		WebhookSecret: strings.TrimSpace(getEnvOrDefault("WEBHOOK_SECRET", "")),

		SiteURL:            strings.TrimRight(getEnvOrDefault("SITE_URL", "https://www.dekaandassociates.in"), "/"),
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "https://www.dekaandassociates.in"),

		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15),

		Notification: DefaultNotification(),
	}

	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case err == nil:
		defer configFile.Close()
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	case os.IsNotExist(err):
		log.Printf("Config file %s not found, using default notification settings", configFilePath)
	default:
		return nil, fmt.Errorf("failed to open config file %s: %w", configFilePath, err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.FirebaseServiceAccount == "" {
		log.Println("Warning: FIREBASE_SERVICE_ACCOUNT is missing. Booking webhooks will fail until it is set.")
	}
	if cfg.WebhookSecret == "" {
		log.Println("Warning: WEBHOOK_SECRET is not set. The booking webhook accepts unauthenticated calls.")
	}

	return cfg, nil
}

// applyDefaults picks storage backends from what is configured.
func (c *Config) applyDefaults() {
	if c.TokenStore == "" {
		c.TokenStore = c.defaultStore()
	}
	if c.ContactStore == "" {
		c.ContactStore = c.defaultStore()
	}
}

func (c *Config) defaultStore() string {
	if c.DatabaseURL == "" && c.SupabaseURL != "" {
		return StoreSupabase
	}
	return StorePostgres
}

// Validate checks that every selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.TokenStore {
	case StorePostgres, StoreSupabase, StoreFirestore:
	default:
		return fmt.Errorf("invalid TOKEN_STORE %q: must be postgres, supabase or firestore", c.TokenStore)
	}

	switch c.ContactStore {
	case StorePostgres, StoreSupabase:
	default:
		return fmt.Errorf("invalid CONTACT_STORE %q: must be postgres or supabase", c.ContactStore)
	}

	switch c.PushTransport {
	case TransportHTTP, TransportFirebase:
	default:
		return fmt.Errorf("invalid PUSH_TRANSPORT %q: must be http or firebase", c.PushTransport)
	}

	if c.UsesStore(StorePostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	if c.UsesStore(StoreSupabase) && (c.SupabaseURL == "" || c.SupabaseServiceRoleKey == "") {
		return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required for the supabase store")
	}
	if (c.TokenStore == StoreFirestore || c.PushTransport == TransportFirebase) && c.FirebaseServiceAccount == "" {
		return fmt.Errorf("FIREBASE_SERVICE_ACCOUNT is required for firestore tokens and the firebase transport")
	}

	if c.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_TIMEOUT must be positive")
	}
	if c.OutboundMaxRetries < 0 {
		return fmt.Errorf("OUTBOUND_MAX_RETRIES must not be negative")
	}

	return nil
}

// UsesStore reports whether either store is backed by the given backend.
func (c *Config) UsesStore(store string) bool {
	return c.TokenStore == store || c.ContactStore == store
}

// LoadConfigFile overlays the YAML config file onto cfg. Fields the file leaves
// out keep their current values.
func LoadConfigFile(reader io.Reader, cfg *Config) error {
	var file fileConfig

	decoder := yaml.NewDecoder(reader)
	if err := decoder.Decode(&file); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	n := file.Notification
	overlay(&cfg.Notification.Title, n.Title)
	overlay(&cfg.Notification.Icon, n.Icon)
	overlay(&cfg.Notification.Badge, n.Badge)
	overlay(&cfg.Notification.Link, n.Link)
	overlay(&cfg.Notification.Urgency, n.Urgency)
	overlay(&cfg.Notification.DefaultBusiness, n.DefaultBusiness)
	if n.RequireInteraction != nil {
		cfg.Notification.RequireInteraction = *n.RequireInteraction
	}

	return nil
}

func overlay(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
