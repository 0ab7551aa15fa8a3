package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Env  string
	Port string

	StoreDriver   string
	MongoURL      string
	MongoDatabase string
	PostgresURL   string
	RedisURL      string

	JWTSecret []byte
	TokenTTL  time.Duration

	AdminAccessKey     string
	ModeratorAccessKey string

	SessionKey     []byte
	CSRFKey        []byte
	CookieSecure   bool
	AllowedOrigins []string

	KafkaBrokers []string
	KafkaTopic   string

	UploadDir string

	FirebaseCredentialsJSON string
	FirebaseProjectID       string

	SeedCatalog bool
}

type configFile struct {
	Server struct {
		Env            string   `yaml:"env"`
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		CookieSecure   *bool    `yaml:"cookie_secure"`
		UploadDir      string   `yaml:"upload_dir"`
	} `yaml:"server"`
	Store struct {
		Driver        string `yaml:"driver"`
		MongoURL      string `yaml:"mongo_url"`
		MongoDatabase string `yaml:"mongo_database"`
		PostgresURL   string `yaml:"postgres_url"`
		RedisURL      string `yaml:"redis_url"`
		SeedCatalog   *bool  `yaml:"seed_catalog"`
	} `yaml:"store"`
	Auth struct {
		TokenTTL          string `yaml:"token_ttl"`
		FirebaseProjectID string `yaml:"firebase_project_id"`
	} `yaml:"auth"`
	Events struct {
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"events"`
}

// Load reads .env, then the optional YAML file named by CONFIG_FILE, then the
// environment. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:            "development",
		Port:           "8080",
		StoreDriver:    "mongo",
		MongoDatabase:  "storefront",
		TokenTTL:       24 * time.Hour,
		AllowedOrigins: []string{"http://localhost:3000"},
		KafkaTopic:     "storefront.products",
		UploadDir:      "./uploads",
	}

	path := getEnv("CONFIG_FILE", "config.yaml")
	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if _, err := strconv.Atoi(cfg.Port); err != nil {
		slog.Error("Invalid PORT. Falling back to default.", "PORT", cfg.Port)
		cfg.Port = "8080"
	}

	cfg.JWTSecret = secret("JWT_SECRET", 32)
	cfg.SessionKey = secret("SESSION_KEY", 32)
	cfg.CSRFKey = secret("CSRF_KEY", 32)

	return cfg, nil
}

func (c *Config) Production() bool {
	return c.Env == "production"
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.Env, f.Server.Env)
	setString(&c.Port, f.Server.Port)
	setString(&c.UploadDir, f.Server.UploadDir)
	if len(f.Server.AllowedOrigins) > 0 {
		c.AllowedOrigins = trimNonEmpty(f.Server.AllowedOrigins)
	}
	if f.Server.CookieSecure != nil {
		c.CookieSecure = *f.Server.CookieSecure
	}

	setString(&c.StoreDriver, f.Store.Driver)
	setString(&c.MongoURL, f.Store.MongoURL)
	setString(&c.MongoDatabase, f.Store.MongoDatabase)
	setString(&c.PostgresURL, f.Store.PostgresURL)
	setString(&c.RedisURL, f.Store.RedisURL)
	if f.Store.SeedCatalog != nil {
		c.SeedCatalog = *f.Store.SeedCatalog
	}

	if f.Auth.TokenTTL != "" {
		ttl, err := time.ParseDuration(f.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("parse auth.token_ttl: %w", err)
		}
		c.TokenTTL = ttl
	}
	setString(&c.FirebaseProjectID, f.Auth.FirebaseProjectID)

	if len(f.Events.KafkaBrokers) > 0 {
		c.KafkaBrokers = trimNonEmpty(f.Events.KafkaBrokers)
	}
	setString(&c.KafkaTopic, f.Events.KafkaTopic)
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Env, os.Getenv("APP_ENV"))
	setString(&c.Port, os.Getenv("PORT"))
	setString(&c.StoreDriver, os.Getenv("STORE_DRIVER"))

	// Hosted mongo exposes either name.
	setString(&c.MongoURL, os.Getenv("MONGO_URL"))
	setString(&c.MongoURL, os.Getenv("MONGO_PUBLIC_URL"))
	setString(&c.MongoDatabase, os.Getenv("MONGO_DATABASE"))
	setString(&c.PostgresURL, os.Getenv("DATABASE_URL"))
	setString(&c.RedisURL, os.Getenv("REDIS_URL"))

	setString(&c.AdminAccessKey, os.Getenv("ADMIN_ACCESS_KEY"))
	setString(&c.ModeratorAccessKey, os.Getenv("MODERATOR_ACCESS_KEY"))

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = trimNonEmpty(strings.Split(v, ","))
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		c.CookieSecure = v == "true"
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = trimNonEmpty(strings.Split(v, ","))
	}
	setString(&c.KafkaTopic, os.Getenv("KAFKA_TOPIC"))
	setString(&c.UploadDir, os.Getenv("UPLOAD_DIR"))

	setString(&c.FirebaseCredentialsJSON, os.Getenv("FIREBASE_CREDENTIALS_JSON"))
	setString(&c.FirebaseProjectID, os.Getenv("FIREBASE_PROJECT_ID"))

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse TOKEN_TTL: %w", err)
		}
		c.TokenTTL = ttl
	}
	if v := os.Getenv("SEED_CATALOG"); v != "" {
		c.SeedCatalog = v == "true"
	}
	return nil
}

// secret decodes a base64 key from the environment. Missing or short keys are
// replaced by random bytes so development still boots; sessions and tokens
// then do not survive a restart.
func secret(key string, n int) []byte {
	raw := os.Getenv(key)
	if raw == "" {
		slog.Warn(key + " not set. Generating a random key for development. PLEASE SET " + key + " IN PRODUCTION!")
		return randomBytes(n)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) < n {
		slog.Warn(key+" is invalid or too short. Generating a random key for development.", "min_bytes", n)
		return randomBytes(n)
	}
	return decoded
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing leaves nothing safe to fall back on
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return b
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
