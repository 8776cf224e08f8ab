package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port               string   `env:"PORT" envDefault:"5000"`
	GinMode            string   `env:"GIN_MODE" envDefault:"debug"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	Database           Database `envPrefix:"DB_"`
	JWT                JWT      `envPrefix:"JWT_"`
	Google             Google   `envPrefix:"GOOGLE_"`
	OpenAI             OpenAI   `envPrefix:"OPENAI_"`
}

// Database selects the GORM dialector and its connection parameters.
type Database struct {
	Driver     string `env:"DRIVER" envDefault:"mysql"`
	Host       string `env:"HOST" envDefault:"localhost"`
	Port       string `env:"PORT" envDefault:"3306"`
	User       string `env:"USER" envDefault:"taskuser"`
	Password   string `env:"PASSWORD" envDefault:"taskpassword"`
	Name       string `env:"NAME" envDefault:"pinboard"`
	SSLMode    string `env:"SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"pinboard.db"`
}

// JWT holds the session token signing secret and lifetime.
type JWT struct {
	Secret string        `env:"SECRET,required,notEmpty"`
	TTL    time.Duration `env:"TTL" envDefault:"168h"`
}

// Google configures ID token verification. Federated login is disabled
// when ClientIDs is empty.
type Google struct {
	ClientIDs    []string      `env:"CLIENT_IDS" envSeparator:","`
	Issuers      []string      `env:"ISSUERS" envSeparator:"," envDefault:"accounts.google.com,https://accounts.google.com"`
	CertsURL     string        `env:"CERTS_URL" envDefault:"https://www.googleapis.com/oauth2/v3/certs"`
	CertsRefresh time.Duration `env:"CERTS_REFRESH" envDefault:"1h"`
}

// OpenAI configures the task drafting assistant. It is disabled when APIKey is empty.
type OpenAI struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`
	Model   string `env:"MODEL" envDefault:"gpt-4o"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	if cfg.JWT.TTL <= 0 {
		return nil, fmt.Errorf("JWT_TTL must be positive, got %s", cfg.JWT.TTL)
	}

	return cfg, nil
}
