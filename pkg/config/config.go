package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the whole service configuration, loaded from YAML and then
// overridden per section from the environment.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Google  GoogleConfig  `yaml:"google"`
	Gemini  GeminiConfig  `yaml:"gemini"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SessionConfig carries the HS256 secret for the session cookie.
type SessionConfig struct {
	Secret string `yaml:"secret"`
}

// GoogleConfig is the OAuth client registration used for sign-in and the
// Gmail-readonly grant.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// GeminiConfig points at the generative-text endpoint. APIKey may be empty at
// startup; /sync reports a configuration failure when it is missing.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// Load reads the YAML file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	OverrideServerFromEnv(&cfg.Server)
	OverrideDBFromEnv(&cfg.DB)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideSessionFromEnv(&cfg.Session)
	OverrideGoogleFromEnv(&cfg.Google)
	OverrideGeminiFromEnv(&cfg.Gemini)

	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = "gemini-1.5-flash-latest"
	}
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = "https://generativelanguage.googleapis.com"
	}

	return cfg, nil
}

// OverrideServerFromEnv overrides server settings from the environment.
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideDBFromEnv overrides database settings from the environment.
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideRedisFromEnv overrides Redis settings from the environment.
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			cfg.DB = d
		}
	}
}

// OverrideSessionFromEnv overrides the session secret from the environment.
func OverrideSessionFromEnv(cfg *SessionConfig) {
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideGoogleFromEnv overrides the OAuth client registration from the environment.
func OverrideGoogleFromEnv(cfg *GoogleConfig) {
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.ClientSecret = secret
	}
	if url := os.Getenv("GOOGLE_REDIRECT_URL"); url != "" {
		cfg.RedirectURL = url
	}
}

// OverrideGeminiFromEnv overrides model endpoint settings from the environment.
func OverrideGeminiFromEnv(cfg *GeminiConfig) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.Model = model
	}
	if url := os.Getenv("GEMINI_BASE_URL"); url != "" {
		cfg.BaseURL = url
	}
}
