package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Site     SiteConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Export   ExportConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type SiteConfig struct {
	BaseURL       string
	LoginPath     string
	Username      string
	Password      string
	UsernameField string
	PasswordField string
}

type ScraperConfig struct {
	MaxConcurrentRequests int
	RequestDelaySeconds   float64
	TimeoutSeconds        int
	DetailedScrape        bool
	MaxPagesPerCategory   int
	MaxCategories         int
	DetailDelay           time.Duration
	RunTimeout            time.Duration
	FetchMode             string
	UserAgent             string
	AcceptLanguage        string
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ExportConfig struct {
	OutputDir string
}

type MetricsConfig struct {
	Enabled bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	FetchModeHTTP    = "http"
	FetchModeBrowser = "browser"
)

// Load reads the process environment, after merging an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Site: SiteConfig{
			BaseURL:       strings.TrimRight(getEnvOrDefault("SITE_BASE_URL", "https://newbest-ricambi.com"), "/"),
			LoginPath:     getEnvOrDefault("SITE_LOGIN_PATH", "/user.php"),
			Username:      os.Getenv("SITE_USERNAME"),
			Password:      os.Getenv("SITE_PASSWORD"),
			UsernameField: getEnvOrDefault("SITE_USERNAME_FIELD", "email"),
			PasswordField: getEnvOrDefault("SITE_PASSWORD_FIELD", "password"),
		},
		Scraper: ScraperConfig{
			MaxConcurrentRequests: getIntOrDefault("MAX_CONCURRENT_REQUESTS", 5),
			RequestDelaySeconds:   getFloatOrDefault("REQUEST_DELAY_SECONDS", 1.0),
			TimeoutSeconds:        getIntOrDefault("TIMEOUT_SECONDS", 30),
			DetailedScrape:        getBoolOrDefault("DETAILED_SCRAPE", true),
			MaxPagesPerCategory:   getIntOrDefault("MAX_PAGES_PER_CATEGORY", 20),
			MaxCategories:         getIntOrDefault("MAX_CATEGORIES", 10),
			DetailDelay:           getDurationOrDefault("DETAIL_DELAY", 500*time.Millisecond),
			RunTimeout:            getDurationOrDefault("RUN_TIMEOUT", 0),
			FetchMode:             strings.ToLower(getEnvOrDefault("FETCH_MODE", FetchModeHTTP)),
			UserAgent:             getEnvOrDefault("USER_AGENT", defaultUserAgent),
			AcceptLanguage:        getEnvOrDefault("ACCEPT_LANGUAGE", "en-US,en;q=0.9,it;q=0.8"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/Rome"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "catalog_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:catalog_products"),
		},
		Export: ExportConfig{
			OutputDir: getEnvOrDefault("OUTPUT_DIR", "."),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolOrDefault("METRICS_ENABLED", true),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SITE_BASE_URL must be an absolute URL, got %q", c.Site.BaseURL)
	}

	if c.Scraper.MaxConcurrentRequests < 1 {
		return fmt.Errorf("MAX_CONCURRENT_REQUESTS must be at least 1")
	}

	if c.Scraper.RequestDelaySeconds < 0 {
		return fmt.Errorf("REQUEST_DELAY_SECONDS cannot be negative")
	}

	if c.Scraper.TimeoutSeconds < 1 {
		return fmt.Errorf("TIMEOUT_SECONDS must be at least 1")
	}

	if c.Scraper.MaxPagesPerCategory < 1 {
		return fmt.Errorf("MAX_PAGES_PER_CATEGORY must be at least 1")
	}

	if c.Scraper.MaxCategories < 1 {
		return fmt.Errorf("MAX_CATEGORIES must be at least 1")
	}

	if c.Scraper.FetchMode != FetchModeHTTP && c.Scraper.FetchMode != FetchModeBrowser {
		return fmt.Errorf("FETCH_MODE must be %q or %q", FetchModeHTTP, FetchModeBrowser)
	}

	return nil
}

func (s ScraperConfig) RequestDelay() time.Duration {
	return time.Duration(s.RequestDelaySeconds * float64(time.Second))
}

func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func (s SiteConfig) LoginURL() string {
	return s.BaseURL + s.LoginPath
}

func (s SiteConfig) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
