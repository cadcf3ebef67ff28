package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Settings struct {
	Server     ServerConfig
	Crawler    CrawlerConfig
	LinkCheck  LinkCheckConfig
	AI         AIConfig
	RateLimit  RateLimitConfig
	Colly      CollyConfig
	Browser    BrowserConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	Development     bool
}

type CrawlerConfig struct {
	Backend             string
	UserAgent           string
	Timeout             time.Duration
	MaxBodyBytes        int64
	MaxRedirects        int
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	TLSHandshakeTimeout time.Duration
}

// LinkCheckConfig controls the broken-link verifier. MaxConcurrent of 0 means
// every capped link is probed at once.
type LinkCheckConfig struct {
	MaxLinks      int
	Timeout       time.Duration
	MaxConcurrent int
	Method        string
	UserAgent     string
}

// AIConfig points at an external analyzer command. An empty Command selects
// the built-in static analysis.
type AIConfig struct {
	Command string
	Args    []string
	Timeout time.Duration
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

type CollyConfig struct {
	UserAgent   string
	Delay       time.Duration
	RandomDelay time.Duration
	Parallelism int
	DomainGlob  string
	DebugMode   bool
}

type BrowserConfig struct {
	ExecPath string
	Headless bool
	WaitTime time.Duration
}

type MonitoringConfig struct {
	MetricsEnabled bool
	MetricsPath    string
}

const (
	BackendHTTP    = "http"
	BackendColly   = "colly"
	BackendBrowser = "browser"
)

// Load reads settings from the environment and, when present, a .env file in
// the working directory. Values that fail to parse fall back to defaults.
func Load() *Settings {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	return &Settings{
		Server: ServerConfig{
			Port:            getEnv(v, "PORT", "5500"),
			ReadTimeout:     getDurationEnv(v, "READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv(v, "WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getDurationEnv(v, "SHUTDOWN_TIMEOUT", 10*time.Second),
			LogLevel:        getEnv(v, "LOG_LEVEL", "info"),
			Development:     getBoolEnv(v, "DEVELOPMENT", false),
		},
		Crawler: CrawlerConfig{
			Backend:             strings.ToLower(getEnv(v, "FETCH_BACKEND", BackendHTTP)),
			UserAgent:           getEnv(v, "USER_AGENT", "Mozilla/5.0 (compatible; SitePulse/1.0)"),
			Timeout:             getDurationEnv(v, "CRAWLER_TIMEOUT", 30*time.Second),
			MaxBodyBytes:        int64(getIntEnv(v, "CRAWLER_MAX_BODY_BYTES", 10<<20)),
			MaxRedirects:        getIntEnv(v, "CRAWLER_MAX_REDIRECTS", 10),
			MaxIdleConns:        getIntEnv(v, "MAX_IDLE_CONNS", 200),
			MaxIdleConnsPerHost: getIntEnv(v, "MAX_IDLE_CONNS_PER_HOST", 50),
			MaxConnsPerHost:     getIntEnv(v, "MAX_CONNS_PER_HOST", 100),
			IdleConnTimeout:     getDurationEnv(v, "IDLE_CONN_TIMEOUT", 30*time.Second),
			TLSHandshakeTimeout: getDurationEnv(v, "TLS_HANDSHAKE_TIMEOUT", 10*time.Second),
		},
		LinkCheck: LinkCheckConfig{
			MaxLinks:      getPositiveIntEnv(v, "LINKCHECK_MAX_LINKS", 50),
			Timeout:       getDurationEnv(v, "LINKCHECK_TIMEOUT", 5*time.Second),
			MaxConcurrent: getIntEnv(v, "LINKCHECK_MAX_CONCURRENT", 0),
			Method:        strings.ToUpper(getEnv(v, "LINKCHECK_METHOD", "GET")),
			UserAgent:     getEnv(v, "LINKCHECK_USER_AGENT", "Mozilla/5.0 (compatible; SitePulse-LinkCheck/1.0)"),
		},
		AI: AIConfig{
			Command: getEnv(v, "AI_COMMAND", ""),
			Args:    strings.Fields(getEnv(v, "AI_ARGS", "")),
			Timeout: getDurationEnv(v, "AI_TIMEOUT", 60*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolEnv(v, "RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatEnv(v, "REQUESTS_PER_SECOND", 5.0),
			Burst:             getIntEnv(v, "RATE_LIMIT_BURST", 10),
		},
		Colly: CollyConfig{
			UserAgent:   getEnv(v, "COLLY_USER_AGENT", "Mozilla/5.0 (compatible; SitePulse-Colly/1.0)"),
			Delay:       getDurationEnv(v, "COLLY_DELAY", 0),
			RandomDelay: getDurationEnv(v, "COLLY_RANDOM_DELAY", 0),
			Parallelism: getIntEnv(v, "COLLY_PARALLELISM", 5),
			DomainGlob:  getEnv(v, "COLLY_DOMAIN_GLOB", "*"),
			DebugMode:   getBoolEnv(v, "COLLY_DEBUG", false),
		},
		Browser: BrowserConfig{
			ExecPath: getEnv(v, "BROWSER_EXEC_PATH", ""),
			Headless: getBoolEnv(v, "BROWSER_HEADLESS", true),
			WaitTime: getDurationEnv(v, "BROWSER_WAIT", 0),
		},
		Monitoring: MonitoringConfig{
			MetricsEnabled: getBoolEnv(v, "METRICS_ENABLED", true),
			MetricsPath:    getEnv(v, "METRICS_PATH", "/metrics"),
		},
	}
}

func getEnv(v *viper.Viper, key, defaultValue string) string {
	if value := v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getPositiveIntEnv is getIntEnv for settings where zero or a negative value
// is meaningless.
func getPositiveIntEnv(v *viper.Viper, key string, defaultValue int) int {
	if value := getIntEnv(v, key, defaultValue); value > 0 {
		return value
	}
	return defaultValue
}

func getFloatEnv(v *viper.Viper, key string, defaultValue float64) float64 {
	if value := v.GetString(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getDurationEnv(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := v.GetString(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(v *viper.Viper, key string, defaultValue bool) bool {
	if value := v.GetString(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
