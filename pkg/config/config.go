package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v3"
	"gopkg.in/yaml.v2"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type ICEServer struct {
	URLs       []string `yaml:"urls"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"server"`

	// Signal configures the WebSocket transport. Address is only used by the
	// realtime-only node; the full server mounts /ws on Server.Address.
	Signal struct {
		Address         string        `yaml:"address"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		SendBuffer      int           `yaml:"send_buffer"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"signal"`

	Storage struct {
		Driver   string `yaml:"driver"`
		Postgres struct {
			Host            string        `yaml:"host"`
			Port            int           `yaml:"port"`
			User            string        `yaml:"user"`
			Password        string        `yaml:"password"`
			DBName          string        `yaml:"dbname"`
			SSLMode         string        `yaml:"sslmode"`
			MaxOpenConns    int           `yaml:"max_open_conns"`
			MaxIdleConns    int           `yaml:"max_idle_conns"`
			ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	EventBus struct {
		Enabled bool   `yaml:"enabled"`
		Channel string `yaml:"channel"`
	} `yaml:"event_bus"`

	Sports struct {
		SportID          string        `yaml:"sport_id"`
		PollerEnabled    bool          `yaml:"poller_enabled"`
		LivePollInterval time.Duration `yaml:"live_poll_interval"`
		DailyFetchTime   string        `yaml:"daily_fetch_time"`
		CacheTTL         time.Duration `yaml:"cache_ttl"`
		FootballData     struct {
			APIKey        string        `yaml:"api_key"`
			BaseURL       string        `yaml:"base_url"`
			CompetitionID string        `yaml:"competition_id"`
			Timeout       time.Duration `yaml:"timeout"`
		} `yaml:"football_data"`
	} `yaml:"sports"`

	ScreenShare struct {
		DefaultMaxViewers    int           `yaml:"default_max_viewers"`
		MaxViewersPerSession int           `yaml:"max_viewers_per_session"`
		SessionTimeout       time.Duration `yaml:"session_timeout"`
		CleanupInterval      time.Duration `yaml:"cleanup_interval"`
		ICEServers           []ICEServer   `yaml:"ice_servers"`
	} `yaml:"screen_share"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		MetricsPath       string `yaml:"metrics_path"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"http"`

		WebSocket struct {
			ConnectionsPerMinute int     `yaml:"connections_per_minute"`
			MessagesPerSecond    float64 `yaml:"messages_per_second"`
			Burst                int     `yaml:"burst"`
			MaxConcurrent        int     `yaml:"max_concurrent_connections"` // 0 = unlimited
			MaxMessageSizeBytes  int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signal
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= c.Signal.PingInterval {
		return fmt.Errorf("signal.pong_timeout must be greater than signal.ping_interval")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}
	if c.Signal.SendBuffer <= 0 {
		return fmt.Errorf("signal.send_buffer must be > 0")
	}

	// Storage
	switch c.Storage.Driver {
	case StorageMemory:
	case StorageRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("storage.driver=redis requires redis.enabled=true")
		}
	case StoragePostgres:
		if c.Storage.Postgres.Host == "" || c.Storage.Postgres.DBName == "" {
			return fmt.Errorf("storage.postgres.host and dbname must be set when storage.driver=postgres")
		}
	case StorageSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path must be set when storage.driver=sqlite")
		}
	default:
		return fmt.Errorf("storage.driver %q is not one of memory, redis, postgres, sqlite", c.Storage.Driver)
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}
	if c.EventBus.Enabled {
		if !c.Redis.Enabled {
			return fmt.Errorf("event_bus.enabled requires redis.enabled=true")
		}
		if c.EventBus.Channel == "" {
			return fmt.Errorf("event_bus.channel must not be empty")
		}
	}

	// Sports
	if c.Sports.SportID == "" {
		return fmt.Errorf("sports.sport_id must not be empty")
	}
	if c.Sports.LivePollInterval <= 0 {
		return fmt.Errorf("sports.live_poll_interval must be > 0")
	}
	if _, _, err := ParseClock(c.Sports.DailyFetchTime); err != nil {
		return fmt.Errorf("sports.daily_fetch_time: %w", err)
	}
	if c.Sports.FootballData.BaseURL == "" {
		return fmt.Errorf("sports.football_data.base_url must not be empty")
	}
	if c.Sports.FootballData.Timeout <= 0 {
		return fmt.Errorf("sports.football_data.timeout must be > 0")
	}

	// Screen share
	if c.ScreenShare.MaxViewersPerSession < 1 || c.ScreenShare.MaxViewersPerSession > 100 {
		return fmt.Errorf("screen_share.max_viewers_per_session must be between 1 and 100")
	}
	if c.ScreenShare.DefaultMaxViewers < 1 || c.ScreenShare.DefaultMaxViewers > c.ScreenShare.MaxViewersPerSession {
		return fmt.Errorf("screen_share.default_max_viewers must be between 1 and max_viewers_per_session")
	}
	if c.ScreenShare.SessionTimeout <= 0 {
		return fmt.Errorf("screen_share.session_timeout must be > 0")
	}
	if c.ScreenShare.CleanupInterval <= 0 {
		return fmt.Errorf("screen_share.cleanup_interval must be > 0")
	}
	for i, s := range c.ScreenShare.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("screen_share.ice_servers[%d].urls must not be empty", i)
		}
	}

	// Tracing
	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.ConnectionsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.websocket.connections_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_concurrent_connections must be >= 0 when rate limiting is enabled")
		}
	}
	if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}

	cfg.Signal.Address = ":8081"
	cfg.Signal.PingInterval = 25 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second
	cfg.Signal.SendBuffer = 64
	cfg.Signal.ShutdownTimeout = 15 * time.Second

	cfg.Storage.Driver = StorageMemory
	cfg.Storage.Postgres.Port = 5432
	cfg.Storage.Postgres.SSLMode = "disable"
	cfg.Storage.Postgres.MaxOpenConns = 20
	cfg.Storage.Postgres.MaxIdleConns = 5
	cfg.Storage.Postgres.ConnMaxLifetime = 30 * time.Minute
	cfg.Storage.SQLite.Path = "sportshub.db"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.EventBus.Enabled = false
	cfg.EventBus.Channel = "sportshub:events"

	cfg.Sports.SportID = "soccer"
	cfg.Sports.PollerEnabled = true
	cfg.Sports.LivePollInterval = 30 * time.Second
	cfg.Sports.DailyFetchTime = "06:00"
	cfg.Sports.CacheTTL = 10 * time.Second
	cfg.Sports.FootballData.BaseURL = "https://api.football-data.org/v4"
	cfg.Sports.FootballData.CompetitionID = "2021"
	cfg.Sports.FootballData.Timeout = 10 * time.Second

	cfg.ScreenShare.DefaultMaxViewers = 50
	cfg.ScreenShare.MaxViewersPerSession = 50
	cfg.ScreenShare.SessionTimeout = 3 * time.Hour
	cfg.ScreenShare.CleanupInterval = 5 * time.Minute
	cfg.ScreenShare.ICEServers = []ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 20
	cfg.RateLimiting.WebSocket.Burst = 40
	cfg.RateLimiting.WebSocket.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("SPORTSHUB_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("SPORTSHUB_SIGNAL_ADDRESS"); addr != "" {
		c.Signal.Address = addr
	}
	if level := os.Getenv("SPORTSHUB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("SPORTSHUB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if driver := os.Getenv("SPORTSHUB_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if pw := os.Getenv("SPORTSHUB_POSTGRES_PASSWORD"); pw != "" {
		c.Storage.Postgres.Password = pw
	}
	if addr := os.Getenv("SPORTSHUB_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
		c.Redis.Enabled = true
	}
	if key := os.Getenv("SPORTSHUB_FOOTBALL_DATA_API_KEY"); key != "" {
		c.Sports.FootballData.APIKey = key
	}
	if turn := os.Getenv("SPORTSHUB_TURN_URL"); turn != "" {
		c.ScreenShare.ICEServers = append(c.ScreenShare.ICEServers, ICEServer{
			URLs:       []string{turn},
			Username:   os.Getenv("SPORTSHUB_TURN_USERNAME"),
			Credential: os.Getenv("SPORTSHUB_TURN_CREDENTIAL"),
		})
	}
}

// WebRTCICEServers converts the configured servers for clients.
func (c *Config) WebRTCICEServers() []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(c.ScreenShare.ICEServers))
	for _, s := range c.ScreenShare.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		out = append(out, server)
	}
	return out
}

// PostgresDSN builds a key=value DSN for the postgres driver.
func (c *Config) PostgresDSN() string {
	p := c.Storage.Postgres
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// ParseClock parses "HH:MM" in 24h form.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%q is not HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%q has an invalid hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q has an invalid minute", s)
	}
	return hour, minute, nil
}
