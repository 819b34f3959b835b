package config

import (
	"fmt"
	"os"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/pkg/validation"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Call struct {
		Token              string `yaml:"token"`
		SessionID          string `yaml:"session_id"`
		APIKey             string `yaml:"api_key"`
		EntityGUID         string `yaml:"entity_guid"`
		Theme              string `yaml:"theme"`
		Origin             string `yaml:"origin"`
		SessionEntity      string `yaml:"session_entity"`
		EnableInterruption bool   `yaml:"enable_interruption"`
		OfflineAttribute   string `yaml:"offline_attribute"`

		Actions struct {
			Interrupt string `yaml:"interrupt"`
			Offline   string `yaml:"offline"`
			EndCall   string `yaml:"end_call"`
		} `yaml:"actions"`
	} `yaml:"call"`

	Signal struct {
		URL               string        `yaml:"url"`
		PingInterval      time.Duration `yaml:"ping_interval"`
		PongTimeout       time.Duration `yaml:"pong_timeout"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
		ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay"`
	} `yaml:"signal"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PortRange struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
	} `yaml:"webrtc"`

	Platform struct {
		Driver         string        `yaml:"driver"` // rest | redis
		BaseURL        string        `yaml:"base_url"`
		Timeout        time.Duration `yaml:"timeout"`
		JWTSecret      string        `yaml:"jwt_secret"`
		TokenTTL       time.Duration `yaml:"token_ttl"`
		BreakerFails   int           `yaml:"breaker_failures"`
		BreakerTimeout time.Duration `yaml:"breaker_timeout"`
	} `yaml:"platform"`

	Redis struct {
		Address       string `yaml:"address"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		PoolSize      int    `yaml:"pool_size"`
		KeyPrefix     string `yaml:"key_prefix"`
		ActionChannel string `yaml:"action_channel"`
	} `yaml:"redis"`

	Board struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		JWTSecret       string        `yaml:"jwt_secret"`
		RateLimit       struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"rate_limit"`
	} `yaml:"board"`

	Probe struct {
		Enabled  bool          `yaml:"enabled"`
		URL      string        `yaml:"url"`
		Interval time.Duration `yaml:"interval"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"probe"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// CallProps converts the call section into the props the controller mounts with.
func (c *Config) CallProps() domain.CallProps {
	return domain.CallProps{
		Token:              c.Call.Token,
		SessionID:          c.Call.SessionID,
		APIKey:             c.Call.APIKey,
		EntityGUID:         c.Call.EntityGUID,
		Theme:              c.Call.Theme,
		InterruptAction:    c.Call.Actions.Interrupt,
		OfflineAction:      c.Call.Actions.Offline,
		EndCallAction:      c.Call.Actions.EndCall,
		Origin:             domain.Origin(c.Call.Origin),
		SessionEntity:      c.Call.SessionEntity,
		EnableInterruption: c.Call.EnableInterruption,
		OfflineAttribute:   c.Call.OfflineAttribute,
	}
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Signal
	if err := validation.ValidateURL(c.Signal.URL, "ws", "wss"); err != nil {
		return fmt.Errorf("signal.url: %w", err)
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}
	if c.Signal.RequestTimeout <= 0 {
		return fmt.Errorf("signal.request_timeout must be > 0")
	}
	if c.Signal.ReconnectAttempts < 0 {
		return fmt.Errorf("signal.reconnect_attempts must be >= 0")
	}

	// WebRTC
	if c.WebRTC.PortRange.Min > 0 || c.WebRTC.PortRange.Max > 0 {
		if c.WebRTC.PortRange.Min == 0 || c.WebRTC.PortRange.Max == 0 {
			return fmt.Errorf("webrtc.port_range.min and max must both be set when one is set")
		}
		if c.WebRTC.PortRange.Min >= c.WebRTC.PortRange.Max {
			return fmt.Errorf("webrtc.port_range.min must be < max")
		}
	}

	// Platform
	switch c.Platform.Driver {
	case "rest":
		if err := validation.ValidateURL(c.Platform.BaseURL, "http", "https"); err != nil {
			return fmt.Errorf("platform.base_url: %w", err)
		}
		if c.Platform.Timeout <= 0 {
			return fmt.Errorf("platform.timeout must be > 0")
		}
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when platform.driver=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when platform.driver=redis")
		}
	default:
		return fmt.Errorf("platform.driver must be one of rest, redis (got %q)", c.Platform.Driver)
	}

	// Board
	if c.Board.Enabled {
		if c.Board.Address == "" {
			return fmt.Errorf("board.address must not be empty when board.enabled=true")
		}
		if c.Board.JWTSecret == "" {
			return fmt.Errorf("board.jwt_secret must not be empty when board.enabled=true")
		}
		if c.Board.RateLimit.RequestsPerSecond <= 0 || c.Board.RateLimit.Burst <= 0 {
			return fmt.Errorf("board.rate_limit requests_per_second and burst must be > 0")
		}
	}

	// Probe
	if c.Probe.Enabled {
		if err := validation.ValidateURL(c.Probe.URL, "http", "https"); err != nil {
			return fmt.Errorf("probe.url: %w", err)
		}
		if c.Probe.Interval <= 0 || c.Probe.Timeout <= 0 {
			return fmt.Errorf("probe.interval and probe.timeout must be > 0")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
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

	cfg.Call.OfflineAttribute = "IsOffline"

	cfg.Signal.URL = "ws://localhost:8081/ws"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.RequestTimeout = 10 * time.Second
	cfg.Signal.ReconnectAttempts = 5
	cfg.Signal.ReconnectDelay = 500 * time.Millisecond
	cfg.Signal.ReconnectMaxDelay = 10 * time.Second

	cfg.Platform.Driver = "rest"
	cfg.Platform.BaseURL = "http://localhost:8080"
	cfg.Platform.Timeout = 15 * time.Second
	cfg.Platform.TokenTTL = 5 * time.Minute
	cfg.Platform.BreakerFails = 5
	cfg.Platform.BreakerTimeout = 30 * time.Second

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.PoolSize = 10
	cfg.Redis.KeyPrefix = "callbridge:entity:"
	cfg.Redis.ActionChannel = "callbridge:actions"

	cfg.Board.Enabled = true
	cfg.Board.Address = ":8090"
	cfg.Board.ReadTimeout = 30 * time.Second
	cfg.Board.WriteTimeout = 30 * time.Second
	cfg.Board.ShutdownTimeout = 10 * time.Second
	cfg.Board.JWTSecret = "change-me-in-production"
	cfg.Board.RateLimit.RequestsPerSecond = 1
	cfg.Board.RateLimit.Burst = 3

	cfg.Probe.Enabled = true
	cfg.Probe.URL = "http://localhost:8080/health"
	cfg.Probe.Interval = 5 * time.Second
	cfg.Probe.Timeout = 2 * time.Second

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.ServiceName = "callbridge"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	overrides := map[string]*string{
		"CALLBRIDGE_TOKEN":            &c.Call.Token,
		"CALLBRIDGE_SESSION_ID":       &c.Call.SessionID,
		"CALLBRIDGE_API_KEY":          &c.Call.APIKey,
		"CALLBRIDGE_ENTITY_GUID":      &c.Call.EntityGUID,
		"CALLBRIDGE_SIGNAL_URL":       &c.Signal.URL,
		"CALLBRIDGE_PLATFORM_URL":     &c.Platform.BaseURL,
		"CALLBRIDGE_PLATFORM_SECRET":  &c.Platform.JWTSecret,
		"CALLBRIDGE_BOARD_JWT_SECRET": &c.Board.JWTSecret,
		"CALLBRIDGE_LOG_LEVEL":        &c.Logging.Level,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
}
