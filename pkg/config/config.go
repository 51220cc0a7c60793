package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Dialect names accepted in rigctld.dialect
const (
	DialectLevel = "level"
	DialectRaw   = "raw"
)

// Config represents the rigbridge configuration
type Config struct {
	Rigctld struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		TimeoutMs      int    `yaml:"timeout_ms"`
		DrainTimeoutMs int    `yaml:"drain_timeout_ms"`

		// Dialect selects how AGC, RF gain and power are read back:
		// "level" uses l AGC / l RFGAIN / l RFPOWER, "raw" uses vendor
		// passthrough queries sent with the w command.
		Dialect string `yaml:"dialect"`

		Raw struct {
			Terminator    string `yaml:"terminator"`
			AGCCommand    string `yaml:"agc_command"`
			RFGainCommand string `yaml:"rf_gain_command"`
			RFGainMin     int    `yaml:"rf_gain_min"`
			RFGainMax     int    `yaml:"rf_gain_max"`
			PowerCommand  string `yaml:"power_command"`
			PowerMin      int    `yaml:"power_min"`
			PowerMax      int    `yaml:"power_max"`
		} `yaml:"raw"`
	} `yaml:"rigctld"`

	Server struct {
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		StaticDir string `yaml:"static_dir"`
		Templates string `yaml:"templates"`
	} `yaml:"server"`

	Auth struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`

	Polling struct {
		IntervalMs int `yaml:"interval_ms"`
	} `yaml:"polling"`

	UI struct {
		DefaultStep int `yaml:"default_step"`
	} `yaml:"ui"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`

	Journal struct {
		Enabled      bool   `yaml:"enabled"`
		DatabasePath string `yaml:"database_path"`
		MaxEntries   int    `yaml:"max_entries"`
	} `yaml:"journal"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults
func Parse(data []byte) (*Config, error) {
	// console logging is on unless the file says otherwise
	config := Config{}
	config.Logging.Console = true

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{}
	config.Logging.Console = true
	config.ApplyDefaults()
	return config
}

// ApplyDefaults fills zero values with defaults
func (c *Config) ApplyDefaults() {
	if c.Rigctld.Host == "" {
		c.Rigctld.Host = "127.0.0.1"
	}
	if c.Rigctld.Port == 0 {
		c.Rigctld.Port = 4532
	}
	if c.Rigctld.TimeoutMs == 0 {
		c.Rigctld.TimeoutMs = 5000
	}
	if c.Rigctld.DrainTimeoutMs == 0 {
		c.Rigctld.DrainTimeoutMs = 100
	}
	if c.Rigctld.Dialect == "" {
		c.Rigctld.Dialect = DialectLevel
	}
	c.Rigctld.Dialect = strings.ToLower(c.Rigctld.Dialect)
	if c.Rigctld.Raw.Terminator == "" {
		c.Rigctld.Raw.Terminator = ";"
	}
	if c.Rigctld.Raw.AGCCommand == "" {
		c.Rigctld.Raw.AGCCommand = "ZZGT;"
	}
	if c.Rigctld.Raw.RFGainCommand == "" {
		c.Rigctld.Raw.RFGainCommand = "ZZAR;"
		c.Rigctld.Raw.RFGainMin = -20
		c.Rigctld.Raw.RFGainMax = 120
	}
	if c.Rigctld.Raw.PowerCommand == "" {
		c.Rigctld.Raw.PowerCommand = "ZZPC;"
		c.Rigctld.Raw.PowerMin = 0
		c.Rigctld.Raw.PowerMax = 100
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./web/static"
	}
	if c.Server.Templates == "" {
		c.Server.Templates = "./web/templates"
	}
	if c.Polling.IntervalMs == 0 {
		c.Polling.IntervalMs = 200
	}
	if c.UI.DefaultStep == 0 {
		c.UI.DefaultStep = 1000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
	if c.Journal.DatabasePath == "" {
		c.Journal.DatabasePath = "./rigbridge.db"
	}
	if c.Journal.MaxEntries == 0 {
		c.Journal.MaxEntries = 5000
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Rigctld.Port <= 0 || c.Rigctld.Port > 65535 {
		return fmt.Errorf("rigctld port %d out of range", c.Rigctld.Port)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Rigctld.TimeoutMs < 0 || c.Rigctld.DrainTimeoutMs < 0 {
		return fmt.Errorf("rigctld timeouts must not be negative")
	}
	if c.Polling.IntervalMs < 0 {
		return fmt.Errorf("polling interval must not be negative")
	}
	switch c.Rigctld.Dialect {
	case DialectLevel:
	case DialectRaw:
		if len(c.Rigctld.Raw.Terminator) != 1 {
			return fmt.Errorf("raw terminator must be a single character, got %q", c.Rigctld.Raw.Terminator)
		}
		if c.Rigctld.Raw.RFGainMax <= c.Rigctld.Raw.RFGainMin {
			return fmt.Errorf("raw rf gain range [%d,%d] is empty", c.Rigctld.Raw.RFGainMin, c.Rigctld.Raw.RFGainMax)
		}
		if c.Rigctld.Raw.PowerMax <= c.Rigctld.Raw.PowerMin {
			return fmt.Errorf("raw power range [%d,%d] is empty", c.Rigctld.Raw.PowerMin, c.Rigctld.Raw.PowerMax)
		}
	default:
		return fmt.Errorf("unknown rigctld dialect %q", c.Rigctld.Dialect)
	}
	if c.Auth.Username != "" && c.Auth.Password == "" {
		return fmt.Errorf("auth password is required when a username is set")
	}
	return nil
}

// RigctldAddress returns the host:port of the control daemon
func (c *Config) RigctldAddress() string {
	return net.JoinHostPort(c.Rigctld.Host, strconv.Itoa(c.Rigctld.Port))
}

// ServerAddress returns the bind address of the web server
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ExchangeTimeout is the per-exchange bound on flush and read
func (c *Config) ExchangeTimeout() time.Duration {
	return time.Duration(c.Rigctld.TimeoutMs) * time.Millisecond
}

// DrainTimeout bounds the read that discards a late reply after a timeout
func (c *Config) DrainTimeout() time.Duration {
	return time.Duration(c.Rigctld.DrainTimeoutMs) * time.Millisecond
}

// PollInterval returns the poller cadence
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMs) * time.Millisecond
}
