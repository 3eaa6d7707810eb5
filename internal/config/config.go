// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"eprom-sender/internal/protocol"
)

// Config represents the application configuration
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SerialConfig represents serial port configuration
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// UploadConfig holds the defaults for an upload
type UploadConfig struct {
	Type     int    `mapstructure:"type"`
	Skip     int    `mapstructure:"skip"`
	Lynx     bool   `mapstructure:"lynx"`
	Protocol string `mapstructure:"protocol"`

	// TypeSet is true when a file, the environment or a flag chose Type
	TypeSet bool `mapstructure:"-"`
}

// ModeFor returns the configured EPROM type, or the revision's default
// when none was chosen
func (u UploadConfig) ModeFor(rev protocol.Revision) int {
	if u.TypeSet {
		return u.Type
	}
	return rev.DefaultMode
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

const (
	configName = "eprom-sender"
	envPrefix  = "EPROM_SENDER"
)

// Load loads configuration from an optional YAML file and environment
// variables. An empty path searches the working directory and the user
// config directory; a missing file is only an error when path is given.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configName))
		}
	}

	// Environment variable support
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// upload.type has no default, so bind it explicitly
	_ = v.BindEnv("upload.type")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	config.Upload.TypeSet = v.IsSet("upload.type")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	line := protocol.DefaultSerialConfig()

	v.SetDefault("serial.port", line.Port)
	v.SetDefault("serial.baud_rate", line.BaudRate)
	v.SetDefault("serial.data_bits", line.DataBits)
	v.SetDefault("serial.stop_bits", line.StopBits)
	v.SetDefault("serial.parity", line.Parity)
	v.SetDefault("serial.read_timeout", "0s")

	v.SetDefault("upload.skip", 0)
	v.SetDefault("upload.lynx", false)
	v.SetDefault("upload.protocol", protocol.DefaultRevision)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", false)
}

// Validate checks values that do not depend on the chosen protocol revision
func (c *Config) Validate() error {
	if err := c.SerialSettings().Validate(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if c.Upload.Type < 0 {
		return fmt.Errorf("upload.type cannot be negative")
	}
	if c.Upload.Skip < 0 {
		return fmt.Errorf("upload.skip cannot be negative")
	}
	if _, err := protocol.LookupRevision(c.Upload.Protocol); err != nil {
		return fmt.Errorf("upload.protocol: %w", err)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	validFormats := []string{"console", "json"}
	if !contains(validFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of: %v", validFormats)
	}

	return nil
}

// SerialSettings converts the serial section to transport settings
func (c *Config) SerialSettings() *protocol.SerialConfig {
	return &protocol.SerialConfig{
		Port:     c.Serial.Port,
		BaudRate: c.Serial.BaudRate,
		DataBits: c.Serial.DataBits,
		StopBits: c.Serial.StopBits,
		Parity:   c.Serial.Parity,
		Timeout:  c.Serial.ReadTimeout,
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
