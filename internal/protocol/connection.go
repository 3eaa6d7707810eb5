// internal/protocol/connection.go
package protocol

import (
	"fmt"
	"runtime"
	"time"
)

// SerialConfig represents serial connection configuration
type SerialConfig struct {
	Port     string        `json:"port"`
	BaudRate int           `json:"baud_rate"`
	DataBits int           `json:"data_bits"`
	StopBits int           `json:"stop_bits"`
	Parity   string        `json:"parity"`
	Timeout  time.Duration `json:"timeout"` // read timeout, 0 blocks forever
}

// DefaultPort is the port used when none is configured
func DefaultPort() string {
	if runtime.GOOS == "windows" {
		return "COM3"
	}
	return "/dev/ttyACM0"
}

// DefaultSerialConfig returns 8N1 at 115200 baud on the platform default port
func DefaultSerialConfig() *SerialConfig {
	return &SerialConfig{
		Port:     DefaultPort(),
		BaudRate: 115200,
		DataBits: 8,
		StopBits: 1,
		Parity:   "none",
	}
}

// Validate checks the line settings before a port is touched
func (c *SerialConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("serial port is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("baud rate must be positive, got %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("data bits must be between 5 and 8, got %d", c.DataBits)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return fmt.Errorf("stop bits must be 1 or 2, got %d", c.StopBits)
	}
	switch c.Parity {
	case "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("unknown parity %q", c.Parity)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}
