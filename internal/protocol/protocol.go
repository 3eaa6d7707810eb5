// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DeviceProtocol represents a byte channel to the EPROM emulator
type DeviceProtocol interface {
	Close() error

	// Data communication
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context, maxBytes int) ([]byte, error)

	// Stats returns a snapshot of the transfer counters
	Stats() ProtocolStats
}

// Dialer creates and opens a connection described by config. The returned
// connection is ready for Write and Read.
type Dialer func(ctx context.Context, config *SerialConfig, logger *zap.Logger) (DeviceProtocol, error)

// ProtocolStats provides protocol-level statistics
type ProtocolStats struct {
	BytesWritten   int64         `json:"bytes_written"`
	BytesRead      int64         `json:"bytes_read"`
	OperationCount int64         `json:"operation_count"`
	ErrorCount     int64         `json:"error_count"`
	LastActivity   time.Time     `json:"last_activity"`
	AverageLatency time.Duration `json:"average_latency"`
	IsConnected    bool          `json:"is_connected"`
}
