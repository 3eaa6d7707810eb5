// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// SerialConnection implements DeviceProtocol over a go.bug.st serial port
type SerialConnection struct {
	config *SerialConfig
	port   serial.Port
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
	stats  *ProtocolStats

	// openPort is serial.Open, swapped in tests
	openPort func(name string, mode *serial.Mode) (serial.Port, error)
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
		stats:    &ProtocolStats{},
		openPort: serial.Open,
	}
}

// DialSerial opens a serial connection. It satisfies Dialer.
func DialSerial(ctx context.Context, config *SerialConfig, logger *zap.Logger) (DeviceProtocol, error) {
	conn := NewSerialConnection(config, logger)
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// Open opens the serial connection
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := sc.config.Validate(); err != nil {
		return err
	}

	sc.logger.Debug("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
		zap.String("parity", sc.config.Parity),
	)

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		Parity:   parityMode(sc.config.Parity),
		StopBits: serial.OneStopBit,
	}
	if sc.config.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	port, err := sc.openPort(sc.config.Port, mode)
	if err != nil {
		sc.logger.Error("Failed to open serial port", zap.Error(err))
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	timeout := serial.NoTimeout
	if sc.config.Timeout > 0 {
		timeout = sc.config.Timeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	sc.port = port
	sc.isOpen = true
	sc.stats.IsConnected = true
	sc.stats.LastActivity = time.Now()

	sc.logger.Debug("Serial port opened successfully")
	return nil
}

func parityMode(parity string) serial.Parity {
	switch parity {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// Close drains pending output and closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	if err := sc.port.Drain(); err != nil {
		sc.logger.Warn("Failed to drain serial port", zap.Error(err))
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	sc.stats.IsConnected = false

	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Debug("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return fmt.Errorf("serial port not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	startTime := time.Now()
	n, err := sc.port.Write(data)
	if err != nil {
		sc.stats.ErrorCount++
		sc.logger.Error("Serial write failed", zap.Error(err), zap.Int("bytes_to_write", len(data)))
		return fmt.Errorf("failed to write to serial port: %w", err)
	}

	if n != len(data) {
		sc.stats.ErrorCount++
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	duration := time.Since(startTime)
	sc.stats.BytesWritten += int64(n)
	sc.stats.OperationCount++
	sc.stats.LastActivity = time.Now()
	sc.updateAverageLatency(duration)

	sc.logger.Debug("Serial write completed", zap.Int("bytes", n), zap.Duration("duration", duration))
	return nil
}

// Read reads up to maxBytes from the serial port. A read timeout with no
// data returns an empty slice and no error.
func (sc *SerialConnection) Read(ctx context.Context, maxBytes int) ([]byte, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil, fmt.Errorf("serial port not open")
	}

	buffer := make([]byte, maxBytes)
	port := sc.port

	type readResult struct {
		n   int
		err error
	}
	done := make(chan readResult, 1)

	go func() {
		n, err := port.Read(buffer)
		done <- readResult{n: n, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil && result.err != io.EOF {
			sc.stats.ErrorCount++
			sc.logger.Error("Serial read failed", zap.Error(result.err))
			return nil, fmt.Errorf("failed to read from serial port: %w", result.err)
		}

		data := make([]byte, result.n)
		copy(data, buffer[:result.n])

		sc.stats.BytesRead += int64(result.n)
		sc.stats.OperationCount++
		sc.stats.LastActivity = time.Now()

		sc.logger.Debug("Serial read completed", zap.Binary("data", data))
		return data, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns a snapshot of the transfer counters
func (sc *SerialConnection) Stats() ProtocolStats {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return *sc.stats
}

// updateAverageLatency updates the running average latency
func (sc *SerialConnection) updateAverageLatency(newLatency time.Duration) {
	if sc.stats.AverageLatency == 0 {
		sc.stats.AverageLatency = newLatency
	} else {
		sc.stats.AverageLatency = (sc.stats.AverageLatency + newLatency) / 2
	}
}
