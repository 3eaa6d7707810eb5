package protocol

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// fakePort implements the parts of serial.Port the connection uses
type fakePort struct {
	serial.Port

	written  bytes.Buffer
	toRead   []byte
	timeout  time.Duration
	writeErr error
	drained  int
	closed   int
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.toRead)
	p.toRead = p.toRead[n:]
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.timeout = t
	return nil
}

func (p *fakePort) Drain() error {
	p.drained++
	return nil
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func newTestConnection(t *testing.T, cfg *SerialConfig, port *fakePort) (*SerialConnection, *serial.Mode) {
	t.Helper()

	var gotMode *serial.Mode
	conn := NewSerialConnection(cfg, zap.NewNop())
	conn.openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		if name != cfg.Port {
			t.Errorf("opened %q, want %q", name, cfg.Port)
		}
		gotMode = mode
		return port, nil
	}
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return conn, gotMode
}

func TestSerialConnectionOpenMode(t *testing.T) {
	cfg := DefaultSerialConfig()
	cfg.Port = "/dev/ttyTEST"
	cfg.BaudRate = 57600
	cfg.Parity = "even"
	cfg.StopBits = 2

	port := &fakePort{}
	conn, mode := newTestConnection(t, cfg, port)
	defer conn.Close()

	if mode.BaudRate != 57600 || mode.DataBits != 8 {
		t.Errorf("mode = %+v", mode)
	}
	if mode.Parity != serial.EvenParity {
		t.Errorf("parity = %v, want even", mode.Parity)
	}
	if mode.StopBits != serial.TwoStopBits {
		t.Errorf("stop bits = %v, want two", mode.StopBits)
	}
	if port.timeout != serial.NoTimeout {
		t.Errorf("read timeout = %v, want blocking", port.timeout)
	}
	if !conn.IsOpen() {
		t.Error("connection should be open")
	}
}

func TestSerialConnectionReadTimeout(t *testing.T) {
	cfg := DefaultSerialConfig()
	cfg.Timeout = 2 * time.Second

	port := &fakePort{}
	conn, _ := newTestConnection(t, cfg, port)
	defer conn.Close()

	if port.timeout != 2*time.Second {
		t.Errorf("read timeout = %v, want 2s", port.timeout)
	}
}

func TestSerialConnectionWriteRead(t *testing.T) {
	port := &fakePort{toRead: []byte{2}}
	conn, _ := newTestConnection(t, DefaultSerialConfig(), port)
	ctx := context.Background()

	if err := conn.Write(ctx, []byte{8, 0}); err != nil {
		t.Fatal(err)
	}
	status, err := conn.Read(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(status, []byte{2}) {
		t.Errorf("Read() = %v, want [2]", status)
	}
	if err := conn.Write(ctx, []byte("payload")); err != nil {
		t.Fatal(err)
	}

	if got := port.written.String(); got != "\x08\x00payload" {
		t.Errorf("written = %q", got)
	}

	stats := conn.Stats()
	if stats.BytesWritten != 9 || stats.BytesRead != 1 || stats.OperationCount != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSerialConnectionCloseOnce(t *testing.T) {
	port := &fakePort{}
	conn, _ := newTestConnection(t, DefaultSerialConfig(), port)

	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}
	if err := conn.Close(); err != nil {
		t.Fatal(err)
	}

	if port.closed != 1 || port.drained != 1 {
		t.Errorf("closed %d times, drained %d times, want 1 and 1", port.closed, port.drained)
	}
	if conn.IsOpen() {
		t.Error("connection should be closed")
	}
	if err := conn.Write(context.Background(), []byte{1}); err == nil {
		t.Error("write after close should fail")
	}
}

func TestSerialConnectionWriteError(t *testing.T) {
	port := &fakePort{writeErr: errors.New("device unplugged")}
	conn, _ := newTestConnection(t, DefaultSerialConfig(), port)
	defer conn.Close()

	err := conn.Write(context.Background(), []byte{1, 2, 3})
	if err == nil || !errors.Is(err, port.writeErr) {
		t.Fatalf("Write() error = %v, want wrapped %v", err, port.writeErr)
	}
	if conn.Stats().ErrorCount != 1 {
		t.Errorf("error count = %d, want 1", conn.Stats().ErrorCount)
	}
}

func TestSerialConnectionOpenFailure(t *testing.T) {
	openErr := errors.New("port busy")
	conn := NewSerialConnection(DefaultSerialConfig(), zap.NewNop())
	conn.openPort = func(string, *serial.Mode) (serial.Port, error) {
		return nil, openErr
	}

	if err := conn.Open(context.Background()); !errors.Is(err, openErr) {
		t.Fatalf("Open() error = %v, want wrapped %v", err, openErr)
	}
	if conn.IsOpen() {
		t.Error("connection should not be open")
	}
}

func TestSerialConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SerialConfig)
	}{
		{"no port", func(c *SerialConfig) { c.Port = "" }},
		{"zero baud", func(c *SerialConfig) { c.BaudRate = 0 }},
		{"data bits", func(c *SerialConfig) { c.DataBits = 9 }},
		{"stop bits", func(c *SerialConfig) { c.StopBits = 3 }},
		{"parity", func(c *SerialConfig) { c.Parity = "sometimes" }},
		{"timeout", func(c *SerialConfig) { c.Timeout = -time.Second }},
	}

	if err := DefaultSerialConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSerialConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
