package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"eprom-sender/internal/protocol"
)

// fakeDevice records every call the uploader makes
type fakeDevice struct {
	events   []string
	writes   [][]byte
	status   []byte
	readErr  error
	writeErr error
	failOn   int // 1-based write that fails with writeErr
	closeErr error
	closed   int
}

func (f *fakeDevice) Close() error {
	f.closed++
	f.events = append(f.events, "close")
	return f.closeErr
}

func (f *fakeDevice) Write(_ context.Context, data []byte) error {
	f.events = append(f.events, "write")
	if f.writeErr != nil && len(f.writes)+1 == f.failOn {
		return f.writeErr
	}
	f.writes = append(f.writes, append([]byte(nil), data...))
	return nil
}

func (f *fakeDevice) Read(_ context.Context, maxBytes int) ([]byte, error) {
	f.events = append(f.events, "read")
	if f.readErr != nil {
		return nil, f.readErr
	}
	n := maxBytes
	if n > len(f.status) {
		n = len(f.status)
	}
	data := f.status[:n]
	f.status = f.status[n:]
	return data, nil
}

func (f *fakeDevice) Stats() protocol.ProtocolStats {
	var stats protocol.ProtocolStats
	for _, w := range f.writes {
		stats.BytesWritten += int64(len(w))
		stats.OperationCount++
	}
	stats.AverageLatency = time.Millisecond
	return stats
}

// fakeDialer hands out dev and counts dial attempts
type fakeDialer struct {
	dev    *fakeDevice
	err    error
	calls  int
	config protocol.SerialConfig
}

func (d *fakeDialer) dial(_ context.Context, cfg *protocol.SerialConfig, _ *zap.Logger) (protocol.DeviceProtocol, error) {
	d.calls++
	d.config = *cfg
	if d.err != nil {
		return nil, d.err
	}
	return d.dev, nil
}

var errUnplugged = errors.New("device unplugged")
