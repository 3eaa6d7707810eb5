// internal/service/upload_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eprom-sender/internal/model"
	"eprom-sender/internal/protocol"
	"eprom-sender/internal/utils"
)

// ErrNoStatus is returned when the emulator does not answer the header
var ErrNoStatus = errors.New("no storage status byte received")

// UploadRequest is one fully specified transfer. It is not modified after construction.
type UploadRequest struct {
	Port     string
	BaudRate int
	Mode     int
	Skip     int
	Lynx     bool
	FilePath string
}

// Plan is a validated request with everything needed to talk to the device
type Plan struct {
	Request  UploadRequest
	Revision protocol.Revision
	Serial   protocol.SerialConfig
	Mode     model.ModeEntry
	Header   []byte
	Payload  []byte
	FileSize int
}

// UploadService validates images and streams them to the emulator
type UploadService struct {
	revision protocol.Revision
	line     protocol.SerialConfig
	dial     protocol.Dialer
	logger   *zap.Logger
}

// NewUploadService creates an upload service. line supplies the serial
// settings a request does not carry (data bits, parity, timeout). A nil
// dial uses protocol.DialSerial.
func NewUploadService(revision protocol.Revision, line *protocol.SerialConfig, dial protocol.Dialer, logger *zap.Logger) *UploadService {
	if dial == nil {
		dial = protocol.DialSerial
	}
	if line == nil {
		line = protocol.DefaultSerialConfig()
	}
	return &UploadService{
		revision: revision,
		line:     *line,
		dial:     dial,
		logger:   logger.With(zap.String("revision", revision.Name)),
	}
}

// Revision returns the protocol revision the service speaks
func (s *UploadService) Revision() protocol.Revision {
	return s.revision
}

// Upload validates and sends the file named by req
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*model.UploadResult, error) {
	plan, err := s.Prepare(req)
	if err != nil {
		return nil, err
	}
	return s.Execute(ctx, plan)
}

// Prepare reads the file and validates the request. It never touches the serial port.
func (s *UploadService) Prepare(req UploadRequest) (*Plan, error) {
	data, err := readImage(req.FilePath)
	if err != nil {
		return nil, err
	}
	return s.PrepareImage(req, data)
}

// PrepareImage validates req against an image already in memory
func (s *UploadService) PrepareImage(req UploadRequest, data []byte) (*Plan, error) {
	line := s.line
	line.Port = req.Port
	line.BaudRate = req.BaudRate
	if err := line.Validate(); err != nil {
		return nil, &ValidationError{Field: "serial settings", Message: err.Error(), Err: err}
	}

	entry, err := Resolve(s.revision, req, len(data))
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Request:  req,
		Revision: s.revision,
		Serial:   line,
		Mode:     entry,
		Header:   s.revision.Header(entry.Index, req.Lynx),
		Payload:  data[req.Skip:],
		FileSize: len(data),
	}

	s.logger.Debug("Upload validated",
		zap.String("file", req.FilePath),
		zap.Int("file_size", plan.FileSize),
		zap.Int("skip", req.Skip),
		zap.Stringer("mode", entry),
		zap.Binary("header", plan.Header),
	)
	return plan, nil
}

// Resolve checks a requested mode against the revision's table and returns the
// effective mode. fileSize is the full file length before skipping.
func Resolve(rev protocol.Revision, req UploadRequest, fileSize int) (model.ModeEntry, error) {
	if req.Skip < 0 {
		return model.ModeEntry{}, invalid("skip", "must not be negative, got %d", req.Skip)
	}
	if req.Skip > fileSize {
		return model.ModeEntry{}, invalid("skip", "%d bytes is more than the file holds (%d bytes)", req.Skip, fileSize)
	}
	if req.Lynx && !rev.LynxByte {
		return model.ModeEntry{}, invalid("lynx", "protocol %s has no Lynx flag", rev.Name)
	}
	if req.Mode < rev.MinMode() || req.Mode > rev.Modes.MaxIndex() {
		return model.ModeEntry{}, invalid("type", "EPROM type %d is outside %d-%d", req.Mode, rev.MinMode(), rev.Modes.MaxIndex())
	}

	size := fileSize
	if rev.PostSkipSizing {
		size -= req.Skip
	}

	if req.Mode == 0 {
		if rev.ZeroMode != protocol.ZeroModeAuto {
			entry, _ := rev.Modes.Entry(0)
			return entry, nil
		}
		entry, ok := rev.Modes.MatchSize(size)
		if !ok {
			return model.ModeEntry{}, invalid("type", "cannot auto-detect EPROM type: no type holds exactly %d bytes", size)
		}
		return entry, nil
	}

	entry, _ := rev.Modes.Entry(req.Mode)
	if size > entry.MaxSize {
		return model.ModeEntry{}, invalid("file", "%d bytes is too large for EPROM type %s", size, entry)
	}
	return entry, nil
}

// Execute opens the port and performs the transfer described by plan.
// The port is closed exactly once on every path after a successful open.
func (s *UploadService) Execute(ctx context.Context, plan *Plan) (result *model.UploadResult, err error) {
	opLogger := utils.NewOperationLogger(s.logger, "upload", uuid.NewString())
	opLogger.Start(
		zap.String("port", plan.Serial.Port),
		zap.Int("baud_rate", plan.Serial.BaudRate),
		zap.String("file", plan.Request.FilePath),
		zap.Stringer("mode", plan.Mode),
		zap.Int("payload_bytes", len(plan.Payload)),
	)
	defer func() {
		if err != nil {
			opLogger.Error(err)
		}
	}()

	startTime := time.Now()

	serialCfg := plan.Serial
	conn, err := s.dial(ctx, &serialCfg, s.logger)
	if err != nil {
		return nil, &ConnectionError{Port: plan.Serial.Port, Err: err}
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil && err == nil {
			result, err = nil, &IOError{Op: "close serial port", Err: cerr}
		}
	}()

	res := &model.UploadResult{
		OperationID:  opLogger.OperationID(),
		Port:         plan.Serial.Port,
		BaudRate:     plan.Serial.BaudRate,
		Revision:     plan.Revision.Name,
		Mode:         plan.Mode,
		Lynx:         plan.Request.Lynx,
		HeaderBytes:  len(plan.Header),
		SkippedBytes: plan.Request.Skip,
	}

	if len(plan.Header) > 0 {
		if err := conn.Write(ctx, plan.Header); err != nil {
			return nil, &IOError{Op: "write header", Err: err}
		}
		opLogger.Progress("Header sent", zap.Binary("header", plan.Header))

		if plan.Revision.ReadsStatus {
			storage, err := readStatus(ctx, conn)
			if err != nil {
				return nil, err
			}
			res.StatusRead = true
			res.Storage = storage
			if !storage.Known() {
				opLogger.Warn("Emulator reported an unknown storage type", zap.Uint8("status", uint8(storage)))
			} else {
				opLogger.Progress("Emulator storage selected", zap.Stringer("storage", storage))
			}
		}
	}

	if err := conn.Write(ctx, plan.Payload); err != nil {
		return nil, &IOError{Op: "write payload", Err: err}
	}

	res.PayloadBytes = len(plan.Payload)
	res.Elapsed = time.Since(startTime)

	stats := conn.Stats()
	opLogger.Success(
		zap.Int("payload_bytes", res.PayloadBytes),
		zap.Int64("bytes_written", stats.BytesWritten),
		zap.Duration("average_latency", stats.AverageLatency),
		zap.String("throughput_kib_s", res.Throughput().StringFixed(2)),
	)
	return res, nil
}

func readStatus(ctx context.Context, conn protocol.DeviceProtocol) (model.StorageType, error) {
	data, err := conn.Read(ctx, 1)
	if err != nil {
		return 0, &IOError{Op: "read storage status", Err: err}
	}
	if len(data) == 0 {
		return 0, &IOError{Op: "read storage status", Err: ErrNoStatus}
	}
	return model.StorageType(data[0]), nil
}

func readImage(path string) ([]byte, error) {
	if path == "" {
		return nil, invalid("file", "not specified")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ValidationError{Field: "file", Message: fmt.Sprintf("%s does not exist", path), Err: err}
		}
		return nil, &IOError{Op: "read file", Err: err}
	}
	if info.IsDir() {
		return nil, invalid("file", "%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read file", Err: err}
	}
	return data, nil
}
