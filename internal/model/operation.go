// internal/model/operation.go
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UploadResult describes a completed transfer to the emulator
type UploadResult struct {
	OperationID  string        `json:"operation_id"`
	Port         string        `json:"port"`
	BaudRate     int           `json:"baud_rate"`
	Revision     string        `json:"revision"`
	Mode         ModeEntry     `json:"mode"`
	Lynx         bool          `json:"lynx"`
	HeaderBytes  int           `json:"header_bytes"`
	PayloadBytes int           `json:"payload_bytes"`
	SkippedBytes int           `json:"skipped_bytes"`
	StatusRead   bool          `json:"status_read"`
	Storage      StorageType   `json:"storage"`
	Elapsed      time.Duration `json:"elapsed"`
}

var kibibyte = decimal.NewFromInt(1024)

// Throughput returns the payload rate in KiB/s, rounded to two places
func (r *UploadResult) Throughput() decimal.Decimal {
	if r.Elapsed <= 0 {
		return decimal.Zero
	}
	seconds := decimal.NewFromInt(r.Elapsed.Nanoseconds()).Div(decimal.NewFromInt(int64(time.Second)))
	return decimal.NewFromInt(int64(r.PayloadBytes)).Div(kibibyte).Div(seconds).Round(2)
}

// Summary renders the human readable completion report
func (r *UploadResult) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Sent %d bytes to %s at %d baud", r.PayloadBytes, r.Port, r.BaudRate)
	if r.SkippedBytes > 0 {
		fmt.Fprintf(&b, " (skipped %d)", r.SkippedBytes)
	}
	b.WriteString("\n")

	if r.HeaderBytes > 0 {
		fmt.Fprintf(&b, "EPROM type: %s, Lynx: %t\n", r.Mode, r.Lynx)
	} else {
		b.WriteString("EPROM type: none (no header sent)\n")
	}
	if r.StatusRead {
		fmt.Fprintf(&b, "Stored on: %s\n", r.Storage)
	}

	fmt.Fprintf(&b, "Done in %s (%s KiB/s)", r.Elapsed.Round(time.Millisecond), r.Throughput().StringFixed(2))
	return b.String()
}
