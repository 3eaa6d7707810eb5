package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"eprom-sender/internal/image"
)

func writeCart(t *testing.T, pageSize uint16, rom []byte) string {
	t.Helper()

	hdr := image.LNXHeader{
		Magic:         [4]byte{'L', 'Y', 'N', 'X'},
		Bank0PageSize: pageSize,
		Version:       1,
	}
	copy(hdr.CartName[:], "Test Cart")
	copy(hdr.Manufacturer[:], "BS42")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	buf.Write(rom)

	path := filepath.Join(t.TempDir(), "game.lnx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUploadCard(t *testing.T) {
	tests := []struct {
		pageSize uint16
		wantMode int
	}{
		{512, 8},
		{1024, 9},
		{2048, 10},
	}

	for _, tt := range tests {
		rom := []byte{0xA5, 0x5A, 0x00, 0x11}
		path := writeCart(t, tt.pageSize, rom)
		dev := &fakeDevice{status: []byte{1}}
		svc, _ := newTestService(t, "v3", dev)

		upload, err := svc.UploadCard(context.Background(), request(path, 3, 99, false))
		if err != nil {
			t.Fatalf("page size %d: UploadCard() error: %v", tt.pageSize, err)
		}

		if !bytes.Equal(dev.writes[0], []byte{byte(tt.wantMode), 1}) {
			t.Errorf("page size %d: header = %v, want [%d 1]", tt.pageSize, dev.writes[0], tt.wantMode)
		}

		payload := dev.writes[1]
		wantLen := int(tt.pageSize) * image.BankPageCount
		if len(payload) != wantLen {
			t.Fatalf("page size %d: payload = %d bytes, want %d", tt.pageSize, len(payload), wantLen)
		}
		if !bytes.Equal(payload[:len(rom)], rom) {
			t.Errorf("page size %d: payload does not start with the ROM", tt.pageSize)
		}
		if payload[len(payload)-1] != 0xFF {
			t.Errorf("page size %d: payload not padded with 0xFF", tt.pageSize)
		}

		if upload.Cart.Header.Name() != "Test Cart" {
			t.Errorf("cart name = %q", upload.Cart.Header.Name())
		}
		if !upload.Result.Lynx || upload.Result.SkippedBytes != 0 {
			t.Errorf("result = %+v", upload.Result)
		}
	}
}

func TestUploadCardValidation(t *testing.T) {
	t.Run("unsupported page size", func(t *testing.T) {
		path := writeCart(t, 256, nil)
		svc, dialer := newTestService(t, "v3", &fakeDevice{})

		_, err := svc.UploadCard(context.Background(), request(path, 0, 0, false))

		var pageErr *image.UnsupportedPageSizeError
		if !errors.As(err, &pageErr) {
			t.Fatalf("error = %v, want UnsupportedPageSizeError", err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("error = %v, want ValidationError", err)
		}
		if dialer.calls != 0 {
			t.Error("port opened for an invalid cart")
		}
	})

	t.Run("not an lnx file", func(t *testing.T) {
		path, _ := writeImage(t, 1024)
		svc, _ := newTestService(t, "v3", &fakeDevice{})

		_, err := svc.UploadCard(context.Background(), request(path, 0, 0, false))
		if !errors.Is(err, image.ErrBadMagic) {
			t.Fatalf("error = %v, want ErrBadMagic", err)
		}
	})

	t.Run("revision without lynx byte", func(t *testing.T) {
		path := writeCart(t, 512, nil)
		svc, _ := newTestService(t, "v1", &fakeDevice{})

		_, err := svc.UploadCard(context.Background(), request(path, 0, 0, false))
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != "lynx" {
			t.Fatalf("error = %v, want lynx ValidationError", err)
		}
	})
}
