// internal/service/card_service.go
package service

import (
	"context"

	"go.uber.org/zap"

	"eprom-sender/internal/image"
	"eprom-sender/internal/model"
)

// CardUpload is the result of sending a Lynx cartridge image
type CardUpload struct {
	Cart   *image.Cart
	Result *model.UploadResult
}

// PrepareCard reads a .lnx file and plans it as a Lynx dev cart upload. The
// EPROM type comes from the bank 0 page size and the Lynx flag is always set.
// Mode, Skip and Lynx in req are ignored.
func (s *UploadService) PrepareCard(req UploadRequest) (*Plan, *image.Cart, error) {
	data, err := readImage(req.FilePath)
	if err != nil {
		return nil, nil, err
	}

	cart, err := image.ParseLNX(data)
	if err != nil {
		return nil, nil, &ValidationError{Field: "file", Message: err.Error(), Err: err}
	}

	mode, err := cart.Header.EPROMMode()
	if err != nil {
		return nil, nil, &ValidationError{Field: "file", Message: err.Error(), Err: err}
	}

	s.logger.Info("Lynx cartridge loaded",
		zap.String("name", cart.Header.Name()),
		zap.String("manufacturer", cart.Header.ManufacturerName()),
		zap.Uint16("bank0_page_size", cart.Header.Bank0PageSize),
		zap.Int("padding", cart.Padding),
	)

	req.Mode = mode
	req.Lynx = true
	req.Skip = 0

	plan, err := s.PrepareImage(req, cart.Image)
	if err != nil {
		return nil, nil, err
	}
	return plan, cart, nil
}

// UploadCard validates and sends a .lnx cartridge image
func (s *UploadService) UploadCard(ctx context.Context, req UploadRequest) (*CardUpload, error) {
	plan, cart, err := s.PrepareCard(req)
	if err != nil {
		return nil, err
	}

	result, err := s.Execute(ctx, plan)
	if err != nil {
		return nil, err
	}
	return &CardUpload{Cart: cart, Result: result}, nil
}
