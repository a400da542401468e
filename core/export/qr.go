package export

import (
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

const (
	minQRSize = 64
	maxQRSize = 1024
)

// QRCodePNG encodes `payload` as a square PNG QR code of `size` pixels, clamped to [64, 1024].
func QRCodePNG(payload string, size int) ([]byte, error) {
	if size < minQRSize {
		size = minQRSize
	} else if size > maxQRSize {
		size = maxQRSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encoding qr code")
	}
	return png, nil
}
