package service

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/canteen-ordering/internal/model"
)

// QRGenerator renders the pickup code shown at the counter.
type QRGenerator interface {
	Generate(o model.Order) ([]byte, error)
}

// PickupQR encodes the order reference, date and slot into a PNG QR code.
type PickupQR struct {
	Size int
}

// Generate returns a PNG image.  Size defaults to 256 pixels.
func (g PickupQR) Generate(o model.Order) ([]byte, error) {
	size := g.Size
	if size <= 0 {
		size = 256
	}
	data := fmt.Sprintf("canteen-order:%s|%s|%s", o.Reference, o.Date, o.SlotLabel)
	return qrcode.Encode(data, qrcode.Medium, size)
}
