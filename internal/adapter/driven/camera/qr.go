package camera

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // frame decoders
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/ericfisherdev/passverify/internal/domain/model"
	"github.com/ericfisherdev/passverify/internal/domain/port/driven"
)

var _ driven.QRDecoder = QRDecoder{}

// QRDecoder reads QR codes from JPEG or PNG frames.
type QRDecoder struct{}

// Decode returns the payload of the first QR code found in the frame.
func (QRDecoder) Decode(frame model.Frame) (string, bool, error) {
	if frame.Empty() {
		return "", false, nil
	}

	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return "", false, fmt.Errorf("decoding frame image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false, fmt.Errorf("binarizing frame: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	// QRCodeReader keeps decoder state, so one per call.
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		// not found, checksum and format failures all mean "no readable code"
		return "", false, nil
	}
	return result.GetText(), true, nil
}
