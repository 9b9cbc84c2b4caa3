package attachments

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

const MaxImageWidth = 1600

// normalizeImage applies the EXIF orientation and shrinks images wider than
// MaxImageWidth, keeping the aspect ratio. The result is encoded in the format
// implied by ext.
func normalizeImage(data []byte, ext string) ([]byte, error) {
	format, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if img.Bounds().Dx() > MaxImageWidth {
		img = imaging.Resize(img, MaxImageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}
