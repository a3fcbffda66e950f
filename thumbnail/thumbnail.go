// Package thumbnail decodes images and renders square thumbnails.
package thumbnail

import (
	"bytes"
	"image"
	"io"

	"github.com/code19m/errx"
	"github.com/disintegration/imaging"
)

const (
	// CodeUnsupportedImage is returned when the source bytes are not a decodable image.
	CodeUnsupportedImage = "UNSUPPORTED_IMAGE"

	jpegQuality = 85
)

// Sizes are the thumbnail edge lengths in pixels, largest first.
//
//nolint:gochecknoglobals // fixed set shared by generation, retrieval and reconciliation
var Sizes = []int{500, 250, 100}

// Decode reads an image and reports its format, falling back to PNG when the
// decoded format has no encoder.
func Decode(r io.Reader) (image.Image, imaging.Format, error) {
	img, name, err := image.Decode(r)
	if err != nil {
		return nil, imaging.PNG, errx.Wrap(err,
			errx.WithCode(CodeUnsupportedImage),
			errx.WithType(errx.T_Validation),
		)
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		format = imaging.PNG
	}
	return img, format, nil
}

// Generate scales and centre-crops src to exactly size×size pixels and encodes
// it in format. The output is deterministic for identical input.
func Generate(src image.Image, format imaging.Format, size int) ([]byte, error) {
	if size <= 0 {
		return nil, errx.New("thumbnail size must be positive", errx.WithDetails(errx.D{"size": size}))
	}

	thumb := imaging.Thumbnail(src, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(jpegQuality))
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"size": size, "format": format.String()}))
	}
	return buf.Bytes(), nil
}
