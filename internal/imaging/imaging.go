// Package imaging prepares captured photos for analysis: decode, downscale,
// re-encode as JPEG, and read EXIF capture metadata.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"strings"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 80
	// DefaultMaxPixels caps the decoded size of an upload at 40 megapixels.
	DefaultMaxPixels = 40_000_000
)

var (
	ErrEmptyImage  = errors.New("image data is empty")
	ErrBadDataURL  = errors.New("malformed data URL")
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image exceeds pixel limit")
)

// Image is a processed photo ready for storage and upload.
type Image struct {
	JPEG          []byte
	Width         int
	Height        int
	OriginalBytes int
	Format        string
	Metadata      Metadata
}

// DataURL returns the JPEG encoded as a data URL.
func (img *Image) DataURL() string {
	return DataURL(img.JPEG)
}

// Processor downscales and re-encodes photos.
type Processor struct {
	MaxDimension int
	Quality      int
	// MaxPixels bounds width*height of the decoded source. Zero means
	// DefaultMaxPixels.
	MaxPixels int
}

// NewProcessor returns a Processor, substituting defaults for non-positive values.
func NewProcessor(maxDimension, quality int) *Processor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Processor{MaxDimension: maxDimension, Quality: quality, MaxPixels: DefaultMaxPixels}
}

// Process decodes data (raw bytes or a data URL), reads its EXIF metadata,
// fits it within MaxDimension on both axes and re-encodes it as JPEG.
func (p *Processor) Process(data []byte) (*Image, error) {
	if bytes.HasPrefix(data, []byte("data:")) {
		raw, err := DecodeDataURL(string(data))
		if err != nil {
			return nil, err
		}
		data = raw
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("decoding image header: %w", err)
	}
	limit := p.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	meta := ExtractMetadata(data)

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), p.MaxDimension)

	var out image.Image = src
	if w != b.Dx() || h != b.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	return &Image{
		JPEG:          buf.Bytes(),
		Width:         w,
		Height:        h,
		OriginalBytes: len(data),
		Format:        format,
		Metadata:      meta,
	}, nil
}

// FitWithin scales (w, h) so the longer side is at most limit, keeping the
// aspect ratio. Images already within bounds are returned unchanged.
func FitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		nh := int(math.Round(float64(h) * float64(limit) / float64(w)))
		return limit, atLeastOne(nh)
	}
	nw := int(math.Round(float64(w) * float64(limit) / float64(h)))
	return atLeastOne(nw), limit
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}

// DecodeDataURL returns the payload of a base64 data URL.
func DecodeDataURL(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return nil, ErrBadDataURL
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrBadDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.URLEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
		}
	}
	return data, nil
}

// DataURL encodes JPEG bytes as a data URL.
func DataURL(jpegData []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
}
