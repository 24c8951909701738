package processing

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Processor decodes browser uploads into images and prepares them for the
// model.
type Processor struct {
	// MaxUploadBytes caps how much of an upload is read. Zero means no cap.
	MaxUploadBytes int64
}

// NewProcessor creates a new image processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// DecodeUpload reads and decodes an uploaded image. PNG, JPEG, GIF and WebP
// are accepted.
func (p *Processor) DecodeUpload(r io.Reader) (image.Image, error) {
	if p.MaxUploadBytes > 0 {
		r = io.LimitReader(r, p.MaxUploadBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("upload is empty")
	}
	return p.decodeImageFromBytes(data)
}

// decodeImageFromBytes decodes an image from byte data with WebP fallback.
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	reader := bytes.NewReader(data)
	if img, _, err := image.Decode(reader); err == nil {
		return img, nil
	}

	// Try WebP decode
	reader = bytes.NewReader(data)
	if img, err := webp.Decode(reader); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Downscale resizes img so its long side does not exceed maxDim, preserving
// aspect ratio. maxDim <= 0 returns the image unchanged.
func (p *Processor) Downscale(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}
	if w >= h {
		return imaging.Resize(img, maxDim, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, maxDim, imaging.Lanczos)
}
