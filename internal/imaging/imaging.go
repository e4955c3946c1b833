// Package imaging normalizes uploaded item and proof photos.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/and161185/findit/internal/errs"
	"golang.org/x/image/draw"
)

const (
	// MaxSide bounds the longer edge of a stored photo.
	MaxSide = 1024
	quality = 85
)

var accepted = map[string]bool{"image/jpeg": true, "image/png": true}

// NormalizeJPEG sniffs the upload, rejects anything but JPEG or PNG, shrinks it to
// MaxSide and re-encodes it as JPEG.
func NormalizeJPEG(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if kind := http.DetectContentType(raw); !accepted[kind] {
		return nil, fmt.Errorf("%w: photo must be JPEG or PNG, got %s", errs.ErrInvalidInput, kind)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable photo", errs.ErrInvalidInput)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, fit(src, MaxSide), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return out.Bytes(), nil
}

// fit keeps aspect ratio; images already within limit are returned as is.
func fit(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}

	nw, nh := limit, h*limit/w
	if h > w {
		nw, nh = w*limit/h, limit
	}
	nw, nh = max(nw, 1), max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
