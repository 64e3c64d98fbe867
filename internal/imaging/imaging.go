// Package imaging normalizes uploaded meal photos before inference and
// storage: bounded-dimension resize preserving aspect ratio, re-encoded as
// JPEG to keep dozens of history entries affordable.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"net/http"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrImageRead is returned when the upload contains no readable data at all
var ErrImageRead = errors.New("image data is empty or unreadable")

// JPEG quality for re-encoding. Matches the 0.85 canvas quality factor the
// history footprint was sized around.
const jpegQuality = 85

// Normalized is the result of normalizing an upload. When Resized is false
// the original bytes passed through untouched and the dimensions are
// unknown (zero).
type Normalized struct {
	Bytes       []byte
	ContentType string
	DataURL     string
	Width       int
	Height      int
	Resized     bool
}

// Normalize decodes the uploaded image, scales it down to fit within
// maxWidth × maxHeight preserving aspect ratio, and re-encodes it as JPEG.
// Landscape images are constrained by width, everything else by height;
// images already inside the bounds are re-encoded at their own size, never
// upscaled.
//
// If decoding or re-encoding fails the original bytes are passed through as
// a data URL with a sniffed content type rather than failing the upload.
// Only an empty upload yields ErrImageRead.
func Normalize(data []byte, maxWidth, maxHeight int) (*Normalized, error) {
	if len(data) == 0 {
		return nil, ErrImageRead
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return passthrough(data), nil
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	targetW, targetH := fit(w, h, maxWidth, maxHeight)

	out := src
	if targetW != w || targetH != h {
		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return passthrough(data), nil
	}

	encoded := buf.Bytes()
	return &Normalized{
		Bytes:       encoded,
		ContentType: "image/jpeg",
		DataURL:     dataURL("image/jpeg", encoded),
		Width:       targetW,
		Height:      targetH,
		Resized:     true,
	}, nil
}

// fit computes target dimensions inside the bounds. The tie-break compares
// width against height first rather than clamping both axes independently,
// so the aspect ratio survives to within integer rounding.
func fit(w, h, maxW, maxH int) (int, int) {
	if w > h {
		if w > maxW {
			return maxW, int(math.Round(float64(h) * float64(maxW) / float64(w)))
		}
	} else if h > maxH {
		return int(math.Round(float64(w) * float64(maxH) / float64(h))), maxH
	}
	return w, h
}

func passthrough(data []byte) *Normalized {
	contentType := http.DetectContentType(data)
	return &Normalized{
		Bytes:       data,
		ContentType: contentType,
		DataURL:     dataURL(contentType, data),
	}
}

func dataURL(contentType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(data))
}
