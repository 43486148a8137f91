package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// File is an in-memory image file headed for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the byte length of the file contents.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Content types accepted by the upload slot endpoint.
const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeWebP = "image/webp"
)

var (
	// ErrUnsupportedFormat indicates the input is not a PNG, JPEG, or WebP.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrTargetTooSmall indicates the byte target could not be met even at
	// the lowest encoder quality.
	ErrTargetTooSmall = errors.New("cannot compress image to target size")
)

// JPEG quality walk-down bounds used when re-encoding oversized images.
const (
	qualityStart = 85
	qualityFloor = 40
	qualityStep  = 10
)

// overshootTolerance allows the floor-quality encoding to exceed the byte
// target by a small factor before Normalize gives up.
const overshootTolerance = 1.1

// Normalize bounds f to maxBytes. Files at or under the limit are
// returned unchanged, byte for byte. Oversized files are decoded, scaled
// so the longest side is at most maxDimension (aspect ratio preserved),
// and re-encoded as JPEG at descending quality until the target is met.
// The input file is never modified.
func Normalize(f File, maxBytes int64, maxDimension int) (File, error) {
	if maxBytes <= 0 {
		return File{}, errors.New("imaging: maxBytes must be positive")
	}
	if f.Size() <= maxBytes {
		return f, nil
	}

	src, err := decode(f)
	if err != nil {
		return File{}, err
	}

	scaled := scaleDown(src, maxDimension)

	var buf bytes.Buffer
	for quality := qualityStart; quality >= qualityFloor; quality -= qualityStep {
		buf.Reset()
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: quality}); err != nil {
			return File{}, fmt.Errorf("encode jpeg at quality %d: %w", quality, err)
		}
		if int64(buf.Len()) <= maxBytes {
			return asJPEG(f.Name, buf.Bytes()), nil
		}
	}

	if float64(buf.Len()) <= float64(maxBytes)*overshootTolerance {
		return asJPEG(f.Name, buf.Bytes()), nil
	}

	return File{}, fmt.Errorf("%w: %d bytes at quality %d, target %d", ErrTargetTooSmall, buf.Len(), qualityFloor, maxBytes)
}

func decode(f File) (image.Image, error) {
	r := bytes.NewReader(f.Data)
	switch f.ContentType {
	case ContentTypePNG:
		img, err := png.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		return img, nil
	case ContentTypeJPEG:
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		return img, nil
	case ContentTypeWebP:
		img, err := webp.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("decode webp: %w", err)
		}
		return img, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.ContentType)
	}
}

// scaleDown resizes src so the longest side is at most maxDimension,
// preserving the aspect ratio. Images already within bounds are returned
// as-is.
func scaleDown(src image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return src
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxDimension {
		return src
	}

	scale := float64(maxDimension) / float64(longest)
	dstWidth := int(float64(width)*scale + 0.5)
	dstHeight := int(float64(height)*scale + 0.5)
	if dstWidth < 1 {
		dstWidth = 1
	}
	if dstHeight < 1 {
		dstHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}

// asJPEG builds the re-encoded output file. PNG and WebP inputs come out
// as JPEG, so the name extension and content type follow.
func asJPEG(name string, data []byte) File {
	base := name
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	out := make([]byte, len(data))
	copy(out, data)
	return File{
		Name:        base + ".jpg",
		ContentType: ContentTypeJPEG,
		Data:        out,
	}
}
