// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// DefaultJPEGQuality is the quality JPEG output is encoded with
// when none is configured.
const DefaultJPEGQuality = 90

// Transcoder re-encodes pixel data between containers.
// The output never carries metadata from the source.
type Transcoder struct {
	// JPEGQuality in the range 1-100. Zero means DefaultJPEGQuality.
	JPEGQuality int

	// Warnf, if set, is called when pixel data is altered beyond re-encoding.
	Warnf func(string, ...any)
}

func (t Transcoder) warnf(format string, args ...any) {
	if t.Warnf != nil {
		t.Warnf(format, args...)
	}
}

func (t Transcoder) quality() (int, error) {
	switch q := t.JPEGQuality; {
	case q == 0:
		return DefaultJPEGQuality, nil
	case q < 1 || q > 100:
		return 0, fmt.Errorf("JPEG quality %d outside [1,100]", q)
	default:
		return q, nil
	}
}

// Transcode decodes src and encodes it as target.
// If srcFormat is ImageFormatAuto, it is detected from src,
// otherwise it must match what src contains.
// The returned bytes are always of kind target.
func (t Transcoder) Transcode(src []byte, srcFormat, target ImageFormat) ([]byte, error) {
	detected := DetectFormat(src)
	if detected == ImageFormatAuto {
		return nil, newErrorf(ErrUnsupportedSourceFormat, StageDetect, srcFormat, "unrecognized image signature")
	}
	if srcFormat != ImageFormatAuto && srcFormat != detected {
		return nil, newErrorf(ErrUnsupportedSourceFormat, StageDetect, srcFormat, "source is %s", detected)
	}
	if !target.valid() {
		return nil, newErrorf(ErrUnsupportedContainer, StageTranscode, ImageFormatAuto, "unknown target %s", target)
	}

	img, err := decodeImage(src, detected)
	if err != nil {
		return nil, newError(ErrDecodeFailure, StageTranscode, detected, err)
	}

	b, err := t.encodeImage(img, target)
	if err != nil {
		return nil, newError(ErrEncodeFailure, StageTranscode, target, err)
	}
	return b, nil
}

func decodeImage(src []byte, format ImageFormat) (image.Image, error) {
	r := bytes.NewReader(src)
	switch format {
	case JPEG:
		return jpeg.Decode(r)
	case PNG:
		return png.Decode(r)
	case WebP:
		// Lossless files written with a VP8X alpha flag are
		// rejected by x/image/webp without this.
		return nativewebp.DecodeIgnoreAlphaFlag(r)
	}
	return nil, fmt.Errorf("no decoder for %s", format)
}

func (t Transcoder) encodeImage(img image.Image, format ImageFormat) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case JPEG:
		q, err := t.quality()
		if err != nil {
			return nil, err
		}
		img, flattened := flatten(img)
		if flattened {
			t.warnf("geotag: flattened transparent pixels onto white for JPEG output")
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	case WebP:
		// Lossless, in the extended format so the EXIF flag has a home.
		if err := nativewebp.Encode(&buf, img, &nativewebp.Options{UseExtendedFormat: true}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("no encoder for %s", format)
	}
	return buf.Bytes(), nil
}

// flatten composites img over white, JPEG having no alpha channel.
func flatten(img image.Image) (image.Image, bool) {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img, false
	}
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Over)
	return dst, true
}
