// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

// Embed returns a copy of b with d embedded as its EXIF GPS block.
// Any EXIF block already present is removed, never merged.
// If format is ImageFormatAuto, it is detected from b.
// b is not modified.
func Embed(format ImageFormat, b []byte, d Directory) ([]byte, error) {
	if format == ImageFormatAuto {
		format = DetectFormat(b)
	}
	if !format.valid() {
		return nil, newErrorf(ErrUnsupportedContainer, StageEmbed, ImageFormatAuto, "unknown container %s", format)
	}

	tiff, err := encodeTIFF(d)
	if err != nil {
		return nil, withStage(err, ErrEncodingOverflow, StageEmbed, format)
	}

	var out []byte
	switch format {
	case JPEG:
		out, err = embedJPEG(b, tiff)
	case PNG:
		out, err = embedPNG(b, tiff)
	case WebP:
		out, err = embedWebP(b, tiff)
	}
	if err != nil {
		return nil, withStage(err, ErrMalformedContainer, StageEmbed, format)
	}
	return out, nil
}

// Extract reads the GPS directory embedded in b.
// It returns an empty Directory if b carries no EXIF GPS block.
// If format is ImageFormatAuto, it is detected from b.
func Extract(format ImageFormat, b []byte) (Directory, error) {
	if format == ImageFormatAuto {
		format = DetectFormat(b)
	}
	if !format.valid() {
		return Directory{}, newErrorf(ErrUnsupportedContainer, StageExtract, ImageFormatAuto, "unknown container %s", format)
	}

	var (
		tiff []byte
		err  error
	)
	switch format {
	case JPEG:
		tiff, err = extractJPEG(b)
	case PNG:
		tiff, err = extractPNG(b)
	case WebP:
		tiff, err = extractWebP(b)
	}
	if err != nil {
		return Directory{}, withStage(err, ErrMalformedContainer, StageExtract, format)
	}
	if tiff == nil {
		return Directory{}, nil
	}

	d, err := decodeTIFF(tiff)
	if err != nil {
		return Directory{}, withStage(err, ErrMalformedContainer, StageExtract, format)
	}
	return d, nil
}

func errMalformedf(format string, args ...any) error {
	return newErrorf(ErrMalformedContainer, "", ImageFormatAuto, format, args...)
}
