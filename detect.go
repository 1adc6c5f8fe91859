// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import "bytes"

// DetectFormat returns the container kind of b from its leading magic
// bytes, or ImageFormatAuto if it is not JPEG, PNG or WebP.
func DetectFormat(b []byte) ImageFormat {
	switch {
	case len(b) >= 3 && b[0] == 0xff && b[1] == markerSOI && b[2] == 0xff:
		return JPEG
	case bytes.HasPrefix(b, pngSignature):
		return PNG
	case len(b) >= 12 && bytes.Equal(b[0:4], fccRIFF[:]) && bytes.Equal(b[8:12], fccWEBP[:]):
		return WebP
	}
	return ImageFormatAuto
}
