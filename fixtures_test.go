// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"github.com/bep/geotag"
	"github.com/rwcarlsen/goexif/exif"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
)

var eq = qt.CmpEquals(
	cmp.Comparer(func(x, y geotag.Rat) bool {
		return x.Num() == y.Num() && x.Den() == y.Den()
	}),
)

var (
	eiffel = geotag.Coordinate{Latitude: 48.8584, Longitude: 2.2945}
	sydney = geotag.Coordinate{Latitude: -33.8568, Longitude: 151.2153}
)

// newTestImage returns a w x h gradient. If alpha is set, the left
// half is semi transparent.
func newTestImage(w, h int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 100, A: a})
		}
	}
	return img
}

func encodeTestImage(c *qt.C, format geotag.ImageFormat, img image.Image) []byte {
	var buf bytes.Buffer
	switch format {
	case geotag.JPEG:
		c.Assert(jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}), qt.IsNil)
	case geotag.PNG:
		c.Assert(png.Encode(&buf, img), qt.IsNil)
	case geotag.WebP:
		// The simple format, without VP8X.
		c.Assert(nativewebp.Encode(&buf, img, nil), qt.IsNil)
	default:
		c.Fatalf("unsupported format %s", format)
	}
	return buf.Bytes()
}

func testImageBytes(c *qt.C, format geotag.ImageFormat) []byte {
	return encodeTestImage(c, format, newTestImage(16, 8, false))
}

// staleTIFF is a little-endian TIFF block as a camera would write it,
// with a Make tag in IFD0 and a GPS IFD for 10N 20W.
func staleTIFF() []byte {
	le := binary.LittleEndian
	var b []byte
	b = append(b, "II"...)
	b = le.AppendUint16(b, 42)
	b = le.AppendUint32(b, 8)

	// IFD0 at 8: Make and GPSInfoIFDPointer.
	b = le.AppendUint16(b, 2)
	b = appendEntry(b, 0x010f, 2, 6, 140)
	b = appendEntry(b, 0x8825, 4, 1, 38)
	b = le.AppendUint32(b, 0)

	// GPS IFD at 38.
	b = le.AppendUint16(b, 4)
	b = appendEntry(b, 0x1, 2, 2, uint32('N'))
	b = appendEntry(b, 0x2, 5, 3, 92)
	b = appendEntry(b, 0x3, 2, 2, uint32('W'))
	b = appendEntry(b, 0x4, 5, 3, 116)
	b = le.AppendUint32(b, 0)

	// Values at 92.
	for _, v := range []uint32{10, 1, 0, 1, 0, 1, 20, 1, 0, 1, 0, 1} {
		b = le.AppendUint32(b, v)
	}
	b = append(b, "Stale\x00"...)
	return b
}

func appendEntry(b []byte, tag, typ uint16, count, value uint32) []byte {
	b = binary.LittleEndian.AppendUint16(b, tag)
	b = binary.LittleEndian.AppendUint16(b, typ)
	b = binary.LittleEndian.AppendUint32(b, count)
	return binary.LittleEndian.AppendUint32(b, value)
}

// jpegWithStaleEXIF returns a JPEG with an APP0 segment followed by an
// APP1 EXIF segment, the layout most cameras and editors produce.
func jpegWithStaleEXIF(c *qt.C) []byte {
	src := testImageBytes(c, geotag.JPEG)
	c.Assert(src[:2], qt.DeepEquals, []byte{0xff, 0xd8})

	app0 := []byte{0xff, 0xe0, 0, 16, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	payload := append([]byte("Exif\x00\x00"), staleTIFF()...)
	app1 := []byte{0xff, 0xe1}
	app1 = binary.BigEndian.AppendUint16(app1, uint16(len(payload)+2))
	app1 = append(app1, payload...)

	var b []byte
	b = append(b, src[:2]...)
	b = append(b, app0...)
	b = append(b, app1...)
	b = append(b, src[2:]...)
	return b
}

type jpegStats struct {
	exifSegments  int
	firstIsEXIF   bool
	firstEXIFData []byte
}

// checkJPEG walks b up to SOS and verifies every segment length.
func checkJPEG(c *qt.C, b []byte) jpegStats {
	c.Helper()
	var stats jpegStats
	c.Assert(b[:2], qt.DeepEquals, []byte{0xff, 0xd8})
	pos := 2
	for i := 0; ; i++ {
		c.Assert(pos+4 <= len(b), qt.IsTrue, qt.Commentf("truncated at %d", pos))
		c.Assert(b[pos], qt.Equals, byte(0xff))
		marker := b[pos+1]
		length := int(binary.BigEndian.Uint16(b[pos+2:]))
		c.Assert(pos+2+length <= len(b), qt.IsTrue)
		payload := b[pos+4 : pos+2+length]
		if marker == 0xe1 && bytes.HasPrefix(payload, []byte("Exif\x00")) {
			stats.exifSegments++
			if i == 0 {
				stats.firstIsEXIF = true
			}
			if stats.firstEXIFData == nil {
				stats.firstEXIFData = payload[6:]
			}
		}
		if marker == 0xda {
			break
		}
		pos += 2 + length
	}
	c.Assert(b[len(b)-2:], qt.DeepEquals, []byte{0xff, 0xd9})
	return stats
}

type pngStats struct {
	exifChunks int
	chunks     []string
	exifData   []byte
}

// checkPNG verifies every chunk length and CRC.
func checkPNG(c *qt.C, b []byte) pngStats {
	c.Helper()
	var stats pngStats
	c.Assert(string(b[:8]), qt.Equals, "\x89PNG\r\n\x1a\n")
	pos := 8
	for pos < len(b) {
		c.Assert(pos+12 <= len(b), qt.IsTrue)
		length := int(binary.BigEndian.Uint32(b[pos:]))
		c.Assert(pos+12+length <= len(b), qt.IsTrue)
		typ := string(b[pos+4 : pos+8])
		data := b[pos+8 : pos+8+length]
		crc := binary.BigEndian.Uint32(b[pos+8+length:])
		c.Assert(crc, qt.Equals, crc32.ChecksumIEEE(b[pos+4:pos+8+length]), qt.Commentf("CRC of %s", typ))
		stats.chunks = append(stats.chunks, typ)
		if typ == "eXIf" {
			stats.exifChunks++
			stats.exifData = data
		}
		pos += 12 + length
	}
	c.Assert(pos, qt.Equals, len(b))
	c.Assert(stats.chunks[len(stats.chunks)-1], qt.Equals, "IEND")
	return stats
}

type webpStats struct {
	exifChunks int
	chunks     []string
	vp8xFlags  byte
	exifData   []byte
}

// checkWebP verifies the RIFF size and every chunk length and padding.
func checkWebP(c *qt.C, b []byte) webpStats {
	c.Helper()
	var stats webpStats
	c.Assert(string(b[:4]), qt.Equals, "RIFF")
	c.Assert(int(binary.LittleEndian.Uint32(b[4:])), qt.Equals, len(b)-8)
	c.Assert(string(b[8:12]), qt.Equals, "WEBP")
	pos := 12
	for pos < len(b) {
		c.Assert(pos+8 <= len(b), qt.IsTrue)
		id := string(b[pos : pos+4])
		length := int(binary.LittleEndian.Uint32(b[pos+4:]))
		data := b[pos+8 : pos+8+length]
		stats.chunks = append(stats.chunks, id)
		switch id {
		case "VP8X":
			c.Assert(length, qt.Equals, 10)
			stats.vp8xFlags = data[0]
		case "EXIF":
			stats.exifChunks++
			stats.exifData = data
		}
		pos += 8 + length + length&1
	}
	c.Assert(pos, qt.Equals, len(b))
	return stats
}

// goexifLatLong reads the coordinate with a third party EXIF decoder.
func goexifLatLong(c *qt.C, b []byte) (float64, float64) {
	c.Helper()
	x, err := exif.Decode(bytes.NewReader(b))
	c.Assert(err, qt.IsNil)
	lat, long, err := x.LatLong()
	c.Assert(err, qt.IsNil)
	return lat, long
}
