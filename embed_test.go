// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/bep/geotag"

	qt "github.com/frankban/quicktest"
)

func gpsDirectory(c *qt.C, coord geotag.Coordinate) geotag.Directory {
	c.Helper()
	d, err := geotag.CoordinateCodec{}.GPSDirectory(coord)
	c.Assert(err, qt.IsNil)
	return d
}

func decodePixels(c *qt.C, format geotag.ImageFormat, b []byte) image.Image {
	c.Helper()
	var (
		img image.Image
		err error
	)
	r := bytes.NewReader(b)
	switch format {
	case geotag.JPEG:
		img, err = jpeg.Decode(r)
	case geotag.PNG:
		img, err = png.Decode(r)
	case geotag.WebP:
		img, err = nativewebp.DecodeIgnoreAlphaFlag(r)
	}
	c.Assert(err, qt.IsNil)
	return img
}

// exifBlocks counts the EXIF blocks in b and returns the raw TIFF
// of the one found, validating the container framing on the way.
func exifBlocks(c *qt.C, format geotag.ImageFormat, b []byte) (int, []byte) {
	c.Helper()
	switch format {
	case geotag.JPEG:
		s := checkJPEG(c, b)
		return s.exifSegments, s.firstEXIFData
	case geotag.PNG:
		s := checkPNG(c, b)
		return s.exifChunks, s.exifData
	case geotag.WebP:
		s := checkWebP(c, b)
		return s.exifChunks, s.exifData
	}
	c.Fatalf("unsupported format %s", format)
	return 0, nil
}

func TestEmbedReplace(t *testing.T) {
	c := qt.New(t)

	d1 := gpsDirectory(c, eiffel)
	d2 := gpsDirectory(c, sydney)

	for _, format := range geotag.ImageFormats {
		c.Run(format.String(), func(c *qt.C) {
			src := testImageBytes(c, format)
			orig := bytes.Clone(src)

			b1, err := geotag.Embed(format, src, d1)
			c.Assert(err, qt.IsNil)
			c.Assert(src, qt.DeepEquals, orig)

			b2, err := geotag.Embed(format, b1, d2)
			c.Assert(err, qt.IsNil)

			n, tiff := exifBlocks(c, format, b2)
			c.Assert(n, qt.Equals, 1)

			got, err := geotag.Extract(format, b2)
			c.Assert(err, qt.IsNil)
			c.Assert(got.Entries(), eq, d2.Entries())

			// Embedding the same directory again is a no-op.
			b3, err := geotag.Embed(format, b2, d2)
			c.Assert(err, qt.IsNil)
			c.Assert(b3, qt.DeepEquals, b2)

			lat, long := goexifLatLong(c, tiff)
			c.Assert(math.Abs(lat-sydney.Latitude) < 1e-6, qt.IsTrue, qt.Commentf("lat %v", lat))
			c.Assert(math.Abs(long-sydney.Longitude) < 1e-6, qt.IsTrue, qt.Commentf("long %v", long))

			img := decodePixels(c, format, b2)
			c.Assert(img.Bounds(), qt.Equals, image.Rect(0, 0, 16, 8))
		})
	}
}

func TestEmbedAutoDetect(t *testing.T) {
	c := qt.New(t)

	d := gpsDirectory(c, eiffel)
	for _, format := range geotag.ImageFormats {
		src := testImageBytes(c, format)
		c.Assert(geotag.DetectFormat(src), qt.Equals, format)

		b, err := geotag.Embed(geotag.ImageFormatAuto, src, d)
		c.Assert(err, qt.IsNil)
		got, err := geotag.Extract(geotag.ImageFormatAuto, b)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Entries(), eq, d.Entries())
	}
}

func TestEmbedJPEGStaleEXIF(t *testing.T) {
	c := qt.New(t)

	src := jpegWithStaleEXIF(c)
	stats := checkJPEG(c, src)
	c.Assert(stats.exifSegments, qt.Equals, 1)
	c.Assert(stats.firstIsEXIF, qt.IsFalse)

	stale, err := geotag.Extract(geotag.JPEG, src)
	c.Assert(err, qt.IsNil)
	coord, found, err := stale.LatLong()
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.IsTrue)
	c.Assert(coord, qt.Equals, geotag.Coordinate{Latitude: 10, Longitude: -20})

	d := gpsDirectory(c, sydney)
	b, err := geotag.Embed(geotag.JPEG, src, d)
	c.Assert(err, qt.IsNil)

	stats = checkJPEG(c, b)
	c.Assert(stats.exifSegments, qt.Equals, 1)
	c.Assert(stats.firstIsEXIF, qt.IsTrue)
	c.Assert(bytes.Contains(b, []byte("Stale")), qt.IsFalse)
	// APP0 is kept.
	c.Assert(bytes.Contains(b, []byte("JFIF\x00")), qt.IsTrue)

	lat, long := goexifLatLong(c, b)
	c.Assert(math.Abs(lat-sydney.Latitude) < 1e-6, qt.IsTrue)
	c.Assert(math.Abs(long-sydney.Longitude) < 1e-6, qt.IsTrue)
}

func TestEmbedPNGChunkOrder(t *testing.T) {
	c := qt.New(t)

	src := testImageBytes(c, geotag.PNG)
	b, err := geotag.Embed(geotag.PNG, src, gpsDirectory(c, eiffel))
	c.Assert(err, qt.IsNil)

	stats := checkPNG(c, b)
	c.Assert(stats.chunks[0], qt.Equals, "IHDR")
	c.Assert(stats.chunks[1], qt.Equals, "eXIf")

	// Bytes after IEND are kept.
	trailing := append(bytes.Clone(src), "trailer"...)
	b, err = geotag.Embed(geotag.PNG, trailing, gpsDirectory(c, eiffel))
	c.Assert(err, qt.IsNil)
	c.Assert(bytes.HasSuffix(b, []byte("IEND\xae\x42\x60\x82trailer")), qt.IsTrue)
}

func TestEmbedWebPChunks(t *testing.T) {
	c := qt.New(t)

	c.Run("Synthesized VP8X", func(c *qt.C) {
		src := testImageBytes(c, geotag.WebP)
		c.Assert(string(src[12:16]), qt.Equals, "VP8L")

		b, err := geotag.Embed(geotag.WebP, src, gpsDirectory(c, eiffel))
		c.Assert(err, qt.IsNil)
		stats := checkWebP(c, b)
		c.Assert(stats.chunks, qt.DeepEquals, []string{"VP8X", "VP8L", "EXIF"})
		c.Assert(stats.vp8xFlags&0x08, qt.Equals, byte(0x08))

		// Canvas size, stored minus one.
		c.Assert(b[24:30], qt.DeepEquals, []byte{15, 0, 0, 7, 0, 0})
	})

	c.Run("Before XMP", func(c *qt.C) {
		src := testImageBytes(c, geotag.WebP)
		// Append an odd sized XMP chunk without its padding byte.
		src = append(src, "XMP "...)
		src = binary.LittleEndian.AppendUint32(src, 3)
		src = append(src, "<x>"...)
		binary.LittleEndian.PutUint32(src[4:], uint32(len(src)-8))

		b, err := geotag.Embed(geotag.WebP, src, gpsDirectory(c, eiffel))
		c.Assert(err, qt.IsNil)
		stats := checkWebP(c, b)
		c.Assert(stats.chunks, qt.DeepEquals, []string{"VP8X", "VP8L", "EXIF", "XMP "})
	})
}

func TestExtractNoEXIF(t *testing.T) {
	c := qt.New(t)

	for _, format := range geotag.ImageFormats {
		d, err := geotag.Extract(format, testImageBytes(c, format))
		c.Assert(err, qt.IsNil)
		c.Assert(d.Len(), qt.Equals, 0)
	}
}

func TestEmbedErrors(t *testing.T) {
	c := qt.New(t)

	d := gpsDirectory(c, eiffel)

	_, err := geotag.Embed(geotag.ImageFormatAuto, []byte("GIF89a"), d)
	c.Assert(err, qt.ErrorIs, geotag.ErrUnsupportedContainer)
	_, err = geotag.Extract(geotag.ImageFormat(42), testImageBytes(c, geotag.PNG))
	c.Assert(err, qt.ErrorIs, geotag.ErrUnsupportedContainer)

	riffHuge := []byte("RIFF\xff\xff\xff\x00WEBPVP8L")

	// A VP8X chunk after the bitstream.
	lateVP8X := testImageBytes(c, geotag.WebP)
	lateVP8X = append(lateVP8X, "VP8X"...)
	lateVP8X = binary.LittleEndian.AppendUint32(lateVP8X, 10)
	lateVP8X = append(lateVP8X, make([]byte, 10)...)
	binary.LittleEndian.PutUint32(lateVP8X[4:], uint32(len(lateVP8X)-8))

	for _, test := range []struct {
		name   string
		format geotag.ImageFormat
		b      []byte
	}{
		{"JPEG segment length", geotag.JPEG, []byte{0xff, 0xd8, 0xff, 0xe1, 0xff, 0xff}},
		{"JPEG no SOI", geotag.JPEG, []byte{0x00, 0xd8, 0xff, 0xd9}},
		{"JPEG no scan", geotag.JPEG, []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x02}},
		{"PNG signature only", geotag.PNG, []byte("\x89PNG\r\n\x1a\n")},
		{"PNG bad signature", geotag.PNG, []byte("\x89PNX\r\n\x1a\n\x00\x00\x00\x00IEND\xae\x42\x60\x82")},
		{"WebP RIFF size", geotag.WebP, riffHuge},
		{"WebP chunk length", geotag.WebP, []byte("RIFF\x10\x00\x00\x00WEBPVP8L\xff\x00\x00\x00\x2f\x00\x00\x00")},
		{"WebP late VP8X", geotag.WebP, lateVP8X},
	} {
		c.Run(test.name, func(c *qt.C) {
			orig := bytes.Clone(test.b)
			_, err := geotag.Embed(test.format, test.b, d)
			c.Assert(err, qt.ErrorIs, geotag.ErrMalformedContainer)
			c.Assert(geotag.IsMalformed(err), qt.IsTrue)
			c.Assert(test.b, qt.DeepEquals, orig)

			var gerr *geotag.Error
			c.Assert(err, qt.ErrorAs, &gerr)
			c.Assert(gerr.Stage, qt.Equals, geotag.StageEmbed)
			c.Assert(gerr.Format, qt.Equals, test.format)
		})
	}

	// A corrupt GPS IFD behind a valid container.
	src := testImageBytes(c, geotag.PNG)
	b, err := geotag.Embed(geotag.PNG, src, d)
	c.Assert(err, qt.IsNil)
	i := bytes.Index(b, []byte("eXIfMM"))
	c.Assert(i > 0, qt.IsTrue)
	// Point IFD0 far outside the block. The chunk CRC is not checked.
	binary.BigEndian.PutUint32(b[i+8:], 1<<24)
	_, err = geotag.Extract(geotag.PNG, b)
	c.Assert(err, qt.ErrorIs, geotag.ErrMalformedContainer)
	var gerr *geotag.Error
	c.Assert(err, qt.ErrorAs, &gerr)
	c.Assert(gerr.Stage, qt.Equals, geotag.StageExtract)
}

func TestEmbedLargeEntry(t *testing.T) {
	c := qt.New(t)

	withArea := func(n int) geotag.Directory {
		d := gpsDirectory(c, eiffel)
		// GPSAreaInformation as an n byte ASCII value including the NUL.
		d.Set(geotag.Entry{Tag: 0x1c, Type: geotag.TypeASCII, Count: uint32(n), Value: strings.Repeat("a", n-1)})
		return d
	}

	c.Run("Fits a TIFF block", func(c *qt.C) {
		d := withArea(65000)
		for _, format := range geotag.ImageFormats {
			b, err := geotag.Embed(format, testImageBytes(c, format), d)
			if format == geotag.JPEG {
				// Too large for a single APP1 segment.
				c.Assert(err, qt.ErrorIs, geotag.ErrEncodingOverflow)
				c.Assert(geotag.IsMalformed(err), qt.IsFalse)
				var gerr *geotag.Error
				c.Assert(err, qt.ErrorAs, &gerr)
				c.Assert(gerr.Stage, qt.Equals, geotag.StageEmbed)
				c.Assert(gerr.Format, qt.Equals, geotag.JPEG)
				c.Assert(b, qt.IsNil)
				continue
			}
			c.Assert(err, qt.IsNil, qt.Commentf("%s", format))
			got, err := geotag.Extract(format, b)
			c.Assert(err, qt.IsNil)
			c.Assert(got.Len(), qt.Equals, 7)
			c.Assert(got.Entries(), eq, d.Entries())
		}
	})

	c.Run("Too large for any container", func(c *qt.C) {
		d := withArea(70000)
		for _, format := range geotag.ImageFormats {
			b, err := geotag.Embed(format, testImageBytes(c, format), d)
			c.Assert(err, qt.ErrorIs, geotag.ErrEncodingOverflow)
			c.Assert(b, qt.IsNil)
		}
	})
}
