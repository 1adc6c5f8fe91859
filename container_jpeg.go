// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	markerSOI  = 0xd8
	markerEOI  = 0xd9
	markerSOS  = 0xda
	markerAPP1 = 0xe1
	markerTEM  = 0x01
	markerRST0 = 0xd0
	markerRST7 = 0xd7
)

// jpegSegment is a marker segment. start is the offset of the first 0xFF
// (including any fill bytes), end is one past the last payload byte.
type jpegSegment struct {
	marker  byte
	start   int
	end     int
	payload []byte
}

func (s jpegSegment) isEXIF() bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.payload, exifIdentifier[:5])
}

// walkJPEG calls fn for each marker segment up to and including SOS.
// It returns the offset of the SOS segment, or len(b) if the stream
// ends with EOI before any scan.
func walkJPEG(b []byte, fn func(s jpegSegment)) (int, error) {
	if len(b) < 4 || b[0] != 0xff || b[1] != markerSOI {
		return 0, errMalformedf("missing JPEG SOI marker")
	}

	pos := 2
	for {
		if pos >= len(b) {
			return 0, errMalformedf("JPEG ends before start of scan")
		}
		if b[pos] != 0xff {
			return 0, errMalformedf("expected JPEG marker at offset %d, got 0x%02x", pos, b[pos])
		}
		start := pos
		// Any number of 0xFF fill bytes may precede a marker.
		for pos+1 < len(b) && b[pos+1] == 0xff {
			pos++
		}
		if pos+1 >= len(b) {
			return 0, errMalformedf("truncated JPEG marker at offset %d", start)
		}
		marker := b[pos+1]
		pos += 2

		switch {
		case marker == markerEOI:
			return start, nil
		case marker == markerSOI, marker == 0x00:
			return 0, errMalformedf("unexpected JPEG marker 0x%02x at offset %d", marker, start)
		case marker == markerTEM, marker >= markerRST0 && marker <= markerRST7:
			// Standalone, no length.
			fn(jpegSegment{marker: marker, start: start, end: pos})
			continue
		}

		if pos+2 > len(b) {
			return 0, errMalformedf("truncated JPEG segment length at offset %d", pos)
		}
		// The 16-bit length of the segment includes the 2 bytes for the length itself.
		length := int(binary.BigEndian.Uint16(b[pos:]))
		if length < 2 || pos+length > len(b) {
			return 0, errMalformedf("invalid JPEG segment length %d at offset %d", length, pos)
		}
		s := jpegSegment{marker: marker, start: start, end: pos + length, payload: b[pos+2 : pos+length]}
		if marker == markerSOS {
			fn(s)
			return start, nil
		}
		fn(s)
		pos += length
	}
}

// embedJPEG drops every EXIF APP1 segment and inserts a new one holding
// tiff right after SOI. Scan data is copied verbatim.
func embedJPEG(b, tiff []byte) ([]byte, error) {
	length := 2 + len(exifIdentifier) + len(tiff)
	if length > math.MaxUint16 {
		return nil, newErrorf(ErrEncodingOverflow, "", JPEG, "APP1 segment of %d bytes exceeds %d", length, math.MaxUint16)
	}

	var keep [][2]int
	sos, err := walkJPEG(b, func(s jpegSegment) {
		if s.marker == markerSOS || s.isEXIF() {
			return
		}
		keep = append(keep, [2]int{s.start, s.end})
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(b)+2+length)
	out = append(out, 0xff, markerSOI)
	out = append(out, 0xff, markerAPP1)
	out = binary.BigEndian.AppendUint16(out, uint16(length))
	out = append(out, exifIdentifier...)
	out = append(out, tiff...)
	for _, k := range keep {
		out = append(out, b[k[0]:k[1]]...)
	}
	out = append(out, b[sos:]...)

	return out, nil
}

// extractJPEG returns the TIFF block of the first EXIF APP1 segment, or nil.
func extractJPEG(b []byte) ([]byte, error) {
	var tiff []byte
	var found bool
	_, err := walkJPEG(b, func(s jpegSegment) {
		if found || !s.isEXIF() {
			return
		}
		found = true
		if len(s.payload) >= len(exifIdentifier) {
			tiff = s.payload[len(exifIdentifier):]
		}
	})
	if err != nil {
		return nil, err
	}
	if found && tiff == nil {
		return nil, errMalformedf("short JPEG EXIF segment")
	}
	return tiff, nil
}
