// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

const (
	pngChunkIHDR = "IHDR"
	pngChunkIEND = "IEND"
	// http://ftp-osl.osuosl.org/pub/libpng/documents/pngext-1.5.0.html#C.eXIf
	pngChunkEXIF = "eXIf"

	maxPNGChunkLen = math.MaxInt32
)

type pngChunk struct {
	typ   string
	start int
	end   int
	data  []byte
}

// walkPNG calls fn for each chunk from IHDR to IEND and returns
// the offset just past IEND.
func walkPNG(b []byte, fn func(c pngChunk)) (int, error) {
	if !bytes.HasPrefix(b, pngSignature) {
		return 0, errMalformedf("missing PNG signature")
	}
	pos := len(pngSignature)
	first := true
	for {
		if pos+12 > len(b) {
			return 0, errMalformedf("truncated PNG chunk at offset %d", pos)
		}
		length := binary.BigEndian.Uint32(b[pos:])
		if length > maxPNGChunkLen || uint64(pos)+12+uint64(length) > uint64(len(b)) {
			return 0, errMalformedf("invalid PNG chunk length %d at offset %d", length, pos)
		}
		end := pos + 12 + int(length)
		c := pngChunk{
			typ:   string(b[pos+4 : pos+8]),
			start: pos,
			end:   end,
			data:  b[pos+8 : pos+8+int(length)],
		}
		if first && c.typ != pngChunkIHDR {
			return 0, errMalformedf("first PNG chunk is %q, expected IHDR", c.typ)
		}
		first = false
		fn(c)
		pos = end
		if c.typ == pngChunkIEND {
			return pos, nil
		}
	}
}

func appendPNGChunk(b []byte, typ string, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	start := len(b)
	b = append(b, typ...)
	b = append(b, data...)
	// The CRC covers the chunk type and data.
	return binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(b[start:]))
}

// embedPNG drops every eXIf chunk and inserts a new one right after IHDR.
func embedPNG(b, tiff []byte) ([]byte, error) {
	if len(tiff) > maxPNGChunkLen {
		return nil, newErrorf(ErrEncodingOverflow, "", PNG, "eXIf chunk of %d bytes exceeds %d", len(tiff), maxPNGChunkLen)
	}

	out := make([]byte, 0, len(b)+12+len(tiff))
	out = append(out, pngSignature...)
	iend, err := walkPNG(b, func(c pngChunk) {
		switch c.typ {
		case pngChunkEXIF:
			return
		case pngChunkIHDR:
			out = append(out, b[c.start:c.end]...)
			out = appendPNGChunk(out, pngChunkEXIF, tiff)
		default:
			out = append(out, b[c.start:c.end]...)
		}
	})
	if err != nil {
		return nil, err
	}
	return append(out, b[iend:]...), nil
}

// extractPNG returns the data of the first eXIf chunk, or nil.
func extractPNG(b []byte) ([]byte, error) {
	var tiff []byte
	_, err := walkPNG(b, func(c pngChunk) {
		if tiff == nil && c.typ == pngChunkEXIF {
			// Some writers keep the JPEG style identifier.
			tiff = bytes.TrimPrefix(c.data, exifIdentifier)
		}
	})
	if err != nil {
		return nil, err
	}
	return tiff, nil
}
