// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/image/riff"
)

var (
	fccRIFF = riff.FourCC{'R', 'I', 'F', 'F'}
	fccWEBP = riff.FourCC{'W', 'E', 'B', 'P'}
	fccVP8  = riff.FourCC{'V', 'P', '8', ' '}
	fccVP8L = riff.FourCC{'V', 'P', '8', 'L'}
	fccVP8X = riff.FourCC{'V', 'P', '8', 'X'}
	fccEXIF = riff.FourCC{'E', 'X', 'I', 'F'}
	fccXMP  = riff.FourCC{'X', 'M', 'P', ' '}
)

const (
	vp8xChunkLen    = 10
	vp8xAlphaBit    = 1 << 4
	vp8xEXIFBit     = 1 << 3
	vp8lSignature   = 0x2f
	vp8lAlphaBit    = 1 << 28
	vp8KeyFrameCode = "\x9d\x01\x2a"
)

type riffChunk struct {
	id   riff.FourCC
	data []byte
}

// parseWebP splits a RIFF/WEBP stream into its sub-chunks.
// A missing padding byte after the final chunk is tolerated.
func parseWebP(b []byte) ([]riffChunk, error) {
	if len(b) < 12 || riff.FourCC(b[0:4]) != fccRIFF || riff.FourCC(b[8:12]) != fccWEBP {
		return nil, errMalformedf("missing RIFF/WEBP header")
	}
	size := uint64(binary.LittleEndian.Uint32(b[4:8]))
	if size < 4 || 8+size > uint64(len(b)) {
		return nil, errMalformedf("invalid RIFF size %d for %d bytes", size, len(b))
	}
	end := int(8 + size)

	var chunks []riffChunk
	pos := 12
	for pos < end {
		if pos+8 > end {
			return nil, errMalformedf("truncated RIFF chunk header at offset %d", pos)
		}
		id := riff.FourCC(b[pos : pos+4])
		length := uint64(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		if uint64(pos)+8+length > uint64(end) {
			return nil, errMalformedf("RIFF chunk %q of %d bytes exceeds container", id[:], length)
		}
		pos += 8
		chunks = append(chunks, riffChunk{id: id, data: b[pos : pos+int(length)]})
		pos += int(length)
		if length&1 == 1 && pos < end {
			pos++
		}
	}
	if len(chunks) == 0 {
		return nil, errMalformedf("empty RIFF/WEBP container")
	}
	return chunks, nil
}

// webpCanvas returns the canvas size and alpha usage from a simple
// (VP8 or VP8L) bitstream chunk.
func webpCanvas(c riffChunk) (width, height uint32, alpha bool, err error) {
	switch c.id {
	case fccVP8L:
		if len(c.data) < 5 || c.data[0] != vp8lSignature {
			return 0, 0, false, errMalformedf("invalid VP8L header")
		}
		bits := binary.LittleEndian.Uint32(c.data[1:5])
		return bits&0x3fff + 1, (bits>>14)&0x3fff + 1, bits&vp8lAlphaBit != 0, nil
	case fccVP8:
		if len(c.data) < 10 || string(c.data[3:6]) != vp8KeyFrameCode {
			return 0, 0, false, errMalformedf("invalid VP8 frame header")
		}
		w := uint32(binary.LittleEndian.Uint16(c.data[6:8]) & 0x3fff)
		h := uint32(binary.LittleEndian.Uint16(c.data[8:10]) & 0x3fff)
		return w, h, false, nil
	}
	return 0, 0, false, errMalformedf("unexpected first WEBP chunk %q", c.id[:])
}

func newVP8X(width, height uint32, flags byte) []byte {
	b := make([]byte, vp8xChunkLen)
	b[0] = flags
	w, h := width-1, height-1
	b[4], b[5], b[6] = byte(w), byte(w>>8), byte(w>>16)
	b[7], b[8], b[9] = byte(h), byte(h>>8), byte(h>>16)
	return b
}

// embedWebP drops every EXIF chunk, adds a new one holding tiff and
// flags it in VP8X. Simple format files get a VP8X chunk built from
// the bitstream's canvas size.
func embedWebP(b, tiff []byte) ([]byte, error) {
	if uint64(len(tiff)) > math.MaxUint32-1 {
		return nil, newErrorf(ErrEncodingOverflow, "", WebP, "EXIF chunk of %d bytes", len(tiff))
	}
	chunks, err := parseWebP(b)
	if err != nil {
		return nil, err
	}

	var vp8x []byte
	if chunks[0].id == fccVP8X {
		if len(chunks[0].data) != vp8xChunkLen {
			return nil, errMalformedf("VP8X chunk of %d bytes", len(chunks[0].data))
		}
		vp8x = bytes.Clone(chunks[0].data)
		vp8x[0] |= vp8xEXIFBit
		chunks = chunks[1:]
	} else {
		w, h, alpha, err := webpCanvas(chunks[0])
		if err != nil {
			return nil, err
		}
		var flags byte = vp8xEXIFBit
		if alpha {
			flags |= vp8xAlphaBit
		}
		vp8x = newVP8X(w, h, flags)
	}

	exifChunk := riffChunk{id: fccEXIF, data: tiff}
	out := []riffChunk{{id: fccVP8X, data: vp8x}}
	inserted := false
	for _, c := range chunks {
		switch c.id {
		case fccVP8X:
			return nil, errMalformedf("VP8X chunk must be the first chunk")
		case fccEXIF:
			continue
		case fccXMP:
			// EXIF goes before XMP.
			if !inserted {
				out = append(out, exifChunk)
				inserted = true
			}
		}
		out = append(out, c)
	}
	if !inserted {
		out = append(out, exifChunk)
	}

	size := uint64(4)
	for _, c := range out {
		n := uint64(len(c.data))
		size += 8 + n + n&1
	}
	if size > math.MaxUint32 {
		return nil, newErrorf(ErrEncodingOverflow, "", WebP, "RIFF size %d exceeds %d", size, uint32(math.MaxUint32))
	}

	buf := make([]byte, 0, 8+size)
	buf = append(buf, fccRIFF[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = append(buf, fccWEBP[:]...)
	for _, c := range out {
		buf = append(buf, c.id[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.data)))
		buf = append(buf, c.data...)
		if len(c.data)&1 == 1 {
			buf = append(buf, 0)
		}
	}
	return buf, nil
}

// extractWebP returns the payload of the first EXIF chunk, or nil.
func extractWebP(b []byte) ([]byte, error) {
	formType, riffReader, err := riff.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errMalformedf("%v", err)
	}
	if formType != fccWEBP {
		return nil, errMalformedf("not a WebP file")
	}

	for {
		chunkID, _, chunkData, err := riffReader.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, errMalformedf("%v", err)
		}
		if chunkID != fccEXIF {
			continue
		}
		data, err := io.ReadAll(chunkData)
		if err != nil {
			return nil, errMalformedf("%v", err)
		}
		// Some writers keep the JPEG style identifier.
		return bytes.TrimPrefix(data, exifIdentifier), nil
	}
}
