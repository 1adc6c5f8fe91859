// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	byteOrderBigEndian    = 0x4d4d
	byteOrderLittleEndian = 0x4949
	tiffMagic             = 0x002a

	tiffHeaderLen = 8
	ifdEntryLen   = 12

	// Entries in an IFD we read or write.
	maxIFDEntries = 1000
	// Largest tag value in bytes we read or write.
	maxTagValueLen = 0x10000
)

// exifIdentifier prefixes the TIFF block in JPEG APP1 segments
// and optionally in WebP EXIF chunks.
var exifIdentifier = []byte("Exif\x00\x00")

// encodeTIFF serializes d as a big-endian TIFF block:
//
//	header | IFD0 (one GPSInfoIFDPointer entry) | GPS IFD | values
//
// A tag is represented in 12 bytes:
//   - 2 bytes for the tag ID
//   - 2 bytes for the data type
//   - 4 bytes for the number of data values of the specified type
//   - 4 bytes for the value itself, if it fits, otherwise for an offset
//     from the start of the header to where the value is stored.
func encodeTIFF(d Directory) ([]byte, error) {
	order := binary.BigEndian
	entries := d.entries

	if len(entries) > maxIFDEntries {
		return nil, newErrorf(ErrEncodingOverflow, StageBuild, ImageFormatAuto, "%d entries do not fit an IFD", len(entries))
	}

	const (
		ifd0Offset = tiffHeaderLen
		gpsOffset  = ifd0Offset + 2 + ifdEntryLen + 4
	)

	// Lay out the value area after the GPS IFD.
	valuesOffset := uint64(gpsOffset + 2 + ifdEntryLen*len(entries) + 4)
	offsets := make([]uint64, len(entries))
	end := valuesOffset
	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, newError(ErrInvalidDirectory, StageBuild, ImageFormatAuto, err)
		}
		n := e.byteLen()
		if n > maxTagValueLen {
			return nil, newErrorf(ErrEncodingOverflow, StageBuild, ImageFormatAuto, "tag 0x%x: value of %d bytes exceeds %d", e.Tag, n, maxTagValueLen)
		}
		if n <= 4 {
			continue
		}
		offsets[i] = end
		end += n
		// Values begin on a word boundary.
		end += end & 1
	}
	if end > math.MaxUint32 {
		return nil, newErrorf(ErrEncodingOverflow, StageBuild, ImageFormatAuto, "TIFF block of %d bytes", end)
	}

	b := make([]byte, 0, end)

	// Header.
	b = order.AppendUint16(b, byteOrderBigEndian)
	b = order.AppendUint16(b, tiffMagic)
	b = order.AppendUint32(b, ifd0Offset)

	// IFD0.
	b = order.AppendUint16(b, 1)
	b = order.AppendUint16(b, tagGPSInfoIFDPointer)
	b = order.AppendUint16(b, uint16(TypeLong))
	b = order.AppendUint32(b, 1)
	b = order.AppendUint32(b, gpsOffset)
	b = order.AppendUint32(b, 0)

	// GPS IFD.
	b = order.AppendUint16(b, uint16(len(entries)))
	for i, e := range entries {
		b = order.AppendUint16(b, e.Tag)
		b = order.AppendUint16(b, uint16(e.Type))
		b = order.AppendUint32(b, e.Count)
		if offsets[i] != 0 {
			b = order.AppendUint32(b, uint32(offsets[i]))
			continue
		}
		// Inline values are left justified.
		start := len(b)
		b = appendValue(b, order, e)
		for len(b)-start < 4 {
			b = append(b, 0)
		}
	}
	b = order.AppendUint32(b, 0)

	for i, e := range entries {
		if offsets[i] == 0 {
			continue
		}
		for uint64(len(b)) < offsets[i] {
			b = append(b, 0)
		}
		b = appendValue(b, order, e)
	}
	for uint64(len(b)) < end {
		b = append(b, 0)
	}

	return b, nil
}

func appendValue(b []byte, order binary.AppendByteOrder, e Entry) []byte {
	switch v := e.Value.(type) {
	case []byte:
		b = append(b, v...)
	case string:
		b = append(b, v...)
		b = append(b, 0)
	case []uint16:
		for _, vv := range v {
			b = order.AppendUint16(b, vv)
		}
	case []uint32:
		for _, vv := range v {
			b = order.AppendUint32(b, vv)
		}
	case []Rat:
		for _, vv := range v {
			b = order.AppendUint32(b, vv.Num())
			b = order.AppendUint32(b, vv.Den())
		}
	}
	return b
}

// decodeTIFF reads the GPS IFD from a TIFF block in either byte order.
// A block without a GPS IFD yields an empty Directory.
func decodeTIFF(b []byte) (d Directory, err error) {
	e := newStreamReader(b, binary.BigEndian)
	defer func() {
		e.recoverStop(recover(), &err)
		if err != nil {
			d = Directory{}
			err = newErrorf(ErrMalformedContainer, StageExtract, ImageFormatAuto, "TIFF: %w", err)
		}
	}()

	switch e.read2() {
	case byteOrderBigEndian:
	case byteOrderLittleEndian:
		e.byteOrder = binary.LittleEndian
	default:
		return d, fmt.Errorf("invalid byte order mark")
	}
	if e.read2() != tiffMagic {
		return d, fmt.Errorf("invalid magic")
	}

	e.seek(int64(e.read4()))

	var (
		gpsOffset int64
		found     bool
	)
	numTags := e.read2()
	if numTags > maxIFDEntries {
		return d, fmt.Errorf("IFD0 has %d entries", numTags)
	}
	for range numTags {
		tag := e.read2()
		e.skip(2 + 4)
		v := e.read4()
		if tag == tagGPSInfoIFDPointer {
			gpsOffset, found = int64(v), true
		}
	}
	if !found {
		return d, nil
	}

	e.seek(gpsOffset)
	numTags = e.read2()
	if numTags > maxIFDEntries {
		return d, fmt.Errorf("GPS IFD has %d entries", numTags)
	}
	for range numTags {
		if entry, ok := e.decodeEntry(); ok {
			d.Set(entry)
		}
	}

	return d, nil
}

// decodeEntry reads one 12 byte IFD entry. Entries with types
// not written by this package are skipped.
func (e *streamReader) decodeEntry() (Entry, bool) {
	tag := e.read2()
	typ := EntryType(e.read2())
	count := e.read4()

	size, ok := entryTypeSize[typ]
	if !ok {
		e.skip(4)
		return Entry{}, false
	}
	if uint64(size)*uint64(count) > maxTagValueLen {
		e.stop(fmt.Errorf("tag 0x%x: value of %d x %d bytes exceeds %d", tag, count, size, maxTagValueLen))
	}

	entry := Entry{Tag: tag, Type: typ, Count: count}
	valLen := size * count

	if valLen <= 4 {
		entry.Value = e.decodeValue(typ, count)
		e.skip(int64(4 - valLen))
		return entry, true
	}

	offset := e.read4()
	e.preservePos(func() {
		e.seek(int64(offset))
		entry.Value = e.decodeValue(typ, count)
	})
	return entry, true
}

func (e *streamReader) decodeValue(typ EntryType, count uint32) any {
	n := int(count)
	switch typ {
	case TypeByte:
		return e.readBytes(n)
	case TypeASCII:
		b := e.readBytes(n)
		for i, c := range b {
			if c == 0 {
				b = b[:i]
				break
			}
		}
		return string(b)
	case TypeShort:
		v := make([]uint16, n)
		for i := range v {
			v[i] = e.read2()
		}
		return v
	case TypeLong:
		v := make([]uint32, n)
		for i := range v {
			v[i] = e.read4()
		}
		return v
	case TypeRational:
		v := make([]Rat, n)
		for i := range v {
			num, den := e.read4(), e.read4()
			v[i] = newRat(num, den)
		}
		return v
	}
	return nil
}
