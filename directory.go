// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"fmt"
	"math"
	"slices"
)

// EntryType is a TIFF field type.
type EntryType uint16

const (
	TypeByte     EntryType = 1
	TypeASCII    EntryType = 2
	TypeShort    EntryType = 3
	TypeLong     EntryType = 4
	TypeRational EntryType = 5
)

// Size in bytes of each type.
var entryTypeSize = map[EntryType]uint32{
	TypeByte:     1,
	TypeASCII:    1,
	TypeShort:    2,
	TypeLong:     4,
	TypeRational: 8,
}

func (t EntryType) String() string {
	switch t {
	case TypeByte:
		return "BYTE"
	case TypeASCII:
		return "ASCII"
	case TypeShort:
		return "SHORT"
	case TypeLong:
		return "LONG"
	case TypeRational:
		return "RATIONAL"
	default:
		return fmt.Sprintf("EntryType(%d)", uint16(t))
	}
}

// Entry is a single typed tag in a Directory.
//
// Value holds one of []byte (BYTE), string (ASCII, without the NUL
// terminator), []uint16 (SHORT), []uint32 (LONG) or []Rat (RATIONAL).
// Count is the TIFF count, which for ASCII includes the terminator.
type Entry struct {
	Tag   uint16
	Type  EntryType
	Count uint32
	Value any
}

// Name returns the GPS tag name, e.g. GPSLatitude.
func (e Entry) Name() string {
	if s, ok := fieldsGPS[e.Tag]; ok {
		return s
	}
	return fmt.Sprintf("UnknownTag_0x%x", e.Tag)
}

// validate checks that Count agrees with Value.
func (e Entry) validate() error {
	var n int
	switch v := e.Value.(type) {
	case []byte:
		if e.Type != TypeByte {
			return fmt.Errorf("tag 0x%x: []byte value for type %s", e.Tag, e.Type)
		}
		n = len(v)
	case string:
		if e.Type != TypeASCII {
			return fmt.Errorf("tag 0x%x: string value for type %s", e.Tag, e.Type)
		}
		n = len(v) + 1
	case []uint16:
		if e.Type != TypeShort {
			return fmt.Errorf("tag 0x%x: []uint16 value for type %s", e.Tag, e.Type)
		}
		n = len(v)
	case []uint32:
		if e.Type != TypeLong {
			return fmt.Errorf("tag 0x%x: []uint32 value for type %s", e.Tag, e.Type)
		}
		n = len(v)
	case []Rat:
		if e.Type != TypeRational {
			return fmt.Errorf("tag 0x%x: []Rat value for type %s", e.Tag, e.Type)
		}
		n = len(v)
	default:
		return fmt.Errorf("tag 0x%x: unsupported value type %T", e.Tag, e.Value)
	}
	if uint64(n) != uint64(e.Count) {
		return fmt.Errorf("tag 0x%x: count %d does not match value length %d", e.Tag, e.Count, n)
	}
	return nil
}

// byteLen is the number of bytes the value occupies when serialized.
func (e Entry) byteLen() uint64 {
	return uint64(e.Count) * uint64(entryTypeSize[e.Type])
}

func byteEntry(tag uint16, b []byte) Entry {
	return Entry{Tag: tag, Type: TypeByte, Count: uint32(len(b)), Value: b}
}

func asciiEntry(tag uint16, s string) Entry {
	return Entry{Tag: tag, Type: TypeASCII, Count: uint32(len(s) + 1), Value: s}
}

func rationalEntry(tag uint16, rats []Rat) Entry {
	return Entry{Tag: tag, Type: TypeRational, Count: uint32(len(rats)), Value: rats}
}

// Directory is a set of entries kept in ascending tag order,
// which is the order they are written to an IFD.
// The zero value is an empty directory ready to use.
type Directory struct {
	entries []Entry
}

// Set adds e, replacing any entry with the same tag.
func (d *Directory) Set(e Entry) {
	i, found := slices.BinarySearchFunc(d.entries, e.Tag, func(a Entry, tag uint16) int {
		return int(a.Tag) - int(tag)
	})
	if found {
		d.entries[i] = e
		return
	}
	d.entries = slices.Insert(d.entries, i, e)
}

// Get returns the entry with the given tag.
func (d Directory) Get(tag uint16) (Entry, bool) {
	i, found := slices.BinarySearchFunc(d.entries, tag, func(a Entry, tag uint16) int {
		return int(a.Tag) - int(tag)
	})
	if !found {
		return Entry{}, false
	}
	return d.entries[i], true
}

// Entries returns a copy of the entries in ascending tag order.
func (d Directory) Entries() []Entry {
	return slices.Clone(d.entries)
}

// Len returns the number of entries.
func (d Directory) Len() int {
	return len(d.entries)
}

// DMS returns the DMS triple and reference stored for axis.
func (d Directory) DMS(axis Axis) (DMS, Ref, bool) {
	refTag, valTag := TagGPSLatitudeRef, TagGPSLatitude
	if axis == Longitude {
		refTag, valTag = TagGPSLongitudeRef, TagGPSLongitude
	}
	refEntry, ok := d.Get(refTag)
	if !ok {
		return DMS{}, "", false
	}
	ref, ok := refEntry.Value.(string)
	if !ok {
		return DMS{}, "", false
	}
	valEntry, ok := d.Get(valTag)
	if !ok {
		return DMS{}, "", false
	}
	rats, ok := valEntry.Value.([]Rat)
	if !ok || len(rats) != 3 {
		return DMS{}, "", false
	}
	for _, r := range rats {
		if r.Den() == 0 {
			return DMS{}, "", false
		}
	}

	// Degrees and minutes may be written as fractions by other tools.
	deg, mins := rats[0].Float64(), rats[1].Float64()
	dms := DMS{
		Degrees: uint32(deg),
		Minutes: uint32(mins),
		Seconds: newRat(rats[2].Num(), rats[2].Den()),
	}
	extra := (deg-float64(dms.Degrees))*3600 + (mins-float64(dms.Minutes))*60
	if extra != 0 {
		const den = DefaultSecondsDenominator
		num := math.Round((rats[2].Float64() + extra) * den)
		if num > math.MaxUint32 {
			return DMS{}, "", false
		}
		dms.Seconds = newRat(uint32(num), den)
	}
	return dms, Ref(printableString(ref)), true
}

// LatLong returns the coordinate stored in the directory.
// found is false if the latitude or longitude tags are missing.
func (d Directory) LatLong() (c Coordinate, found bool, err error) {
	var codec CoordinateCodec
	latDMS, latRef, ok := d.DMS(Latitude)
	if !ok {
		return
	}
	lonDMS, lonRef, ok := d.DMS(Longitude)
	if !ok {
		return
	}
	found = true
	if c.Latitude, err = codec.FromDMS(latDMS, latRef, Latitude); err != nil {
		return
	}
	c.Longitude, err = codec.FromDMS(lonDMS, lonRef, Longitude)
	return
}

// BuildGPSDirectory assembles the GPS IFD entries for the given
// latitude and longitude.
func BuildGPSDirectory(lat DMS, latRef Ref, lon DMS, lonRef Ref) Directory {
	var d Directory
	d.Set(byteEntry(TagGPSVersionID, slices.Clone(gpsVersion)))
	d.Set(asciiEntry(TagGPSLatitudeRef, string(latRef)))
	d.Set(rationalEntry(TagGPSLatitude, lat.Rats()))
	d.Set(asciiEntry(TagGPSLongitudeRef, string(lonRef)))
	d.Set(rationalEntry(TagGPSLongitude, lon.Rats()))
	d.Set(asciiEntry(TagGPSMapDatum, mapDatumWGS84))
	return d
}

// GPSDirectory validates c and builds its GPS directory.
func (c CoordinateCodec) GPSDirectory(coord Coordinate) (Directory, error) {
	lat, latRef, err := c.ToDMS(coord.Latitude, Latitude)
	if err != nil {
		return Directory{}, err
	}
	lon, lonRef, err := c.ToDMS(coord.Longitude, Longitude)
	if err != nil {
		return Directory{}, err
	}
	return BuildGPSDirectory(lat, latRef, lon, lonRef), nil
}
