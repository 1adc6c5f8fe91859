// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"fmt"
	"math"
)

// DefaultSecondsDenominator is the denominator used for the seconds rational
// when none is configured. It gives a resolution of one micro arc second,
// well below a millimetre on the ground.
const DefaultSecondsDenominator = 1000000

// maxSecondsDenominator keeps 60 seconds representable in a uint32 numerator.
const maxSecondsDenominator = math.MaxUint32 / 60

// Coordinate is a WGS-84 position in signed decimal degrees.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Validate checks that both axes are finite and within range.
func (c Coordinate) Validate() error {
	if err := Latitude.check(c.Latitude); err != nil {
		return err
	}
	return Longitude.check(c.Longitude)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Axis is either Latitude or Longitude.
type Axis int

const (
	Latitude Axis = iota
	Longitude
)

func (a Axis) String() string {
	switch a {
	case Latitude:
		return "latitude"
	case Longitude:
		return "longitude"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

func (a Axis) limit() float64 {
	if a == Latitude {
		return 90
	}
	return 180
}

func (a Axis) check(v float64) error {
	if a != Latitude && a != Longitude {
		return newErrorf(ErrInvalidCoordinate, StageValidate, ImageFormatAuto, "unknown axis %d", int(a))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return newErrorf(ErrInvalidCoordinate, StageValidate, ImageFormatAuto, "%s %v is not finite", a, v)
	}
	if lim := a.limit(); v < -lim || v > lim {
		return newErrorf(ErrInvalidCoordinate, StageValidate, ImageFormatAuto, "%s %v is outside [-%v,%v]", a, v, lim, lim)
	}
	return nil
}

// ref returns the hemisphere reference for v. Zero counts as positive.
func (a Axis) ref(v float64) Ref {
	if a == Latitude {
		if v < 0 {
			return RefSouth
		}
		return RefNorth
	}
	if v < 0 {
		return RefWest
	}
	return RefEast
}

// Ref is a GPS hemisphere reference.
type Ref string

const (
	RefNorth Ref = "N"
	RefSouth Ref = "S"
	RefEast  Ref = "E"
	RefWest  Ref = "W"
)

func (r Ref) sign(a Axis) (float64, error) {
	switch {
	case a == Latitude && r == RefNorth, a == Longitude && r == RefEast:
		return 1, nil
	case a == Latitude && r == RefSouth, a == Longitude && r == RefWest:
		return -1, nil
	}
	return 0, newErrorf(ErrInvalidCoordinate, StageValidate, ImageFormatAuto, "invalid %s reference %q", a, string(r))
}

// DMS is an unsigned degrees, minutes and seconds triple.
// The sign lives in the accompanying Ref.
type DMS struct {
	Degrees uint32
	Minutes uint32
	Seconds Rat
}

// Rats returns the triple as three rationals, the form GPSLatitude and
// GPSLongitude are stored in.
func (d DMS) Rats() []Rat {
	sec := d.Seconds
	if sec == nil {
		sec = newRat(0, 1)
	}
	return []Rat{newRat(d.Degrees, 1), newRat(d.Minutes, 1), sec}
}

// Float64 returns the unsigned magnitude in decimal degrees.
func (d DMS) Float64() float64 {
	v := float64(d.Degrees) + float64(d.Minutes)/60
	if d.Seconds != nil {
		v += d.Seconds.Float64() / 3600
	}
	return v
}

func (d DMS) String() string {
	var sec float64
	if d.Seconds != nil {
		sec = d.Seconds.Float64()
	}
	return fmt.Sprintf("%d° %d' %.6f\"", d.Degrees, d.Minutes, sec)
}

// CoordinateCodec converts between signed decimal degrees and the
// DMS plus reference form used by EXIF GPS tags.
type CoordinateCodec struct {
	// SecondsDenominator is the fixed denominator of the seconds rational.
	// Zero means DefaultSecondsDenominator.
	SecondsDenominator uint32
}

func (c CoordinateCodec) denominator() (uint32, error) {
	switch den := c.SecondsDenominator; {
	case den == 0:
		return DefaultSecondsDenominator, nil
	case den > maxSecondsDenominator:
		return 0, newErrorf(ErrEncodingOverflow, StageBuild, ImageFormatAuto, "seconds denominator %d exceeds %d", den, maxSecondsDenominator)
	default:
		return den, nil
	}
}

// ToDMS converts v on the given axis.
func (c CoordinateCodec) ToDMS(v float64, axis Axis) (DMS, Ref, error) {
	if err := axis.check(v); err != nil {
		return DMS{}, "", err
	}
	den, err := c.denominator()
	if err != nil {
		return DMS{}, "", err
	}

	m := math.Abs(v)
	deg := math.Floor(m)
	rem := (m - deg) * 60
	mins := math.Floor(rem)
	sec := math.Round((rem - mins) * 60 * float64(den))

	d, mi := uint32(deg), uint32(mins)

	// Rounding may produce a full minute or a full degree.
	if sec >= 60*float64(den) {
		sec -= 60 * float64(den)
		mi++
	}
	if mi >= 60 {
		mi -= 60
		d++
	}

	return DMS{
		Degrees: d,
		Minutes: mi,
		Seconds: newRat(uint32(sec), den),
	}, axis.ref(v), nil
}

// FromDMS converts d with reference ref back to signed decimal degrees.
func (c CoordinateCodec) FromDMS(d DMS, ref Ref, axis Axis) (float64, error) {
	sign, err := ref.sign(axis)
	if err != nil {
		return 0, err
	}
	if d.Seconds != nil && d.Seconds.Den() == 0 {
		return 0, newErrorf(ErrInvalidCoordinate, StageValidate, ImageFormatAuto, "%s seconds: %s", axis, errZeroDenominator)
	}
	v := sign * d.Float64()
	if err := axis.check(v); err != nil {
		return 0, err
	}
	return v, nil
}
