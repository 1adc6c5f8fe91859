// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"math"
	"math/rand"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestToDMS(t *testing.T) {
	c := qt.New(t)
	var codec CoordinateCodec

	for _, test := range []struct {
		name    string
		v       float64
		axis    Axis
		deg     uint32
		min     uint32
		secNum  uint32
		ref     Ref
		secDen  uint32
		codecFn func() CoordinateCodec
	}{
		{name: "Eiffel latitude", v: 48.8584, axis: Latitude, deg: 48, min: 51, secNum: 30240000, ref: RefNorth},
		{name: "Eiffel longitude", v: 2.2945, axis: Longitude, deg: 2, min: 17, secNum: 40200000, ref: RefEast},
		{name: "Sydney latitude", v: -33.8568, axis: Latitude, deg: 33, min: 51, secNum: 24480000, ref: RefSouth},
		{name: "West", v: -0.5, axis: Longitude, deg: 0, min: 30, secNum: 0, ref: RefWest},
		{name: "Zero latitude", v: 0, axis: Latitude, ref: RefNorth},
		{name: "Zero longitude", v: 0, axis: Longitude, ref: RefEast},
		{name: "Carry", v: 10.9999999999, axis: Latitude, deg: 11, ref: RefNorth},
		{name: "North pole", v: 90, axis: Latitude, deg: 90, ref: RefNorth},
		{name: "Antimeridian", v: -180, axis: Longitude, deg: 180, ref: RefWest},
		{
			name: "Custom denominator", v: 48.8584, axis: Latitude, deg: 48, min: 51, secNum: 302400, secDen: 10000, ref: RefNorth,
			codecFn: func() CoordinateCodec { return CoordinateCodec{SecondsDenominator: 10000} },
		},
	} {
		c.Run(test.name, func(c *qt.C) {
			codec := codec
			if test.codecFn != nil {
				codec = test.codecFn()
			}
			secDen := test.secDen
			if secDen == 0 {
				secDen = DefaultSecondsDenominator
			}
			dms, ref, err := codec.ToDMS(test.v, test.axis)
			c.Assert(err, qt.IsNil)
			c.Assert(ref, qt.Equals, test.ref)
			c.Assert(dms.Degrees, qt.Equals, test.deg)
			c.Assert(dms.Minutes, qt.Equals, test.min)
			c.Assert(dms.Seconds.Num(), qt.Equals, test.secNum)
			c.Assert(dms.Seconds.Den(), qt.Equals, secDen)
		})
	}
}

func TestToDMSInvalid(t *testing.T) {
	c := qt.New(t)
	var codec CoordinateCodec

	for _, test := range []struct {
		v    float64
		axis Axis
	}{
		{90.0001, Latitude},
		{-90.5, Latitude},
		{180.0001, Longitude},
		{-181, Longitude},
		{math.NaN(), Latitude},
		{math.Inf(1), Longitude},
		{math.Inf(-1), Latitude},
		{1, Axis(7)},
	} {
		_, _, err := codec.ToDMS(test.v, test.axis)
		c.Assert(err, qt.ErrorIs, ErrInvalidCoordinate, qt.Commentf("%v %s", test.v, test.axis))
		c.Assert(IsInvalidCoordinate(err), qt.IsTrue)
		c.Assert(IsCallerError(err), qt.IsTrue)
	}

	_, _, err := CoordinateCodec{SecondsDenominator: math.MaxUint32}.ToDMS(1, Latitude)
	c.Assert(err, qt.ErrorIs, ErrEncodingOverflow)
}

func TestDMSRoundTrip(t *testing.T) {
	c := qt.New(t)

	r := rand.New(rand.NewSource(32))

	for _, den := range []uint32{0, 10000, 1000000} {
		codec := CoordinateCodec{SecondsDenominator: den}
		d, _ := codec.denominator()
		// Half a unit of the seconds rational, in degrees.
		tolerance := 0.5/float64(d)/3600 + 1e-12

		for i := 0; i < 2000; i++ {
			axis := Axis(i % 2)
			lim := axis.limit()
			v := (r.Float64()*2 - 1) * lim

			dms, ref, err := codec.ToDMS(v, axis)
			c.Assert(err, qt.IsNil)
			c.Assert(dms.Minutes < 60, qt.IsTrue)
			c.Assert(dms.Seconds.Num() < 60*dms.Seconds.Den(), qt.IsTrue)

			got, err := codec.FromDMS(dms, ref, axis)
			c.Assert(err, qt.IsNil)
			c.Assert(math.Abs(got-v) <= tolerance, qt.IsTrue, qt.Commentf("%s %v => %s %s => %v", axis, v, dms, ref, got))
		}
	}
}

func TestFromDMSInvalid(t *testing.T) {
	c := qt.New(t)
	var codec CoordinateCodec

	dms := DMS{Degrees: 10, Seconds: newRat(0, 1)}

	_, err := codec.FromDMS(dms, RefEast, Latitude)
	c.Assert(err, qt.ErrorIs, ErrInvalidCoordinate)
	_, err = codec.FromDMS(dms, "X", Longitude)
	c.Assert(err, qt.ErrorIs, ErrInvalidCoordinate)
	_, err = codec.FromDMS(DMS{Degrees: 91}, RefNorth, Latitude)
	c.Assert(err, qt.ErrorIs, ErrInvalidCoordinate)
	_, err = codec.FromDMS(DMS{Degrees: 1, Seconds: newRat(1, 0)}, RefNorth, Latitude)
	c.Assert(err, qt.ErrorIs, ErrInvalidCoordinate)

	v, err := codec.FromDMS(dms, RefSouth, Latitude)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, -10.0)
}

func TestCoordinateValidate(t *testing.T) {
	c := qt.New(t)

	c.Assert(Coordinate{Latitude: 48.8584, Longitude: 2.2945}.Validate(), qt.IsNil)
	c.Assert(Coordinate{}.Validate(), qt.IsNil)
	c.Assert(Coordinate{Latitude: 91}.Validate(), qt.ErrorIs, ErrInvalidCoordinate)
	c.Assert(Coordinate{Longitude: math.NaN()}.Validate(), qt.ErrorIs, ErrInvalidCoordinate)
	c.Assert(Coordinate{Latitude: -33.8568, Longitude: 151.2153}.String(), qt.Equals, "-33.856800,151.215300")
}
