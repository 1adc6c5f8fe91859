// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package geocode resolves free-form addresses to WGS-84 coordinates.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/bep/geotag"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrEmptyAddress is returned when the address is blank.
	ErrEmptyAddress = errors.New("geocode: address cannot be empty")

	// ErrNotFound is returned when the service has no match for the address.
	ErrNotFound = errors.New("geocode: no coordinates found")
)

// Place is a resolved address.
type Place struct {
	Coordinate  geotag.Coordinate
	DisplayName string
}

// Geocoder resolves an address into a Place.
//
// Implementors must return ErrEmptyAddress for blank input and
// ErrNotFound when nothing matches.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (Place, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, address string) (Place, error)

var _ Geocoder = GeocoderFunc(nil)

// Resolve implements the Geocoder interface.
func (f GeocoderFunc) Resolve(ctx context.Context, address string) (Place, error) {
	return f(ctx, address)
}

// NormalizeAddress trims and collapses whitespace and returns the
// NFC form of address, so visually equal input is sent identically.
func NormalizeAddress(address string) string {
	return norm.NFC.String(strings.Join(strings.Fields(address), " "))
}
