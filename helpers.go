// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Rat is an unsigned rational number as stored in a TIFF RATIONAL.
type Rat interface {
	Num() uint32
	Den() uint32
	Float64() float64

	// String returns the string representation of the rational number.
	// If the denominator is 1, the string will be the numerator only.
	String() string
}

var errZeroDenominator = errors.New("denominator must be non-zero")

// rat is a rational number.
// It's a lightweight version of math/big.rat.
type rat struct {
	num uint32
	den uint32
}

// newRat returns a Rat that keeps the denominator as given.
// GPS seconds are written with a fixed denominator, so no reduction is done.
func newRat(num, den uint32) Rat {
	return rat{num: num, den: den}
}

// Num returns the numerator of the rational number.
func (r rat) Num() uint32 {
	return r.num
}

// Den returns the denominator of the rational number.
func (r rat) Den() uint32 {
	return r.den
}

// Float64 returns the float64 representation of the rational number.
func (r rat) Float64() float64 {
	return float64(r.num) / float64(r.den)
}

// String returns the string representation of the rational number.
// If the denominator is 1, the string will be the numerator only.
func (r rat) String() string {
	if r.den == 1 {
		return fmt.Sprintf("%d", r.num)
	}
	return fmt.Sprintf("%d/%d", r.num, r.den)
}

func printableString(s string) string {
	ss := strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)

	return strings.TrimSpace(ss)
}
