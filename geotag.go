// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Package geotag re-encodes images as JPEG, PNG or WebP with an
// EXIF GPS block describing a given coordinate.
package geotag

import (
	"fmt"
	"strings"
)

const (
	// ImageFormatAuto signals that the image format should be detected automatically.
	ImageFormatAuto ImageFormat = iota
	// JPEG is the JPEG image format.
	JPEG
	// PNG is the PNG image format.
	PNG
	// WebP is the WebP image format.
	WebP
)

// ImageFormat is the image format.
//
//go:generate stringer -type=ImageFormat
type ImageFormat int

// ImageFormats lists the supported container formats.
var ImageFormats = []ImageFormat{JPEG, PNG, WebP}

func (f ImageFormat) valid() bool {
	return f >= JPEG && f <= WebP
}

// MIMEType returns the media type, e.g. image/jpeg.
func (f ImageFormat) MIMEType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	}
	return "application/octet-stream"
}

// Extension returns the file extension without the dot, e.g. jpg.
func (f ImageFormat) Extension() string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG:
		return "png"
	case WebP:
		return "webp"
	}
	return ""
}

// ParseImageFormat parses s, e.g. "jpeg" or ".PNG", into an ImageFormat.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return ImageFormatAuto, newErrorf(ErrUnsupportedContainer, StageValidate, ImageFormatAuto, "unsupported format %q, use one of jpg, jpeg, png, webp", s)
}

// Options contains the options for New.
type Options struct {
	// SecondsDenominator is the fixed denominator of the GPS seconds rational.
	// Default value is DefaultSecondsDenominator.
	SecondsDenominator uint32

	// JPEGQuality is used when the target is JPEG.
	// Default value is DefaultJPEGQuality.
	JPEGQuality int

	// Warnf will be called for each warning.
	Warnf func(string, ...any)
}

// Pipeline geotags images. It holds no mutable state and
// is safe for concurrent use.
type Pipeline struct {
	codec      CoordinateCodec
	transcoder Transcoder
}

// New creates a Pipeline with the given options.
func New(opts Options) (*Pipeline, error) {
	if opts.SecondsDenominator == 0 {
		opts.SecondsDenominator = DefaultSecondsDenominator
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.Warnf == nil {
		opts.Warnf = func(string, ...any) {}
	}

	p := &Pipeline{
		codec:      CoordinateCodec{SecondsDenominator: opts.SecondsDenominator},
		transcoder: Transcoder{JPEGQuality: opts.JPEGQuality, Warnf: opts.Warnf},
	}
	if _, err := p.codec.denominator(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if _, err := p.transcoder.quality(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return p, nil
}

// Result is the output of a pipeline run.
type Result struct {
	// Data is the encoded image including the GPS block.
	Data []byte
	// Format is the container kind of Data.
	Format ImageFormat
	// Directory is the GPS directory embedded in Data.
	Directory Directory
}

// Run validates c, re-encodes img as target and embeds c as EXIF GPS
// metadata. If target is ImageFormatAuto the source format is kept.
// On error no partial result is returned and img is left untouched.
func (p *Pipeline) Run(img []byte, c Coordinate, target ImageFormat) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	source := DetectFormat(img)
	if source == ImageFormatAuto {
		return Result{}, newErrorf(ErrUnsupportedSourceFormat, StageDetect, ImageFormatAuto, "unrecognized image signature")
	}
	if target == ImageFormatAuto {
		target = source
	}
	if !target.valid() {
		return Result{}, newErrorf(ErrUnsupportedContainer, StageValidate, ImageFormatAuto, "unknown target %s", target)
	}

	b, err := p.transcoder.Transcode(img, source, target)
	if err != nil {
		return Result{}, err
	}

	dir, err := p.codec.GPSDirectory(c)
	if err != nil {
		return Result{}, withStage(err, ErrInvalidCoordinate, StageBuild, target)
	}

	out, err := Embed(target, b, dir)
	if err != nil {
		return Result{}, err
	}

	return Result{Data: out, Format: target, Directory: dir}, nil
}
