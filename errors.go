// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinate is returned for out-of-range or non-finite coordinates.
	ErrInvalidCoordinate = errors.New("geotag: invalid coordinate")

	// ErrUnsupportedSourceFormat is returned when the source bytes do not match a known container signature.
	ErrUnsupportedSourceFormat = errors.New("geotag: unsupported source format")

	// ErrUnsupportedContainer is returned when asked to embed into or extract from an unknown container kind.
	ErrUnsupportedContainer = errors.New("geotag: unsupported container")

	// ErrDecodeFailure is returned when pixel decoding of a recognized container fails.
	ErrDecodeFailure = errors.New("geotag: decode failure")

	// ErrEncodeFailure is returned when the pixel encoder for the target format fails.
	ErrEncodeFailure = errors.New("geotag: encode failure")

	// ErrMalformedContainer is returned when the container framing is structurally broken.
	ErrMalformedContainer = errors.New("geotag: malformed container")

	// ErrInvalidDirectory is returned when a Directory entry's count or value does not match its type.
	ErrInvalidDirectory = errors.New("geotag: invalid directory")

	// ErrEncodingOverflow is returned when a computed length does not fit the field that records it.
	ErrEncodingOverflow = errors.New("geotag: encoding overflow")

	// Internal error to signal that we should stop any further processing.
	errStop = errors.New("stop")
)

// Stage identifies the pipeline step an error originated from.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageDetect    Stage = "detect"
	StageTranscode Stage = "transcode"
	StageBuild     Stage = "build"
	StageEmbed     Stage = "embed"
	StageExtract   Stage = "extract"
)

// Error is the error type returned by this package.
// Use errors.Is with one of the Err* sentinels to check the kind.
type Error struct {
	// Kind is one of the Err* sentinels.
	Kind error

	// Stage is the step that failed.
	Stage Stage

	// Format is the container involved, if known.
	Format ImageFormat

	// Err is the underlying cause, may be nil.
	Err error
}

func (e *Error) Error() string {
	var prefix string
	if e.Format != ImageFormatAuto {
		prefix = fmt.Sprintf("%s: %s", e.Stage, e.Format)
	} else {
		prefix = string(e.Stage)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, stage Stage, format ImageFormat, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Format: format, Err: err}
}

func newErrorf(kind error, stage Stage, imageFormat ImageFormat, format string, args ...any) *Error {
	return newError(kind, stage, imageFormat, fmt.Errorf(format, args...))
}

// withStage fills in stage and format on err if it is an *Error missing them,
// otherwise it wraps err as kind.
func withStage(err error, kind error, stage Stage, format ImageFormat) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Stage == "" {
			e.Stage = stage
		}
		if e.Format == ImageFormatAuto {
			e.Format = format
		}
		return e
	}
	return newError(kind, stage, format, err)
}

// IsInvalidCoordinate reports whether err is an InvalidCoordinate error.
func IsInvalidCoordinate(err error) bool {
	return errors.Is(err, ErrInvalidCoordinate)
}

// IsMalformed reports whether the input bytes were rejected as corrupt,
// either by the container framing or by the pixel decoder.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedContainer) || errors.Is(err, ErrDecodeFailure)
}

// IsCallerError reports whether err was caused by the input given to the
// pipeline rather than by an internal failure.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrUnsupportedSourceFormat) ||
		errors.Is(err, ErrUnsupportedContainer) ||
		IsMalformed(err)
}
