// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package geotag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var errShortRead = errors.New("short read")

func newStreamReader(b []byte, byteOrder binary.ByteOrder) *streamReader {
	return &streamReader{
		r:         bytes.NewReader(b),
		size:      int64(len(b)),
		byteOrder: byteOrder,
	}
}

// streamReader is a wrapper around a Reader that provides methods to read binary data.
// Reads that fail call stop, which panics with errStop; use recoverStop
// at the API boundary to turn that into an error.
// Note that this is not thread safe.
type streamReader struct {
	r         io.ReadSeeker
	size      int64
	byteOrder binary.ByteOrder

	buf []byte

	readErr error
}

func (e *streamReader) allocateBuf(length int) {
	if length > cap(e.buf) {
		e.buf = make([]byte, length)
	}
}

func (e *streamReader) pos() int64 {
	n, _ := e.r.Seek(0, io.SeekCurrent)
	return n
}

func (e *streamReader) read2() uint16 {
	const n = 2
	e.readNIntoBuf(n)
	return e.byteOrder.Uint16(e.buf[:n])
}

func (e *streamReader) read4() uint32 {
	const n = 4
	e.readNIntoBuf(n)
	return e.byteOrder.Uint32(e.buf[:n])
}

// readBytes reads n bytes into a new slice.
func (e *streamReader) readBytes(n int) []byte {
	if int64(n) > e.size-e.pos() {
		e.stop(errShortRead)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
	return b
}

func (e *streamReader) readNIntoBuf(n int) {
	e.allocateBuf(n)
	n2, err := io.ReadFull(e.r, e.buf[:n])
	if err != nil {
		e.stop(err)
	}
	if n != n2 {
		e.stop(errShortRead)
	}
}

func (e *streamReader) preservePos(f func()) {
	pos := e.pos()
	f()
	e.seek(pos)
}

func (e *streamReader) seek(pos int64) {
	if pos < 0 || pos > e.size {
		e.stop(fmt.Errorf("seek to %d outside [0,%d]", pos, e.size))
	}
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) skip(n int64) {
	e.seek(e.pos() + n)
}

func (e *streamReader) stop(err error) {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	e.readErr = err
	panic(errStop)
}

// recoverStop converts a stop panic into an error wrapping the read error.
// Other panics are propagated.
func (e *streamReader) recoverStop(r any, errp *error) {
	if r == nil {
		return
	}
	if r != errStop {
		panic(r)
	}
	err := e.readErr
	if err == nil {
		err = errShortRead
	}
	*errp = err
}
