/*
Maddy Mail Server - Composable all-in-one email server.
Copyright © 2019-2020 Max Mazurov <fox.cpp@disroot.org>, Maddy Mail Server contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package readback

import (
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

const defaultBufSize = 8 * 1024

var (
	// ErrBufferFull is returned by ReadBackSlice if the delimiter was not
	// found within a full buffer.
	ErrBufferFull = errors.New("readback: buffer full")

	// ErrBufferSize is returned by operations that need a buffer larger than
	// the Reader has, ReadBackRune needs at least utf8.UTFMax bytes and the
	// delimiter-based reads need a non-zero buffer.
	ErrBufferSize = errors.New("readback: buffer too small")

	errInvalidRead = errors.New("readback: source returned invalid count from ReadBack")
)

// Reader implements buffering for a ReadBacker.
//
// It pulls fixed-size blocks from the tail of the wrapped source and
// serves them back to front. The unconsumed window is buf[start:end] and
// always holds bytes in their original order; reads take bytes from its
// end.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	buf        []byte
	rd         ReadBacker
	start, end int
	err        error
}

// NewReaderSize returns a new Reader whose buffer has the specified size.
// If rd is already a Reader with large enough size, it returns rd.
//
// Size 0 disables buffering, every ReadBack is then forwarded to rd as is.
// Negative size panics.
func NewReaderSize(rd ReadBacker, size int) *Reader {
	if size < 0 {
		panic("readback: negative buffer size")
	}
	b, ok := rd.(*Reader)
	if ok && len(b.buf) >= size {
		return b
	}
	return &Reader{
		buf: make([]byte, size),
		rd:  rd,
	}
}

// NewReader returns a new Reader whose buffer has the default size.
func NewReader(rd ReadBacker) *Reader {
	return NewReaderSize(rd, defaultBufSize)
}

// Size returns the size of the underlying buffer in bytes.
func (b *Reader) Size() int { return len(b.buf) }

// Buffered returns the number of bytes that can be read back from the
// current buffer.
func (b *Reader) Buffered() int { return b.end - b.start }

// Reset discards any buffered data, resets all state, and switches
// the buffered reader to read back from rd.
func (b *Reader) Reset(rd ReadBacker) {
	if b == rd {
		return
	}
	b.rd = rd
	b.start, b.end = 0, 0
	b.err = nil
}

// DiscardBuffer drops the buffered window. The bytes in it were already
// consumed from the source and are lost.
func (b *Reader) DiscardBuffer() {
	b.start, b.end = 0, 0
}

func (b *Reader) readErr() error {
	err := b.err
	b.err = nil
	return err
}

// fill replaces the empty window with a new block from the tail of the
// source.
func (b *Reader) fill() {
	n, err := b.rd.ReadBack(b.buf)
	if n < 0 || n > len(b.buf) {
		panic(errInvalidRead)
	}
	b.start, b.end = 0, n
	b.err = err
}

// extend reads older bytes into the space in front of the window, sliding
// the window to the end of the buffer first if needed. It returns the
// number of bytes added.
func (b *Reader) extend() int {
	if b.start == b.end {
		b.start, b.end = len(b.buf), len(b.buf)
	}
	if b.start == 0 {
		if b.end == len(b.buf) {
			return 0
		}
		w := b.end - b.start
		copy(b.buf[len(b.buf)-w:], b.buf[b.start:b.end])
		b.start, b.end = len(b.buf)-w, len(b.buf)
	}
	n, err := b.rd.ReadBack(b.buf[:b.start])
	if n < 0 || n > b.start {
		panic(errInvalidRead)
	}
	copy(b.buf[b.start-n:b.start], b.buf[:n])
	b.start -= n
	b.err = err
	return n
}

// ReadBack reads data from the tail into p[:n], in the original order.
//
// The call refills the buffer as many times as needed to fill p and stops
// early only when the source is exhausted or fails. If the window is empty
// and the remaining part of p is at least as large as the buffer, the
// source reads straight into p. An error from the source is returned once
// the bytes read together with it have been delivered.
func (b *Reader) ReadBack(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.readErr()
		}
		return b.rd.ReadBack(p)
	}

	// Bytes already delivered are kept in p[rem:], so the bytes of every
	// next (older) block go right in front of them.
	rem := len(p)
	for rem > 0 {
		if b.start == b.end {
			if b.err != nil {
				break
			}
			if rem >= len(b.buf) {
				nn, rerr := b.rd.ReadBack(p[:rem])
				if nn < 0 || nn > rem {
					panic(errInvalidRead)
				}
				copy(p[rem-nn:rem], p[:nn])
				rem -= nn
				b.err = rerr
				if nn == 0 && rerr == nil {
					break
				}
				continue
			}
			b.fill()
			if b.start == b.end {
				break
			}
		}

		k := b.end - b.start
		if k > rem {
			k = rem
		}
		copy(p[rem-k:rem], b.buf[b.end-k:b.end])
		b.end -= k
		rem -= k
	}

	n = len(p) - rem
	if rem > 0 {
		copy(p, p[rem:])
	}
	if b.start == b.end && b.err != nil {
		err = b.readErr()
	}
	return n, err
}

// Buffer returns the currently buffered window without consuming it and
// without refilling. The slice is only valid until the next call to
// a Reader method.
func (b *Reader) Buffer() []byte {
	return b.buf[b.start:b.end]
}

// FillBack returns the buffered window, refilling it first if it is empty.
// An empty window with a nil error means the source is exhausted.
func (b *Reader) FillBack() ([]byte, error) {
	if b.start == b.end && len(b.buf) != 0 {
		if b.err != nil {
			return nil, b.readErr()
		}
		b.fill()
	}
	if b.start == b.end && b.err != nil {
		return nil, b.readErr()
	}
	return b.buf[b.start:b.end], nil
}

// ConsumeBack discards the last n bytes of the window, the ones that
// ReadBack would return next. Values larger than Buffered are clamped.
// Negative n panics.
func (b *Reader) ConsumeBack(n int) {
	if n < 0 {
		panic("readback: negative count")
	}
	if w := b.end - b.start; n > w {
		n = w
	}
	b.end -= n
}

// ReadBackByte reads back a single byte. It returns io.EOF once the head
// of the source is reached.
func (b *Reader) ReadBackByte() (byte, error) {
	if len(b.buf) == 0 {
		if b.err != nil {
			return 0, b.readErr()
		}
		var c [1]byte
		n, err := b.rd.ReadBack(c[:])
		b.err = err
		if n == 1 {
			return c[0], nil
		}
		if b.err != nil {
			return 0, b.readErr()
		}
		return 0, io.EOF
	}

	if b.start == b.end {
		if b.err != nil {
			return 0, b.readErr()
		}
		b.fill()
		if b.start == b.end {
			if b.err != nil {
				return 0, b.readErr()
			}
			return 0, io.EOF
		}
	}
	b.end--
	return b.buf[b.end], nil
}

// ReadBackRune reads back a single UTF-8 encoded character and returns
// the rune and its size in bytes. Invalid encodings are returned as
// utf8.RuneError of size 1, the same way utf8.DecodeLastRune does.
func (b *Reader) ReadBackRune() (r rune, size int, err error) {
	if len(b.buf) < utf8.UTFMax {
		return 0, 0, ErrBufferSize
	}
	for b.end-b.start < utf8.UTFMax && b.err == nil {
		if b.extend() == 0 {
			break
		}
	}
	if b.start == b.end {
		if b.err != nil {
			return 0, 0, b.readErr()
		}
		return 0, 0, io.EOF
	}
	r, size = utf8.DecodeLastRune(b.buf[b.start:b.end])
	b.end -= size
	return r, size, nil
}

// ReadBackSlice reads back until the nearest occurrence of delim,
// returning a slice that starts with the delimiter and ends at the
// previous tail. The bytes in the slice stop being valid at the next read.
//
// If the head of the source is reached before delim is found, it returns
// the remaining data and io.EOF. If the buffer fills up without a delim,
// it returns the full buffer and ErrBufferFull. ReadBackSlice returns
// err != nil if and only if line does not start with delim.
func (b *Reader) ReadBackSlice(delim byte) (line []byte, err error) {
	if len(b.buf) == 0 {
		return nil, ErrBufferSize
	}

	// Number of bytes at the end of the window already searched.
	searched := 0
	for {
		if i := bytes.LastIndexByte(b.buf[b.start:b.end-searched], delim); i >= 0 {
			i += b.start
			line = b.buf[i:b.end]
			b.end = i
			return line, nil
		}

		if b.err != nil {
			line = b.buf[b.start:b.end]
			b.end = b.start
			return line, b.readErr()
		}

		if b.end-b.start == len(b.buf) {
			line = b.buf[b.start:b.end]
			b.end = b.start
			return line, ErrBufferFull
		}

		searched = b.end - b.start
		if b.extend() == 0 && b.err == nil {
			line = b.buf[b.start:b.end]
			b.end = b.start
			return line, io.EOF
		}
	}
}

// ReadBackBytes reads back until the nearest occurrence of delim,
// returning a copy of the data starting with the delimiter. If the head is
// reached first, it returns the data read and io.EOF. Unlike
// ReadBackSlice, the result is not limited by the buffer size.
func (b *Reader) ReadBackBytes(delim byte) ([]byte, error) {
	var (
		full [][]byte
		frag []byte
		err  error
		n    int
	)
	for {
		var e error
		frag, e = b.ReadBackSlice(delim)
		if e == nil {
			break
		}
		if e != ErrBufferFull {
			err = e
			break
		}
		full = append(full, append([]byte(nil), frag...))
		n += len(frag)
	}
	n += len(frag)

	// Fragments were collected newest first.
	buf := make([]byte, n)
	i := copy(buf, frag)
	for j := len(full) - 1; j >= 0; j-- {
		i += copy(buf[i:], full[j])
	}
	return buf, err
}

// ReadBackString is like ReadBackBytes but returns a string.
func (b *Reader) ReadBackString(delim byte) (string, error) {
	line, err := b.ReadBackBytes(delim)
	return string(line), err
}

// SkipBackUntil discards bytes up to and including the nearest occurrence
// of delim and returns how many bytes were discarded. Reaching the head is
// reported as io.EOF.
func (b *Reader) SkipBackUntil(delim byte) (int, error) {
	n := 0
	for {
		frag, err := b.ReadBackSlice(delim)
		n += len(frag)
		if err != ErrBufferFull {
			return n, err
		}
	}
}
