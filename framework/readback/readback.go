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

// Package readback implements reading of byte streams from their tail
// toward their head.
//
// A ReadBack call returns bytes in their original order: after a call
// returning n, p[n-1] is the last byte that was remaining in the source and
// p[0] is the innermost byte of the consumed tail window. Nothing is ever
// byte-reversed.
//
// End of source is reported as n == 0 with a nil error for non-empty p.
// Helpers that return single values (ReadBackByte, ReadBackSlice,
// ReadBackFull, LineScanner) report it as io.EOF instead.
package readback

import (
	"io"
)

// ReadBacker is the interface that wraps the basic ReadBack method.
//
// ReadBack reads up to len(p) bytes from the tail of the remaining data
// into p[:n] and shrinks the remaining data by n. It returns 0 and a nil
// error once the source is exhausted, every time it is called afterwards.
// A short read is legal and n is always accurate, even when err != nil.
type ReadBacker interface {
	ReadBack(p []byte) (n int, err error)
}

// BufReadBacker is a ReadBacker that exposes its internal buffer.
type BufReadBacker interface {
	ReadBacker

	// Buffer returns the buffered but not yet consumed tail window
	// without refilling it. The returned slice is valid until the next
	// call to any method.
	Buffer() []byte

	// FillBack returns the buffered window, refilling it from the
	// underlying source first if it is empty.
	FillBack() ([]byte, error)

	// ConsumeBack discards the last n bytes of the window, that is, the
	// bytes nearest to the current tail. n larger than the window is
	// clamped to the window length.
	ConsumeBack(n int)
}

type ReadBackCloser interface {
	ReadBacker
	io.Closer
}

// ReadBackFull reads exactly len(p) bytes from the tail of r into p.
//
// On success the bytes are in p in their original order. If fewer bytes
// were available, they are moved to p[:n] and the error is io.EOF if no
// bytes were read at all or io.ErrUnexpectedEOF otherwise.
func ReadBackFull(r ReadBacker, p []byte) (n int, err error) {
	rem := len(p)
	for rem > 0 {
		var nn int
		nn, err = r.ReadBack(p[:rem])
		if nn > 0 {
			// Older bytes go in front of the ones already read.
			copy(p[rem-nn:rem], p[:nn])
			rem -= nn
			n += nn
		}
		if err != nil || nn == 0 {
			break
		}
	}
	if rem > 0 {
		copy(p, p[rem:])
		if err == nil {
			if n == 0 {
				err = io.EOF
			} else {
				err = io.ErrUnexpectedEOF
			}
		}
	}
	return n, err
}

// ReadBackAll reads r back to its head and returns everything in the
// original order. Reaching the head is not an error.
func ReadBackAll(r ReadBacker) ([]byte, error) {
	b := make([]byte, 512)
	// Data read so far lives in b[off:].
	off := len(b)
	for {
		if off == 0 {
			nb := make([]byte, 2*len(b))
			off = copy(nb[len(b):], b)
			b = nb
		}
		n, err := r.ReadBack(b[:off])
		if n > 0 {
			copy(b[off-n:off], b[:n])
			off -= n
		}
		if err != nil || n == 0 {
			return b[off:], err
		}
	}
}

// LimitReadBacker returns a ReadBacker that reads back from r
// but stops with n == 0 after limit bytes.
func LimitReadBacker(r ReadBacker, limit int64) *LimitedReadBacker {
	return &LimitedReadBacker{R: r, N: limit}
}

// LimitedReadBacker reads back from R but limits the amount of
// data returned to just N bytes. Each call to ReadBack
// updates N to reflect the new amount remaining.
type LimitedReadBacker struct {
	R ReadBacker
	N int64
}

func (l *LimitedReadBacker) ReadBack(p []byte) (n int, err error) {
	// Don't call into R at all at the limit, it may block.
	if l.N <= 0 || len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.R.ReadBack(p)
	l.N -= int64(n)
	return n, err
}

type multiReadBacker struct {
	readers []ReadBacker
}

func (mr *multiReadBacker) ReadBack(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(mr.readers) > 0 {
		last := len(mr.readers) - 1
		n, err = mr.readers[last].ReadBack(p)
		if n > 0 || err != nil {
			return n, err
		}
		mr.readers[last] = nil
		mr.readers = mr.readers[:last]
	}
	return 0, nil
}

// MultiReadBacker returns a ReadBacker that is the logical concatenation of
// the provided readers, in order. Reading back drains the last reader
// first, then the one before it and so on. A single ReadBack call never
// spans two readers.
func MultiReadBacker(readers ...ReadBacker) ReadBacker {
	r := make([]ReadBacker, len(readers))
	copy(r, readers)
	return &multiReadBacker{r}
}

type nopCloser struct {
	ReadBacker
}

func (nopCloser) Close() error { return nil }

// NopCloser returns a ReadBackCloser with a no-op Close method wrapping r.
func NopCloser(r ReadBacker) ReadBackCloser {
	return nopCloser{r}
}
