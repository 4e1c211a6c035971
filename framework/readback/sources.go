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
	"errors"
	"io"
)

// BytesReader reads back from an in-memory byte slice.
//
// It also implements BufReadBacker, its window being the whole remaining
// slice.
type BytesReader struct {
	b []byte
}

func NewBytesReader(b []byte) *BytesReader {
	return &BytesReader{b: b}
}

func (r *BytesReader) ReadBack(p []byte) (int, error) {
	n := len(p)
	if n > len(r.b) {
		n = len(r.b)
	}
	copy(p, r.b[len(r.b)-n:])
	r.b = r.b[:len(r.b)-n]
	return n, nil
}

// Len returns the number of bytes not yet read back.
func (r *BytesReader) Len() int { return len(r.b) }

// Bytes returns the unread portion of the slice. It aliases the slice
// passed to NewBytesReader.
func (r *BytesReader) Bytes() []byte { return r.b }

func (r *BytesReader) Buffer() []byte { return r.b }

func (r *BytesReader) FillBack() ([]byte, error) { return r.b, nil }

func (r *BytesReader) ConsumeBack(n int) {
	if n < 0 {
		panic("readback: negative count")
	}
	if n > len(r.b) {
		n = len(r.b)
	}
	r.b = r.b[:len(r.b)-n]
}

// Reset makes r read back from b.
func (r *BytesReader) Reset(b []byte) { r.b = b }

type emptyReader struct{}

func (emptyReader) ReadBack([]byte) (int, error) { return 0, nil }
func (emptyReader) Buffer() []byte               { return nil }
func (emptyReader) FillBack() ([]byte, error)    { return nil, nil }
func (emptyReader) ConsumeBack(int)              {}

// Empty returns a source that is always exhausted.
func Empty() BufReadBacker {
	return emptyReader{}
}

// SectionReader reads back a section of an io.ReaderAt, starting at the
// end of the section.
//
// It serves *os.File, *bytes.Reader, S3 objects and anything else that
// supports positioned reads. A ReadAt call returning fewer bytes than
// requested consumes nothing, since such bytes are not the tail.
type SectionReader struct {
	r    io.ReaderAt
	base int64
	tail int64
}

// NewSectionReader returns a SectionReader that reads back from r the n
// bytes starting at offset off.
func NewSectionReader(r io.ReaderAt, off, n int64) *SectionReader {
	var tail int64
	const maxint64 = 1<<63 - 1
	if off <= maxint64-n {
		tail = n + off
	} else {
		tail = maxint64
	}
	return &SectionReader{r: r, base: off, tail: tail}
}

func (s *SectionReader) ReadBack(p []byte) (int, error) {
	rem := s.tail - s.base
	if rem <= 0 || len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > rem {
		p = p[:rem]
	}
	off := s.tail - int64(len(p))
	n, err := s.r.ReadAt(p, off)
	if n < len(p) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, err
	}
	s.tail = off
	return n, nil
}

// Len returns the number of bytes not yet read back.
func (s *SectionReader) Len() int64 { return s.tail - s.base }

// Offset returns the absolute offset of the current tail in the underlying
// io.ReaderAt.
func (s *SectionReader) Offset() int64 { return s.tail }

// SeekReader reads back from an io.ReadSeeker, using its current position
// as the tail.
//
// Each call seeks back, reads the requested window in full and seeks back
// again, so the position left behind is the new tail. If the read fails,
// the position is restored and nothing is consumed.
type SeekReader struct {
	rs io.ReadSeeker
}

func NewSeekReader(rs io.ReadSeeker) *SeekReader {
	return &SeekReader{rs: rs}
}

func (s *SeekReader) ReadBack(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	pos, err := s.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	k := int64(len(p))
	if k > pos {
		k = pos
	}
	if k == 0 {
		return 0, nil
	}

	start := pos - k
	if _, err := s.rs.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(s.rs, p[:k]); err != nil {
		if _, serr := s.rs.Seek(pos, io.SeekStart); serr != nil {
			return 0, serr
		}
		return 0, err
	}
	if _, err := s.rs.Seek(start, io.SeekStart); err != nil {
		return 0, err
	}
	return int(k), nil
}
