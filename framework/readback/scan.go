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
	"io"
)

// LineScanner reads lines from the tail of a source toward its head, the
// way tac(1) prints them.
//
// Separators are stripped, as is a '\r' in front of a '\n' separator.
// A separator at the very end of the input terminates the last line and
// does not produce an empty one.
type LineScanner struct {
	r       *Reader
	sep     byte
	line    []byte
	err     error
	started bool
	done    bool
}

// NewLineScanner returns a LineScanner reading back from rd. A *Reader with
// a non-zero buffer is used as is, any other source gets a Reader of the
// default size.
func NewLineScanner(rd ReadBacker) *LineScanner {
	r, ok := rd.(*Reader)
	if !ok || r.Size() == 0 {
		r = NewReader(rd)
	}
	return &LineScanner{
		r:   r,
		sep: '\n',
	}
}

// SetSeparator changes the line separator. It must be called before the
// first Scan.
func (s *LineScanner) SetSeparator(sep byte) {
	if s.started {
		panic("readback: SetSeparator called after Scan")
	}
	s.sep = sep
}

// Scan advances to the previous line. It returns false at the head of the
// input or on error, see Err.
func (s *LineScanner) Scan() bool {
	if s.done {
		return false
	}

	if !s.started {
		s.started = true
		w, err := s.r.FillBack()
		if err != nil {
			return s.fail(err)
		}
		if len(w) == 0 {
			s.done = true
			return false
		}
		if w[len(w)-1] == s.sep {
			s.r.ConsumeBack(1)
		}
	}

	line, err := s.r.ReadBackBytes(s.sep)
	switch err {
	case nil:
		line = line[1:]
	case io.EOF:
		// Head reached, this is the first line of the input.
		s.done = true
	default:
		return s.fail(err)
	}

	if s.sep == '\n' && len(line) != 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	s.line = line
	return true
}

func (s *LineScanner) fail(err error) bool {
	s.err = err
	s.line = nil
	s.done = true
	return false
}

// Bytes returns the line found by the last Scan. The slice is owned by the
// caller.
func (s *LineScanner) Bytes() []byte { return s.line }

// Text returns the line found by the last Scan as a string.
func (s *LineScanner) Text() string { return string(s.line) }

// Err returns the first error encountered by the LineScanner. Reaching the
// head of the input is not an error.
func (s *LineScanner) Err() error { return s.err }
