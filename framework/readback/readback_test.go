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
	"testing"
)

func TestReadBackFull(t *testing.T) {
	src := &shortSource{r: NewBytesReader(seq(10)), max: 3}

	p := make([]byte, 8)
	n, err := ReadBackFull(src, p)
	if err != nil || n != 8 {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if !bytes.Equal(p, seq(10)[2:]) {
		t.Fatalf("got %v", p)
	}

	n, err = ReadBackFull(src, p)
	if err != io.ErrUnexpectedEOF || n != 2 {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if !bytes.Equal(p[:n], []byte{1, 2}) {
		t.Fatalf("short read not compacted: %v", p[:n])
	}

	n, err = ReadBackFull(src, p)
	if err != io.EOF || n != 0 {
		t.Fatalf("got (%d, %v)", n, err)
	}

	n, err = ReadBackFull(src, nil)
	if err != nil || n != 0 {
		t.Fatalf("got (%d, %v) for an empty buffer", n, err)
	}
}

func TestReadBackFull_Error(t *testing.T) {
	src := &failingSource{r: NewBytesReader(seq(10)), left: 4, err: errBoom}

	p := make([]byte, 8)
	n, err := ReadBackFull(src, p)
	if !errors.Is(err, errBoom) || n != 4 {
		t.Fatalf("got (%d, %v)", n, err)
	}
	if !bytes.Equal(p[:n], []byte{7, 8, 9, 10}) {
		t.Fatalf("got %v", p[:n])
	}
}

func TestReadBackAll(t *testing.T) {
	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	for _, max := range []int{1, 7, 512, 10000} {
		all, err := ReadBackAll(&shortSource{r: NewBytesReader(data), max: max})
		if err != nil {
			t.Fatalf("max=%d: unexpected error: %v", max, err)
		}
		if !bytes.Equal(all, data) {
			t.Errorf("max=%d: content mismatch", max)
		}
	}

	all, err := ReadBackAll(Empty())
	if err != nil || len(all) != 0 {
		t.Fatalf("got (%v, %v)", all, err)
	}
}

func TestReadBackAll_Error(t *testing.T) {
	all, err := ReadBackAll(&failingSource{r: NewBytesReader(seq(10)), left: 3, err: errBoom})
	if !errors.Is(err, errBoom) {
		t.Fatal("Wrong error:", err)
	}
	if !bytes.Equal(all, []byte{8, 9, 10}) {
		t.Fatalf("got %v", all)
	}
}

func TestLimitReadBacker(t *testing.T) {
	src := NewBytesReader(seq(10))
	l := LimitReadBacker(src, 4)

	all, err := ReadBackAll(l)
	if err != nil || !bytes.Equal(all, []byte{7, 8, 9, 10}) {
		t.Fatalf("got (%v, %v)", all, err)
	}
	if l.N != 0 {
		t.Errorf("N = %d after reaching the limit", l.N)
	}
	if src.Len() != 6 {
		t.Errorf("limited reader consumed %d bytes", 10-src.Len())
	}
}

func TestMultiReadBacker(t *testing.T) {
	r := MultiReadBacker(
		NewBytesReader([]byte("abc")),
		Empty(),
		NewBytesReader([]byte("def")),
	)

	p := make([]byte, 4)
	n, err := r.ReadBack(p)
	if err != nil || string(p[:n]) != "def" {
		t.Fatalf("a single call must not span readers: got (%q, %v)", p[:n], err)
	}

	all, err := ReadBackAll(r)
	if err != nil || string(all) != "abc" {
		t.Fatalf("got (%q, %v)", all, err)
	}

	n, err = r.ReadBack(p)
	if n != 0 || err != nil {
		t.Fatalf("want (0, nil), got (%d, %v)", n, err)
	}
}

func TestMultiReadBacker_Buffered(t *testing.T) {
	r := NewReaderSize(MultiReadBacker(
		NewBytesReader([]byte("one\ntw")),
		NewBytesReader([]byte("o\nthree\n")),
	), 4)

	all, err := ReadBackAll(r)
	if err != nil || string(all) != "one\ntwo\nthree\n" {
		t.Fatalf("got (%q, %v)", all, err)
	}
}
