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
	"reflect"
	"strings"
	"testing"
)

func scanAll(t *testing.T, s *LineScanner) []string {
	t.Helper()
	lines := []string{}
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		t.Fatal("Unexpected error:", err)
	}
	return lines
}

func TestLineScanner(t *testing.T) {
	cases := []struct {
		in    string
		lines []string
	}{
		{"", []string{}},
		{"\n", []string{""}},
		{"a", []string{"a"}},
		{"a\nb\n", []string{"b", "a"}},
		{"a\nb", []string{"b", "a"}},
		{"\na", []string{"a", ""}},
		{"a\n\nb\n", []string{"b", "", "a"}},
		{"a\r\nb\r\n", []string{"b", "a"}},
		{"first\nsecond\nthird\n", []string{"third", "second", "first"}},
	}
	for _, c := range cases {
		lines := scanAll(t, NewLineScanner(NewBytesReader([]byte(c.in))))
		if !reflect.DeepEqual(lines, c.lines) {
			t.Errorf("%q: got %q, want %q", c.in, lines, c.lines)
		}
	}
}

func TestLineScanner_LongLines(t *testing.T) {
	a := strings.Repeat("a", 20000)
	b := strings.Repeat("b", defaultBufSize)
	c := strings.Repeat("c", defaultBufSize+1)
	in := a + "\n" + b + "\n" + c + "\n"

	lines := scanAll(t, NewLineScanner(NewBytesReader([]byte(in))))
	if !reflect.DeepEqual(lines, []string{c, b, a}) {
		t.Errorf("got %d lines of lengths %d", len(lines), lineLens(lines))
	}
}

func TestLineScanner_SmallReader(t *testing.T) {
	r := NewReaderSize(NewBytesReader([]byte("first line\nsecond\n\nlast one")), 4)
	lines := scanAll(t, NewLineScanner(r))
	if !reflect.DeepEqual(lines, []string{"last one", "", "second", "first line"}) {
		t.Errorf("got %q", lines)
	}
}

func lineLens(lines []string) []int {
	l := make([]int, len(lines))
	for i, line := range lines {
		l[i] = len(line)
	}
	return l
}

func TestLineScanner_Separator(t *testing.T) {
	s := NewLineScanner(NewBytesReader([]byte("a,b\r,c")))
	s.SetSeparator(',')

	lines := scanAll(t, s)
	if !reflect.DeepEqual(lines, []string{"c", "b\r", "a"}) {
		t.Errorf("got %q", lines)
	}
}

func TestLineScanner_Error(t *testing.T) {
	s := NewLineScanner(&failingSource{r: NewBytesReader([]byte("a\nb\nc\n")), left: 2, err: errBoom})

	// "c\n" is served together with the error, the error shows up when
	// the scanner needs older data.
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if !errors.Is(s.Err(), errBoom) {
		t.Fatal("Wrong error:", s.Err())
	}
	if len(lines) != 0 {
		t.Errorf("got lines %q", lines)
	}
	if s.Scan() {
		t.Error("Scan after an error returned true")
	}
}
