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

package testutils

import (
	"github.com/foxcpp/readback/framework/readback"
)

// FailingReadBacker passes reads through to R until it reports the end of
// data, then returns Err.
type FailingReadBacker struct {
	R   readback.ReadBacker
	Err error
}

func (f *FailingReadBacker) ReadBack(p []byte) (int, error) {
	n, err := f.R.ReadBack(p)
	if err == nil && n == 0 && len(p) != 0 {
		return 0, f.Err
	}
	return n, err
}

// ShortReadBacker returns at most Max bytes per call, like a source that
// serves data in small blocks.
type ShortReadBacker struct {
	R   readback.ReadBacker
	Max int
}

func (s *ShortReadBacker) ReadBack(p []byte) (int, error) {
	if len(p) > s.Max {
		p = p[:s.Max]
	}
	return s.R.ReadBack(p)
}

// CountingReadBacker records the calls made to R.
type CountingReadBacker struct {
	R readback.ReadBacker

	Calls int
	Bytes int
	// Sizes holds len(p) of every call.
	Sizes []int
}

func (c *CountingReadBacker) ReadBack(p []byte) (int, error) {
	c.Calls++
	c.Sizes = append(c.Sizes, len(p))
	n, err := c.R.ReadBack(p)
	c.Bytes += n
	return n, err
}
