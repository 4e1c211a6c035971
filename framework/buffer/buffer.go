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

// The buffer package provides temporary storage (buffering) for blobs that
// need to be read back from their tail but arrive as a forward-only stream,
// such as standard input or a network body.
package buffer

import (
	"github.com/foxcpp/readback/framework/readback"
)

// Buffer interface represents abstract temporary storage for blobs.
//
// The Buffer storage is assumed to be immutable. If any modifications
// are made - new storage location should be used for them.
// This is important to ensure goroutine-safety.
//
// It is always the creator's responsibility to call Remove after the Buffer
// is no longer used.
type Buffer interface {
	// OpenBack creates a new independent ReadBacker positioned at the end of
	// the stored blob.
	OpenBack() (readback.ReadBackCloser, error)

	// Len reports the length of the stored blob.
	//
	// Notably, it indicates the amount of bytes that can be read back from
	// a newly created ReadBacker before it reports the head.
	Len() int

	// Remove discards buffered body and releases all associated resources.
	//
	// Readers previously created using OpenBack can still be used,
	// but new ones can't be created.
	Remove() error
}
