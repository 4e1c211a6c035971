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

// Package source opens named inputs for reading back from their end.
//
// A name is one of:
//
//	-            standard input, spooled to memory or a file first
//	scheme://key an object in the blob store registered for scheme
//	anything     a local file
//
// Local files that are not regular (pipes, character devices) are spooled the
// same way standard input is.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/foxcpp/readback/framework/buffer"
	"github.com/foxcpp/readback/framework/exterrors"
	"github.com/foxcpp/readback/framework/hooks"
	"github.com/foxcpp/readback/framework/log"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/storage/blob"
	"go.uber.org/zap"
)

const StdinName = "-"

// DefaultMemorySpoolLimit is the largest non-seekable input kept in memory
// when Options.MemorySpoolLimit is zero.
const DefaultMemorySpoolLimit = 1024 * 1024

type Options struct {
	Log log.Logger

	// Stdin is used for the "-" source. os.Stdin if nil.
	Stdin io.Reader

	// SpoolDir is where non-seekable inputs larger than MemorySpoolLimit are
	// copied. os.TempDir() if empty.
	SpoolDir         string
	MemorySpoolLimit int64

	// Stores maps URL schemes (s3, fs) to blob stores.
	Stores map[string]blob.Store
}

// Source is an opened input. It must be closed to release spool files and
// descriptors.
type Source struct {
	name    string
	kind    string
	size    int64
	rb      readback.ReadBacker
	closers []func() error
}

var _ readback.ReadBackCloser = &Source{}

func (s *Source) Name() string { return s.name }

// Kind is the source type: file, stdin, pipe or a blob store scheme.
func (s *Source) Kind() string { return s.kind }

// Size is the total length of the input in bytes.
func (s *Source) Size() int64 { return s.size }

func (s *Source) ReadBack(p []byte) (int, error) {
	return s.rb.ReadBack(p)
}

// Close releases all resources held by the source. Calling Close again is
// a no-op.
func (s *Source) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// Open opens the named input. Errors carry a "source" field with the name.
func Open(ctx context.Context, name string, opts Options) (*Source, error) {
	src, err := open(ctx, name, opts)
	if err != nil {
		return nil, exterrors.WithFields(err, map[string]interface{}{
			"source": name,
		})
	}

	src.rb = Instrument(src.kind, src.rb, opts.Log.Zap().With(zap.String("source", name)))
	opts.Log.DebugMsg("opened", "source", name, "kind", src.kind, "size", src.size)
	return src, nil
}

func splitScheme(name string) (scheme, key string, ok bool) {
	scheme, key, ok = strings.Cut(name, "://")
	if !ok || scheme == "" {
		return "", "", false
	}
	for _, ch := range scheme {
		if (ch < 'a' || ch > 'z') && (ch < '0' || ch > '9') {
			return "", "", false
		}
	}
	return scheme, key, true
}

func open(ctx context.Context, name string, opts Options) (*Source, error) {
	if name == StdinName {
		stdin := opts.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		return spool(name, "stdin", stdin, opts)
	}

	if scheme, key, ok := splitScheme(name); ok {
		store, ok := opts.Stores[scheme]
		if !ok {
			return nil, fmt.Errorf("source: no %s store configured", scheme)
		}
		b, err := store.Open(ctx, key)
		if err != nil {
			return nil, err
		}
		return &Source{
			name:    name,
			kind:    scheme,
			size:    b.Size(),
			rb:      b,
			closers: []func() error{b.Close},
		}, nil
	}

	return openFile(name, opts)
}

func openFile(name string, opts Options) (*Source, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	if !info.Mode().IsRegular() {
		src, err := spool(name, "pipe", f, opts)
		f.Close()
		return src, err
	}

	if err := adviseBackward(f); err != nil {
		opts.Log.DebugMsg("fadvise failed", "source", name, "reason", err.Error())
	}

	return &Source{
		name:    name,
		kind:    "file",
		size:    info.Size(),
		rb:      readback.NewSectionReader(f, 0, info.Size()),
		closers: []func() error{f.Close},
	}, nil
}

// Spool files of open sources, removed by a single shutdown hook if the
// process stops before the sources are closed.
var (
	spoolsLck  sync.Mutex
	spools     = make(map[int]spoolFile)
	nextSpool  int
	spoolsHook sync.Once
)

type spoolFile struct {
	name string
	buf  buffer.Buffer
	log  log.Logger
}

func (sf spoolFile) remove() error {
	err := sf.buf.Remove()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		sf.log.Error("failed to remove spool file", err, "source", sf.name)
		return err
	}
	return nil
}

func removeSpools() {
	spoolsLck.Lock()
	pending := spools
	spools = make(map[int]spoolFile)
	spoolsLck.Unlock()

	for _, sf := range pending {
		sf.remove()
	}
}

// trackSpool registers sf for removal on shutdown. The returned function
// removes it right away and unregisters it, it does nothing if the shutdown
// hook got to the file first.
func trackSpool(sf spoolFile) func() error {
	spoolsHook.Do(func() {
		hooks.AddHook(hooks.EventShutdown, removeSpools)
	})

	spoolsLck.Lock()
	id := nextSpool
	nextSpool++
	spools[id] = sf
	spoolsLck.Unlock()

	return func() error {
		spoolsLck.Lock()
		_, ok := spools[id]
		delete(spools, id)
		spoolsLck.Unlock()
		if !ok {
			return nil
		}
		return sf.remove()
	}
}

func pendingSpools() int {
	spoolsLck.Lock()
	defer spoolsLck.Unlock()
	return len(spools)
}

func spool(name, kind string, r io.Reader, opts Options) (*Source, error) {
	limit := opts.MemorySpoolLimit
	if limit <= 0 {
		limit = DefaultMemorySpoolLimit
	}

	buf, err := buffer.BufferInMemory(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}

	release := buf.Remove
	if int64(buf.Len()) <= limit {
		spooledBytes.WithLabelValues("memory").Add(float64(buf.Len()))
	} else {
		dir := opts.SpoolDir
		if dir == "" {
			dir = os.TempDir()
		}
		head := buf.(buffer.MemoryBuffer).Slice
		buf, err = buffer.BufferInFile(io.MultiReader(bytes.NewReader(head), r), dir)
		if err != nil {
			return nil, err
		}
		spooledBytes.WithLabelValues("file").Add(float64(buf.Len()))
		opts.Log.DebugMsg("spooled to file", "source", name, "bytes", buf.Len())

		release = trackSpool(spoolFile{name: name, buf: buf, log: opts.Log})
	}

	rb, err := buf.OpenBack()
	if err != nil {
		release()
		return nil, err
	}
	return &Source{
		name:    name,
		kind:    kind,
		size:    int64(buf.Len()),
		rb:      rb,
		closers: []func() error{release, rb.Close},
	}, nil
}
