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

package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foxcpp/readback/framework/exterrors"
	"github.com/foxcpp/readback/framework/hooks"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/storage/blob"
	blobfs "github.com/foxcpp/readback/internal/storage/blob/fs"
	"github.com/foxcpp/readback/internal/testutils"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const body = "alpha\nbeta\ngamma\n"

func readAll(t *testing.T, src *Source) string {
	t.Helper()
	all, err := readback.ReadBackAll(src)
	if err != nil {
		t.Fatal(err)
	}
	return string(all)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	bytesBefore := testutil.ToFloat64(bytesTotal.WithLabelValues("file"))
	readsBefore := testutil.ToFloat64(readsTotal.WithLabelValues("file"))

	src, err := Open(context.Background(), path, Options{Log: testutils.Logger(t, "source")})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Kind() != "file" || src.Size() != int64(len(body)) || src.Name() != path {
		t.Errorf("wrong source info: kind=%s size=%d name=%s", src.Kind(), src.Size(), src.Name())
	}
	if got := readAll(t, src); got != body {
		t.Errorf("got %q", got)
	}

	if d := testutil.ToFloat64(bytesTotal.WithLabelValues("file")) - bytesBefore; d != float64(len(body)) {
		t.Errorf("bytes metric increased by %v", d)
	}
	if d := testutil.ToFloat64(readsTotal.WithLabelValues("file")) - readsBefore; d < 1 {
		t.Errorf("reads metric increased by %v", d)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "missing.log")
	_, err := Open(context.Background(), name, Options{Log: testutils.Logger(t, "source")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	if exterrors.Fields(err)["source"] != name {
		t.Errorf("source field not attached: %v", exterrors.Fields(err))
	}
}

func TestOpen_StdinMemory(t *testing.T) {
	dir := t.TempDir()
	src, err := Open(context.Background(), StdinName, Options{
		Log:              testutils.Logger(t, "source"),
		Stdin:            strings.NewReader(body),
		SpoolDir:         dir,
		MemorySpoolLimit: int64(len(body)),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Kind() != "stdin" {
		t.Errorf("Kind() = %s", src.Kind())
	}
	if got := readAll(t, src); got != body {
		t.Errorf("got %q", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("unexpected spool files: %v", entries)
	}
}

func TestOpen_StdinFile(t *testing.T) {
	dir := t.TempDir()
	src, err := Open(context.Background(), StdinName, Options{
		Log:              testutils.Logger(t, "source"),
		Stdin:            strings.NewReader(body),
		SpoolDir:         dir,
		MemorySpoolLimit: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one spool file, got %v", entries)
	}
	if pendingSpools() != 1 {
		t.Errorf("pendingSpools() = %d", pendingSpools())
	}

	if src.Size() != int64(len(body)) {
		t.Errorf("Size() = %d", src.Size())
	}
	if got := readAll(t, src); got != body {
		t.Errorf("got %q", got)
	}

	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal("second Close:", err)
	}
	entries, err = os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("spool file not removed: %v", entries)
	}
	if pendingSpools() != 0 {
		t.Errorf("closed spool still tracked: %d", pendingSpools())
	}
}

func TestOpen_SpoolRemovedOnShutdown(t *testing.T) {
	dir := t.TempDir()
	openStdin := func() *Source {
		src, err := Open(context.Background(), StdinName, Options{
			Log:              testutils.Logger(t, "source"),
			Stdin:            strings.NewReader(body),
			SpoolDir:         dir,
			MemorySpoolLimit: 4,
		})
		if err != nil {
			t.Fatal(err)
		}
		return src
	}

	closed := openStdin()
	if err := closed.Close(); err != nil {
		t.Fatal(err)
	}
	running := openStdin()
	if pendingSpools() != 1 {
		t.Fatalf("pendingSpools() = %d", pendingSpools())
	}

	hooks.RunHooks(hooks.EventShutdown)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("spool file not removed by shutdown: %v", entries)
	}
	if pendingSpools() != 0 {
		t.Errorf("pendingSpools() = %d", pendingSpools())
	}

	// Already open descriptors stay readable.
	if got := readAll(t, running); got != body {
		t.Errorf("got %q", got)
	}
	if err := running.Close(); err != nil {
		t.Errorf("Close after shutdown: %v", err)
	}
}

func TestOpen_Store(t *testing.T) {
	store := blobfs.New(t.TempDir())
	if err := store.Put(context.Background(), "app/a.log", strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		Log:    testutils.Logger(t, "source"),
		Stores: map[string]blob.Store{"fs": store},
	}

	src, err := Open(context.Background(), "fs://app/a.log", opts)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	if src.Kind() != "fs" {
		t.Errorf("Kind() = %s", src.Kind())
	}
	if got := readAll(t, src); got != body {
		t.Errorf("got %q", got)
	}

	_, err = Open(context.Background(), "fs://app/b.log", opts)
	if !errors.Is(err, blob.ErrNoSuchBlob) {
		t.Errorf("expected ErrNoSuchBlob, got %v", err)
	}

	_, err = Open(context.Background(), "s3://app/a.log", opts)
	if err == nil {
		t.Error("expected error for unconfigured store")
	}
	if exterrors.Fields(err)["source"] != "s3://app/a.log" {
		t.Errorf("source field not attached: %v", exterrors.Fields(err))
	}
}

func TestSplitScheme(t *testing.T) {
	for _, case_ := range []struct {
		in     string
		scheme string
		key    string
		ok     bool
	}{
		{"s3://a/b", "s3", "a/b", true},
		{"fs://x", "fs", "x", true},
		{"/var/log/syslog", "", "", false},
		{"://x", "", "", false},
		{"C:\\x://y", "", "", false},
		{"dir/s3://x", "", "", false},
	} {
		scheme, key, ok := splitScheme(case_.in)
		if scheme != case_.scheme || key != case_.key || ok != case_.ok {
			t.Errorf("splitScheme(%q) = %q, %q, %v", case_.in, scheme, key, ok)
		}
	}
}

func TestInstrument_Error(t *testing.T) {
	errBoom := errors.New("boom")
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("test"))

	rb := Instrument("test", &testutils.FailingReadBacker{
		R:   readback.NewBytesReader([]byte("abc")),
		Err: errBoom,
	}, testutils.Logger(t, "source").Zap())

	all, err := readback.ReadBackAll(rb)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if string(all) != "abc" {
		t.Errorf("got %q", all)
	}
	if d := testutil.ToFloat64(errorsTotal.WithLabelValues("test")) - before; d != 1 {
		t.Errorf("errors metric increased by %v", d)
	}
}

func TestInstrument_Counts(t *testing.T) {
	readsBefore := testutil.ToFloat64(readsTotal.WithLabelValues("counted"))
	bytesBefore := testutil.ToFloat64(bytesTotal.WithLabelValues("counted"))

	counter := &testutils.CountingReadBacker{
		R: &testutils.ShortReadBacker{R: readback.NewBytesReader([]byte(body)), Max: 4},
	}
	rb := Instrument("counted", counter, testutils.Logger(t, "source").Zap())

	sc := readback.NewLineScanner(readback.NewReaderSize(rb, 8))
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if sc.Err() != nil {
		t.Fatal(sc.Err())
	}
	if strings.Join(lines, ",") != "gamma,beta,alpha" {
		t.Errorf("got %v", lines)
	}

	if d := testutil.ToFloat64(readsTotal.WithLabelValues("counted")) - readsBefore; d != float64(counter.Calls) {
		t.Errorf("reads metric increased by %v, source saw %d calls", d, counter.Calls)
	}
	if d := testutil.ToFloat64(bytesTotal.WithLabelValues("counted")) - bytesBefore; d != float64(len(body)) || counter.Bytes != len(body) {
		t.Errorf("bytes metric increased by %v, source served %d", d, counter.Bytes)
	}
}
