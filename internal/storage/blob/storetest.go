package blob

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/foxcpp/readback/framework/readback"
)

// TestStore runs the common test suite against the Store implementation.
// newStore is called for each subtest and should return an empty store,
// cleanStore is called after the subtest completes.
func TestStore(t *testing.T, newStore func() Store, cleanStore func(Store)) {
	run := func(name string, f func(t *testing.T, s Store)) {
		t.Run(name, func(t *testing.T) {
			s := newStore()
			defer cleanStore(s)
			f(t, s)
		})
	}
	ctx := context.Background()

	run("Put_Open", func(t *testing.T, s Store) {
		const body = "line 1\nline 2\nline 3\n"
		if err := s.Put(ctx, "a.log", strings.NewReader(body), int64(len(body))); err != nil {
			t.Fatal(err)
		}

		b, err := s.Open(ctx, "a.log")
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()

		if b.Size() != int64(len(body)) {
			t.Errorf("Size() = %d, want %d", b.Size(), len(body))
		}

		sc := readback.NewLineScanner(b)
		var lines []string
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		if err := sc.Err(); err != nil {
			t.Fatal(err)
		}
		if strings.Join(lines, "|") != "line 3|line 2|line 1" {
			t.Errorf("wrong lines: %q", lines)
		}
	})

	run("Put_UnknownSize", func(t *testing.T, s Store) {
		body := bytes.Repeat([]byte("0123456789"), 100)
		if err := s.Put(ctx, "b", bytes.NewReader(body), UnknownBlobSize); err != nil {
			t.Fatal(err)
		}
		b, err := s.Open(ctx, "b")
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		all, err := readback.ReadBackAll(b)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(all, body) {
			t.Errorf("body mismatch, got %d bytes", len(all))
		}
	})

	run("Put_Replace", func(t *testing.T, s Store) {
		if err := s.Put(ctx, "c", strings.NewReader("old"), 3); err != nil {
			t.Fatal(err)
		}
		if err := s.Put(ctx, "c", strings.NewReader("newer"), 5); err != nil {
			t.Fatal(err)
		}
		b, err := s.Open(ctx, "c")
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		all, err := readback.ReadBackAll(b)
		if err != nil {
			t.Fatal(err)
		}
		if string(all) != "newer" {
			t.Errorf("got %q", all)
		}
	})

	run("Empty", func(t *testing.T, s Store) {
		if err := s.Put(ctx, "empty", strings.NewReader(""), 0); err != nil {
			t.Fatal(err)
		}
		b, err := s.Open(ctx, "empty")
		if err != nil {
			t.Fatal(err)
		}
		defer b.Close()
		if b.Size() != 0 {
			t.Errorf("Size() = %d", b.Size())
		}
		n, err := b.ReadBack(make([]byte, 16))
		if n != 0 || err != nil {
			t.Errorf("ReadBack on empty blob = %d, %v", n, err)
		}
	})

	run("Open_Missing", func(t *testing.T, s Store) {
		_, err := s.Open(ctx, "missing")
		if !errors.Is(err, ErrNoSuchBlob) {
			t.Errorf("expected ErrNoSuchBlob, got %v", err)
		}
	})

	run("Delete", func(t *testing.T, s Store) {
		if err := s.Put(ctx, "d", strings.NewReader("data"), 4); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, []string{"d", "never-existed"}); err != nil {
			t.Fatal(err)
		}
		_, err := s.Open(ctx, "d")
		if !errors.Is(err, ErrNoSuchBlob) {
			t.Errorf("expected ErrNoSuchBlob after Delete, got %v", err)
		}
	})
}
