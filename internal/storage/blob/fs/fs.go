package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxcpp/readback/framework/config"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/storage/blob"
)

// FSStore struct represents directory on FS used to store blobs.
type FSStore struct {
	root string
}

func New(root string) *FSStore {
	return &FSStore{root: root}
}

func (s *FSStore) Init(cfg *config.Map) error {
	cfg.String("root", false, false, s.root, &s.root)
	if _, err := cfg.Process(); err != nil {
		return err
	}

	if s.root == "" {
		return config.NodeErr(cfg.Block, "storage.blob.fs: directory not set")
	}

	if err := os.MkdirAll(s.root, os.ModeDir|os.ModePerm); err != nil {
		return err
	}

	return nil
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "\x00") {
		return "", fmt.Errorf("storage.blob.fs: invalid key: %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

type file struct {
	*readback.SectionReader
	f    *os.File
	size int64
}

func (f file) Size() int64 {
	return f.size
}

func (f file) Close() error {
	return f.f.Close()
}

func (s *FSStore) Open(_ context.Context, key string) (blob.Blob, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, blob.ErrNoSuchBlob
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return file{
		SectionReader: readback.NewSectionReader(f, 0, info.Size()),
		f:             f,
		size:          info.Size(),
	}, nil
}

func (s *FSStore) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModeDir|os.ModePerm); err != nil {
		return err
	}

	// Write to a temporary file first so readers never observe a partial
	// object.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FSStore) Delete(_ context.Context, keys []string) error {
	for _, key := range keys {
		path, err := s.path(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
	}
	return nil
}

var _ blob.Store = &FSStore{}
