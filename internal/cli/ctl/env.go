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

package ctl

import (
	"context"
	"fmt"
	"os"

	parser "github.com/foxcpp/readback/framework/cfgparser"
	"github.com/foxcpp/readback/framework/config"
	"github.com/foxcpp/readback/framework/exterrors"
	"github.com/foxcpp/readback/framework/log"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/source"
	"github.com/foxcpp/readback/internal/storage/blob"
	blobfs "github.com/foxcpp/readback/internal/storage/blob/fs"
	"github.com/foxcpp/readback/internal/storage/blob/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	defaultBlockSize = 64 * 1024
	maxBlockSize     = 64 * 1024 * 1024
)

// env is the state shared by all commands: parsed configuration merged with
// global flags.
type env struct {
	log         log.Logger
	blockSize   int
	decoder     *encoding.Decoder
	metricsFile string
	opts        source.Options
}

func readConfig(path string) ([]config.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Error: failed to open config: %v", err), 2)
	}
	defer f.Close()

	nodes, err := parser.Read(f, path)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Error: failed to parse config: %v", err), 2)
	}
	return nodes, nil
}

type configurableStore interface {
	blob.Store
	Init(*config.Map) error
}

func storeCallback(stores map[string]blob.Store, scheme string, newStore func() configurableStore) func(*config.Map, config.Node) error {
	return func(_ *config.Map, node config.Node) error {
		if _, ok := stores[scheme]; ok {
			return config.NodeErr(node, "duplicate %s block", scheme)
		}
		st := newStore()
		if err := st.Init(config.NewMap(nil, node)); err != nil {
			return err
		}
		stores[scheme] = st
		return nil
	}
}

func loadEnv(c *cli.Context) (*env, error) {
	e := &env{
		log: log.Logger{Name: "readback", Debug: c.Bool("debug")},
	}

	var nodes []config.Node
	if path := c.Path("config"); path != "" {
		var err error
		nodes, err = readConfig(path)
		if err != nil {
			return nil, err
		}
	}

	var (
		blockSize  int64
		spoolLimit int64
		spoolDir   string
		charset    string
		stores     = map[string]blob.Store{}
	)
	m := config.NewMap(nil, config.Node{Children: nodes})
	m.DataSize("block_size", false, false, defaultBlockSize, &blockSize)
	m.DataSize("memory_spool_limit", false, false, source.DefaultMemorySpoolLimit, &spoolLimit)
	m.String("spool_dir", false, false, "", &spoolDir)
	m.String("charset", false, false, "utf-8", &charset)
	m.Callback("s3", storeCallback(stores, "s3", func() configurableStore {
		return s3.New(e.log)
	}))
	m.Callback("fs", storeCallback(stores, "fs", func() configurableStore {
		return blobfs.New("")
	}))
	if _, err := m.Process(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("Error: %v", err), 2)
	}

	if c.IsSet("block-size") {
		size, err := config.ParseDataSize(c.String("block-size"))
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("Error: invalid block size: %v", err), 2)
		}
		blockSize = size
	}
	if blockSize <= 0 || blockSize > maxBlockSize {
		return nil, cli.Exit(fmt.Sprintf("Error: block size must be between 1 and %d bytes", maxBlockSize), 2)
	}
	e.blockSize = int(blockSize)

	if c.IsSet("spool-dir") {
		spoolDir = c.Path("spool-dir")
	}
	if c.IsSet("charset") {
		charset = c.String("charset")
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Error: unknown charset: %s", charset), 2)
	}
	if name, _ := htmlindex.Name(enc); name != "utf-8" {
		e.decoder = enc.NewDecoder()
	}

	e.metricsFile = c.Path("metrics-file")
	e.opts = source.Options{
		Log:              e.log,
		Stdin:            c.App.Reader,
		SpoolDir:         spoolDir,
		MemorySpoolLimit: spoolLimit,
		Stores:           stores,
	}

	e.log.DebugMsg("configuration loaded",
		"block_size", e.blockSize, "charset", charset, "spool_dir", spoolDir, "stores", len(stores))
	return e, nil
}

// withEnv wraps a command so that it gets a loaded env and the metrics file
// is written after it completes.
func withEnv(f func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := loadEnv(c)
		if err != nil {
			return err
		}

		err = f(c, e)

		if e.metricsFile != "" {
			if mErr := prometheus.WriteToTextfile(e.metricsFile, prometheus.DefaultGatherer); mErr != nil {
				e.log.Error("failed to write metrics", mErr, "path", e.metricsFile)
				if err == nil {
					err = mErr
				}
			}
		}
		return err
	}
}

// each opens the named source, passes it to f buffered with the configured
// block size and closes it.
func (e *env) each(ctx context.Context, name string, f func(r *readback.Reader) error) error {
	src, err := source.Open(ctx, name, e.opts)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := f(readback.NewReaderSize(src, e.blockSize)); err != nil {
		return exterrors.WithFields(err, map[string]interface{}{"source": name})
	}
	return nil
}

// decode converts a chunk of input to UTF-8 if a charset is configured.
func (e *env) decode(b []byte) ([]byte, error) {
	if e.decoder == nil {
		return b, nil
	}
	return e.decoder.Bytes(b)
}

// inputNames returns command arguments, or standard input if there are none.
func inputNames(c *cli.Context) ([]string, error) {
	names := c.Args().Slice()
	if len(names) == 0 {
		return []string{source.StdinName}, nil
	}
	stdin := 0
	for _, name := range names {
		if name == source.StdinName {
			stdin++
		}
	}
	if stdin > 1 {
		return nil, cli.Exit("Error: standard input can be used only once", 2)
	}
	return names, nil
}
