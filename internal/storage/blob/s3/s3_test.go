package s3

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxcpp/readback/framework/config"
	"github.com/foxcpp/readback/framework/log"
	"github.com/foxcpp/readback/framework/readback"
	"github.com/foxcpp/readback/internal/storage/blob"
	"github.com/foxcpp/readback/internal/testutils"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

func testConfig(endpoint string) config.Node {
	return config.Node{
		Children: []config.Node{
			{
				Name: "endpoint",
				Args: []string{endpoint},
			},
			{
				Name: "secure",
				Args: []string{"false"},
			},
			{
				Name: "access_key",
				Args: []string{"access-key"},
			},
			{
				Name: "secret_key",
				Args: []string{"secret-key"},
			},
			{
				Name: "bucket",
				Args: []string{"readback-test"},
			},
			{
				Name: "object_prefix",
				Args: []string{"logs/"},
			},
		},
	}
}

func TestS3(t *testing.T) {
	var ts *httptest.Server

	blob.TestStore(t, func() blob.Store {
		backend := s3mem.New()
		faker := gofakes3.New(backend)
		ts = httptest.NewServer(faker.Server())

		if err := backend.CreateBucket("readback-test"); err != nil {
			panic(err)
		}

		st := New(testutils.Logger(t, modName))
		if err := st.Init(config.NewMap(map[string]interface{}{}, testConfig(ts.Listener.Addr().String()))); err != nil {
			panic(err)
		}

		return st
	}, func(blob.Store) {
		ts.Close()
	})
}

func TestInit_Invalid(t *testing.T) {
	for name, mutate := range map[string]func(*config.Node){
		"no endpoint": func(n *config.Node) {
			n.Children = n.Children[1:]
		},
		"no bucket": func(n *config.Node) {
			n.Children = append(n.Children[:4], n.Children[5:]...)
		},
		"no keys": func(n *config.Node) {
			n.Children = append(n.Children[:2], n.Children[4:]...)
		},
		"bad creds": func(n *config.Node) {
			n.Children = append(n.Children, config.Node{Name: "creds", Args: []string{"magic"}})
		},
	} {
		mutate := mutate
		t.Run(name, func(t *testing.T) {
			cfg := testConfig("127.0.0.1:1")
			mutate(&cfg)
			st := New(testutils.Logger(t, modName))
			if err := st.Init(config.NewMap(nil, cfg)); err == nil {
				t.Fatal("expected Init to fail")
			}
		})
	}
}

func TestS3_DebugTrace(t *testing.T) {
	backend := s3mem.New()
	ts := httptest.NewServer(gofakes3.New(backend).Server())
	defer ts.Close()
	if err := backend.CreateBucket("readback-test"); err != nil {
		t.Fatal(err)
	}

	var (
		mu    sync.Mutex
		trace strings.Builder
	)
	st := New(log.Logger{
		Out: log.FuncOutput(func(_ time.Time, debug bool, msg string) {
			mu.Lock()
			defer mu.Unlock()
			if debug {
				trace.WriteString(msg)
				trace.WriteString("\n")
			}
		}, func() error { return nil }),
		Debug: true,
	})
	if err := st.Init(config.NewMap(nil, testConfig(ts.Listener.Addr().String()))); err != nil {
		t.Fatal(err)
	}

	const body = "one\ntwo\n"
	if err := st.Put(context.Background(), "a.log", strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatal(err)
	}
	b, err := st.Open(context.Background(), "a.log")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	all, err := readback.ReadBackAll(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(all) != body {
		t.Errorf("got %q", all)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(trace.String(), "HTTP tracing enabled") || !strings.Contains(trace.String(), "/readback-test/logs/a.log") {
		t.Errorf("requests not traced:\n%s", trace.String())
	}
}
