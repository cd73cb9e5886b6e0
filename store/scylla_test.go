package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dhamidi/wikidump/dump"
)

func TestScyllaConfigFromEnv(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		t.Setenv("SCYLLA_HOSTS", "db1,db2")
		t.Setenv("SCYLLA_KEYSPACE", "wiki")
		t.Setenv("SCYLLA_TIMEOUT", "9")
		cfg, err := ScyllaConfigFromEnv()
		if err != nil {
			t.Fatalf("ScyllaConfigFromEnv() error: %v", err)
		}
		if len(cfg.Hosts) != 2 || cfg.Hosts[1] != "db2" {
			t.Errorf("Hosts = %q", cfg.Hosts)
		}
		if cfg.Keyspace != "wiki" {
			t.Errorf("Keyspace = %q, want wiki", cfg.Keyspace)
		}
		if cfg.Timeout != 9*time.Second {
			t.Errorf("Timeout = %v, want 9s", cfg.Timeout)
		}
	})

	t.Run("bad timeout", func(t *testing.T) {
		t.Setenv("SCYLLA_HOSTS", "db1")
		t.Setenv("SCYLLA_KEYSPACE", "wiki")
		t.Setenv("SCYLLA_TIMEOUT", "soon")
		cfg, err := ScyllaConfigFromEnv()
		if err != nil {
			t.Fatalf("ScyllaConfigFromEnv() error: %v", err)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want the 5s default", cfg.Timeout)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv("SCYLLA_HOSTS", "")
		t.Setenv("SCYLLA_KEYSPACE", "wiki")
		if _, err := ScyllaConfigFromEnv(); err == nil {
			t.Error("ScyllaConfigFromEnv() should fail without hosts")
		}
	})
}

func TestScyllaStore(t *testing.T) {
	cfg, err := ScyllaConfigFromEnv()
	if err != nil {
		t.Skipf("Scylla not configured: %v", err)
	}
	ctx := context.Background()
	s, err := NewScylla(ctx, cfg)
	if err != nil {
		t.Fatalf("NewScylla() error: %v", err)
	}
	defer s.Close()

	title := fmt.Sprintf("Store test %d", time.Now().UnixNano())
	page := &dump.Page{Title: title, ID: 42, Revisions: []*dump.Revision{{ID: 1, Text: dump.Text("")}}}
	if err := s.Put(ctx, page); err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	got, err := s.Get(ctx, title)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ID != 42 || len(got.Revisions) != 1 || got.Revisions[0].Text == nil {
		t.Errorf("Get() = %v", got)
	}
	if _, err := s.Get(ctx, title+" missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}
