package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/wikidump/dump"
)

func testPages() []*dump.Page {
	return []*dump.Page{
		{Title: "Zebra", ID: 3, Revisions: []*dump.Revision{{ID: 30, Text: dump.Text("stripes")}}},
		{Title: "AT&amp;T", ID: 1},
		{Title: "Talk:Main Page", ID: 2, Redirect: true},
		{Title: "Zebra", ID: 4},
	}
}

func buildStore(t *testing.T, pages []*dump.Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pages.wds")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create store file: %v", err)
	}
	if err := Build(f, pages); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close store file: %v", err)
	}
	return path
}

func TestFileStore(t *testing.T) {
	s, err := Open(buildStore(t, testPages()))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	t.Run("sorted unique titles", func(t *testing.T) {
		got := strings.Join(s.Titles(), ",")
		want := "AT&T,Talk:Main_Page,Zebra"
		if got != want {
			t.Errorf("Titles() = %q, want %q", got, want)
		}
		if s.Len() != 3 {
			t.Errorf("Len() = %d, want 3", s.Len())
		}
	})

	t.Run("first duplicate wins", func(t *testing.T) {
		p, err := s.Get(ctx, "Zebra")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if p.ID != 3 || len(p.Revisions) != 1 || p.Revisions[0].TextOr("") != "stripes" {
			t.Errorf("Get(Zebra) = %v", p)
		}
		if p.Revisions[0].PageID != 3 {
			t.Errorf("PageID = %d, want 3", p.Revisions[0].PageID)
		}
	})

	t.Run("normalized lookup", func(t *testing.T) {
		for _, title := range []string{"Talk:Main Page", "Talk:Main_Page"} {
			p, err := s.Get(ctx, title)
			if err != nil {
				t.Fatalf("Get(%q) error: %v", title, err)
			}
			if p.ID != 2 || !p.Redirect {
				t.Errorf("Get(%q) = %v", title, p)
			}
		}
		p, err := s.Get(ctx, "AT&T")
		if err != nil {
			t.Fatalf("Get(AT&T) error: %v", err)
		}
		if p.Title != "AT&amp;T" {
			t.Errorf("Title = %q, want the title as stored", p.Title)
		}
	})

	t.Run("not found", func(t *testing.T) {
		for _, title := range []string{"Aardvark", "Zebras", ""} {
			_, err := s.Get(ctx, title)
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Get(%q) error = %v, want ErrNotFound", title, err)
			}
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := s.Get(ctx, "Zebra"); !errors.Is(err, context.Canceled) {
			t.Errorf("Get() error = %v, want context.Canceled", err)
		}
	})
}

func TestEmptyStore(t *testing.T) {
	s, err := Open(buildStore(t, nil))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()
	if _, err := s.Get(context.Background(), "Anything"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestOpenRejectsOtherFiles(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("WKDS")},
		{"wrong magic", bytes.Repeat([]byte{'x'}, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.wds")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if s, err := Open(path); err == nil {
				s.Close()
				t.Error("Open() should fail")
			}
		})
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.wds"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open() error = %v, want os.ErrNotExist", err)
	}
}

func TestBuilderAfterClose(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(&buf)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := b.Add(&dump.Page{Title: "Late"}); err == nil {
		t.Error("Add() after Close() should fail")
	}
}

func TestGetDetectsCorruptRecord(t *testing.T) {
	path := buildStore(t, testPages())
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read store file: %v", err)
	}
	i := bytes.Index(data, []byte("stripes"))
	if i < 0 {
		t.Fatal("store file does not contain the Zebra text")
	}
	data[i] = 'S'
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write store file: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	if _, err := s.Get(ctx, "Zebra"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Get(Zebra) error = %v, want ErrCorrupt", err)
	}
	if _, err := s.Get(ctx, "AT&T"); err != nil {
		t.Errorf("Get(AT&T) error = %v, want the untouched record", err)
	}
}

func TestBuilderKeepsLowestOrder(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(&buf)
	for _, add := range []struct {
		id    int64
		order uint64
	}{
		{id: 3, order: 1<<32 | 0},
		{id: 2, order: 7},
		{id: 1, order: 2},
		{id: 4, order: 1<<32 | 1},
	} {
		if err := b.AddOrdered(&dump.Page{Title: "Dup", ID: add.id}, add.order); err != nil {
			t.Fatalf("AddOrdered() error: %v", err)
		}
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	s, err := newFileStore(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("newFileStore() error: %v", err)
	}
	p, err := s.Get(context.Background(), "Dup")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.ID != 1 {
		t.Errorf("Get(Dup).ID = %d, want 1 (lowest order)", p.ID)
	}
}

func TestBuilderAddFollowsAddOrdered(t *testing.T) {
	var buf bytes.Buffer
	b := NewBuilder(&buf)
	if err := b.AddOrdered(&dump.Page{Title: "Dup", ID: 1}, 5); err != nil {
		t.Fatalf("AddOrdered() error: %v", err)
	}
	if err := b.Add(&dump.Page{Title: "Dup", ID: 2}); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	s, err := newFileStore(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("newFileStore() error: %v", err)
	}
	p, err := s.Get(context.Background(), "Dup")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if p.ID != 1 {
		t.Errorf("Get(Dup).ID = %d, want 1", p.ID)
	}
}
