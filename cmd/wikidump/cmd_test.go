package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dhamidi/wikidump/dump"
	"github.com/dhamidi/wikidump/store"
	"github.com/dhamidi/wikidump/wikitext"
)

const fixture = "../../dump/parser/testdata/wikidump_example.xml"

func TestPackAndLookup(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "pages.wds")
	if err := runPack(ctx, fixture, out, 3, false); err != nil {
		t.Fatalf("runPack() error: %v", err)
	}

	s, err := openStore(ctx, out, false)
	if err != nil {
		t.Fatalf("openStore() error: %v", err)
	}
	defer s.Close()

	page, err := s.Get(ctx, "AccessibleComputing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	rev, err := page.FindRevision(dump.NoID)
	if err != nil {
		t.Fatalf("FindRevision() error: %v", err)
	}
	got, err := wikitext.Render(wikitext.NewMarkup(), rev, page.Title, wikitext.ModePlain)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if want := "#REDIRECT Computer accessibility"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}

	if _, err := s.Get(ctx, "Talk:Main_Page"); err != nil {
		t.Errorf("Get(Talk:Main_Page) error: %v", err)
	}
}

func TestPackSkipRedirects(t *testing.T) {
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "pages.wds")
	if err := runPack(ctx, fixture, out, 2, true); err != nil {
		t.Fatalf("runPack() error: %v", err)
	}
	s, err := store.Open(out)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer s.Close()
	if s.Len() != 2 {
		t.Errorf("store holds %d pages (%q), want 2", s.Len(), s.Titles())
	}
}

func writeDuplicateDump(t *testing.T, copies int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("<mediawiki>\n")
	for i := 1; i <= copies; i++ {
		fmt.Fprintf(&sb, "  <page>\n    <title>Dup</title>\n    <id>%d</id>\n", i)
		fmt.Fprintf(&sb, "    <revision>\n      <id>%d</id>\n", 100+i)
		fmt.Fprintf(&sb, "      <text xml:space=\"preserve\">%s</text>\n", strings.Repeat("filler ", 20))
		sb.WriteString("    </revision>\n  </page>\n")
	}
	sb.WriteString("</mediawiki>\n")
	path := filepath.Join(t.TempDir(), "dup.xml")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	return path
}

func TestPackKeepsFirstDuplicateInFile(t *testing.T) {
	ctx := context.Background()
	dumpPath := writeDuplicateDump(t, 6)
	for _, windows := range []int{1, 2, 3, 6, 12} {
		for run := range 5 {
			out := filepath.Join(t.TempDir(), "pages.wds")
			if err := runPack(ctx, dumpPath, out, windows, false); err != nil {
				t.Fatalf("runPack(%d windows) error: %v", windows, err)
			}
			s, err := store.Open(out)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			p, err := s.Get(ctx, "Dup")
			s.Close()
			if err != nil {
				t.Fatalf("Get(Dup) error: %v", err)
			}
			if p.ID != 1 {
				t.Errorf("%d windows, run %d: Get(Dup).ID = %d, want 1", windows, run, p.ID)
			}
		}
	}
}

func TestFileOrder(t *testing.T) {
	if fileOrder(0, 99) >= fileOrder(1, 0) {
		t.Errorf("fileOrder(0, 99) = %d, want less than fileOrder(1, 0) = %d", fileOrder(0, 99), fileOrder(1, 0))
	}
	if fileOrder(2, 3) >= fileOrder(2, 4) {
		t.Errorf("fileOrder(2, 3) should sort before fileOrder(2, 4)")
	}
}
