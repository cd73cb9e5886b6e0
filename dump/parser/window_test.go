package parser

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func readWindow(t *testing.T, data []byte, w Window) []string {
	t.Helper()
	r := NewSectionReader(bytes.NewReader(data), w.Start, w.Length)
	var got []string
	for p, err := range r.All() {
		if err != nil {
			t.Fatalf("window %s: %v", w, err)
		}
		got = append(got, summarize(p))
	}
	return got
}

func TestSplitEquivalence(t *testing.T) {
	data := readFixture(t)
	size := int64(len(data))
	want := readWindow(t, data, Window{Start: 0, Length: size})
	if len(want) != 4 {
		t.Fatalf("full read returned %d pages, want 4", len(want))
	}

	for k := int64(1); k < size; k++ {
		left := readWindow(t, data, Window{Start: 0, Length: k})
		right := readWindow(t, data, Window{Start: k, Length: size - k})
		got := append(left, right...)
		if strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Fatalf("split at %d:\nleft  %q\nright %q\nwant  %q", k, left, right, want)
		}
	}
}

func TestReadAll(t *testing.T) {
	data := readFixture(t)
	want := readWindow(t, data, Window{Start: 0, Length: int64(len(data))})

	for _, n := range []int{1, 2, 3, 7, 50} {
		windows := SplitN(int64(len(data)), n)
		pages, err := ReadAll(context.Background(), bytes.NewReader(data), windows, 2)
		if err != nil {
			t.Fatalf("ReadAll(%d windows) error: %v", n, err)
		}
		var got []string
		for _, p := range pages {
			got = append(got, summarize(p))
		}
		if strings.Join(got, "\n") != strings.Join(want, "\n") {
			t.Errorf("ReadAll(%d windows) = %q, want %q", n, got, want)
		}
	}
}

func TestReadAllCancelled(t *testing.T) {
	data := readFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadAll(ctx, bytes.NewReader(data), SplitN(int64(len(data)), 3), 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReadAll error = %v, want context.Canceled", err)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		size  int64
		chunk int64
		want  string
	}{
		{"even", 30, 10, "[0,10) [10,20) [20,30)"},
		{"remainder", 25, 10, "[0,10) [10,20) [20,25)"},
		{"chunk larger than size", 5, 10, "[0,5)"},
		{"zero chunk", 5, 0, "[0,5)"},
		{"empty", 0, 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, w := range Split(tt.size, tt.chunk) {
				got = append(got, w.String())
			}
			if s := strings.Join(got, " "); s != tt.want {
				t.Errorf("Split(%d, %d) = %q, want %q", tt.size, tt.chunk, s, tt.want)
			}
		})
	}
}

func TestSplitN(t *testing.T) {
	windows := SplitN(100, 3)
	if len(windows) != 3 {
		t.Fatalf("got %d windows, want 3", len(windows))
	}
	var total int64
	for i, w := range windows {
		if w.Start != total {
			t.Errorf("window %d starts at %d, want %d", i, w.Start, total)
		}
		total += w.Length
	}
	if total != 100 {
		t.Errorf("windows cover %d bytes, want 100", total)
	}
}

func TestSectionReaderProgress(t *testing.T) {
	data := readFixture(t)
	size := int64(len(data))
	r := NewSectionReader(bytes.NewReader(data), 0, size)
	if got := r.Progress(); got != 0 {
		t.Errorf("Progress() before reading = %v, want 0", got)
	}
	last := 0.0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		p := r.Progress()
		if p < last {
			t.Errorf("Progress() went back from %v to %v", last, p)
		}
		last = p
	}
	if got := r.Progress(); got != 1 {
		t.Errorf("Progress() at end = %v, want 1", got)
	}
}

func TestSectionReaderWindowStartingAtPage(t *testing.T) {
	data := readFixture(t)
	start := int64(bytes.Index(data, []byte("  <page>\n    <title>Anarchism")))
	if start < 0 {
		t.Fatal("fixture is missing the Anarchism page")
	}
	got := readWindow(t, data, Window{Start: start, Length: 1})
	if len(got) != 1 || got[0] != "Anarchism#12 r645849603" {
		t.Errorf("pages = %q, want only Anarchism", got)
	}
}

func TestSectionReaderProgressMidFile(t *testing.T) {
	data := readFixture(t)
	size := int64(len(data))
	start := size / 3
	r := NewSectionReader(bytes.NewReader(data), start, size-start)
	if got := r.Progress(); got != 0 {
		t.Errorf("Progress() before reading = %v, want 0", got)
	}
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if p := r.Progress(); p < 0 {
			t.Errorf("Progress() = %v, want >= 0", p)
		}
	}
	if got := r.Progress(); got != 1 {
		t.Errorf("Progress() at end = %v, want 1", got)
	}
}
