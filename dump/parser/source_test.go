package parser

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestSourceOffsets(t *testing.T) {
	src := NewSource(strings.NewReader("ab\r\n\ncd"), 100)

	tests := []struct {
		line   string
		offset int64
	}{
		{"ab", 100},
		{"", 104},
		{"cd", 105},
	}
	for _, tt := range tests {
		if got := src.Offset(); got != tt.offset {
			t.Errorf("Offset() before %q = %d, want %d", tt.line, got, tt.offset)
		}
		line, err := src.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() error: %v", err)
		}
		if line != tt.line {
			t.Errorf("ReadLine() = %q, want %q", line, tt.line)
		}
	}
	if got := src.Offset(); got != 107 {
		t.Errorf("Offset() at end = %d, want 107", got)
	}
	for range 2 {
		if _, err := src.ReadLine(); !errors.Is(err, io.EOF) {
			t.Errorf("ReadLine() at end = %v, want io.EOF", err)
		}
	}
}

func TestStringSource(t *testing.T) {
	src := NewStringSource("one\r\ntwo\n")
	var got []string
	for {
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		got = append(got, line)
	}
	if strings.Join(got, ",") != "one,two" {
		t.Errorf("lines = %q", got)
	}
}
