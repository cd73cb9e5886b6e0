package parser

import (
	"bufio"
	"io"
	"strings"
)

// LineSource delivers the lines of a dump in order, without their line
// terminators. ReadLine returns io.EOF once no lines remain.
type LineSource interface {
	ReadLine() (string, error)
}

// Source is a LineSource over an io.Reader that knows the byte offset of
// every line it returns.
type Source struct {
	r   *bufio.Reader
	pos int64
	err error
}

const sourceBufferSize = 256 * 1024

// NewSource reads lines from r. base is the offset of the first byte of r
// within the underlying file, so Offset reports absolute positions.
func NewSource(r io.Reader, base int64) *Source {
	return &Source{
		r:   bufio.NewReaderSize(r, sourceBufferSize),
		pos: base,
	}
}

// Offset returns the offset of the next line to be read.
func (s *Source) Offset() int64 {
	return s.pos
}

func (s *Source) ReadLine() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	line, err := s.r.ReadString('\n')
	s.pos += int64(len(line))
	if err != nil {
		if err != io.EOF || line == "" {
			s.err = err
			return "", err
		}
		// final line without a terminator; io.EOF comes with the next call
		s.err = io.EOF
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// stringSource serves lines from memory.
type stringSource struct {
	lines []string
}

// NewStringSource returns a LineSource over the lines of s.
func NewStringSource(s string) LineSource {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return &stringSource{}
	}
	return &stringSource{lines: strings.Split(s, "\n")}
}

func (s *stringSource) ReadLine() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return strings.TrimSuffix(line, "\r"), nil
}
