// Copyright 2025 SGNL.ai, Inc.

package ldif

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// FileSource streams change records from an ordered list of LDIF files,
// falling back to stdin when the list is empty. Files are opened lazily and
// closed as each is exhausted.
type FileSource struct {
	paths      []string
	encoding   string
	opts       []ReaderOption
	reader     *Reader
	current    io.ReadCloser
	nextIndex  int
	usingStdin bool
}

// NewFileSource creates a source over the given paths. An empty encoding, or
// "utf-8", reads the input as-is; any other IANA charset name is transcoded.
func NewFileSource(paths []string, encoding string, opts ...ReaderOption) *FileSource {
	return &FileSource{paths: paths, encoding: encoding, opts: opts}
}

// Next returns the next change record across all configured files, io.EOF
// when every file is exhausted.
func (s *FileSource) Next() (*ChangeRecord, error) {
	for {
		if s.reader == nil {
			if err := s.advance(); err != nil {
				return nil, err
			}
		}

		record, err := s.reader.Next()
		if err == io.EOF {
			s.closeCurrent()
			s.reader = nil

			if s.usingStdin || s.nextIndex >= len(s.paths) {
				return nil, io.EOF
			}

			continue
		}

		return record, err
	}
}

// Close releases the currently open file, if any.
func (s *FileSource) Close() error {
	s.closeCurrent()

	return nil
}

func (s *FileSource) advance() error {
	if len(s.paths) == 0 {
		s.usingStdin = true

		reader, err := s.wrapEncoding(os.Stdin)
		if err != nil {
			return err
		}

		s.reader = NewReader(reader, s.opts...)

		return nil
	}

	if s.nextIndex >= len(s.paths) {
		return io.EOF
	}

	path := s.paths[s.nextIndex]
	s.nextIndex++

	if path == "-" {
		reader, err := s.wrapEncoding(os.Stdin)
		if err != nil {
			return err
		}

		s.reader = NewReader(reader, s.opts...)

		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return ldapresult.WrapError(ldapresult.LocalError, err, "Cannot open LDIF file %q", path)
	}

	s.current = f

	reader, err := s.wrapEncoding(f)
	if err != nil {
		s.closeCurrent()

		return err
	}

	s.reader = NewReader(reader, s.opts...)

	return nil
}

func (s *FileSource) wrapEncoding(r io.Reader) (io.Reader, error) {
	name := strings.ToLower(s.encoding)
	if name == "" || name == "utf-8" || name == "utf8" {
		return r, nil
	}

	enc, err := ianaindex.IANA.Encoding(s.encoding)
	if err != nil || enc == nil {
		return nil, ldapresult.NewError(ldapresult.ParamError,
			"Unsupported input character set %q", s.encoding)
	}

	return transform.NewReader(r, enc.NewDecoder()), nil
}

func (s *FileSource) closeCurrent() {
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

// String names the source for diagnostics.
func (s *FileSource) String() string {
	if len(s.paths) == 0 {
		return "stdin"
	}

	return fmt.Sprintf("%d LDIF file(s)", len(s.paths))
}
