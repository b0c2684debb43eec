// Copyright 2025 SGNL.ai, Inc.

package ldif

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// TrailingSpaceBehavior selects how illegal trailing spaces on unencoded
// values are handled.
type TrailingSpaceBehavior int

// The selectable trailing-space behaviors.
const (
	TrailingSpaceReject TrailingSpaceBehavior = iota
	TrailingSpaceStrip
	TrailingSpaceRetain
)

// ParseError is a record-level parse failure. When MayContinueReading is
// true the reader is positioned at the next record boundary and reading may
// resume.
type ParseError struct {
	Line               int
	MayContinueReading bool
	Err                error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("LDIF parse error at line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithDefaultAdd treats content records without a changetype as adds.
func WithDefaultAdd() ReaderOption {
	return func(r *Reader) {
		r.defaultAdd = true
	}
}

// WithTrailingSpaceBehavior selects the trailing-space policy.
func WithTrailingSpaceBehavior(b TrailingSpaceBehavior) ReaderOption {
	return func(r *Reader) {
		r.trailing = b
	}
}

// Reader produces change records lazily from an LDIF stream.
type Reader struct {
	scanner    *bufio.Scanner
	line       int
	defaultAdd bool
	trailing   TrailingSpaceBehavior

	sawHeader bool
}

// NewReader creates a Reader over the given stream.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	reader := &Reader{scanner: scanner}

	for _, opt := range opts {
		opt(reader)
	}

	return reader
}

// Next returns the next change record, io.EOF at end of stream, a
// *ParseError for malformed records, or an *ldapresult.Error with code
// LocalError when the underlying stream fails.
func (r *Reader) Next() (*ChangeRecord, error) {
	for {
		lines, firstLine, err := r.nextParagraph()
		if err != nil {
			return nil, err
		}

		if len(lines) == 0 {
			return nil, io.EOF
		}

		// The version header may only appear before the first record.
		if !r.sawHeader && len(lines) > 0 && strings.HasPrefix(lines[0], "version:") {
			r.sawHeader = true
			lines = lines[1:]

			if len(lines) == 0 {
				continue
			}
		}

		r.sawHeader = true

		record, err := r.parseRecord(lines, firstLine)
		if err != nil {
			return nil, err
		}

		return record, nil
	}
}

// nextParagraph reads one blank-line-delimited group of logical lines, with
// continuation lines unfolded and comments removed.
func (r *Reader) nextParagraph() (lines []string, firstLine int, err error) {
	var current *string

	flush := func() {
		if current != nil {
			lines = append(lines, *current)
			current = nil
		}
	}

	for {
		raw, ok, err := r.readLine()
		if err != nil {
			return nil, firstLine, err
		}

		if !ok {
			flush()

			return lines, firstLine, nil
		}

		if raw == "" {
			flush()

			if len(lines) > 0 {
				return lines, firstLine, nil
			}

			continue
		}

		if strings.HasPrefix(raw, " ") && current != nil {
			*current += raw[1:]

			continue
		}

		flush()

		if strings.HasPrefix(raw, "#") {
			continue
		}

		if len(lines) == 0 && current == nil {
			firstLine = r.line
		}

		line := raw
		current = &line
	}
}

func (r *Reader) readLine() (string, bool, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", false, ldapresult.WrapError(ldapresult.LocalError, err,
				"An error occurred while attempting to read a change record")
		}

		return "", false, nil
	}

	r.line++

	return strings.TrimRight(r.scanner.Text(), "\r"), true, nil
}

func (r *Reader) parseRecord(lines []string, firstLine int) (*ChangeRecord, error) {
	fail := func(format string, args ...any) error {
		return &ParseError{Line: firstLine, MayContinueReading: true, Err: fmt.Errorf(format, args...)}
	}

	name, value, err := r.parseLine(lines[0])
	if err != nil {
		return nil, fail("%v", err)
	}

	if !strings.EqualFold(name, "dn") {
		return nil, fail("record does not start with a dn line")
	}

	record := &ChangeRecord{DN: string(value)}
	rest := lines[1:]

	// Per-record control lines sit between the DN and the changetype.
	for len(rest) > 0 {
		name, value, err = r.parseLine(rest[0])
		if err != nil {
			return nil, fail("%v", err)
		}

		if !strings.EqualFold(name, "control") {
			break
		}

		control, err := parseControlValue(string(value), rest[0])
		if err != nil {
			return nil, fail("%v", err)
		}

		record.Controls = append(record.Controls, *control)
		rest = rest[1:]
	}

	if len(rest) == 0 || !strings.EqualFold(name, "changetype") {
		if r.defaultAdd {
			return r.parseAddContent(record, rest, firstLine)
		}

		return nil, fail("record for dn %q has no changetype and defaultAdd is not enabled", record.DN)
	}

	changeType := strings.ToLower(string(value))
	rest = rest[1:]

	switch changeType {
	case "add":
		return r.parseAddContent(record, rest, firstLine)
	case "delete":
		record.Type = ChangeDelete

		if len(rest) != 0 {
			return nil, fail("delete record for dn %q has trailing content", record.DN)
		}

		return record, nil
	case "modify":
		return r.parseModifyContent(record, rest, firstLine)
	case "modrdn", "moddn":
		return r.parseModifyDNContent(record, rest, firstLine)
	default:
		return nil, fail("unsupported changetype %q for dn %q", changeType, record.DN)
	}
}

func (r *Reader) parseAddContent(record *ChangeRecord, lines []string, firstLine int) (*ChangeRecord, error) {
	record.Type = ChangeAdd

	if len(lines) == 0 {
		return nil, &ParseError{Line: firstLine, MayContinueReading: true,
			Err: fmt.Errorf("add record for dn %q has no attributes", record.DN)}
	}

	for _, line := range lines {
		name, value, err := r.parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: firstLine, MayContinueReading: true, Err: err}
		}

		if last := len(record.Attributes) - 1; last >= 0 && strings.EqualFold(record.Attributes[last].Name, name) {
			record.Attributes[last].Values = append(record.Attributes[last].Values, value)

			continue
		}

		record.Attributes = append(record.Attributes, Attribute{Name: name, Values: [][]byte{value}})
	}

	return record, nil
}

func (r *Reader) parseModifyContent(record *ChangeRecord, lines []string, firstLine int) (*ChangeRecord, error) {
	record.Type = ChangeModify

	fail := func(format string, args ...any) error {
		return &ParseError{Line: firstLine, MayContinueReading: true, Err: fmt.Errorf(format, args...)}
	}

	var current *Modification

	flush := func() {
		if current != nil {
			record.Mods = append(record.Mods, *current)
			current = nil
		}
	}

	for _, line := range lines {
		if line == "-" {
			flush()

			continue
		}

		name, value, err := r.parseLine(line)
		if err != nil {
			return nil, fail("%v", err)
		}

		if current == nil {
			var op ModifyOp

			switch strings.ToLower(name) {
			case "add":
				op = ModAdd
			case "delete":
				op = ModDelete
			case "replace":
				op = ModReplace
			case "increment":
				op = ModIncrement
			default:
				return nil, fail("expected a modification operation, got %q", name)
			}

			current = &Modification{Op: op, Name: string(value)}

			continue
		}

		if !strings.EqualFold(name, current.Name) {
			return nil, fail("modification of %q contains values for %q", current.Name, name)
		}

		current.Values = append(current.Values, value)
	}

	flush()

	if len(record.Mods) == 0 {
		return nil, fail("modify record for dn %q has no modifications", record.DN)
	}

	return record, nil
}

func (r *Reader) parseModifyDNContent(record *ChangeRecord, lines []string, firstLine int) (*ChangeRecord, error) {
	record.Type = ChangeModifyDN

	fail := func(format string, args ...any) error {
		return &ParseError{Line: firstLine, MayContinueReading: true, Err: fmt.Errorf(format, args...)}
	}

	sawNewRDN := false
	sawDeleteOldRDN := false

	for _, line := range lines {
		name, value, err := r.parseLine(line)
		if err != nil {
			return nil, fail("%v", err)
		}

		switch strings.ToLower(name) {
		case "newrdn":
			record.NewRDN = string(value)
			sawNewRDN = true
		case "deleteoldrdn":
			switch string(value) {
			case "0":
				record.DeleteOldRDN = false
			case "1":
				record.DeleteOldRDN = true
			default:
				return nil, fail("deleteoldrdn must be 0 or 1, got %q", value)
			}

			sawDeleteOldRDN = true
		case "newsuperior":
			record.NewSuperior = string(value)
		default:
			return nil, fail("unexpected element %q in a modify DN record", name)
		}
	}

	if !sawNewRDN || !sawDeleteOldRDN {
		return nil, fail("modify DN record for dn %q needs both newrdn and deleteoldrdn", record.DN)
	}

	return record, nil
}

// parseLine splits one logical "name: value" line, honoring base64 (::) and
// URL (:<) value forms and the configured trailing-space behavior.
func (r *Reader) parseLine(line string) (name string, value []byte, err error) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return "", nil, fmt.Errorf("line %q has no attribute separator", line)
	}

	name = line[:colon]
	rest := line[colon+1:]

	switch {
	case strings.HasPrefix(rest, ":"):
		encoded := strings.TrimLeft(rest[1:], " ")

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", nil, fmt.Errorf("line %q has an invalid base64 value: %w", line, err)
		}

		return name, decoded, nil
	case strings.HasPrefix(rest, "<"):
		target := strings.TrimLeft(rest[1:], " ")

		content, err := readValueURL(target)
		if err != nil {
			return "", nil, fmt.Errorf("line %q: %w", line, err)
		}

		return name, content, nil
	default:
		raw := strings.TrimPrefix(rest, " ")

		if strings.HasSuffix(raw, " ") {
			switch r.trailing {
			case TrailingSpaceReject:
				return "", nil, fmt.Errorf("value for %q has an illegal trailing space", name)
			case TrailingSpaceStrip:
				raw = strings.TrimRight(raw, " ")
			case TrailingSpaceRetain:
			}
		}

		return name, []byte(raw), nil
	}
}

func readValueURL(target string) ([]byte, error) {
	path, ok := strings.CutPrefix(target, "file://")
	if !ok {
		return nil, fmt.Errorf("unsupported value URL %q", target)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read value file: %w", err)
	}

	return content, nil
}

// parseControlValue parses the value of a "control:" line:
// oid [true|false] [: value | :: base64value].
func parseControlValue(value, line string) (*ldapresult.Control, error) {
	control := &ldapresult.Control{}

	rest := value

	if i := strings.IndexAny(rest, " :"); i >= 0 && rest[i] == ':' {
		// No criticality token; value follows immediately.
		control.OID = rest[:i]
		rest = rest[i:]
	} else {
		fields := strings.SplitN(rest, " ", 2)
		control.OID = fields[0]
		rest = ""

		if len(fields) == 2 {
			rest = strings.TrimLeft(fields[1], " ")
		}
	}

	if control.OID == "" {
		return nil, fmt.Errorf("control line %q has no OID", line)
	}

	switch {
	case rest == "":
		return control, nil
	case strings.HasPrefix(rest, "::"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimLeft(rest[2:], " "))
		if err != nil {
			return nil, fmt.Errorf("control line %q has an invalid base64 value: %w", line, err)
		}

		control.Value = decoded
		control.HasValue = true

		return control, nil
	case strings.HasPrefix(rest, ":"):
		control.Value = []byte(strings.TrimPrefix(rest[1:], " "))
		control.HasValue = true

		return control, nil
	}

	switch {
	case strings.HasPrefix(rest, "true"):
		control.Critical = true
		rest = strings.TrimLeft(rest[len("true"):], " ")
	case strings.HasPrefix(rest, "false"):
		rest = strings.TrimLeft(rest[len("false"):], " ")
	default:
		return nil, fmt.Errorf("control line %q has an invalid criticality token", line)
	}

	switch {
	case rest == "":
		return control, nil
	case strings.HasPrefix(rest, "::"):
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimLeft(rest[2:], " "))
		if err != nil {
			return nil, fmt.Errorf("control line %q has an invalid base64 value: %w", line, err)
		}

		control.Value = decoded
		control.HasValue = true
	case strings.HasPrefix(rest, ":"):
		control.Value = []byte(strings.TrimPrefix(rest[1:], " "))
		control.HasValue = true
	default:
		return nil, fmt.Errorf("control line %q has trailing content %q", line, rest)
	}

	return control, nil
}
