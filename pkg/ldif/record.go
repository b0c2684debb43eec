// Copyright 2025 SGNL.ai, Inc.

// Package ldif reads and writes LDAP change records in the LDIF interchange
// format (RFC 2849), extended with per-record control lines.
package ldif

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// ChangeType tags a change record.
type ChangeType int

// The change-record kinds the engine dispatches on.
const (
	ChangeAdd ChangeType = iota
	ChangeDelete
	ChangeModify
	ChangeModifyDN
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdd:
		return "add"
	case ChangeDelete:
		return "delete"
	case ChangeModify:
		return "modify"
	case ChangeModifyDN:
		return "moddn"
	default:
		return "unknown"
	}
}

// ModifyOp is one modification's operation.
type ModifyOp int

// The modification operations of a modify change record.
const (
	ModAdd ModifyOp = iota
	ModDelete
	ModReplace
	ModIncrement
)

func (o ModifyOp) String() string {
	switch o {
	case ModAdd:
		return "add"
	case ModDelete:
		return "delete"
	case ModReplace:
		return "replace"
	case ModIncrement:
		return "increment"
	default:
		return "unknown"
	}
}

// Attribute is one attribute of an add record. Values stay raw bytes so
// binary content survives intact.
type Attribute struct {
	Name   string
	Values [][]byte
}

// Modification is one change of a modify record.
type Modification struct {
	Op     ModifyOp
	Name   string
	Values [][]byte
}

// ChangeRecord is a tagged value holding exactly one change. A malformed DN
// does not block dispatch; the server may apply special handling to it.
type ChangeRecord struct {
	Type ChangeType
	DN   string

	// Attributes is set for add records.
	Attributes []Attribute

	// Mods is set for modify records.
	Mods []Modification

	// NewRDN, DeleteOldRDN and NewSuperior are set for modify DN records.
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string

	// Controls holds the record's own control lines, dispatched ahead of any
	// globally-configured controls.
	Controls []ldapresult.Control
}

// HasAttribute reports whether an add record carries the named attribute,
// compared case-insensitively.
func (r *ChangeRecord) HasAttribute(name string) bool {
	for _, attribute := range r.Attributes {
		if strings.EqualFold(attribute.Name, name) {
			return true
		}
	}

	return false
}

// TouchesAttribute reports whether any modification of a modify record, or
// any attribute of an add record, targets one of the named attributes.
func (r *ChangeRecord) TouchesAttribute(names ...string) bool {
	for _, name := range names {
		if r.HasAttribute(name) {
			return true
		}

		for _, mod := range r.Mods {
			if strings.EqualFold(mod.Name, name) {
				return true
			}
		}
	}

	return false
}

// WithDN returns a copy of the record retargeted at the given DN, preserving
// modifications and record-level controls.
func (r *ChangeRecord) WithDN(dn string) *ChangeRecord {
	clone := *r
	clone.DN = dn

	return &clone
}

// Render writes the record back out as LDIF change-record text, without a
// trailing blank line.
func (r *ChangeRecord) Render() string {
	var b strings.Builder

	writeLine(&b, "dn", []byte(r.DN))

	for _, control := range r.Controls {
		b.WriteString(renderControlLine(control))
	}

	switch r.Type {
	case ChangeAdd:
		b.WriteString("changetype: add\n")

		for _, attribute := range r.Attributes {
			for _, value := range attribute.Values {
				writeLine(&b, attribute.Name, value)
			}
		}
	case ChangeDelete:
		b.WriteString("changetype: delete\n")
	case ChangeModify:
		b.WriteString("changetype: modify\n")

		for i, mod := range r.Mods {
			fmt.Fprintf(&b, "%s: %s\n", mod.Op, mod.Name)

			for _, value := range mod.Values {
				writeLine(&b, mod.Name, value)
			}

			if i < len(r.Mods)-1 {
				b.WriteString("-\n")
			}
		}
	case ChangeModifyDN:
		b.WriteString("changetype: moddn\n")
		writeLine(&b, "newrdn", []byte(r.NewRDN))

		if r.DeleteOldRDN {
			b.WriteString("deleteoldrdn: 1\n")
		} else {
			b.WriteString("deleteoldrdn: 0\n")
		}

		if r.NewSuperior != "" {
			writeLine(&b, "newsuperior", []byte(r.NewSuperior))
		}
	}

	return b.String()
}

func renderControlLine(control ldapresult.Control) string {
	line := "control: " + control.OID

	if control.Critical {
		line += " true"
	}

	if control.HasValue {
		line += ":: " + base64.StdEncoding.EncodeToString(control.Value)
	}

	return line + "\n"
}

func writeLine(b *strings.Builder, name string, value []byte) {
	if needsBase64(value) {
		fmt.Fprintf(b, "%s:: %s\n", name, base64.StdEncoding.EncodeToString(value))

		return
	}

	fmt.Fprintf(b, "%s: %s\n", name, value)
}

// needsBase64 reports whether an LDIF value must be base64-encoded per the
// SAFE-STRING rules of RFC 2849.
func needsBase64(value []byte) bool {
	if len(value) == 0 {
		return false
	}

	switch value[0] {
	case ' ', ':', '<':
		return true
	}

	if value[len(value)-1] == ' ' {
		return true
	}

	for _, c := range value {
		if c == '\n' || c == '\r' || c == 0 || c >= 0x80 {
			return true
		}
	}

	return false
}
