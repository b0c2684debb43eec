// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

// Password attributes whose modification triggers the conditional password
// controls.
var passwordAttributes = []string{"userPassword", "authPassword"}

// undeleteAttribute on an add entry turns the add into an undelete.
const undeleteAttribute = "ds-undelete-from-dn"

// composer builds each request's control list in insertion order: global
// per-operation-type controls first, then global cross-operation controls,
// then record-derived conditional controls.
type composer struct {
	settings *Settings
}

// opFor maps a change record to its operation type.
func opFor(record *ldif.ChangeRecord) controls.Op {
	switch record.Type {
	case ldif.ChangeAdd:
		return controls.OpAdd
	case ldif.ChangeDelete:
		return controls.OpDelete
	case ldif.ChangeModify:
		return controls.OpModify
	default:
		return controls.OpModifyDN
	}
}

// compose returns the control list for one record's request. When grouped is
// true the proxied authorization control is withheld; it belongs on the outer
// grouping request only.
func (c *composer) compose(record *ldif.ChangeRecord, grouped bool) []ldap.Control {
	op := opFor(record)

	out := make([]ldap.Control, 0, 8)

	for _, control := range c.settings.PerOpControls[op] {
		out = append(out, control)
	}

	for _, control := range controls.FilterFor(op, c.settings.GlobalControls) {
		out = append(out, control)
	}

	if c.settings.ProxiedAuth != nil && !grouped {
		out = append(out, c.settings.ProxiedAuth)
	}

	for _, raw := range record.Controls {
		out = append(out, controls.FromRaw(raw))
	}

	if op == controls.OpModify && record.TouchesAttribute(passwordAttributes...) {
		for _, control := range c.settings.PasswordControls {
			out = append(out, control)
		}
	}

	if op == controls.OpAdd && record.HasAttribute(undeleteAttribute) {
		out = append(out, controls.NewUndelete())
	}

	return out
}

// searchControls returns the control list for a bulk-modify search: only the
// search-applicable global controls, plus proxied authorization whenever it is
// configured.
func (c *composer) searchControls() []ldap.Control {
	out := make([]ldap.Control, 0, 2)

	for _, control := range controls.FilterFor(controls.OpSearch, c.settings.GlobalControls) {
		out = append(out, control)
	}

	if c.settings.ProxiedAuth != nil {
		out = append(out, c.settings.ProxiedAuth)
	}

	return out
}
