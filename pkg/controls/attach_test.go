// Copyright 2025 SGNL.ai, Inc.

package controls_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
)

// ops maps the attachment table columns for compact test cases.
type ops struct {
	add, del, mod, moddn, search bool
}

func TestAppliesTo(t *testing.T) {
	tests := map[string]struct {
		oid  string
		want ops
	}{
		"permissive_modify": {oid: controls.OIDPermissiveModify, want: ops{mod: true}},
		"subtree_delete":    {oid: controls.OIDSubtreeDelete, want: ops{del: true}},
		"hard_delete":       {oid: controls.OIDHardDelete, want: ops{del: true}},
		"soft_delete":       {oid: controls.OIDSoftDelete, want: ops{del: true}},
		"suppress_referential_integrity": {
			oid:  controls.OIDSuppressReferentialIntegrityUpdates,
			want: ops{del: true, moddn: true},
		},
		"ignore_no_user_modification": {oid: controls.OIDIgnoreNoUserModification, want: ops{add: true}},
		"name_with_entry_uuid":        {oid: controls.OIDNameWithEntryUUID, want: ops{add: true}},
		"undelete":                    {oid: controls.OIDUndelete, want: ops{add: true}},
		"pre_read":                    {oid: controls.OIDPreRead, want: ops{del: true, mod: true, moddn: true}},
		"post_read":                   {oid: controls.OIDPostRead, want: ops{add: true, mod: true, moddn: true}},
		"password_policy":             {oid: controls.OIDPasswordPolicy, want: ops{add: true, mod: true}},
		"no_op": {
			oid:  controls.OIDNoOp,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"replication_repair": {
			oid:  controls.OIDReplicationRepair,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"assured_replication": {
			oid:  controls.OIDAssuredReplication,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"assertion": {
			oid:  controls.OIDAssertion,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"operation_purpose": {
			oid:  controls.OIDOperationPurpose,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"manage_dsa_it": {
			oid:  controls.OIDManageDSAIT,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"suppress_op_attr_updates": {
			oid:  controls.OIDSuppressOperationalAttributeUpdates,
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
		"proxied_auth_v1": {
			oid:  controls.OIDProxiedAuthV1,
			want: ops{add: true, del: true, mod: true, moddn: true, search: true},
		},
		"proxied_auth_v2": {
			oid:  controls.OIDProxiedAuthV2,
			want: ops{add: true, del: true, mod: true, moddn: true, search: true},
		},
		"unknown_oid_defaults_to_writes": {
			oid:  "1.2.3.4.5",
			want: ops{add: true, del: true, mod: true, moddn: true},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want.add, controls.AppliesTo(tt.oid, controls.OpAdd), "add")
			assert.Equal(t, tt.want.del, controls.AppliesTo(tt.oid, controls.OpDelete), "delete")
			assert.Equal(t, tt.want.mod, controls.AppliesTo(tt.oid, controls.OpModify), "modify")
			assert.Equal(t, tt.want.moddn, controls.AppliesTo(tt.oid, controls.OpModifyDN), "modify DN")
			assert.Equal(t, tt.want.search, controls.AppliesTo(tt.oid, controls.OpSearch), "search")
		})
	}
}

func TestFilterFor(t *testing.T) {
	configured := []*controls.Control{
		controls.NewPermissiveModify(),
		controls.NewSubtreeDelete(),
		controls.NewManageDSAIT(),
	}

	deletes := controls.FilterFor(controls.OpDelete, configured)
	oids := make([]string, 0, len(deletes))

	for _, control := range deletes {
		oids = append(oids, control.GetControlType())
	}

	assert.Equal(t, []string{controls.OIDSubtreeDelete, controls.OIDManageDSAIT}, oids)
}
