// Copyright 2025 SGNL.ai, Inc.

package controls_test

import (
	"testing"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

func TestFlagControls(t *testing.T) {
	tests := map[string]struct {
		control      *controls.Control
		wantOID      string
		wantCritical bool
	}{
		"no_op":             {control: controls.NewNoOp(), wantOID: controls.OIDNoOp, wantCritical: true},
		"manage_dsa_it":     {control: controls.NewManageDSAIT(), wantOID: controls.OIDManageDSAIT, wantCritical: true},
		"permissive_modify": {control: controls.NewPermissiveModify(), wantOID: controls.OIDPermissiveModify},
		"subtree_delete":    {control: controls.NewSubtreeDelete(), wantOID: controls.OIDSubtreeDelete, wantCritical: true},
		"hard_delete":       {control: controls.NewHardDelete(), wantOID: controls.OIDHardDelete, wantCritical: true},
		"soft_delete":       {control: controls.NewSoftDelete(), wantOID: controls.OIDSoftDelete, wantCritical: true},
		"replication_repair": {
			control: controls.NewReplicationRepair(), wantOID: controls.OIDReplicationRepair, wantCritical: true,
		},
		"ignore_no_user_modification": {
			control:      controls.NewIgnoreNoUserModification(),
			wantOID:      controls.OIDIgnoreNoUserModification,
			wantCritical: true,
		},
		"name_with_entry_uuid": {
			control: controls.NewNameWithEntryUUID(), wantOID: controls.OIDNameWithEntryUUID, wantCritical: true,
		},
		"undelete": {control: controls.NewUndelete(), wantOID: controls.OIDUndelete, wantCritical: true},
		"password_policy": {
			control: controls.NewPasswordPolicy(), wantOID: controls.OIDPasswordPolicy,
		},
		"retire_password": {
			control: controls.NewRetirePassword(), wantOID: controls.OIDRetirePassword, wantCritical: true,
		},
		"purge_password": {
			control: controls.NewPurgePassword(), wantOID: controls.OIDPurgePassword, wantCritical: true,
		},
		"authorization_identity": {
			control: controls.NewAuthorizationIdentity(), wantOID: controls.OIDAuthorizationIdentity,
		},
		"get_authorization_entry": {
			control: controls.NewGetAuthorizationEntry(), wantOID: controls.OIDGetAuthorizationEntry,
		},
		"get_user_resource_limits": {
			control: controls.NewGetUserResourceLimits(), wantOID: controls.OIDGetUserResourceLimits,
		},
		"suppress_referential_integrity": {
			control:      controls.NewSuppressReferentialIntegrityUpdates(),
			wantOID:      controls.OIDSuppressReferentialIntegrityUpdates,
			wantCritical: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.wantOID, tt.control.GetControlType())
			assert.Equal(t, tt.wantCritical, tt.control.Critical())
			assert.Nil(t, tt.control.Value())
		})
	}
}

func TestControlEncodeShape(t *testing.T) {
	control := controls.NewProxiedAuthV2("dn:uid=proxy,dc=example,dc=com")

	packet := control.Encode()
	require.Len(t, packet.Children, 3)

	assert.Equal(t, controls.OIDProxiedAuthV2, string(packet.Children[0].Data.Bytes()))
	assert.Equal(t, true, packet.Children[1].Value)
	assert.Equal(t, "dn:uid=proxy,dc=example,dc=com", string(packet.Children[2].Data.Bytes()))
}

func TestControlEncodeOmitsDefaultCriticality(t *testing.T) {
	packet := controls.NewPermissiveModify().Encode()

	// Non-critical flag controls carry only the OID element.
	require.Len(t, packet.Children, 1)
}

func TestNewAssertion(t *testing.T) {
	control, err := controls.NewAssertion("(objectClass=person)")
	require.NoError(t, err)

	assert.Equal(t, controls.OIDAssertion, control.GetControlType())
	assert.True(t, control.Critical())
	assert.NotEmpty(t, control.Value())

	_, err = controls.NewAssertion("(objectClass=person")
	assert.Error(t, err)
}

func TestNewProxiedAuthV1ValueShape(t *testing.T) {
	control := controls.NewProxiedAuthV1("uid=proxy,dc=example,dc=com")

	packet, err := ber.DecodePacketErr(control.Value())
	require.NoError(t, err)
	require.Len(t, packet.Children, 1)
	assert.Equal(t, "uid=proxy,dc=example,dc=com", string(packet.Children[0].Data.Bytes()))
}

func TestNewTransactionSpecification(t *testing.T) {
	control := controls.NewTransactionSpecification([]byte{0x01, 0x02})

	assert.Equal(t, controls.OIDTransactionSpecification, control.GetControlType())
	assert.True(t, control.Critical())
	assert.Equal(t, []byte{0x01, 0x02}, control.Value())
}

func TestPreAndPostRead(t *testing.T) {
	pre := controls.NewPreRead([]string{"cn", "mail"})
	post := controls.NewPostRead(nil)

	assert.Equal(t, controls.OIDPreRead, pre.GetControlType())
	assert.Equal(t, controls.OIDPostRead, post.GetControlType())

	packet, err := ber.DecodePacketErr(pre.Value())
	require.NoError(t, err)
	require.Len(t, packet.Children, 2)
	assert.Equal(t, "cn", string(packet.Children[0].Data.Bytes()))
	assert.Equal(t, "mail", string(packet.Children[1].Data.Bytes()))

	empty, err := ber.DecodePacketErr(post.Value())
	require.NoError(t, err)
	assert.Empty(t, empty.Children)
}

func TestTokenizeAttributes(t *testing.T) {
	tests := map[string]struct {
		input string
		want  []string
	}{
		"comma_separated":      {input: "cn,mail,uid", want: []string{"cn", "mail", "uid"}},
		"whitespace_separated": {input: "cn mail\tuid", want: []string{"cn", "mail", "uid"}},
		"mixed_with_empties":   {input: " cn,, mail , ", want: []string{"cn", "mail"}},
		"empty":                {input: "", want: []string{}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, controls.TokenizeAttributes(tt.input))
		})
	}
}

func TestAssuranceLevelParsing(t *testing.T) {
	local, err := controls.ParseLocalAssuranceLevel("processed-all-servers")
	require.NoError(t, err)
	assert.Equal(t, controls.LocalLevelProcessedAllServers, local)

	remote, err := controls.ParseRemoteAssuranceLevel("received-all-remote-locations")
	require.NoError(t, err)
	assert.Equal(t, controls.RemoteLevelReceivedAllRemoteLocations, remote)

	_, err = controls.ParseLocalAssuranceLevel("bogus")
	assert.Error(t, err)

	_, err = controls.ParseRemoteAssuranceLevel("bogus")
	assert.Error(t, err)
}

func TestNewAssuredReplication(t *testing.T) {
	control := controls.NewAssuredReplication(
		controls.LocalLevelReceivedAnyServer,
		controls.RemoteLevelProcessedAllRemoteServers,
		2*time.Second,
	)

	packet, err := ber.DecodePacketErr(control.Value())
	require.NoError(t, err)
	require.Len(t, packet.Children, 3)

	local, err := ber.ParseInt64(packet.Children[0].Data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(controls.LocalLevelReceivedAnyServer), local)

	timeout, err := ber.ParseInt64(packet.Children[2].Data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(2000), timeout)

	// No timeout element when unset.
	unset := controls.NewAssuredReplication(controls.LocalLevelNone, controls.RemoteLevelNone, 0)
	packet, err = ber.DecodePacketErr(unset.Value())
	require.NoError(t, err)
	assert.Len(t, packet.Children, 2)
}

func TestSuppressTypes(t *testing.T) {
	parsed, err := controls.ParseSuppressType("last-login-ip")
	require.NoError(t, err)
	assert.Equal(t, controls.SuppressLastLoginIP, parsed)

	_, err = controls.ParseSuppressType("bogus")
	assert.Error(t, err)

	control := controls.NewSuppressOperationalAttributeUpdates(
		[]controls.SuppressType{controls.SuppressLastAccessTime, controls.SuppressLastMod})

	packet, err := ber.DecodePacketErr(control.Value())
	require.NoError(t, err)
	require.Len(t, packet.Children, 1)
	assert.Len(t, packet.Children[0].Children, 2)
}

func TestFromRaw(t *testing.T) {
	raw := ldapresult.Control{OID: "1.2.3.4", Critical: true, Value: []byte("v"), HasValue: true}
	control := controls.FromRaw(raw)

	assert.Equal(t, "1.2.3.4", control.GetControlType())
	assert.True(t, control.Critical())
	assert.Equal(t, []byte("v"), control.Value())
}

func TestOperationPurpose(t *testing.T) {
	control := controls.NewOperationPurpose("ldapmodify", "1.0", "nightly sync")

	assert.Equal(t, controls.OIDOperationPurpose, control.GetControlType())

	packet, err := ber.DecodePacketErr(control.Value())
	require.NoError(t, err)
	require.Len(t, packet.Children, 3)
	assert.Equal(t, "ldapmodify", string(packet.Children[0].Data.Bytes()))
	assert.Equal(t, "1.0", string(packet.Children[1].Data.Bytes()))
	assert.Equal(t, "nightly sync", string(packet.Children[2].Data.Bytes()))
}
