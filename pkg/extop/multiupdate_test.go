// Copyright 2025 SGNL.ai, Inc.

package extop_test

import (
	"testing"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

func TestParseErrorBehavior(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    extop.ErrorBehavior
		wantErr bool
	}{
		"atomic":            {input: "atomic", want: extop.ErrorBehaviorAtomic},
		"abort_on_error":    {input: "abort-on-error", want: extop.ErrorBehaviorAbortOnError},
		"continue_on_error": {input: "continue-on-error", want: extop.ErrorBehaviorContinueOnError},
		"unknown":           {input: "sometimes", wantErr: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := extop.ParseErrorBehavior(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestEncodeMultiUpdate(t *testing.T) {
	requests := []*extop.PendingRequest{
		{
			Op: controls.OpAdd,
			Record: &ldif.ChangeRecord{
				Type: ldif.ChangeAdd,
				DN:   "uid=a,dc=example,dc=com",
				Attributes: []ldif.Attribute{
					{Name: "objectClass", Values: [][]byte{[]byte("person")}},
					{Name: "cn", Values: [][]byte{[]byte("Alice")}},
				},
			},
		},
		{
			Op:     controls.OpDelete,
			Record: &ldif.ChangeRecord{Type: ldif.ChangeDelete, DN: "uid=b,dc=example,dc=com"},
		},
		{
			Op: controls.OpModify,
			Record: &ldif.ChangeRecord{
				Type: ldif.ChangeModify,
				DN:   "uid=c,dc=example,dc=com",
				Mods: []ldif.Modification{
					{Op: ldif.ModReplace, Name: "cn", Values: [][]byte{[]byte("Carol")}},
				},
			},
			Controls: []ldap.Control{controls.NewPermissiveModify()},
		},
		{
			Op: controls.OpModifyDN,
			Record: &ldif.ChangeRecord{
				Type:         ldif.ChangeModifyDN,
				DN:           "uid=d,dc=example,dc=com",
				NewRDN:       "uid=dd",
				DeleteOldRDN: true,
				NewSuperior:  "ou=moved,dc=example,dc=com",
			},
		},
	}

	value, err := extop.EncodeMultiUpdate(extop.ErrorBehaviorAbortOnError, requests)
	require.NoError(t, err)

	decoded, err := ber.DecodePacketErr(value.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded.Children, 2)

	behavior, err := ber.ParseInt64(decoded.Children[0].Data.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(extop.ErrorBehaviorAbortOnError), behavior)

	elements := decoded.Children[1].Children
	require.Len(t, elements, 4)

	// Buffering order is preserved; the third element carries its controls.
	assert.Len(t, elements[2].Children, 2)
	assert.Len(t, elements[0].Children, 1)

	// The add protocol op leads with the DN.
	addOp := elements[0].Children[0]
	require.NotEmpty(t, addOp.Children)
	assert.Equal(t, "uid=a,dc=example,dc=com", string(addOp.Children[0].Data.Bytes()))
}

func TestDecodeMultiUpdateResult(t *testing.T) {
	inner := func(code int64) *ber.Packet {
		packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPResult")
		packet.AppendChild(ber.NewInteger(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, code, "resultCode"))
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "matchedDN"))
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, "", "diagnosticMessage"))

		return packet
	}

	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "MultiUpdateResponse")
	value.AppendChild(ber.NewInteger(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated,
		int64(extop.ChangesAppliedPartial), "changesApplied"))

	results := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "results")
	results.AppendChild(inner(0))
	results.AppendChild(inner(32))
	value.AppendChild(results)

	response := ldapresult.NewExtended(ldapresult.Success, extop.OIDMultiUpdate, value.Bytes())

	decoded, err := extop.DecodeMultiUpdateResult(response)
	require.NoError(t, err)

	assert.Equal(t, extop.ChangesAppliedPartial, decoded.ChangesApplied)
	require.Len(t, decoded.Results, 2)

	failure := decoded.FirstFailure()
	require.NotNil(t, failure)
	assert.Equal(t, ldapresult.NoSuchObject, failure.Code())
}

func TestDecodeMultiUpdateResultMissingValue(t *testing.T) {
	_, err := extop.DecodeMultiUpdateResult(ldapresult.NewExtended(ldapresult.Success, "", nil))
	require.Error(t, err)
	assert.Equal(t, ldapresult.DecodingError, ldapresult.CodeOf(err))
}
