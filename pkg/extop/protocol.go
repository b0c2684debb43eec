// Copyright 2025 SGNL.ai, Inc.

// Package extop encodes the extended requests the batch tool issues
// (start/end transaction, multi-update, start administrative session) and
// decodes their responses and related intermediate responses.
package extop

import (
	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

// LDAP protocol-op application tags for the modifying operations.
const (
	tagAddRequest      = 8
	tagDelRequest      = 10
	tagModifyRequest   = 6
	tagModifyDNRequest = 12
)

// PendingRequest is one buffered modifying operation, held back from
// immediate dispatch by the multi-update coordinator.
type PendingRequest struct {
	Op       controls.Op
	Record   *ldif.ChangeRecord
	Controls []ldap.Control
}

// encodeProtocolOp renders the LDAP protocol op for a pending request.
func encodeProtocolOp(request *PendingRequest) (*ber.Packet, error) {
	record := request.Record

	switch request.Op {
	case controls.OpAdd:
		packet := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tagAddRequest, nil, "Add Request")
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, record.DN, "DN"))

		attributes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Attributes")
		for _, attribute := range record.Attributes {
			attributes.AppendChild(encodePartialAttribute(attribute.Name, attribute.Values))
		}

		packet.AppendChild(attributes)

		return packet, nil
	case controls.OpDelete:
		return ber.NewString(
			ber.ClassApplication, ber.TypePrimitive, tagDelRequest, record.DN, "Del Request"), nil
	case controls.OpModify:
		packet := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tagModifyRequest, nil, "Modify Request")
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, record.DN, "DN"))

		changes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Changes")
		for _, mod := range record.Mods {
			change := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Change")
			change.AppendChild(ber.NewInteger(
				ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(mod.Op), "Operation"))
			change.AppendChild(encodePartialAttribute(mod.Name, mod.Values))
			changes.AppendChild(change)
		}

		packet.AppendChild(changes)

		return packet, nil
	case controls.OpModifyDN:
		packet := ber.Encode(ber.ClassApplication, ber.TypeConstructed, tagModifyDNRequest, nil, "Modify DN Request")
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, record.DN, "DN"))
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, record.NewRDN, "New RDN"))
		packet.AppendChild(ber.NewBoolean(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, record.DeleteOldRDN, "Delete Old RDN"))

		if record.NewSuperior != "" {
			packet.AppendChild(ber.NewString(
				ber.ClassContext, ber.TypePrimitive, 0, record.NewSuperior, "New Superior"))
		}

		return packet, nil
	default:
		return nil, ldapresult.NewError(ldapresult.EncodingError,
			"Cannot encode a %s operation into a multi-update request", request.Op)
	}
}

func encodePartialAttribute(name string, values [][]byte) *ber.Packet {
	attribute := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
	attribute.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, name, "Type"))

	set := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "Values")
	for _, value := range values {
		set.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(value), "Value"))
	}

	attribute.AppendChild(set)

	return attribute
}

func encodeRequestControls(ctls []ldap.Control) *ber.Packet {
	sequence := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "Controls")
	for _, control := range ctls {
		sequence.AppendChild(control.Encode())
	}

	return sequence
}
