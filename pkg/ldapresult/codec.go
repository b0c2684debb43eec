// Copyright 2025 SGNL.ai, Inc.

package ldapresult

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// BER tags for the optional trailing elements of an LDAPResult.
const (
	tagReferralURLs     = 3 // [3] SEQUENCE OF LDAPString, context class
	tagResponseControls = 0 // [0] controls sequence, context class
)

// Decode parses the LDAPResult protocol-op shape from wire bytes:
//
//	SEQUENCE {
//	    resultCode         ENUMERATED,
//	    matchedDN          LDAPDN,
//	    diagnosticMessage  LDAPString,
//	    referral           [3] SEQUENCE OF LDAPString OPTIONAL }
//	controls               [0] SEQUENCE OF Control OPTIONAL
//
// Empty matchedDN and diagnosticMessage decode to absent. Decoding is
// side-effect-free on failure and returns a single decode error with a
// human-readable cause.
func Decode(data []byte, messageID int) (*Result, error) {
	packet, err := ber.DecodePacketErr(data)
	if err != nil {
		return nil, WrapError(DecodingError, err, "Failed to decode LDAP result sequence")
	}

	return DecodePacket(packet, messageID)
}

// DecodePacket parses an already-decoded BER packet holding the LDAPResult
// shape.
func DecodePacket(packet *ber.Packet, messageID int) (*Result, error) {
	if packet == nil || len(packet.Children) < 3 {
		return nil, NewError(DecodingError,
			"Failed to decode LDAP result: expected at least 3 elements, got %d", childCount(packet))
	}

	code, err := ber.ParseInt64(packet.Children[0].Data.Bytes())
	if err != nil {
		return nil, WrapError(DecodingError, err, "Failed to decode LDAP result code")
	}

	matchedDN := readString(packet.Children[1])
	diagnosticMessage := readString(packet.Children[2])

	referralURLs := []string{}
	responseControls := []Control{}

	for _, child := range packet.Children[3:] {
		if child.ClassType != ber.ClassContext {
			return nil, NewError(DecodingError,
				"Failed to decode LDAP result: unexpected element of class %d after diagnostic message",
				child.ClassType)
		}

		switch child.Tag {
		case tagReferralURLs:
			for _, ref := range child.Children {
				referralURLs = append(referralURLs, readString(ref))
			}
		case tagResponseControls:
			decoded, err := decodeControls(child)
			if err != nil {
				return nil, err
			}

			responseControls = decoded
		default:
			return nil, NewError(DecodingError,
				"Failed to decode LDAP result: unexpected context tag %d", child.Tag)
		}
	}

	return New(Code(code),
		WithMessageID(messageID),
		WithMatchedDN(matchedDN),
		WithDiagnosticMessage(diagnosticMessage),
		WithReferralURLs(referralURLs...),
		WithResponseControls(responseControls...)), nil
}

func childCount(packet *ber.Packet) int {
	if packet == nil {
		return 0
	}

	return len(packet.Children)
}

func readString(packet *ber.Packet) string {
	if s, ok := packet.Value.(string); ok {
		return s
	}

	return string(packet.Data.Bytes())
}

func decodeControls(packet *ber.Packet) ([]Control, error) {
	controls := make([]Control, 0, len(packet.Children))

	for _, child := range packet.Children {
		if len(child.Children) == 0 {
			return nil, NewError(DecodingError,
				"Failed to decode response control: empty control sequence")
		}

		control := Control{OID: readString(child.Children[0])}

		for _, elem := range child.Children[1:] {
			switch elem.Tag {
			case ber.TagBoolean:
				value, ok := elem.Value.(bool)
				if !ok {
					return nil, NewError(DecodingError,
						"Failed to decode response control %s: malformed criticality", control.OID)
				}

				control.Critical = value
			case ber.TagOctetString:
				control.Value = append([]byte(nil), elem.Data.Bytes()...)
				control.HasValue = true
			default:
				return nil, NewError(DecodingError,
					"Failed to decode response control %s: unexpected element tag %d", control.OID, elem.Tag)
			}
		}

		controls = append(controls, control)
	}

	return controls, nil
}

// Encode renders the result back into the LDAPResult protocol-op shape.
// Decoding followed by encoding yields byte-identical referral and control
// sequences for DER-shaped input.
func (r *Result) Encode() []byte {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "LDAPResult")
	packet.AppendChild(ber.NewInteger(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(r.code), "resultCode"))
	packet.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, r.matchedDN, "matchedDN"))
	packet.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, r.diagnosticMessage, "diagnosticMessage"))

	if len(r.referralURLs) > 0 {
		referrals := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagReferralURLs, nil, "referral")
		for _, url := range r.referralURLs {
			referrals.AppendChild(ber.NewString(
				ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, url, "LDAPURL"))
		}

		packet.AppendChild(referrals)
	}

	if len(r.responseControls) > 0 {
		packet.AppendChild(EncodeControls(r.responseControls))
	}

	return packet.Bytes()
}

// EncodeControls renders a controls sequence under the [0] context tag.
func EncodeControls(controls []Control) *ber.Packet {
	sequence := ber.Encode(ber.ClassContext, ber.TypeConstructed, tagResponseControls, nil, "controls")

	for _, control := range controls {
		child := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "control")
		child.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, control.OID, "controlType"))

		if control.Critical {
			child.AppendChild(ber.NewBoolean(
				ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "criticality"))
		}

		if control.HasValue {
			child.AppendChild(ber.NewString(
				ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(control.Value), "controlValue"))
		}

		sequence.AppendChild(child)
	}

	return sequence
}
