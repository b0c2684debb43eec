// Copyright 2025 SGNL.ai, Inc.

package controls

import (
	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// DecodePagedResponse parses a simple-paged-results response control value:
//
//	realSearchControlValue ::= SEQUENCE { size INTEGER, cookie OCTET STRING }
//
// An empty cookie means the result set is exhausted.
func DecodePagedResponse(control *ldapresult.Control) (size int, cookie []byte, err error) {
	if control == nil || !control.HasValue {
		return 0, nil, ldapresult.NewError(ldapresult.DecodingError,
			"The simple paged results response control has no value")
	}

	packet, decodeErr := ber.DecodePacketErr(control.Value)
	if decodeErr != nil {
		return 0, nil, ldapresult.WrapError(ldapresult.DecodingError, decodeErr,
			"Failed to decode the simple paged results response control")
	}

	if len(packet.Children) != 2 {
		return 0, nil, ldapresult.NewError(ldapresult.DecodingError,
			"Failed to decode the simple paged results response control: expected 2 elements, got %d",
			len(packet.Children))
	}

	parsedSize, parseErr := ber.ParseInt64(packet.Children[0].Data.Bytes())
	if parseErr != nil {
		return 0, nil, ldapresult.WrapError(ldapresult.DecodingError, parseErr,
			"Failed to decode the simple paged results size element")
	}

	return int(parsedSize), append([]byte(nil), packet.Children[1].Data.Bytes()...), nil
}

// EncodePagedResponse renders a simple-paged-results control value. Used by
// fakes standing in for a directory server.
func EncodePagedResponse(size int, cookie []byte) []byte {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "realSearchControlValue")
	value.AppendChild(ber.NewInteger(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, int64(size), "size"))
	value.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(cookie), "cookie"))

	return value.Bytes()
}
