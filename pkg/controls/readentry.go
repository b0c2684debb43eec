// Copyright 2025 SGNL.ai, Inc.

package controls

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// ReadEntry is the entry capture carried by a pre-read or post-read response
// control.
type ReadEntry struct {
	DN         string
	Attributes []ReadAttribute
}

// ReadAttribute is one attribute of a captured entry. Values stay raw bytes
// so binary syntaxes survive intact.
type ReadAttribute struct {
	Name   string
	Values [][]byte
}

// DecodeReadEntry parses the SearchResultEntry shape carried by a pre-read or
// post-read response control value.
func DecodeReadEntry(control *ldapresult.Control) (*ReadEntry, error) {
	if control == nil || !control.HasValue {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"Failed to decode read entry: control has no value")
	}

	packet, err := ber.DecodePacketErr(control.Value)
	if err != nil {
		return nil, ldapresult.WrapError(ldapresult.DecodingError, err,
			"Failed to decode read entry from control %s", control.OID)
	}

	if len(packet.Children) != 2 {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"Failed to decode read entry: expected 2 elements, got %d", len(packet.Children))
	}

	entry := &ReadEntry{DN: readPacketString(packet.Children[0])}

	for _, attribute := range packet.Children[1].Children {
		if len(attribute.Children) != 2 {
			return nil, ldapresult.NewError(ldapresult.DecodingError,
				"Failed to decode read entry attribute: expected 2 elements, got %d", len(attribute.Children))
		}

		read := ReadAttribute{Name: readPacketString(attribute.Children[0])}
		for _, value := range attribute.Children[1].Children {
			read.Values = append(read.Values, append([]byte(nil), value.Data.Bytes()...))
		}

		entry.Attributes = append(entry.Attributes, read)
	}

	return entry, nil
}

// EncodeReadEntry renders a ReadEntry back into the SearchResultEntry shape.
// Used by tests and by fakes standing in for a directory server.
func EncodeReadEntry(entry *ReadEntry) []byte {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "SearchResultEntry")
	packet.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, entry.DN, "objectName"))

	attributes := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "attributes")

	for _, attribute := range entry.Attributes {
		child := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "PartialAttribute")
		child.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attribute.Name, "type"))

		values := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSet, nil, "vals")
		for _, value := range attribute.Values {
			values.AppendChild(ber.NewString(
				ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(value), "AttributeValue"))
		}

		child.AppendChild(values)
		attributes.AppendChild(child)
	}

	packet.AppendChild(attributes)

	return packet.Bytes()
}

func readPacketString(packet *ber.Packet) string {
	if s, ok := packet.Value.(string); ok {
		return s
	}

	return string(packet.Data.Bytes())
}

// String renders the captured entry as LDIF-style lines for output.
func (e *ReadEntry) String() string {
	out := fmt.Sprintf("dn: %s\n", e.DN)

	for _, attribute := range e.Attributes {
		for _, value := range attribute.Values {
			out += fmt.Sprintf("%s: %s\n", attribute.Name, value)
		}
	}

	return out
}
