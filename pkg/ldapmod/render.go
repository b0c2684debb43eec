// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	parser "github.com/Azure/azure-storage-azcopy/v10/sddl"
	objectsid "github.com/bwmarrin/go-objectsid"
	"github.com/google/uuid"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
)

// Attributes with special Active Directory syntaxes whose raw bytes are
// decoded before display.
const (
	attrObjectGUID = "objectGUID"

	attrObjectSid          = "objectSid"
	attrSIDHistory         = "sIDHistory"
	attrCreatorSID         = "mS-DS-CreatorSID"
	attrSecurityIdentifier = "securityIdentifier"

	attrNTSecurityDescriptor = "nTSecurityDescriptor"
)

// RenderReadEntry renders a pre-read or post-read entry capture as indented
// LDIF-style lines, decoding GUID, SID and security-descriptor syntaxes into
// their string forms.
func RenderReadEntry(entry *controls.ReadEntry, indent string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%sdn: %s\n", indent, entry.DN)

	for _, attribute := range entry.Attributes {
		for _, value := range attribute.Values {
			text, encoded := renderValue(attribute.Name, value)
			if encoded {
				fmt.Fprintf(&b, "%s%s:: %s\n", indent, attribute.Name, text)
			} else {
				fmt.Fprintf(&b, "%s%s: %s\n", indent, attribute.Name, text)
			}
		}
	}

	return b.String()
}

func renderValue(name string, value []byte) (text string, base64Encoded bool) {
	switch {
	case strings.EqualFold(name, attrObjectGUID):
		guid, err := uuid.Parse(hex.EncodeToString(value))
		if err == nil {
			return guid.String(), false
		}
	case strings.EqualFold(name, attrObjectSid),
		strings.EqualFold(name, attrSIDHistory),
		strings.EqualFold(name, attrCreatorSID),
		strings.EqualFold(name, attrSecurityIdentifier):
		if len(value) >= 8 {
			return objectsid.Decode(value).String(), false
		}
	case strings.EqualFold(name, attrNTSecurityDescriptor):
		sddl, err := parser.SecurityDescriptorToString(value)
		if err == nil {
			return sddl, false
		}
	}

	if utf8.Valid(value) && !strings.ContainsAny(string(value), "\x00\r\n") {
		return string(value), false
	}

	return base64.StdEncoding.EncodeToString(value), true
}
