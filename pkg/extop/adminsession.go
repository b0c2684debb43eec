// Copyright 2025 SGNL.ai, Inc.

package extop

import (
	ber "github.com/go-asn1-ber/asn1-ber"
)

// OIDStartAdministrativeSession is the proprietary request that dedicates
// worker threads to this client's connection, issued before the bind on each
// new connection when administrative sessions are enabled.
const OIDStartAdministrativeSession = "1.3.6.1.4.1.30221.2.6.8"

// EncodeStartAdministrativeSession renders the request value identifying the
// client session.
func EncodeStartAdministrativeSession(clientName string) *ber.Packet {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "StartAdminSessionValue")
	value.AppendChild(ber.NewString(
		ber.ClassContext, ber.TypePrimitive, 0, clientName, "clientName"))

	return value
}
