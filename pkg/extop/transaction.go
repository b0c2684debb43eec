// Copyright 2025 SGNL.ai, Inc.

package extop

import (
	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// Extended-operation OIDs for transactional grouping (RFC 5805).
const (
	OIDStartTransaction = "1.3.6.1.1.21.1"
	OIDEndTransaction   = "1.3.6.1.1.21.3"
)

// DecodeTransactionID extracts the transaction identifier from a successful
// start-transaction response.
func DecodeTransactionID(response *ldapresult.Extended) ([]byte, error) {
	if response == nil || len(response.Value()) == 0 {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"The start transaction response did not include a transaction ID")
	}

	return response.Value(), nil
}

// EncodeEndTransaction renders the end-transaction request value:
//
//	txnEndReq ::= SEQUENCE { commit BOOLEAN DEFAULT TRUE, identifier OCTET STRING }
//
// The commit element is omitted when true, per its DEFAULT.
func EncodeEndTransaction(txnID []byte, commit bool) *ber.Packet {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "txnEndReq")

	if !commit {
		value.AppendChild(ber.NewBoolean(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, false, "commit"))
	}

	value.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(txnID), "identifier"))

	return value
}

// DecodeEndTransactionFailure extracts the message ID of the failed inner
// operation from an end-transaction response value, when the server included
// one. Returns ldapresult.NoMessageID when absent.
func DecodeEndTransactionFailure(response *ldapresult.Extended) int {
	value := response.Value()
	if len(value) == 0 {
		return ldapresult.NoMessageID
	}

	packet, err := ber.DecodePacketErr(value)
	if err != nil || len(packet.Children) == 0 {
		return ldapresult.NoMessageID
	}

	if id, err := ber.ParseInt64(packet.Children[0].Data.Bytes()); err == nil {
		return int(id)
	}

	return ldapresult.NoMessageID
}
