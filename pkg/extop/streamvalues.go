// Copyright 2025 SGNL.ai, Inc.

package extop

import (
	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// OIDStreamProxyValues is the intermediate response that streams batches of
// values (typically DNs) to the client during a long-running operation.
const OIDStreamProxyValues = "1.3.6.1.4.1.30221.2.6.9"

// StreamProxyValuesResult enumerates the per-batch outcome of a
// stream-proxy-values intermediate response.
type StreamProxyValuesResult int

// The stream-proxy-values outcomes.
const (
	StreamResultAllValuesReturned StreamProxyValuesResult = iota
	StreamResultMoreValuesToReturn
	StreamResultAttributeNotIndexed
	StreamResultProcessingError
)

// StreamProxyValues is a decoded stream-proxy-values intermediate response.
type StreamProxyValues struct {
	AttributeName     string
	Result            StreamProxyValuesResult
	DiagnosticMessage string
	Values            [][]byte
}

// Context tags of the stream-proxy-values value elements.
const (
	tagStreamAttributeName     = 0
	tagStreamResult            = 1
	tagStreamDiagnosticMessage = 2
	tagStreamValues            = 3
)

// DecodeStreamProxyValues parses a stream-proxy-values intermediate response
// value.
func DecodeStreamProxyValues(value []byte) (*StreamProxyValues, error) {
	packet, err := ber.DecodePacketErr(value)
	if err != nil {
		return nil, ldapresult.WrapError(ldapresult.DecodingError, err,
			"Failed to decode a stream proxy values intermediate response")
	}

	decoded := &StreamProxyValues{}
	sawResult := false

	for _, child := range packet.Children {
		switch child.Tag {
		case tagStreamAttributeName:
			decoded.AttributeName = string(child.Data.Bytes())
		case tagStreamResult:
			result, err := ber.ParseInt64(child.Data.Bytes())
			if err != nil {
				return nil, ldapresult.WrapError(ldapresult.DecodingError, err,
					"Failed to decode the stream proxy values result element")
			}

			if result < 0 || result > int64(StreamResultProcessingError) {
				return nil, ldapresult.NewError(ldapresult.DecodingError,
					"The stream proxy values result %d is out of range", result)
			}

			decoded.Result = StreamProxyValuesResult(result)
			sawResult = true
		case tagStreamDiagnosticMessage:
			decoded.DiagnosticMessage = string(child.Data.Bytes())
		case tagStreamValues:
			for _, value := range child.Children {
				decoded.Values = append(decoded.Values, append([]byte(nil), value.Data.Bytes()...))
			}
		default:
			return nil, ldapresult.NewError(ldapresult.DecodingError,
				"The stream proxy values response contains an unexpected element with tag %d", child.Tag)
		}
	}

	if !sawResult {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"The stream proxy values response is missing its result element")
	}

	return decoded, nil
}
