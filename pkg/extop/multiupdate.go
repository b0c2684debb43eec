// Copyright 2025 SGNL.ai, Inc.

package extop

import (
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// OIDMultiUpdate is the proprietary multi-update extended operation.
const OIDMultiUpdate = "1.3.6.1.4.1.30221.2.6.17"

// ErrorBehavior selects how the server treats inner-operation failures in a
// multi-update request.
type ErrorBehavior int

// The selectable multi-update error behaviors.
const (
	ErrorBehaviorAtomic ErrorBehavior = iota
	ErrorBehaviorAbortOnError
	ErrorBehaviorContinueOnError
)

// ParseErrorBehavior parses the flag spelling of a multi-update error
// behavior.
func ParseErrorBehavior(s string) (ErrorBehavior, error) {
	switch s {
	case "atomic":
		return ErrorBehaviorAtomic, nil
	case "abort-on-error":
		return ErrorBehaviorAbortOnError, nil
	case "continue-on-error":
		return ErrorBehaviorContinueOnError, nil
	default:
		return 0, fmt.Errorf("unsupported multi-update error behavior %q", s)
	}
}

func (b ErrorBehavior) String() string {
	switch b {
	case ErrorBehaviorAtomic:
		return "atomic"
	case ErrorBehaviorAbortOnError:
		return "abort-on-error"
	case ErrorBehaviorContinueOnError:
		return "continue-on-error"
	default:
		return "unknown"
	}
}

// EncodeMultiUpdate renders the multi-update request value: the error
// behavior followed by the buffered requests, each carrying its protocol op
// and its own controls, in buffering order.
func EncodeMultiUpdate(behavior ErrorBehavior, requests []*PendingRequest) (*ber.Packet, error) {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "MultiUpdateValue")
	value.AppendChild(ber.NewInteger(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(behavior), "errorBehavior"))

	sequence := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "requests")

	for _, request := range requests {
		element := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "request")

		op, err := encodeProtocolOp(request)
		if err != nil {
			return nil, err
		}

		element.AppendChild(op)

		if len(request.Controls) > 0 {
			element.AppendChild(encodeRequestControls(request.Controls))
		}

		sequence.AppendChild(element)
	}

	value.AppendChild(sequence)

	return value, nil
}

// MultiUpdateResult is the decoded multi-update response value.
type MultiUpdateResult struct {
	// ChangesApplied reports whether the server applied none, all, or some of
	// the inner operations.
	ChangesApplied ChangesApplied

	// Results holds one result per dispatched inner operation, in request
	// order. May be shorter than the request count when the server stopped
	// early.
	Results []*ldapresult.Result
}

// ChangesApplied enumerates the server's summary of a multi-update outcome.
type ChangesApplied int

// The multi-update outcome summaries.
const (
	ChangesAppliedNone ChangesApplied = iota
	ChangesAppliedAll
	ChangesAppliedPartial
)

func (c ChangesApplied) String() string {
	switch c {
	case ChangesAppliedNone:
		return "none"
	case ChangesAppliedAll:
		return "all"
	case ChangesAppliedPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// DecodeMultiUpdateResult parses a multi-update response value: the
// changes-applied summary followed by a sequence of inner LDAPResult shapes.
func DecodeMultiUpdateResult(response *ldapresult.Extended) (*MultiUpdateResult, error) {
	value := response.Value()
	if len(value) == 0 {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"The multi-update response did not include a value")
	}

	packet, err := ber.DecodePacketErr(value)
	if err != nil {
		return nil, ldapresult.WrapError(ldapresult.DecodingError, err,
			"Failed to decode the multi-update response value")
	}

	if len(packet.Children) != 2 {
		return nil, ldapresult.NewError(ldapresult.DecodingError,
			"Failed to decode the multi-update response value: expected 2 elements, got %d",
			len(packet.Children))
	}

	applied, err := ber.ParseInt64(packet.Children[0].Data.Bytes())
	if err != nil {
		return nil, ldapresult.WrapError(ldapresult.DecodingError, err,
			"Failed to decode the multi-update changes-applied element")
	}

	result := &MultiUpdateResult{ChangesApplied: ChangesApplied(applied)}

	for _, child := range packet.Children[1].Children {
		inner, err := ldapresult.DecodePacket(child, ldapresult.NoMessageID)
		if err != nil {
			return nil, err
		}

		result.Results = append(result.Results, inner)
	}

	return result, nil
}

// FirstFailure returns the first inner result whose code is neither success
// nor no-operation, or nil when every inner operation succeeded.
func (r *MultiUpdateResult) FirstFailure() *ldapresult.Result {
	for _, inner := range r.Results {
		if !inner.Code().IsSuccess() {
			return inner
		}
	}

	return nil
}
