// Copyright 2025 SGNL.ai, Inc.

// Package ldapresult models the LDAPResult shape shared by every directory
// response: result code, matched DN, diagnostic message, referral URLs and
// response controls, plus the message ID the response was bound to.
package ldapresult

import (
	"fmt"
	"strings"
)

// NoMessageID is the sentinel message ID for results that were produced
// locally rather than read off the wire.
const NoMessageID = -1

// Control is a request or response control: an OID, a criticality flag and an
// optional opaque value. Controls are immutable once built and freely
// shareable between requests.
type Control struct {
	OID      string
	Critical bool
	Value    []byte
	HasValue bool
}

// Result is an immutable value describing a server response.
//
// Empty matchedDN and diagnosticMessage normalize to absent (empty string);
// the referral and control slices normalize to empty, never nil.
type Result struct {
	messageID         int
	code              Code
	matchedDN         string
	diagnosticMessage string
	referralURLs      []string
	responseControls  []Control
}

// Option configures optional Result fields at construction time.
type Option func(*Result)

// WithMessageID binds the result to the message ID it was read from.
func WithMessageID(id int) Option {
	return func(r *Result) {
		r.messageID = id
	}
}

// WithMatchedDN sets the matched DN. An empty string stays absent.
func WithMatchedDN(dn string) Option {
	return func(r *Result) {
		r.matchedDN = dn
	}
}

// WithDiagnosticMessage sets the diagnostic message. An empty string stays
// absent.
func WithDiagnosticMessage(msg string) Option {
	return func(r *Result) {
		r.diagnosticMessage = msg
	}
}

// WithReferralURLs sets the referral URLs.
func WithReferralURLs(urls ...string) Option {
	return func(r *Result) {
		r.referralURLs = append([]string(nil), urls...)
	}
}

// WithResponseControls sets the response controls.
func WithResponseControls(controls ...Control) Option {
	return func(r *Result) {
		r.responseControls = append([]Control(nil), controls...)
	}
}

// New creates a Result for the given code.
func New(code Code, opts ...Option) *Result {
	r := &Result{
		messageID:        NoMessageID,
		code:             code,
		referralURLs:     []string{},
		responseControls: []Control{},
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.referralURLs == nil {
		r.referralURLs = []string{}
	}

	if r.responseControls == nil {
		r.responseControls = []Control{}
	}

	return r
}

// MessageID returns the message ID the result was bound to, or NoMessageID.
func (r *Result) MessageID() int { return r.messageID }

// Code returns the result code.
func (r *Result) Code() Code { return r.code }

// MatchedDN returns the matched DN, or the empty string when absent.
func (r *Result) MatchedDN() string { return r.matchedDN }

// DiagnosticMessage returns the diagnostic message, or the empty string when
// absent.
func (r *Result) DiagnosticMessage() string { return r.diagnosticMessage }

// ReferralURLs returns the referral URLs. Never nil.
func (r *Result) ReferralURLs() []string {
	return append([]string{}, r.referralURLs...)
}

// ResponseControls returns the response controls. Never nil.
func (r *Result) ResponseControls() []Control {
	return append([]Control{}, r.responseControls...)
}

// HasResponseControl reports whether a response control with the given OID is
// present.
func (r *Result) HasResponseControl(oid string) bool {
	return r.GetResponseControl(oid) != nil
}

// GetResponseControl returns the first response control with the given OID in
// insertion order, or nil.
func (r *Result) GetResponseControl(oid string) *Control {
	for i := range r.responseControls {
		if r.responseControls[i].OID == oid {
			c := r.responseControls[i]

			return &c
		}
	}

	return nil
}

// String renders the result for diagnostics.
func (r *Result) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "LDAPResult(resultCode=%s", r.code)

	if r.messageID != NoMessageID {
		fmt.Fprintf(&b, ", messageID=%d", r.messageID)
	}

	if r.matchedDN != "" {
		fmt.Fprintf(&b, ", matchedDN=%q", r.matchedDN)
	}

	if r.diagnosticMessage != "" {
		fmt.Fprintf(&b, ", diagnosticMessage=%q", r.diagnosticMessage)
	}

	if len(r.referralURLs) > 0 {
		fmt.Fprintf(&b, ", referralURLs=%v", r.referralURLs)
	}

	if len(r.responseControls) > 0 {
		oids := make([]string, 0, len(r.responseControls))
		for _, c := range r.responseControls {
			oids = append(oids, c.OID)
		}

		fmt.Fprintf(&b, ", responseControlOIDs=%v", oids)
	}

	b.WriteString(")")

	return b.String()
}

// Extended is a Result carrying the extended-operation response OID and
// value, the variant the grouping coordinator reads transaction identifiers
// and multi-update results from.
type Extended struct {
	Result

	oid   string
	value []byte
}

// NewExtended creates an Extended result.
func NewExtended(code Code, oid string, value []byte, opts ...Option) *Extended {
	base := New(code, opts...)

	return &Extended{
		Result: *base,
		oid:    oid,
		value:  append([]byte(nil), value...),
	}
}

// OID returns the response OID, or the empty string when absent.
func (e *Extended) OID() string { return e.oid }

// Value returns the response value, or nil when absent.
func (e *Extended) Value() []byte {
	if e.value == nil {
		return nil
	}

	return append([]byte(nil), e.value...)
}
