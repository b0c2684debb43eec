// Copyright 2025 SGNL.ai, Inc.

// Package pool manages the tool's directory connections: a pool of at most
// two pooled connections over a single server or an ordered failover list,
// with a bind health check, an optional post-connect extended request, and
// opt-in transparent retry of operations that failed with the connection.
package pool

import (
	"errors"
	"net"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

// SearchRequest describes a subtree search issued by the bulk-modify driver.
type SearchRequest struct {
	BaseDN string
	Filter string

	// Attributes to request; the driver passes the no-attributes selector
	// since only DNs are consumed.
	Attributes []string

	// Controls to attach, including the paging control.
	Controls []ldap.Control

	// TimeLimitSeconds bounds the server-side processing time. Zero means no
	// limit.
	TimeLimitSeconds int
}

// EntryFunc consumes one search result entry's DN, in arrival order.
type EntryFunc func(dn string)

// Conn is the request/response primitive the engine drives. Implementations
// return a Result for any outcome the server described, and an error only
// when no result could be obtained at all (the connection is then defunct).
type Conn interface {
	// Bind authenticates the connection.
	Bind(dn, password string) (*ldapresult.Result, error)

	// Add, Delete, Modify and ModifyDN dispatch one change record each.
	Add(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)
	Delete(dn string, ctls []ldap.Control) (*ldapresult.Result, error)
	Modify(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)
	ModifyDN(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)

	// Search streams entry DNs to onEntry and returns the final search
	// result, including its response controls.
	Search(req *SearchRequest, onEntry EntryFunc) (*ldapresult.Result, error)

	// Extended dispatches an extended request.
	Extended(oid string, value *ber.Packet, ctls []ldap.Control) (*ldapresult.Extended, error)

	// Notifications exposes unsolicited notifications received on this
	// connection. The channel never blocks the sender and is closed with the
	// connection.
	Notifications() <-chan *ldapresult.Extended

	// Address identifies the server this connection is bound to.
	Address() string

	Close() error
}

// ResultFromError converts a dispatch error into a locally-shaped Result.
// Server-described failures keep the server's code, matched DN and
// diagnostic message; network failures map to the server-down code; errors
// that already carry a result code keep it.
func ResultFromError(err error) *ldapresult.Result {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		code := ldapresult.Code(ldapErr.ResultCode)
		if ldapErr.ResultCode == ldap.ErrorNetwork {
			code = ldapresult.ServerDown
		}

		opts := []ldapresult.Option{ldapresult.WithMatchedDN(ldapErr.MatchedDN)}
		if ldapErr.Err != nil {
			opts = append(opts, ldapresult.WithDiagnosticMessage(ldapErr.Err.Error()))
		}

		return ldapresult.New(code, opts...)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ldapresult.New(ldapresult.ServerDown,
			ldapresult.WithDiagnosticMessage(netErr.Error()))
	}

	var coded *ldapresult.Error
	if errors.As(err, &coded) {
		return ldapresult.New(coded.Code,
			ldapresult.WithDiagnosticMessage(coded.Error()))
	}

	return ldapresult.New(ldapresult.LocalError,
		ldapresult.WithDiagnosticMessage(err.Error()))
}

// IsConnectionFailure classifies an operation outcome: true when the failure
// means the connection must not be reused.
func IsConnectionFailure(result *ldapresult.Result, err error) bool {
	if err != nil {
		return true
	}

	if result == nil {
		return false
	}

	return !result.Code().IsConnectionUsable()
}
