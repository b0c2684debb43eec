// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"context"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
	"github.com/sgnl-ai/ldapmodify/pkg/pool"
)

// ConnectionPool is the engine's view of the connection pool.
type ConnectionPool interface {
	Add(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)
	Delete(ctx context.Context, dn string, ctls []ldap.Control) (*ldapresult.Result, error)
	Modify(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)
	ModifyDN(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error)
	Extended(ctx context.Context, oid string, value *ber.Packet, ctls []ldap.Control) (*ldapresult.Extended, error)

	Acquire(ctx context.Context) (pool.Conn, error)
	Release(conn pool.Conn)
	ReleaseDefunct(conn pool.Conn)
	ReplaceDefunct(ctx context.Context, conn pool.Conn) (pool.Conn, error)
}

type groupingMode int

const (
	modeImmediate groupingMode = iota
	modeTransactional
	modeMultiUpdate
)

// coordinator chooses between immediate dispatch, transaction aggregation and
// multi-update aggregation, owns the transaction identifier and the
// commit/abort decision, and scopes the proxied authorization control to the
// outer grouping request.
type coordinator struct {
	mode    groupingMode
	pool    ConnectionPool
	proxied *controls.Control

	// Transactional state.
	txnID  []byte
	commit bool

	// Multi-update state.
	behavior extop.ErrorBehavior
	buffered []*extop.PendingRequest
}

func newCoordinator(settings *Settings, connections ConnectionPool) *coordinator {
	c := &coordinator{
		mode:    modeImmediate,
		pool:    connections,
		proxied: settings.ProxiedAuth,
		commit:  true,
	}

	switch {
	case settings.UseTransaction:
		c.mode = modeTransactional
	case settings.MultiUpdateErrorBehavior != nil:
		c.mode = modeMultiUpdate
		c.behavior = *settings.MultiUpdateErrorBehavior
	}

	return c
}

// begin starts the transaction when transactional grouping is active. The
// proxied authorization control, if any, rides on this outer request.
func (c *coordinator) begin(ctx context.Context) error {
	if c.mode != modeTransactional {
		return nil
	}

	var outer []ldap.Control
	if c.proxied != nil {
		outer = append(outer, c.proxied)
	}

	response, err := c.pool.Extended(ctx, extop.OIDStartTransaction, nil, outer)
	if err != nil {
		return ldapresult.WrapError(ldapresult.CodeOf(err), err, "Unable to start a transaction")
	}

	if response.Code() != ldapresult.Success {
		return ldapresult.NewError(response.Code(),
			"Unable to start a transaction: %s", response.String())
	}

	txnID, err := extop.DecodeTransactionID(response)
	if err != nil {
		return err
	}

	c.txnID = txnID

	return nil
}

// abortCommit flips the end-of-loop decision to abort.
func (c *coordinator) abortCommit() {
	c.commit = false
}

// dispatch sends one record's request, or buffers it in multi-update mode.
// buffered is true when nothing was sent.
func (c *coordinator) dispatch(
	ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control,
) (result *ldapresult.Result, buffered bool, err error) {
	if c.mode == modeTransactional {
		// The transaction specification control leads the control list so
		// the grouping is visible before any other control is evaluated.
		ctls = append([]ldap.Control{controls.NewTransactionSpecification(c.txnID)}, ctls...)
	}

	if c.mode == modeMultiUpdate {
		c.buffered = append(c.buffered, &extop.PendingRequest{
			Op:       opFor(record),
			Record:   record,
			Controls: ctls,
		})

		return nil, true, nil
	}

	switch record.Type {
	case ldif.ChangeAdd:
		result, err = c.pool.Add(ctx, record, ctls)
	case ldif.ChangeDelete:
		result, err = c.pool.Delete(ctx, record.DN, ctls)
	case ldif.ChangeModify:
		result, err = c.pool.Modify(ctx, record, ctls)
	case ldif.ChangeModifyDN:
		result, err = c.pool.ModifyDN(ctx, record, ctls)
	}

	return result, false, err
}

// finish performs the end-of-loop grouping step: the end-transaction request
// in transactional mode, the single multi-update request in multi-update
// mode, nothing otherwise.
func (c *coordinator) finish(ctx context.Context) (*ldapresult.Extended, error) {
	switch c.mode {
	case modeTransactional:
		return c.pool.Extended(ctx, extop.OIDEndTransaction,
			extop.EncodeEndTransaction(c.txnID, c.commit), nil)
	case modeMultiUpdate:
		value, err := extop.EncodeMultiUpdate(c.behavior, c.buffered)
		if err != nil {
			return nil, err
		}

		var outer []ldap.Control
		if c.proxied != nil {
			outer = append(outer, c.proxied)
		}

		return c.pool.Extended(ctx, extop.OIDMultiUpdate, value, outer)
	default:
		return nil, nil
	}
}

// bufferedCount reports how many requests are awaiting the multi-update
// request.
func (c *coordinator) bufferedCount() int {
	return len(c.buffered)
}
