// Copyright 2025 SGNL.ai, Inc.

package pool_test

import (
	"context"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
	"github.com/sgnl-ai/ldapmodify/pkg/pool"
)

// scriptedOutcome is one canned response for a fake connection.
type scriptedOutcome struct {
	result *ldapresult.Result
	err    error
}

// fakeConn is a scripted Conn: each operation pops the next outcome.
type fakeConn struct {
	address       string
	outcomes      []scriptedOutcome
	calls         []string
	closed        bool
	notifications chan *ldapresult.Extended
}

func newFakeConn(address string, outcomes ...scriptedOutcome) *fakeConn {
	c := &fakeConn{
		address:       address,
		outcomes:      outcomes,
		notifications: make(chan *ldapresult.Extended, 4),
	}

	return c
}

func (c *fakeConn) pop(call string) (*ldapresult.Result, error) {
	c.calls = append(c.calls, call)

	if len(c.outcomes) == 0 {
		return ldapresult.New(ldapresult.Success), nil
	}

	outcome := c.outcomes[0]
	c.outcomes = c.outcomes[1:]

	return outcome.result, outcome.err
}

func (c *fakeConn) Bind(dn, _ string) (*ldapresult.Result, error) {
	return c.pop("bind " + dn)
}

func (c *fakeConn) Add(record *ldif.ChangeRecord, _ []ldap.Control) (*ldapresult.Result, error) {
	return c.pop("add " + record.DN)
}

func (c *fakeConn) Delete(dn string, _ []ldap.Control) (*ldapresult.Result, error) {
	return c.pop("delete " + dn)
}

func (c *fakeConn) Modify(record *ldif.ChangeRecord, _ []ldap.Control) (*ldapresult.Result, error) {
	return c.pop("modify " + record.DN)
}

func (c *fakeConn) ModifyDN(record *ldif.ChangeRecord, _ []ldap.Control) (*ldapresult.Result, error) {
	return c.pop("moddn " + record.DN)
}

func (c *fakeConn) Search(req *pool.SearchRequest, _ pool.EntryFunc) (*ldapresult.Result, error) {
	return c.pop("search " + req.Filter)
}

func (c *fakeConn) Extended(oid string, _ *ber.Packet, _ []ldap.Control) (*ldapresult.Extended, error) {
	result, err := c.pop("extended " + oid)
	if err != nil {
		return nil, err
	}

	return ldapresult.NewExtended(result.Code(), oid, nil), nil
}

func (c *fakeConn) Notifications() <-chan *ldapresult.Extended { return c.notifications }

func (c *fakeConn) Address() string { return c.address }

func (c *fakeConn) Close() error {
	c.closed = true

	return nil
}

// fakeConnector hands out pre-built connections in order.
type fakeConnector struct {
	conns    []*fakeConn
	dialErr  error
	dialed   int
}

func (f *fakeConnector) Connect(_ context.Context) (pool.Conn, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}

	if f.dialed >= len(f.conns) {
		return nil, ldapresult.NewError(ldapresult.ConnectError, "no more scripted connections")
	}

	conn := f.conns[f.dialed]
	f.dialed++

	return conn, nil
}

func serverResult(code ldapresult.Code) scriptedOutcome {
	return scriptedOutcome{result: ldapresult.New(code)}
}

func connectionError() scriptedOutcome {
	return scriptedOutcome{err: ldapresult.NewError(ldapresult.ServerDown, "connection reset")}
}
