// Copyright 2025 SGNL.ai, Inc.

package ldapmod_test

import (
	"context"
	"io"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
	"github.com/sgnl-ai/ldapmodify/pkg/pool"
)

// dispatched records one request the engine sent, with its control list.
type dispatched struct {
	op       string
	dn       string
	oid      string
	controls []ldap.Control
}

func controlOIDs(ctls []ldap.Control) []string {
	oids := make([]string, 0, len(ctls))
	for _, ctl := range ctls {
		oids = append(oids, ctl.GetControlType())
	}

	return oids
}

// fakePool implements ldapmod.ConnectionPool. Write operations pop canned
// results off the queue (defaulting to success); extended requests are
// scripted by OID.
type fakePool struct {
	calls []dispatched

	resultQueue []*ldapresult.Result

	// extendedResults maps a request OID to its scripted responses, consumed
	// in order.
	extendedResults map[string][]*ldapresult.Extended

	// extendedValues records the raw values of extended requests, keyed by
	// request OID.
	extendedValues map[string][]*ber.Packet

	// searchConns are handed out by Acquire, in order.
	searchConns []pool.Conn

	acquired        int
	released        int
	releasedDefunct int
	replaced        int
}

func newFakePool() *fakePool {
	return &fakePool{
		extendedResults: map[string][]*ldapresult.Extended{},
		extendedValues:  map[string][]*ber.Packet{},
	}
}

func (f *fakePool) pop() *ldapresult.Result {
	if len(f.resultQueue) == 0 {
		return ldapresult.New(ldapresult.Success)
	}

	result := f.resultQueue[0]
	f.resultQueue = f.resultQueue[1:]

	return result
}

func (f *fakePool) Add(_ context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	f.calls = append(f.calls, dispatched{op: "add", dn: record.DN, controls: ctls})

	return f.pop(), nil
}

func (f *fakePool) Delete(_ context.Context, dn string, ctls []ldap.Control) (*ldapresult.Result, error) {
	f.calls = append(f.calls, dispatched{op: "delete", dn: dn, controls: ctls})

	return f.pop(), nil
}

func (f *fakePool) Modify(_ context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	f.calls = append(f.calls, dispatched{op: "modify", dn: record.DN, controls: ctls})

	return f.pop(), nil
}

func (f *fakePool) ModifyDN(_ context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	f.calls = append(f.calls, dispatched{op: "moddn", dn: record.DN, controls: ctls})

	return f.pop(), nil
}

func (f *fakePool) Extended(
	_ context.Context, oid string, value *ber.Packet, ctls []ldap.Control,
) (*ldapresult.Extended, error) {
	f.calls = append(f.calls, dispatched{op: "extended", oid: oid, controls: ctls})
	f.extendedValues[oid] = append(f.extendedValues[oid], value)

	queue := f.extendedResults[oid]
	if len(queue) == 0 {
		return ldapresult.NewExtended(ldapresult.Success, oid, nil), nil
	}

	response := queue[0]
	f.extendedResults[oid] = queue[1:]

	return response, nil
}

func (f *fakePool) Acquire(_ context.Context) (pool.Conn, error) {
	f.acquired++

	if len(f.searchConns) == 0 {
		return nil, ldapresult.NewError(ldapresult.ConnectError, "no scripted search connections")
	}

	conn := f.searchConns[0]
	f.searchConns = f.searchConns[1:]

	return conn, nil
}

func (f *fakePool) Release(pool.Conn) { f.released++ }

func (f *fakePool) ReleaseDefunct(pool.Conn) { f.releasedDefunct++ }

func (f *fakePool) ReplaceDefunct(ctx context.Context, _ pool.Conn) (pool.Conn, error) {
	f.replaced++

	return f.Acquire(ctx)
}

func (f *fakePool) callsOf(op string) []dispatched {
	var out []dispatched

	for _, call := range f.calls {
		if call.op == op {
			out = append(out, call)
		}
	}

	return out
}

// searchPage scripts one Search invocation on a searchConn.
type searchPage struct {
	dns    []string
	result *ldapresult.Result
	err    error
}

// searchConn is a scripted search-only connection for the paged driver.
type searchConn struct {
	pages  []searchPage
	served int

	// requests records the paging cookies observed per invocation.
	cookies [][]byte
}

func (c *searchConn) Search(req *pool.SearchRequest, onEntry pool.EntryFunc) (*ldapresult.Result, error) {
	var cookie []byte

	for _, ctl := range req.Controls {
		if paging, ok := ctl.(*ldap.ControlPaging); ok {
			cookie = paging.Cookie
		}
	}

	c.cookies = append(c.cookies, append([]byte(nil), cookie...))

	if c.served >= len(c.pages) {
		return ldapresult.New(ldapresult.Success), nil
	}

	page := c.pages[c.served]
	c.served++

	for _, dn := range page.dns {
		onEntry(dn)
	}

	return page.result, page.err
}

func (c *searchConn) Bind(string, string) (*ldapresult.Result, error) {
	return ldapresult.New(ldapresult.Success), nil
}

func (c *searchConn) Add(*ldif.ChangeRecord, []ldap.Control) (*ldapresult.Result, error) {
	return ldapresult.New(ldapresult.Success), nil
}

func (c *searchConn) Delete(string, []ldap.Control) (*ldapresult.Result, error) {
	return ldapresult.New(ldapresult.Success), nil
}

func (c *searchConn) Modify(*ldif.ChangeRecord, []ldap.Control) (*ldapresult.Result, error) {
	return ldapresult.New(ldapresult.Success), nil
}

func (c *searchConn) ModifyDN(*ldif.ChangeRecord, []ldap.Control) (*ldapresult.Result, error) {
	return ldapresult.New(ldapresult.Success), nil
}

func (c *searchConn) Extended(oid string, _ *ber.Packet, _ []ldap.Control) (*ldapresult.Extended, error) {
	return ldapresult.NewExtended(ldapresult.Success, oid, nil), nil
}

func (c *searchConn) Notifications() <-chan *ldapresult.Extended {
	ch := make(chan *ldapresult.Extended)
	close(ch)

	return ch
}

func (c *searchConn) Address() string { return "ldap://fake" }

func (c *searchConn) Close() error { return nil }

// sliceSource serves records from a slice, then an optional error, then EOF.
type sliceSource struct {
	records []*ldif.ChangeRecord
	errs    []error
}

func (s *sliceSource) Next() (*ldif.ChangeRecord, error) {
	if len(s.records) > 0 {
		record := s.records[0]
		s.records = s.records[1:]

		return record, nil
	}

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]

		return nil, err
	}

	return nil, io.EOF
}

func addRecord(dn string) *ldif.ChangeRecord {
	return &ldif.ChangeRecord{
		Type: ldif.ChangeAdd,
		DN:   dn,
		Attributes: []ldif.Attribute{
			{Name: "objectClass", Values: [][]byte{[]byte("person")}},
		},
	}
}

func modifyRecord(dn string) *ldif.ChangeRecord {
	return &ldif.ChangeRecord{
		Type: ldif.ChangeModify,
		DN:   dn,
		Mods: []ldif.Modification{
			{Op: ldif.ModReplace, Name: "description", Values: [][]byte{[]byte("updated")}},
		},
	}
}
