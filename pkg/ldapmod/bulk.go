// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"context"
	"fmt"

	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
	"github.com/sgnl-ai/ldapmodify/pkg/pool"
)

// noAttributes is the attribute selector requesting no attributes; the
// bulk-modify search only consumes DNs.
var noAttributes = []string{"1.1"}

// applyBulk applies one modify record across every configured selector, in
// the order the selectors were supplied: explicit DNs first, then filters.
// A record that is not a modify is rejected with a param error.
func (e *Engine) applyBulk(ctx context.Context, record *ldif.ChangeRecord) (stop bool) {
	if record.Type != ldif.ChangeModify {
		result := ldapresult.New(ldapresult.ParamError, ldapresult.WithDiagnosticMessage(
			fmt.Sprintf("only modify change records may be used with bulk-modify selectors, got %s", record.Type)))
		e.reject(fmt.Sprintf("Rejecting a %s change record received in bulk-modify mode", record.Type),
			record, result)

		fatal := !e.settings.ContinueOnError
		e.noteFailure(ldapresult.ParamError, fatal)

		return fatal
	}

	for _, dn := range e.settings.TargetDNs {
		if e.dispatchRecord(ctx, record.WithDN(dn)) {
			return true
		}
	}

	for _, filter := range e.settings.TargetFilters {
		if e.pagedModify(ctx, record, filter) {
			return true
		}
	}

	return false
}

// pagedState tracks one (record, filter) pair's progress across pages and
// connection-replacement retries.
type pagedState struct {
	cookie           []byte
	entriesProcessed uint64
	processedDNs     map[string]struct{}
}

// pagedModify walks a paged subtree search under the record's DN and applies
// the modify to every matching entry exactly once.
func (e *Engine) pagedModify(ctx context.Context, record *ldif.ChangeRecord, filter string) (stop bool) {
	fmt.Fprintf(e.out, "Modifying entries matching filter %q under %s\n", filter, record.DN)

	state := &pagedState{processedDNs: make(map[string]struct{})}

	for {
		result, innerStop, failed := e.searchPage(ctx, record, filter, state)
		if innerStop {
			return true
		}

		if failed {
			// The pair ends here; whether the run continues follows the
			// usual failure policy, already noted by the rejection.
			return !e.settings.ContinueOnError
		}

		control := result.GetResponseControl(controls.OIDSimplePagedResults)
		if control == nil {
			e.reject(fmt.Sprintf(
				"The search for filter %q did not include the simple paged results response control", filter),
				record, ldapresult.New(ldapresult.ControlNotFound))
			e.noteFailure(ldapresult.ControlNotFound, !e.settings.ContinueOnError)

			return !e.settings.ContinueOnError
		}

		_, cookie, err := controls.DecodePagedResponse(control)
		if err != nil {
			e.reject(fmt.Sprintf("Failed to decode the paged results cookie for filter %q", filter),
				record, ldapresult.New(ldapresult.CodeOf(err)))
			e.noteFailure(ldapresult.CodeOf(err), !e.settings.ContinueOnError)

			return !e.settings.ContinueOnError
		}

		if len(cookie) == 0 {
			fmt.Fprintf(e.out, "# %d entries matched filter %q\n", state.entriesProcessed, filter)

			return false
		}

		state.cookie = cookie
	}
}

// searchPage issues one page of the search, retrying once on a replacement
// connection when the failure is classified as a connection failure and
// retry is enabled. The processed-DN set keeps retried pages idempotent.
func (e *Engine) searchPage(
	ctx context.Context, record *ldif.ChangeRecord, filter string, state *pagedState,
) (result *ldapresult.Result, innerStop, failed bool) {
	// The search borrows a connection directly: the pool's transparent retry
	// cannot replay a partially-streamed result set.
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		e.rejectSearchFailure(record, filter, nil, err)

		return nil, false, true
	}

	retried := false

	for {
		result, err = conn.Search(e.pageRequest(record, filter, state), func(dn string) {
			if innerStop {
				return
			}

			if _, seen := state.processedDNs[dn]; seen {
				return
			}

			state.processedDNs[dn] = struct{}{}
			state.entriesProcessed++

			if e.dispatchRecord(ctx, record.WithDN(dn)) {
				innerStop = true
			}
		})

		if innerStop {
			e.pool.Release(conn)

			return result, true, false
		}

		if err == nil && result.Code() == ldapresult.Success {
			e.pool.Release(conn)

			return result, false, false
		}

		if err == nil && result.Code().IsConnectionUsable() {
			// The search failed but the connection is fine: record the
			// rejection and stop this (record, filter) pair.
			e.pool.Release(conn)
			e.rejectSearchFailure(record, filter, result, nil)

			return result, false, true
		}

		if e.settings.RetryFailedOperations && !retried {
			retried = true

			replacement, replaceErr := e.pool.ReplaceDefunct(ctx, conn)
			if replaceErr == nil {
				conn = replacement

				continue
			}

			e.rejectSearchFailure(record, filter, result, replaceErr)

			return result, false, true
		}

		e.pool.ReleaseDefunct(conn)
		e.rejectSearchFailure(record, filter, result, err)

		return result, false, true
	}
}

func (e *Engine) pageRequest(record *ldif.ChangeRecord, filter string, state *pagedState) *pool.SearchRequest {
	paging := ldap.NewControlPaging(uint32(e.settings.SearchPageSize))
	if len(state.cookie) > 0 {
		paging.SetCookie(state.cookie)
	}

	ctls := append(e.composer.searchControls(), paging)

	return &pool.SearchRequest{
		BaseDN:     record.DN,
		Filter:     filter,
		Attributes: noAttributes,
		Controls:   ctls,
	}
}

func (e *Engine) rejectSearchFailure(
	record *ldif.ChangeRecord, filter string, result *ldapresult.Result, err error,
) {
	if result == nil {
		code := ldapresult.CodeOf(err)
		opts := []ldapresult.Option{}

		if err != nil {
			opts = append(opts, ldapresult.WithDiagnosticMessage(err.Error()))
		}

		result = ldapresult.New(code, opts...)
	}

	e.reject(fmt.Sprintf("The search for entries matching filter %q under %s failed", filter, record.DN),
		record, result)
	e.noteFailure(result.Code(), !e.settings.ContinueOnError)
}
