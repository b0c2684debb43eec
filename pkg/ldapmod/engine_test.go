// Copyright 2025 SGNL.ai, Inc.

package ldapmod_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapmod"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

func runEngine(
	t *testing.T, settings *ldapmod.Settings, connections *fakePool, source ldapmod.RecordSource,
	opts ...ldapmod.Option,
) (ldapresult.Code, string, string) {
	t.Helper()

	var out, errOut strings.Builder

	opts = append(opts, ldapmod.WithOutput(&out, &errOut))
	engine := ldapmod.New(settings, connections, opts...)

	code := engine.Run(context.Background(), source)

	return code, out.String(), errOut.String()
}

// Single add, server returns success.
func TestEngineSingleAddSuccess(t *testing.T) {
	connections := newFakePool()
	source := &sliceSource{records: []*ldif.ChangeRecord{addRecord("uid=a,dc=x")}}

	code, out, errOut := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Equal(t, ldapresult.Success, code)
	assert.Contains(t, out, "Adding entry uid=a,dc=x")
	assert.Contains(t, out, "SUCCESS")
	assert.Empty(t, errOut)
	require.Len(t, connections.calls, 1)
	assert.Equal(t, "add", connections.calls[0].op)
}

// Three records; the middle one fails with noSuchObject; --continueOnError.
func TestEngineContinueOnError(t *testing.T) {
	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.Success),
		ldapresult.New(ldapresult.NoSuchObject, ldapresult.WithDiagnosticMessage("entry not found")),
		ldapresult.New(ldapresult.Success),
	}

	var rejected strings.Builder

	source := &sliceSource{records: []*ldif.ChangeRecord{
		addRecord("uid=a,dc=x"),
		addRecord("uid=b,dc=x"),
		addRecord("uid=c,dc=x"),
	}}

	settings := &ldapmod.Settings{ContinueOnError: true}
	code, _, errOut := runEngine(t, settings, connections, source,
		ldapmod.WithRejectWriter(ldif.NewRejectWriter(&rejected, nil)))

	assert.Equal(t, ldapresult.NoSuchObject, code)
	require.Len(t, connections.calls, 3)
	assert.Equal(t, "uid=c,dc=x", connections.calls[2].dn)

	assert.Contains(t, errOut, "uid=b,dc=x")

	// Exactly one reject entry, carrying the diagnostic trailer.
	assert.Equal(t, 1, strings.Count(rejected.String(), "# Result Code:"))
	assert.Contains(t, rejected.String(), "dn: uid=b,dc=x")
	assert.Contains(t, rejected.String(), "# Diagnostic Message: entry not found")
}

// Without --continueOnError the first failure stops the run.
func TestEngineStopsOnFirstFailure(t *testing.T) {
	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.NoSuchObject),
	}

	source := &sliceSource{records: []*ldif.ChangeRecord{
		addRecord("uid=a,dc=x"),
		addRecord("uid=b,dc=x"),
	}}

	code, _, _ := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Equal(t, ldapresult.NoSuchObject, code)
	assert.Len(t, connections.calls, 1)
}

// An assertion failure is fatal even with --continueOnError, and the
// rejection quotes the assertion filter.
func TestEngineAssertionFailureIsFatal(t *testing.T) {
	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.AssertionFailed),
	}

	source := &sliceSource{records: []*ldif.ChangeRecord{
		addRecord("uid=a,dc=x"),
		addRecord("uid=b,dc=x"),
	}}

	settings := &ldapmod.Settings{ContinueOnError: true, AssertionFilter: "(st=TX)"}
	code, _, errOut := runEngine(t, settings, connections, source)

	assert.Equal(t, ldapresult.AssertionFailed, code)
	assert.Len(t, connections.calls, 1)
	assert.Contains(t, errOut, `"(st=TX)"`)
}

// Dry run: intents are printed, nothing reaches the pool.
func TestEngineDryRun(t *testing.T) {
	connections := newFakePool()
	source := &sliceSource{records: []*ldif.ChangeRecord{
		addRecord("uid=a,dc=x"),
		addRecord("uid=b,dc=x"),
		addRecord("uid=c,dc=x"),
	}}

	code, out, _ := runEngine(t, &ldapmod.Settings{DryRun: true}, connections, source)

	assert.Equal(t, ldapresult.Success, code)
	assert.Empty(t, connections.calls)
	assert.Equal(t, 3, strings.Count(out, "# dry-run"))
}

// Parse failures permit continued reading outside a transaction.
func TestEngineContinuesAfterParseFailure(t *testing.T) {
	connections := newFakePool()
	source := &sliceSource{
		errs: []error{&ldif.ParseError{Line: 1, MayContinueReading: true, Err: assert.AnError}},
	}

	// Records drain first, then errors, then EOF; to interleave, feed the
	// error first and verify the loop kept going to EOF.
	code, _, errOut := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Equal(t, ldapresult.LocalError, code)
	assert.Contains(t, errOut, "Unable to parse a change record")
}

// An I/O failure ends the run with localError.
func TestEngineStopsOnReadFailure(t *testing.T) {
	connections := newFakePool()
	source := &sliceSource{
		errs: []error{ldapresult.NewError(ldapresult.LocalError, "read failed")},
	}

	code, _, errOut := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Equal(t, ldapresult.LocalError, code)
	assert.Contains(t, errOut, "Unable to read a change record")
}

// With continueOnError, the first continuable failure wins over later ones.
func TestEngineFinalCodeSelection(t *testing.T) {
	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.Success),
		ldapresult.New(ldapresult.Busy),
		ldapresult.New(ldapresult.NoSuchObject),
	}

	source := &sliceSource{records: []*ldif.ChangeRecord{
		addRecord("uid=a,dc=x"),
		addRecord("uid=b,dc=x"),
		addRecord("uid=c,dc=x"),
	}}

	code, _, _ := runEngine(t, &ldapmod.Settings{ContinueOnError: true}, connections, source)

	// Both failures are continuable; the first one wins.
	assert.Equal(t, ldapresult.Busy, code)
}

// A no-operation result counts as success.
func TestEngineNoOperationIsSuccess(t *testing.T) {
	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.NoOperation),
	}

	source := &sliceSource{records: []*ldif.ChangeRecord{addRecord("uid=a,dc=x")}}

	code, out, _ := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Equal(t, ldapresult.Success, code)
	assert.Contains(t, out, "NO OPERATION")
}

// Post-read response controls are decoded and printed after a success.
func TestEnginePrintsPostReadEntry(t *testing.T) {
	capture := &controls.ReadEntry{
		DN: "uid=a,dc=x",
		Attributes: []controls.ReadAttribute{
			{Name: "description", Values: [][]byte{[]byte("updated")}},
		},
	}

	connections := newFakePool()
	connections.resultQueue = []*ldapresult.Result{
		ldapresult.New(ldapresult.Success, ldapresult.WithResponseControls(ldapresult.Control{
			OID:      controls.OIDPostRead,
			Value:    controls.EncodeReadEntry(capture),
			HasValue: true,
		})),
	}

	source := &sliceSource{records: []*ldif.ChangeRecord{addRecord("uid=a,dc=x")}}

	_, out, _ := runEngine(t, &ldapmod.Settings{}, connections, source)

	assert.Contains(t, out, "# entry after the change:")
	assert.Contains(t, out, "description: updated")
}
