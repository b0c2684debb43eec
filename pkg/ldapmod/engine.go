// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

// RecordSource produces change records lazily, in stream order.
type RecordSource interface {
	Next() (*ldif.ChangeRecord, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput redirects the engine's progress and error streams.
func WithOutput(out, errOut io.Writer) Option {
	return func(e *Engine) {
		e.out = out
		e.errOut = errOut
	}
}

// WithRejectWriter configures the reject sink.
func WithRejectWriter(rejects *ldif.RejectWriter) Option {
	return func(e *Engine) {
		e.rejects = rejects
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine is the change-application state machine: it pulls records from the
// stream, dispatches them, applies the failure policy, and selects the final
// result code.
type Engine struct {
	settings *Settings
	pool     ConnectionPool
	composer composer
	coord    *coordinator
	budget   *RateBudget
	rejects  *ldif.RejectWriter

	out    io.Writer
	errOut io.Writer
	logger *zap.Logger

	haveFatal   bool
	fatalCode   ldapresult.Code
	haveFailure bool
	failureCode ldapresult.Code
}

// New creates an Engine over the given pool.
func New(settings *Settings, connections ConnectionPool, opts ...Option) *Engine {
	e := &Engine{
		settings: settings,
		pool:     connections,
		composer: composer{settings: settings},
		coord:    newCoordinator(settings, connections),
		budget:   NewRateBudget(settings.RatePerSecond),
		out:      os.Stdout,
		errOut:   os.Stderr,
		logger:   zap.L(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run applies every record the source produces and returns the final result
// code: the first fatal code, else the first continuable non-success code,
// else success.
func (e *Engine) Run(ctx context.Context, source RecordSource) ldapresult.Code {
	if err := e.coord.begin(ctx); err != nil {
		code := ldapresult.CodeOf(err)

		// The pool's health check already reported an authentication
		// failure; repeating it here would just duplicate the message.
		if code != ldapresult.InvalidCredentials {
			fmt.Fprintf(e.errOut, "%v\n", err)
		}

		return code
	}

	e.readLoop(ctx, source)
	e.finishGrouping(ctx)

	return e.finalCode()
}

func (e *Engine) readLoop(ctx context.Context, source RecordSource) {
	for {
		record, err := source.Next()
		if errors.Is(err, io.EOF) {
			return
		}

		if err != nil {
			if e.handleReadFailure(err) {
				continue
			}

			e.coord.abortCommit()

			return
		}

		var stop bool
		if e.settings.BulkModify() {
			stop = e.applyBulk(ctx, record)
		} else {
			stop = e.dispatchRecord(ctx, record)
		}

		if stop {
			return
		}
	}
}

// handleReadFailure records a read or parse failure and reports whether the
// loop may continue.
func (e *Engine) handleReadFailure(err error) (mayContinue bool) {
	var parseErr *ldif.ParseError
	if errors.As(err, &parseErr) {
		e.reject(fmt.Sprintf("Unable to parse a change record: %v", err), nil,
			ldapresult.New(ldapresult.LocalError, ldapresult.WithDiagnosticMessage(err.Error())))
		e.noteFailure(ldapresult.LocalError, false)

		return parseErr.MayContinueReading && e.coord.mode != modeTransactional
	}

	e.reject(fmt.Sprintf("Unable to read a change record: %v", err), nil,
		ldapresult.New(ldapresult.LocalError, ldapresult.WithDiagnosticMessage(err.Error())))
	e.noteFailure(ldapresult.LocalError, true)

	return false
}

// dispatchRecord sends one record and interprets the outcome. stop is true
// when the loop must not continue.
func (e *Engine) dispatchRecord(ctx context.Context, record *ldif.ChangeRecord) (stop bool) {
	fmt.Fprintf(e.out, "%s %s\n", intentVerb(record), record.DN)

	if e.settings.DryRun {
		fmt.Fprintf(e.out, "# dry-run: no request was sent to the server\n")

		return false
	}

	ctls := e.composer.compose(record, e.settings.Grouped())

	if err := e.budget.Wait(ctx); err != nil {
		e.reject(fmt.Sprintf("Interrupted while waiting for the rate budget: %v", err), record,
			ldapresult.New(ldapresult.LocalError, ldapresult.WithDiagnosticMessage(err.Error())))
		e.noteFailure(ldapresult.LocalError, true)
		e.coord.abortCommit()

		return true
	}

	result, buffered, err := e.coord.dispatch(ctx, record, ctls)
	if buffered {
		fmt.Fprintf(e.out, "# buffered for the multi-update request (%d queued)\n", e.coord.bufferedCount())

		return false
	}

	return e.interpret(record, result, err)
}

// interpret applies the failure policy to one dispatch outcome.
func (e *Engine) interpret(record *ldif.ChangeRecord, result *ldapresult.Result, err error) (stop bool) {
	if err != nil {
		result = ldapresult.New(ldapresult.CodeOf(err), ldapresult.WithDiagnosticMessage(err.Error()))
	}

	code := result.Code()

	switch {
	case code == ldapresult.Success:
		fmt.Fprintf(e.out, "SUCCESS\n")
		e.printReferrals(result)
		e.printReadEntries(result)

		return false
	case code == ldapresult.NoOperation:
		fmt.Fprintf(e.out, "NO OPERATION (the server validated the request without applying it)\n")

		return false
	case code == ldapresult.AssertionFailed:
		comment := fmt.Sprintf(
			"The server rejected the change to entry %s because the assertion filter %q did not match the target entry",
			record.DN, e.settings.AssertionFilter)
		e.reject(comment, record, result)
		e.noteFailure(code, true)
		e.coord.abortCommit()

		return true
	default:
		e.reject(fmt.Sprintf("The server rejected the change to entry %s", record.DN), record, result)

		fatal := e.coord.mode == modeTransactional || !e.settings.ContinueOnError
		e.noteFailure(code, fatal)

		if fatal {
			e.coord.abortCommit()
		}

		return fatal
	}
}

func (e *Engine) printReferrals(result *ldapresult.Result) {
	for _, url := range result.ReferralURLs() {
		if e.settings.FollowReferrals {
			fmt.Fprintf(e.out, "# referral: %s\n", url)
		} else {
			fmt.Fprintf(e.errOut, "Ignoring referral: %s\n", url)
		}
	}
}

func (e *Engine) printReadEntries(result *ldapresult.Result) {
	if control := result.GetResponseControl(controls.OIDPreRead); control != nil {
		if entry, err := controls.DecodeReadEntry(control); err == nil {
			fmt.Fprintf(e.out, "# entry before the change:\n%s", RenderReadEntry(entry, "#   "))
		} else {
			e.logger.Warn("Failed to decode the pre-read response control", zap.Error(err))
		}
	}

	if control := result.GetResponseControl(controls.OIDPostRead); control != nil {
		if entry, err := controls.DecodeReadEntry(control); err == nil {
			fmt.Fprintf(e.out, "# entry after the change:\n%s", RenderReadEntry(entry, "#   "))
		} else {
			e.logger.Warn("Failed to decode the post-read response control", zap.Error(err))
		}
	}
}

// finishGrouping performs the end-of-loop transaction or multi-update step
// and folds its outcome into the final code.
func (e *Engine) finishGrouping(ctx context.Context) {
	response, err := e.coord.finish(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		e.noteFailure(ldapresult.CodeOf(err), true)

		return
	}

	if response == nil {
		return
	}

	switch e.coord.mode {
	case modeTransactional:
		if e.coord.commit {
			fmt.Fprintf(e.out, "# transaction committed\n")
		} else {
			fmt.Fprintf(e.out, "# transaction aborted\n")
		}

		if response.Code() != ldapresult.Success {
			fmt.Fprintf(e.errOut, "The end transaction request failed: %s\n", response.String())
			e.noteFailure(response.Code(), true)
		}
	case modeMultiUpdate:
		e.finishMultiUpdate(response)
	}
}

func (e *Engine) finishMultiUpdate(response *ldapresult.Extended) {
	if response.Code() != ldapresult.Success {
		fmt.Fprintf(e.errOut, "The multi-update request failed: %s\n", response.String())
		e.noteFailure(response.Code(), true)

		return
	}

	// A successful response without a value carries no inner results.
	if len(response.Value()) == 0 {
		fmt.Fprintf(e.out, "# multi-update applied\n")

		return
	}

	decoded, err := extop.DecodeMultiUpdateResult(response)
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		e.noteFailure(ldapresult.CodeOf(err), true)

		return
	}

	fmt.Fprintf(e.out, "# multi-update applied: %s (%d inner results)\n",
		decoded.ChangesApplied, len(decoded.Results))

	if failure := decoded.FirstFailure(); failure != nil {
		fmt.Fprintf(e.errOut, "A multi-update inner operation failed: %s\n", failure.String())
		e.noteFailure(failure.Code(), false)
	}
}

// reject records one rejected change on the error stream and, when
// configured, in the reject sink.
func (e *Engine) reject(comment string, record *ldif.ChangeRecord, result *ldapresult.Result) {
	fmt.Fprintf(e.errOut, "%s\n", comment)

	if result != nil {
		fmt.Fprintf(e.errOut, "%s\n", result.String())
	}

	e.rejects.Reject(comment, record, result)
}

// noteFailure retains a failure for final-code selection: the first fatal
// code wins, else the first continuable non-success.
func (e *Engine) noteFailure(code ldapresult.Code, fatal bool) {
	if fatal {
		if !e.haveFatal {
			e.haveFatal = true
			e.fatalCode = code
		}

		return
	}

	if !e.haveFailure {
		e.haveFailure = true
		e.failureCode = code
	}
}

func (e *Engine) finalCode() ldapresult.Code {
	switch {
	case e.haveFatal:
		return e.fatalCode
	case e.haveFailure:
		return e.failureCode
	default:
		return ldapresult.Success
	}
}

func intentVerb(record *ldif.ChangeRecord) string {
	switch record.Type {
	case ldif.ChangeAdd:
		return "Adding entry"
	case ldif.ChangeDelete:
		return "Deleting entry"
	case ldif.ChangeModify:
		return "Modifying entry"
	default:
		return "Modifying the DN of entry"
	}
}
