// Copyright 2025 SGNL.ai, Inc.

// Package ldapmod is the change-application engine: it consumes LDIF change
// records, selects per-record targets, composes and dispatches directory
// requests through a pooled connection, interprets result codes, and
// coordinates transactional or multi-update grouping.
package ldapmod

import (
	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
)

// Settings is the engine configuration produced from the validated command
// line.
type Settings struct {
	// DryRun prints each operation's intent and reports success without any
	// wire activity after the bind.
	DryRun bool

	// ContinueOnError keeps the loop running after a continuable operation
	// failure.
	ContinueOnError bool

	// FollowReferrals prints referral URLs as informational comments on the
	// output stream; without it they are reported as ignored on the error
	// stream.
	FollowReferrals bool

	// RetryFailedOperations retries a bulk-modify search page once on a
	// replacement connection after a connection-classified failure. The pool
	// applies the same policy to its own dispatches.
	RetryFailedOperations bool

	// RatePerSecond bounds dispatches per one-second window. Zero disables
	// the budget.
	RatePerSecond int

	// SearchPageSize is the simple-paged-results page size for bulk-modify
	// searches.
	SearchPageSize int

	// UseTransaction wraps all operations in one server-side transaction.
	UseTransaction bool

	// MultiUpdateErrorBehavior, when non-nil, buffers all operations into a
	// single multi-update extended request with the given error behavior.
	MultiUpdateErrorBehavior *extop.ErrorBehavior

	// ProxiedAuth is held apart from the global control set: in transactional
	// and multi-update runs it attaches only to the outer request, never to
	// inner operations.
	ProxiedAuth *controls.Control

	// PerOpControls are the globally-configured per-operation-type controls,
	// attached first.
	PerOpControls map[controls.Op][]*controls.Control

	// GlobalControls are the globally-configured cross-operation controls,
	// attached after the per-operation-type ones and filtered through the
	// attachment policy.
	GlobalControls []*controls.Control

	// PasswordControls are conditionally attached to modify requests whose
	// modifications target userPassword or authPassword.
	PasswordControls []*controls.Control

	// AssertionFilter is the configured assertion filter, quoted in the
	// rejection written for an assertion failure.
	AssertionFilter string

	// TargetDNs are the --modifyEntryWithDN selectors (including those read
	// from files), applied in the order supplied.
	TargetDNs []string

	// TargetFilters are the --modifyEntriesMatchingFilter selectors
	// (including those read from files), applied in the order supplied.
	TargetFilters []string

	// PreReadAttributes and PostReadAttributes are the tokenized attribute
	// selections of the pre-read and post-read controls, retained for
	// rendering captured entries.
	PreReadAttributes  []string
	PostReadAttributes []string
}

// BulkModify reports whether any bulk-modify selector is configured.
func (s *Settings) BulkModify() bool {
	return len(s.TargetDNs) > 0 || len(s.TargetFilters) > 0
}

// Grouped reports whether a transaction or multi-update groups the run's
// operations.
func (s *Settings) Grouped() bool {
	return s.UseTransaction || s.MultiUpdateErrorBehavior != nil
}
