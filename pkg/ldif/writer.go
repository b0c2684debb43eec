// Copyright 2025 SGNL.ai, Inc.

package ldif

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// RejectWriter is the append-only sink for change records that could not be
// applied. The LDIF version header is emitted exactly once, on first use.
// Write failures are logged but never abort the caller.
type RejectWriter struct {
	w             io.Writer
	logger        *zap.Logger
	headerWritten bool
	count         int
}

// NewRejectWriter creates a RejectWriter over the given stream.
func NewRejectWriter(w io.Writer, logger *zap.Logger) *RejectWriter {
	if logger == nil {
		logger = zap.L()
	}

	return &RejectWriter{w: w, logger: logger}
}

// Count returns the number of entries written so far.
func (w *RejectWriter) Count() int { return w.count }

// Reject appends one entry: the comment (never folded), a formatted result
// trailer, and the change record itself. Any argument may be nil or empty.
func (w *RejectWriter) Reject(comment string, record *ChangeRecord, result *ldapresult.Result) {
	if w == nil || w.w == nil {
		return
	}

	var b strings.Builder

	if !w.headerWritten {
		b.WriteString("version: 1\n\n")
	}

	if comment != "" {
		for _, line := range strings.Split(comment, "\n") {
			fmt.Fprintf(&b, "# %s\n", line)
		}
	}

	if result != nil {
		fmt.Fprintf(&b, "# Result Code: %s\n", result.Code())

		if result.MatchedDN() != "" {
			fmt.Fprintf(&b, "# Matched DN: %s\n", result.MatchedDN())
		}

		if result.DiagnosticMessage() != "" {
			fmt.Fprintf(&b, "# Diagnostic Message: %s\n", result.DiagnosticMessage())
		}

		for _, url := range result.ReferralURLs() {
			fmt.Fprintf(&b, "# Referral URL: %s\n", url)
		}
	}

	if record != nil {
		b.WriteString(record.Render())
	}

	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		w.logger.Error("Failed to write to the reject file", zap.Error(err))

		return
	}

	w.headerWritten = true
	w.count++
}
