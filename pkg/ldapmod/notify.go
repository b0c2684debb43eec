// Copyright 2025 SGNL.ai, Inc.

package ldapmod

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// NotificationSink formats unsolicited notifications onto the error channel.
// Notifications never change the engine's state machine.
type NotificationSink struct {
	errOut io.Writer
	logger *zap.Logger
}

// NewNotificationSink creates a sink writing to the given error stream.
func NewNotificationSink(errOut io.Writer, logger *zap.Logger) *NotificationSink {
	if logger == nil {
		logger = zap.L()
	}

	return &NotificationSink{errOut: errOut, logger: logger}
}

// Handle reports one unsolicited notification.
func (s *NotificationSink) Handle(notification *ldapresult.Extended) {
	if notification == nil {
		return
	}

	fmt.Fprintf(s.errOut, "Unsolicited notification from the server: oid=%s result=%s\n",
		notification.OID(), notification.Code())

	if notification.DiagnosticMessage() != "" {
		fmt.Fprintf(s.errOut, "  %s\n", notification.DiagnosticMessage())
	}

	s.logger.Warn("Received an unsolicited notification",
		zap.String("oid", notification.OID()), zap.String("result", notification.Code().String()))
}
