// Copyright 2025 SGNL.ai, Inc.

package ldif_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

func TestRejectWriterHeaderOnce(t *testing.T) {
	var out strings.Builder

	writer := ldif.NewRejectWriter(&out, nil)

	record := &ldif.ChangeRecord{Type: ldif.ChangeDelete, DN: "uid=a,dc=example,dc=com"}
	result := ldapresult.New(ldapresult.NoSuchObject,
		ldapresult.WithMatchedDN("dc=example,dc=com"),
		ldapresult.WithDiagnosticMessage("entry not found"),
		ldapresult.WithReferralURLs("ldap://other.example.com/"))

	writer.Reject("The server rejected the change", record, result)
	writer.Reject("Second rejection", record, result)

	text := out.String()

	assert.Equal(t, 1, strings.Count(text, "version: 1"))
	assert.Equal(t, 2, writer.Count())

	assert.Contains(t, text, "# The server rejected the change")
	assert.Contains(t, text, "# Result Code: no such object (32)")
	assert.Contains(t, text, "# Matched DN: dc=example,dc=com")
	assert.Contains(t, text, "# Diagnostic Message: entry not found")
	assert.Contains(t, text, "# Referral URL: ldap://other.example.com/")
	assert.Contains(t, text, "dn: uid=a,dc=example,dc=com")
	assert.Contains(t, text, "changetype: delete")
}

func TestRejectWriterMultiLineCommentNeverFolds(t *testing.T) {
	var out strings.Builder

	writer := ldif.NewRejectWriter(&out, nil)

	longComment := "first line\nsecond line " + strings.Repeat("x", 300)
	writer.Reject(longComment, nil, nil)

	lines := strings.Split(out.String(), "\n")

	found := false

	for _, line := range lines {
		if strings.HasPrefix(line, "# second line") {
			found = true

			assert.Greater(t, len(line), 300)
		}
	}

	assert.True(t, found, "long comment lines must be written unfolded")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, assert.AnError
}

func TestRejectWriterSwallowsWriteFailures(t *testing.T) {
	writer := ldif.NewRejectWriter(failingWriter{}, nil)

	require.NotPanics(t, func() {
		writer.Reject("comment", nil, ldapresult.New(ldapresult.LocalError))
	})

	assert.Equal(t, 0, writer.Count())
}

func TestRejectWriterNilReceiverIsNoOp(t *testing.T) {
	var writer *ldif.RejectWriter

	require.NotPanics(t, func() {
		writer.Reject("comment", nil, nil)
	})
}
