// Copyright 2025 SGNL.ai, Inc.

package ldapresult

import "fmt"

// Code is an LDAP result code. The set of values the engine branches on is
// closed; unknown server codes still round-trip through Code unchanged.
type Code int

const (
	// Success indicates the operation completed successfully.
	Success Code = 0

	// OperationsError indicates the server encountered an internal error.
	OperationsError Code = 1

	// ProtocolError indicates a malformed request.
	ProtocolError Code = 2

	// NoSuchObject indicates the target entry does not exist.
	NoSuchObject Code = 32

	// InvalidCredentials indicates a failed bind.
	InvalidCredentials Code = 49

	// Busy indicates the server is temporarily too busy.
	Busy Code = 51

	// Unavailable indicates the server is shutting down or offline.
	Unavailable Code = 52

	// AssertionFailed indicates an assertion control's filter did not match
	// the target entry.
	AssertionFailed Code = 122

	// ServerDown is a client-side code indicating the connection is gone.
	ServerDown Code = 81

	// LocalError is a client-side code for local processing failures
	// (unreadable input, reject-file write failures, and similar).
	LocalError Code = 82

	// EncodingError is a client-side code for request encoding failures.
	EncodingError Code = 83

	// DecodingError is a client-side code for response decoding failures.
	DecodingError Code = 84

	// Timeout is a client-side code for operations that did not complete in
	// time.
	Timeout Code = 85

	// ParamError is a client-side code for malformed invocations.
	ParamError Code = 89

	// NoMemory is a client-side code for allocation failures.
	NoMemory Code = 90

	// ConnectError is a client-side code for connection establishment
	// failures.
	ConnectError Code = 91

	// ControlNotFound is a client-side code for a missing required response
	// control.
	ControlNotFound Code = 93

	// NoOperation indicates the server validated but did not apply an
	// operation carrying the no-op control.
	NoOperation Code = 16654
)

var codeNames = map[Code]string{
	Success:            "success",
	OperationsError:    "operations error",
	ProtocolError:      "protocol error",
	NoSuchObject:       "no such object",
	InvalidCredentials: "invalid credentials",
	Busy:               "busy",
	Unavailable:        "unavailable",
	AssertionFailed:    "assertion failed",
	ServerDown:         "server down",
	LocalError:         "local error",
	EncodingError:      "encoding error",
	DecodingError:      "decoding error",
	Timeout:            "timeout",
	ParamError:         "param error",
	NoMemory:           "no memory",
	ConnectError:       "connect error",
	ControlNotFound:    "control not found",
	NoOperation:        "no operation",
}

// connectionUnusable lists the codes after which the connection that produced
// them must not be reused. Lookup table rather than per-code types, so the
// classification stays a closed predicate on the numeric value.
var connectionUnusable = map[Code]struct{}{
	ServerDown:    {},
	LocalError:    {},
	EncodingError: {},
	DecodingError: {},
	Timeout:       {},
	NoMemory:      {},
	ConnectError:  {},
}

// clientSide lists the codes generated by this tool rather than returned by a
// server.
var clientSide = map[Code]struct{}{
	ServerDown:      {},
	LocalError:      {},
	EncodingError:   {},
	DecodingError:   {},
	Timeout:         {},
	ParamError:      {},
	NoMemory:        {},
	ConnectError:    {},
	ControlNotFound: {},
}

// String renders the code as "name (value)", or just the value for codes the
// engine has no name for.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return fmt.Sprintf("%s (%d)", name, int(c))
	}

	return fmt.Sprintf("%d", int(c))
}

// IsConnectionUsable reports whether the connection that produced this code
// may still be used for further operations.
func (c Code) IsConnectionUsable() bool {
	_, unusable := connectionUnusable[c]

	return !unusable
}

// IsClientSide reports whether the code was generated locally rather than by
// a directory server.
func (c Code) IsClientSide() bool {
	_, ok := clientSide[c]

	return ok
}

// IsSuccess reports whether the code counts as a successful outcome for the
// change-application loop: Success, or NoOperation for dry validation runs.
func (c Code) IsSuccess() bool {
	return c == Success || c == NoOperation
}

// ExitCode maps the code to a process exit status, clamped to 0..255.
func (c Code) ExitCode() int {
	if c < 0 {
		return 0
	}

	if c > 255 {
		return 255
	}

	return int(c)
}
