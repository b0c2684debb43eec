// Copyright 2025 SGNL.ai, Inc.

// Package validation contains address parsing and validation utilities for
// server URLs, ensuring they are well-formed and use supported schemes. It
// trims whitespace, correctly handles URLs without schemes, and returns
// structured errors for invalid configurations.
package validation

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// Schemes accepted for directory server URLs.
var allowedSchemes = []string{"ldap", "ldaps"}

// Default ports per scheme, applied when the address omits one.
var defaultPorts = map[string]string{
	"ldap":  "389",
	"ldaps": "636",
}

// ParseServerURL trims whitespace, parses the URL, validates the scheme, and
// normalizes the address to scheme://host:port form. A schemeless address
// defaults to ldap.
//
// Scheme comparison is case-insensitive per RFC 3986 (url.Parse lowercases
// schemes). Addresses without "://" are treated as having no scheme (e.g.,
// "example.com:8080" is parsed as host:port, not as scheme:opaque).
func ParseServerURL(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "", ldapresult.NewError(ldapresult.ParamError, "Server URL must not be empty")
	}

	// Determine if the address has a scheme by checking for "://".
	// This prevents url.Parse from misinterpreting "host:port" as
	// "scheme:opaque".
	hasScheme := strings.Contains(trimmed, "://")

	var (
		parsed *url.URL
		err    error
	)

	if hasScheme {
		parsed, err = url.Parse(trimmed)
	} else {
		// Prepend "//" so url.Parse treats it as a host (not scheme:opaque).
		parsed, err = url.Parse("//" + trimmed)
	}

	if err != nil {
		return "", ldapresult.WrapError(ldapresult.ParamError, err, "Invalid server URL %q", address)
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "ldap"
	}

	// Scheme is lowercased by url.Parse per RFC 3986.
	if !slices.Contains(allowedSchemes, scheme) {
		return "", ldapresult.NewError(ldapresult.ParamError,
			"Scheme %q is not supported for server URL %q", scheme, address)
	}

	if parsed.Hostname() == "" {
		return "", ldapresult.NewError(ldapresult.ParamError, "Server URL %q has no host", address)
	}

	if parsed.Path != "" && parsed.Path != "/" {
		return "", ldapresult.NewError(ldapresult.ParamError,
			"Server URL %q must not carry a path", address)
	}

	port := parsed.Port()
	if port == "" {
		port = defaultPorts[scheme]
	}

	return fmt.Sprintf("%s://%s:%s", scheme, parsed.Hostname(), port), nil
}
