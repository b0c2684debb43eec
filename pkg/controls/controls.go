// Copyright 2025 SGNL.ai, Inc.

// Package controls builds the request controls the batch tool can attach to
// directory operations. Every control satisfies go-ldap's Control interface
// so it can ride on any request type, and is immutable once built.
package controls

import (
	"fmt"
	"strings"
	"time"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// Control is a generic request control: OID, criticality and an optional
// BER-encoded value.
type Control struct {
	name     string
	oid      string
	critical bool
	value    []byte
	hasValue bool
}

var _ ldap.Control = (*Control)(nil)

// GetControlType returns the control OID.
func (c *Control) GetControlType() string { return c.oid }

// Critical reports the control's criticality.
func (c *Control) Critical() bool { return c.critical }

// Value returns a copy of the control value, or nil when absent.
func (c *Control) Value() []byte {
	if !c.hasValue {
		return nil
	}

	return append([]byte(nil), c.value...)
}

// Encode renders the control sequence the way go-ldap encodes its built-in
// controls.
func (c *Control) Encode() *ber.Packet {
	packet := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "Control")
	packet.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, c.oid, "Control Type ("+c.name+")"))

	if c.critical {
		packet.AppendChild(ber.NewBoolean(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagBoolean, true, "Criticality"))
	}

	if c.hasValue {
		packet.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(c.value), "Control Value"))
	}

	return packet
}

// String renders the control for diagnostics.
func (c *Control) String() string {
	return fmt.Sprintf("%s(oid=%s, critical=%t, hasValue=%t)", c.name, c.oid, c.critical, c.hasValue)
}

// FromRaw wraps a decoded control (typically from an LDIF control line) so it
// can ride on a request.
func FromRaw(raw ldapresult.Control) *Control {
	return &Control{
		name:     "RecordControl",
		oid:      raw.OID,
		critical: raw.Critical,
		value:    append([]byte(nil), raw.Value...),
		hasValue: raw.HasValue,
	}
}

func flagControl(name, oid string, critical bool) *Control {
	return &Control{name: name, oid: oid, critical: critical}
}

func valueControl(name, oid string, critical bool, value []byte) *Control {
	return &Control{name: name, oid: oid, critical: critical, value: value, hasValue: true}
}

// NewAssertion builds the assertion control for the given search filter. The
// server must return assertionFailed when the filter does not match the
// target entry.
func NewAssertion(filter string) (*Control, error) {
	compiled, err := ldap.CompileFilter(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile assertion filter %q: %w", filter, err)
	}

	return valueControl("Assertion", OIDAssertion, true, compiled.Bytes()), nil
}

// NewProxiedAuthV1 builds the DN-based proxied authorization control.
func NewProxiedAuthV1(authzDN string) *Control {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "ProxiedAuthV1Value")
	value.AppendChild(ber.NewString(
		ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, authzDN, "proxyDN"))

	return valueControl("ProxiedAuthorizationV1", OIDProxiedAuthV1, true, value.Bytes())
}

// NewProxiedAuthV2 builds the authzID-based proxied authorization control.
// The value is the raw authorization identity, not wrapped in a sequence.
func NewProxiedAuthV2(authzID string) *Control {
	return valueControl("ProxiedAuthorizationV2", OIDProxiedAuthV2, true, []byte(authzID))
}

// NewTransactionSpecification attaches a transaction identifier to an inner
// modifying operation.
func NewTransactionSpecification(txnID []byte) *Control {
	return valueControl("TransactionSpecification", OIDTransactionSpecification, true,
		append([]byte(nil), txnID...))
}

// NewPasswordPolicy builds the password policy request control.
func NewPasswordPolicy() *Control {
	return flagControl("PasswordPolicy", OIDPasswordPolicy, false)
}

// NewPasswordValidationDetails builds the password validation details request
// control.
func NewPasswordValidationDetails() *Control {
	return flagControl("PasswordValidationDetails", OIDPasswordValidationDetails, false)
}

// NewRetirePassword builds the retire former password control.
func NewRetirePassword() *Control {
	return flagControl("RetirePassword", OIDRetirePassword, true)
}

// NewPurgePassword builds the purge former password control.
func NewPurgePassword() *Control {
	return flagControl("PurgePassword", OIDPurgePassword, true)
}

// NewUndelete builds the undelete control attached to add requests that
// resurrect soft-deleted entries.
func NewUndelete() *Control {
	return flagControl("Undelete", OIDUndelete, true)
}

// NewPreRead builds the pre-read control capturing the entry before the
// change. Attributes are the already-tokenized selection list.
func NewPreRead(attributes []string) *Control {
	return valueControl("PreRead", OIDPreRead, true, encodeAttributeSelection(attributes))
}

// NewPostRead builds the post-read control capturing the entry after the
// change.
func NewPostRead(attributes []string) *Control {
	return valueControl("PostRead", OIDPostRead, true, encodeAttributeSelection(attributes))
}

func encodeAttributeSelection(attributes []string) []byte {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AttributeSelection")
	for _, attribute := range attributes {
		value.AppendChild(ber.NewString(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, attribute, "attribute"))
	}

	return value.Bytes()
}

// TokenizeAttributes splits a comma- and whitespace-separated attribute list
// into its attribute names.
func TokenizeAttributes(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	attributes := make([]string, 0, len(fields))

	for _, field := range fields {
		if field != "" {
			attributes = append(attributes, field)
		}
	}

	return attributes
}

// NewNoOp builds the no-op control.
func NewNoOp() *Control {
	return flagControl("NoOp", OIDNoOp, true)
}

// NewManageDSAIT builds the manage DSA IT control.
func NewManageDSAIT() *Control {
	return flagControl("ManageDsaIT", OIDManageDSAIT, true)
}

// NewPermissiveModify builds the permissive modify control.
func NewPermissiveModify() *Control {
	return flagControl("PermissiveModify", OIDPermissiveModify, false)
}

// NewSubtreeDelete builds the subtree delete control.
func NewSubtreeDelete() *Control {
	return flagControl("SubtreeDelete", OIDSubtreeDelete, true)
}

// NewHardDelete builds the hard delete control.
func NewHardDelete() *Control {
	return flagControl("HardDelete", OIDHardDelete, true)
}

// NewSoftDelete builds the soft delete control.
func NewSoftDelete() *Control {
	return flagControl("SoftDelete", OIDSoftDelete, true)
}

// NewReplicationRepair builds the replication repair control.
func NewReplicationRepair() *Control {
	return flagControl("ReplicationRepair", OIDReplicationRepair, true)
}

// NewIgnoreNoUserModification builds the ignore NO-USER-MODIFICATION control.
func NewIgnoreNoUserModification() *Control {
	return flagControl("IgnoreNoUserModification", OIDIgnoreNoUserModification, true)
}

// NewNameWithEntryUUID builds the name-with-entryUUID control.
func NewNameWithEntryUUID() *Control {
	return flagControl("NameWithEntryUUID", OIDNameWithEntryUUID, true)
}

// NewOperationPurpose builds the operation purpose control identifying the
// requesting application.
func NewOperationPurpose(applicationName, applicationVersion, purpose string) *Control {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "OperationPurposeValue")
	value.AppendChild(ber.NewString(
		ber.ClassContext, ber.TypePrimitive, 0, applicationName, "applicationName"))
	value.AppendChild(ber.NewString(
		ber.ClassContext, ber.TypePrimitive, 1, applicationVersion, "applicationVersion"))
	value.AppendChild(ber.NewString(
		ber.ClassContext, ber.TypePrimitive, 3, purpose, "requestPurpose"))

	return valueControl("OperationPurpose", OIDOperationPurpose, false, value.Bytes())
}

// NewGetAuthorizationEntry builds the get authorization entry request
// control.
func NewGetAuthorizationEntry() *Control {
	return flagControl("GetAuthorizationEntry", OIDGetAuthorizationEntry, false)
}

// NewGetUserResourceLimits builds the get user resource limits request
// control.
func NewGetUserResourceLimits() *Control {
	return flagControl("GetUserResourceLimits", OIDGetUserResourceLimits, false)
}

// NewAuthorizationIdentity builds the authorization identity request control.
func NewAuthorizationIdentity() *Control {
	return flagControl("AuthorizationIdentity", OIDAuthorizationIdentity, false)
}

// NewSuppressReferentialIntegrityUpdates builds the suppress referential
// integrity updates control.
func NewSuppressReferentialIntegrityUpdates() *Control {
	return flagControl("SuppressReferentialIntegrityUpdates", OIDSuppressReferentialIntegrityUpdates, true)
}

// AssuranceLevel is a local or remote assured replication level.
type AssuranceLevel int

// Local assurance levels.
const (
	LocalLevelNone AssuranceLevel = iota
	LocalLevelReceivedAnyServer
	LocalLevelProcessedAllServers
)

// Remote assurance levels.
const (
	RemoteLevelNone AssuranceLevel = iota
	RemoteLevelReceivedAnyRemoteLocation
	RemoteLevelReceivedAllRemoteLocations
	RemoteLevelProcessedAllRemoteServers
)

// ParseLocalAssuranceLevel parses the flag spelling of a local assurance
// level.
func ParseLocalAssuranceLevel(s string) (AssuranceLevel, error) {
	switch s {
	case "none":
		return LocalLevelNone, nil
	case "received-any-server":
		return LocalLevelReceivedAnyServer, nil
	case "processed-all-servers":
		return LocalLevelProcessedAllServers, nil
	default:
		return 0, fmt.Errorf("unsupported local assurance level %q", s)
	}
}

// ParseRemoteAssuranceLevel parses the flag spelling of a remote assurance
// level.
func ParseRemoteAssuranceLevel(s string) (AssuranceLevel, error) {
	switch s {
	case "none":
		return RemoteLevelNone, nil
	case "received-any-remote-location":
		return RemoteLevelReceivedAnyRemoteLocation, nil
	case "received-all-remote-locations":
		return RemoteLevelReceivedAllRemoteLocations, nil
	case "processed-all-remote-servers":
		return RemoteLevelProcessedAllRemoteServers, nil
	default:
		return 0, fmt.Errorf("unsupported remote assurance level %q", s)
	}
}

// NewAssuredReplication builds the assured replication control. A zero
// timeout leaves the server default in effect.
func NewAssuredReplication(local, remote AssuranceLevel, timeout time.Duration) *Control {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "AssuredReplicationValue")
	value.AppendChild(ber.NewInteger(
		ber.ClassContext, ber.TypePrimitive, 0, int64(local), "minimumLocalLevel"))
	value.AppendChild(ber.NewInteger(
		ber.ClassContext, ber.TypePrimitive, 2, int64(remote), "minimumRemoteLevel"))

	if timeout > 0 {
		value.AppendChild(ber.NewInteger(
			ber.ClassContext, ber.TypePrimitive, 5, timeout.Milliseconds(), "timeoutMillis"))
	}

	return valueControl("AssuredReplication", OIDAssuredReplication, false, value.Bytes())
}

// SuppressType names an operational attribute family the server may be told
// not to maintain for an operation.
type SuppressType int

// Suppressible operational attribute families.
const (
	SuppressLastAccessTime SuppressType = iota
	SuppressLastLoginTime
	SuppressLastLoginIP
	SuppressLastMod
)

// ParseSuppressType parses the flag spelling of a suppressible operational
// attribute family.
func ParseSuppressType(s string) (SuppressType, error) {
	switch s {
	case "last-access-time":
		return SuppressLastAccessTime, nil
	case "last-login-time":
		return SuppressLastLoginTime, nil
	case "last-login-ip":
		return SuppressLastLoginIP, nil
	case "lastmod":
		return SuppressLastMod, nil
	default:
		return 0, fmt.Errorf("unsupported suppress type %q", s)
	}
}

// NewSuppressOperationalAttributeUpdates builds the suppress operational
// attribute updates control for the given families.
func NewSuppressOperationalAttributeUpdates(types []SuppressType) *Control {
	value := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "SuppressValue")
	suppress := ber.Encode(ber.ClassContext, ber.TypeConstructed, 0, nil, "suppressTypes")

	for _, t := range types {
		suppress.AppendChild(ber.NewInteger(
			ber.ClassUniversal, ber.TypePrimitive, ber.TagEnumerated, int64(t), "suppressType"))
	}

	value.AppendChild(suppress)

	return valueControl("SuppressOperationalAttributeUpdates", OIDSuppressOperationalAttributeUpdates,
		false, value.Bytes())
}
