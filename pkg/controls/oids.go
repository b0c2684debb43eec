// Copyright 2025 SGNL.ai, Inc.

package controls

// Request-control OIDs the tool can attach. The engine only ever references
// controls through these constants; the numeric assignments follow the
// published definitions for each control.
const (
	// OIDAssertion is the LDAP assertion control (RFC 4528).
	OIDAssertion = "1.3.6.1.1.12"

	// OIDProxiedAuthV1 is the DN-based proxied authorization control.
	OIDProxiedAuthV1 = "2.16.840.1.113730.3.4.12"

	// OIDProxiedAuthV2 is the authzID-based proxied authorization control
	// (RFC 4370).
	OIDProxiedAuthV2 = "2.16.840.1.113730.3.4.18"

	// OIDTransactionSpecification attaches a transaction identifier to an
	// inner modifying operation (RFC 5805).
	OIDTransactionSpecification = "1.3.6.1.1.21.2"

	// OIDSimplePagedResults is the simple paged results control (RFC 2696).
	OIDSimplePagedResults = "1.2.840.113556.1.4.319"

	// OIDPasswordPolicy is the password policy request/response control.
	OIDPasswordPolicy = "1.3.6.1.4.1.42.2.27.8.5.1"

	// OIDPasswordValidationDetails requests per-validator password quality
	// results on a password change.
	OIDPasswordValidationDetails = "1.3.6.1.4.1.30221.2.5.40"

	// OIDRetirePassword retires the former password on a password change.
	OIDRetirePassword = "1.3.6.1.4.1.30221.2.5.31"

	// OIDPurgePassword purges the former password on a password change.
	OIDPurgePassword = "1.3.6.1.4.1.30221.2.5.32"

	// OIDUndelete turns an add request into an undelete of a soft-deleted
	// entry.
	OIDUndelete = "1.3.6.1.4.1.30221.2.5.23"

	// OIDPreRead captures the entry before the change (RFC 4527).
	OIDPreRead = "1.3.6.1.1.13.1"

	// OIDPostRead captures the entry after the change (RFC 4527).
	OIDPostRead = "1.3.6.1.1.13.2"

	// OIDAssuredReplication requests replication assurance for the change.
	OIDAssuredReplication = "1.3.6.1.4.1.30221.2.5.18"

	// OIDSuppressOperationalAttributeUpdates suppresses maintenance of the
	// named operational attributes.
	OIDSuppressOperationalAttributeUpdates = "1.3.6.1.4.1.30221.2.5.27"

	// OIDNoOp validates an operation without applying it.
	OIDNoOp = "1.3.6.1.4.1.4203.1.10.2"

	// OIDManageDSAIT treats referral entries as regular entries (RFC 3296).
	OIDManageDSAIT = "2.16.840.1.113730.3.4.2"

	// OIDPermissiveModify relaxes modify semantics for redundant changes.
	OIDPermissiveModify = "1.2.840.113556.1.4.1413"

	// OIDSubtreeDelete deletes an entire subtree in one delete operation.
	OIDSubtreeDelete = "1.2.840.113556.1.4.805"

	// OIDHardDelete forces a permanent delete even when soft delete is the
	// server default.
	OIDHardDelete = "1.3.6.1.4.1.30221.2.5.22"

	// OIDSoftDelete hides rather than removes the target entry.
	OIDSoftDelete = "1.3.6.1.4.1.30221.2.5.20"

	// OIDReplicationRepair applies the change without replicating it.
	OIDReplicationRepair = "1.3.6.1.4.1.30221.1.5.2"

	// OIDIgnoreNoUserModification permits writes to NO-USER-MODIFICATION
	// attributes on add.
	OIDIgnoreNoUserModification = "1.3.6.1.4.1.30221.2.5.5"

	// OIDNameWithEntryUUID names the added entry with its entryUUID.
	OIDNameWithEntryUUID = "1.3.6.1.4.1.30221.2.5.44"

	// OIDOperationPurpose identifies the application and purpose behind a
	// request.
	OIDOperationPurpose = "1.3.6.1.4.1.30221.2.5.19"

	// OIDGetAuthorizationEntry returns the authorization entry with the bind
	// or operation response.
	OIDGetAuthorizationEntry = "1.3.6.1.4.1.30221.2.5.6"

	// OIDGetUserResourceLimits returns the user's resource limits with the
	// response.
	OIDGetUserResourceLimits = "1.3.6.1.4.1.30221.2.5.25"

	// OIDAuthorizationIdentity requests the authorization identity on bind
	// (RFC 3829).
	OIDAuthorizationIdentity = "2.16.840.1.113730.3.4.16"

	// OIDSuppressReferentialIntegrityUpdates suppresses referential
	// integrity processing on delete and modify DN.
	OIDSuppressReferentialIntegrityUpdates = "1.3.6.1.4.1.30221.2.5.30"
)
