// Copyright 2025 SGNL.ai, Inc.

package controls

// Op identifies the directory operation a control may be attached to.
type Op int

// Operations the attachment policy distinguishes.
const (
	OpAdd Op = iota
	OpDelete
	OpModify
	OpModifyDN
	OpSearch
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpDelete:
		return "delete"
	case OpModify:
		return "modify"
	case OpModifyDN:
		return "modify DN"
	case OpSearch:
		return "search"
	default:
		return "unknown"
	}
}

var allWriteOps = []Op{OpAdd, OpDelete, OpModify, OpModifyDN}

// attachment maps each control OID to the operations it may ride on. OIDs not
// listed attach to every write operation.
var attachment = map[string][]Op{
	OIDPermissiveModify:                    {OpModify},
	OIDSubtreeDelete:                       {OpDelete},
	OIDHardDelete:                          {OpDelete},
	OIDSoftDelete:                          {OpDelete},
	OIDSuppressReferentialIntegrityUpdates: {OpDelete, OpModifyDN},
	OIDIgnoreNoUserModification:            {OpAdd},
	OIDNameWithEntryUUID:                   {OpAdd},
	OIDUndelete:                            {OpAdd},
	OIDPreRead:                             {OpDelete, OpModify, OpModifyDN},
	OIDPostRead:                            {OpAdd, OpModify, OpModifyDN},
	OIDPasswordPolicy:                      {OpAdd, OpModify},
	OIDPasswordValidationDetails:           {OpAdd, OpModify},
	OIDRetirePassword:                      {OpModify},
	OIDPurgePassword:                       {OpModify},

	OIDNoOp:                                 allWriteOps,
	OIDReplicationRepair:                    allWriteOps,
	OIDAssuredReplication:                   allWriteOps,
	OIDAssertion:                            allWriteOps,
	OIDOperationPurpose:                     allWriteOps,
	OIDManageDSAIT:                          allWriteOps,
	OIDSuppressOperationalAttributeUpdates:  allWriteOps,
	OIDTransactionSpecification:             allWriteOps,
	OIDGetAuthorizationEntry:                allWriteOps,
	OIDGetUserResourceLimits:                allWriteOps,
	OIDAuthorizationIdentity:                allWriteOps,

	OIDProxiedAuthV1: {OpAdd, OpDelete, OpModify, OpModifyDN, OpSearch},
	OIDProxiedAuthV2: {OpAdd, OpDelete, OpModify, OpModifyDN, OpSearch},
}

// AppliesTo reports whether a control with the given OID belongs on the given
// operation type.
func AppliesTo(oid string, op Op) bool {
	ops, known := attachment[oid]
	if !known {
		for _, candidate := range allWriteOps {
			if candidate == op {
				return true
			}
		}

		return false
	}

	for _, candidate := range ops {
		if candidate == op {
			return true
		}
	}

	return false
}

// FilterFor returns the subset of controls that belong on the given
// operation, preserving order.
func FilterFor(op Op, ctls []*Control) []*Control {
	kept := make([]*Control, 0, len(ctls))

	for _, ctl := range ctls {
		if ctl != nil && AppliesTo(ctl.GetControlType(), op) {
			kept = append(kept, ctl)
		}
	}

	return kept
}
