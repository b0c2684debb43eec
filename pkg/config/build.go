// Copyright 2025 SGNL.ai, Inc.

package config

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sgnl-ai/ldapmodify/pkg/controls"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapmod"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
)

// ToolName identifies the tool in the operation purpose control and the
// administrative session request.
const ToolName = "ldapmodify"

// ToolVersion is stamped at build time.
var ToolVersion = "dev"

// defaultSearchPageSize applies when bulk filters are configured without an
// explicit page size.
const defaultSearchPageSize = 100

// BuildSettings translates validated Options into engine settings,
// instantiating every configured request control.
func (o *Options) BuildSettings() (*ldapmod.Settings, error) {
	settings := &ldapmod.Settings{
		DryRun:                o.DryRun,
		ContinueOnError:       o.ContinueOnError,
		FollowReferrals:       o.FollowReferrals,
		RetryFailedOperations: o.RetryFailedOperations,
		RatePerSecond:         o.RatePerSecond,
		SearchPageSize:        o.SearchPageSize,
		UseTransaction:        o.UseTransaction,
		AssertionFilter:       o.AssertionFilter,
	}

	if o.MultiUpdateErrorBehavior != "" {
		behavior, err := extop.ParseErrorBehavior(o.MultiUpdateErrorBehavior)
		if err != nil {
			return nil, ldapresult.WrapError(ldapresult.ParamError, err,
				"Invalid --multiUpdateErrorBehavior value")
		}

		settings.MultiUpdateErrorBehavior = &behavior
	}

	if err := o.buildTargets(settings); err != nil {
		return nil, err
	}

	if settings.SearchPageSize == 0 && len(settings.TargetFilters) > 0 {
		settings.SearchPageSize = defaultSearchPageSize
	}

	if err := o.buildControls(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (o *Options) buildTargets(settings *ldapmod.Settings) error {
	settings.TargetDNs = append(settings.TargetDNs, o.ModifyEntryWithDN...)

	for _, file := range o.ModifyEntriesWithDNsFromFile {
		lines, err := readLines(file)
		if err != nil {
			return ldapresult.WrapError(ldapresult.ParamError, err, "Cannot read DN file %q", file)
		}

		settings.TargetDNs = append(settings.TargetDNs, lines...)
	}

	settings.TargetFilters = append(settings.TargetFilters, o.ModifyEntriesMatchingFilter...)

	for _, file := range o.ModifyEntriesMatchingFiltersFromFile {
		lines, err := readLines(file)
		if err != nil {
			return ldapresult.WrapError(ldapresult.ParamError, err, "Cannot read filter file %q", file)
		}

		settings.TargetFilters = append(settings.TargetFilters, lines...)
	}

	return nil
}

func (o *Options) buildControls(settings *ldapmod.Settings) error {
	switch {
	case o.ProxyAs != "":
		settings.ProxiedAuth = controls.NewProxiedAuthV2(o.ProxyAs)
	case o.ProxyV1As != "":
		settings.ProxiedAuth = controls.NewProxiedAuthV1(o.ProxyV1As)
	}

	global := []*controls.Control{}

	appendIf := func(enabled bool, control *controls.Control) {
		if enabled {
			global = append(global, control)
		}
	}

	appendIf(o.NoOperation, controls.NewNoOp())
	appendIf(o.ManageDsaIT, controls.NewManageDSAIT())
	appendIf(o.PermissiveModify, controls.NewPermissiveModify())
	appendIf(o.SubtreeDelete, controls.NewSubtreeDelete())
	appendIf(o.HardDelete, controls.NewHardDelete())
	appendIf(o.SoftDelete, controls.NewSoftDelete())
	appendIf(o.ReplicationRepair, controls.NewReplicationRepair())
	appendIf(o.IgnoreNoUserModification, controls.NewIgnoreNoUserModification())
	appendIf(o.NameWithEntryUUID, controls.NewNameWithEntryUUID())
	appendIf(o.GetAuthorizationEntry, controls.NewGetAuthorizationEntry())
	appendIf(o.GetUserResourceLimits, controls.NewGetUserResourceLimits())
	appendIf(o.AuthorizationIdentity, controls.NewAuthorizationIdentity())
	appendIf(o.SuppressReferentialIntegrityUpdates, controls.NewSuppressReferentialIntegrityUpdates())
	appendIf(o.UsePasswordPolicy, controls.NewPasswordPolicy())

	if o.AssertionFilter != "" {
		assertion, err := controls.NewAssertion(o.AssertionFilter)
		if err != nil {
			return ldapresult.WrapError(ldapresult.ParamError, err, "Invalid --assertionFilter value")
		}

		global = append(global, assertion)
	}

	if o.OperationPurpose != "" {
		global = append(global, controls.NewOperationPurpose(ToolName, ToolVersion, o.OperationPurpose))
	}

	if o.AssuredReplicationLocalLevel != "" || o.AssuredReplicationRemoteLevel != "" {
		local := controls.LocalLevelNone
		remote := controls.RemoteLevelNone

		var err error

		if o.AssuredReplicationLocalLevel != "" {
			if local, err = controls.ParseLocalAssuranceLevel(o.AssuredReplicationLocalLevel); err != nil {
				return ldapresult.WrapError(ldapresult.ParamError, err,
					"Invalid --assuredReplicationLocalLevel value")
			}
		}

		if o.AssuredReplicationRemoteLevel != "" {
			if remote, err = controls.ParseRemoteAssuranceLevel(o.AssuredReplicationRemoteLevel); err != nil {
				return ldapresult.WrapError(ldapresult.ParamError, err,
					"Invalid --assuredReplicationRemoteLevel value")
			}
		}

		global = append(global, controls.NewAssuredReplication(local, remote, o.AssuredReplicationTimeout))
	}

	if len(o.SuppressOperationalAttributeUpdates) > 0 {
		types := make([]controls.SuppressType, 0, len(o.SuppressOperationalAttributeUpdates))

		for _, name := range o.SuppressOperationalAttributeUpdates {
			t, err := controls.ParseSuppressType(name)
			if err != nil {
				return ldapresult.WrapError(ldapresult.ParamError, err,
					"Invalid --suppressOperationalAttributeUpdates value")
			}

			types = append(types, t)
		}

		global = append(global, controls.NewSuppressOperationalAttributeUpdates(types))
	}

	if o.PreReadAttributes != "" {
		settings.PreReadAttributes = controls.TokenizeAttributes(o.PreReadAttributes)
		global = append(global, controls.NewPreRead(settings.PreReadAttributes))
	}

	if o.PostReadAttributes != "" {
		settings.PostReadAttributes = controls.TokenizeAttributes(o.PostReadAttributes)
		global = append(global, controls.NewPostRead(settings.PostReadAttributes))
	}

	settings.GlobalControls = global

	if o.PasswordValidationDetails {
		settings.PasswordControls = append(settings.PasswordControls, controls.NewPasswordValidationDetails())
	}

	if o.RetireCurrentPassword {
		settings.PasswordControls = append(settings.PasswordControls, controls.NewRetirePassword())
	}

	if o.PurgeCurrentPassword {
		settings.PasswordControls = append(settings.PasswordControls, controls.NewPurgePassword())
	}

	perOp := map[controls.Op][]*controls.Control{}

	for op, specs := range map[controls.Op][]string{
		controls.OpAdd:      o.AddControls,
		controls.OpDelete:   o.DeleteControls,
		controls.OpModify:   o.ModifyControls,
		controls.OpModifyDN: o.ModifyDNControls,
	} {
		for _, spec := range specs {
			control, err := ParseControlSpec(spec)
			if err != nil {
				return ldapresult.WrapError(ldapresult.ParamError, err,
					"Invalid control specification %q", spec)
			}

			perOp[op] = append(perOp[op], control)
		}
	}

	if len(perOp) > 0 {
		settings.PerOpControls = perOp
	}

	return nil
}

// ParseControlSpec parses an oid[:criticality[::base64value]] control
// specification.
func ParseControlSpec(spec string) (*controls.Control, error) {
	oid := spec
	critical := false

	var value []byte

	hasValue := false

	if i := strings.IndexByte(spec, ':'); i >= 0 {
		oid = spec[:i]
		rest := spec[i+1:]

		criticality := rest
		if j := strings.IndexByte(rest, ':'); j >= 0 {
			criticality = rest[:j]

			encoded := strings.TrimPrefix(rest[j+1:], ":")

			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return nil, fmt.Errorf("invalid base64 control value: %w", err)
			}

			value = decoded
			hasValue = true
		}

		parsed, err := strconv.ParseBool(criticality)
		if err != nil {
			return nil, fmt.Errorf("invalid criticality %q: %w", criticality, err)
		}

		critical = parsed
	}

	if oid == "" {
		return nil, fmt.Errorf("control specification has no OID")
	}

	return controls.FromRaw(ldapresult.Control{
		OID:      oid,
		Critical: critical,
		Value:    value,
		HasValue: hasValue,
	}), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
