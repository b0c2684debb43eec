// Copyright 2025 SGNL.ai, Inc.

// Package config carries the tool's validated invocation: the raw flag
// values, the environment overlay, the mutual-exclusion rules, and the
// translation into engine settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/validation"
)

// Options holds the raw command-line values before validation.
type Options struct {
	// Input selection.
	Files               []string `mapstructure:"files"`
	Encoding            string   `mapstructure:"encoding" validate:"omitempty"`
	DefaultAdd          bool     `mapstructure:"default_add"`
	StripTrailingSpaces bool     `mapstructure:"strip_trailing_spaces"`

	// Connection.
	ServerURLs               []string `mapstructure:"server_urls" validate:"required,min=1,dive,required"`
	BindDN                   string   `mapstructure:"bind_dn"`
	BindPassword             string   `mapstructure:"bind_password"`
	CACertificateFile        string   `mapstructure:"ca_certificate_file"`
	InsecureSkipVerify       bool     `mapstructure:"insecure_skip_verify"`
	UseAdministrativeSession bool     `mapstructure:"use_administrative_session"`

	// Target selection.
	ModifyEntryWithDN                    []string `mapstructure:"modify_entry_with_dn"`
	ModifyEntriesWithDNsFromFile         []string `mapstructure:"modify_entries_with_dns_from_file"`
	ModifyEntriesMatchingFilter          []string `mapstructure:"modify_entries_matching_filter"`
	ModifyEntriesMatchingFiltersFromFile []string `mapstructure:"modify_entries_matching_filters_from_file"`

	// Grouping.
	UseTransaction           bool   `mapstructure:"use_transaction"`
	MultiUpdateErrorBehavior string `mapstructure:"multi_update_error_behavior" validate:"omitempty,oneof=atomic abort-on-error continue-on-error"`

	// Policy.
	ContinueOnError       bool `mapstructure:"continue_on_error"`
	RetryFailedOperations bool `mapstructure:"retry_failed_operations"`
	FollowReferrals       bool `mapstructure:"follow_referrals"`
	DryRun                bool `mapstructure:"dry_run"`
	RatePerSecond         int  `mapstructure:"rate_per_second" validate:"gte=0"`
	SearchPageSize        int  `mapstructure:"search_page_size" validate:"gte=0"`

	// Output.
	RejectFile string `mapstructure:"reject_file"`

	// Flag-derived controls.
	NoOperation                         bool          `mapstructure:"no_operation"`
	ManageDsaIT                         bool          `mapstructure:"manage_dsa_it"`
	PermissiveModify                    bool          `mapstructure:"permissive_modify"`
	SubtreeDelete                       bool          `mapstructure:"subtree_delete"`
	HardDelete                          bool          `mapstructure:"hard_delete"`
	SoftDelete                          bool          `mapstructure:"soft_delete"`
	ReplicationRepair                   bool          `mapstructure:"replication_repair"`
	IgnoreNoUserModification            bool          `mapstructure:"ignore_no_user_modification"`
	NameWithEntryUUID                   bool          `mapstructure:"name_with_entry_uuid"`
	GetAuthorizationEntry               bool          `mapstructure:"get_authorization_entry"`
	GetUserResourceLimits               bool          `mapstructure:"get_user_resource_limits"`
	AuthorizationIdentity               bool          `mapstructure:"authorization_identity"`
	SuppressReferentialIntegrityUpdates bool          `mapstructure:"suppress_referential_integrity_updates"`
	UsePasswordPolicy                   bool          `mapstructure:"use_password_policy"`
	PasswordValidationDetails           bool          `mapstructure:"password_validation_details"`
	RetireCurrentPassword               bool          `mapstructure:"retire_current_password"`
	PurgeCurrentPassword                bool          `mapstructure:"purge_current_password"`
	OperationPurpose                    string        `mapstructure:"operation_purpose"`
	AssertionFilter                     string        `mapstructure:"assertion_filter"`
	PreReadAttributes                   string        `mapstructure:"pre_read_attributes"`
	PostReadAttributes                  string        `mapstructure:"post_read_attributes"`
	ProxyAs                             string        `mapstructure:"proxy_as"`
	ProxyV1As                           string        `mapstructure:"proxy_v1_as"`
	AssuredReplicationLocalLevel        string        `mapstructure:"assured_replication_local_level"`
	AssuredReplicationRemoteLevel       string        `mapstructure:"assured_replication_remote_level"`
	AssuredReplicationTimeout           time.Duration `mapstructure:"assured_replication_timeout"`
	SuppressOperationalAttributeUpdates []string      `mapstructure:"suppress_operational_attribute_updates"`

	// Per-operation-type controls, as oid[:criticality[::base64value]]
	// specifications.
	AddControls      []string `mapstructure:"add_controls"`
	DeleteControls   []string `mapstructure:"delete_controls"`
	ModifyControls   []string `mapstructure:"modify_controls"`
	ModifyDNControls []string `mapstructure:"modify_dn_controls"`
}

// envPrefix scopes the environment overlay, e.g. LDAPMODIFY_BIND_PASSWORD.
const envPrefix = "LDAPMODIFY"

// ApplyEnv overlays environment variables onto unset connection options, the
// way service deployments inject addresses and credentials.
func ApplyEnv(opts *Options) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	overlay := map[string]any{}

	if opts.BindDN == "" {
		if s := v.GetString("BIND_DN"); s != "" {
			overlay["bind_dn"] = s
		}
	}

	if opts.BindPassword == "" {
		if s := v.GetString("BIND_PASSWORD"); s != "" {
			overlay["bind_password"] = s
		}
	}

	if len(opts.ServerURLs) == 0 {
		if s := v.GetString("SERVER_URLS"); s != "" {
			overlay["server_urls"] = strings.Split(s, ",")
		}
	}

	if len(overlay) == 0 {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: opts})
	if err != nil {
		return fmt.Errorf("failed to build the environment overlay decoder: %w", err)
	}

	return decoder.Decode(overlay)
}

var validate = validator.New()

// Validate checks field shapes and the mutual-exclusion matrix. Every
// violation maps to the param-error result code.
func (o *Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return ldapresult.WrapError(ldapresult.ParamError, err, "Invalid argument value")
	}

	for i, address := range o.ServerURLs {
		normalized, err := validation.ParseServerURL(address)
		if err != nil {
			return err
		}

		o.ServerURLs[i] = normalized
	}

	paramErr := func(format string, args ...any) error {
		return ldapresult.NewError(ldapresult.ParamError, format, args...)
	}

	if o.UseTransaction && o.MultiUpdateErrorBehavior != "" {
		return paramErr("--useTransaction and --multiUpdateErrorBehavior are mutually exclusive")
	}

	if o.ProxyAs != "" && o.ProxyV1As != "" {
		return paramErr("--proxyAs and --proxyV1As are mutually exclusive")
	}

	if o.HardDelete && o.SoftDelete {
		return paramErr("--hardDelete and --softDelete are mutually exclusive")
	}

	if grouped := o.UseTransaction || o.MultiUpdateErrorBehavior != ""; grouped {
		groupFlag := "--useTransaction"
		if !o.UseTransaction {
			groupFlag = "--multiUpdateErrorBehavior"
		}

		incompatible := []struct {
			set  bool
			name string
		}{
			{o.ContinueOnError, "--continueOnError"},
			{o.FollowReferrals, "--followReferrals"},
			{o.NoOperation, "--noOperation"},
			{o.RetryFailedOperations, "--retryFailedOperations"},
			{o.DryRun, "--dryRun"},
			{len(o.AddControls) > 0, "--addControl"},
			{len(o.DeleteControls) > 0, "--deleteControl"},
			{len(o.ModifyControls) > 0, "--modifyControl"},
			{len(o.ModifyDNControls) > 0, "--modifyDNControl"},
			{o.NameWithEntryUUID, "--nameWithEntryUUID"},
			{o.RejectFile != "", "--rejectFile"},
			{len(o.ModifyEntryWithDN) > 0, "--modifyEntryWithDN"},
			{len(o.ModifyEntriesWithDNsFromFile) > 0, "--modifyEntriesWithDNsFromFile"},
			{len(o.ModifyEntriesMatchingFilter) > 0, "--modifyEntriesMatchingFilter"},
			{len(o.ModifyEntriesMatchingFiltersFromFile) > 0, "--modifyEntriesMatchingFiltersFromFile"},
		}

		for _, flag := range incompatible {
			if flag.set {
				return paramErr("%s cannot be used with %s", flag.name, groupFlag)
			}
		}

		if o.MultiUpdateErrorBehavior != "" && o.RatePerSecond > 0 {
			return paramErr("--ratePerSecond cannot be used with --multiUpdateErrorBehavior")
		}
	}

	for _, file := range o.Files {
		if file == "-" {
			continue
		}

		if _, err := os.Stat(file); err != nil {
			return ldapresult.WrapError(ldapresult.ParamError, err, "Cannot read LDIF file %q", file)
		}
	}

	return nil
}
