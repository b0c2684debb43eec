// Copyright 2025 SGNL.ai, Inc.

// Command ldapmodify reads LDIF change records and applies them to one or
// more directory servers, with request controls, bulk target selection, and
// transactional or multi-update grouping.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sgnl-ai/ldapmodify/pkg/config"
	"github.com/sgnl-ai/ldapmodify/pkg/extop"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapmod"
	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
	"github.com/sgnl-ai/ldapmodify/pkg/pool"
	"github.com/sgnl-ai/ldapmodify/pkg/zaplogger"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := &config.Options{}

	rootCmd := &cobra.Command{
		Use:   "ldapmodify",
		Short: "Apply LDIF change records to a directory server",
		Long: `ldapmodify reads change records in the LDAP Data Interchange Format and
applies them to one or more directory servers: adds, deletes, modifies and
modify DN operations, optionally wrapped in a server-side transaction or a
single multi-update request, optionally fanned out across entries matching a
search filter.

Examples:
  # Apply changes from a file
  ldapmodify --serverURL ldap://ds.example.com:389 \
      --bindDN uid=admin,dc=example,dc=com --bindPassword secret \
      --file changes.ldif

  # Apply one modification to every matching entry, two entries per page
  ldapmodify --serverURL ldaps://ds.example.com:636 \
      --modifyEntriesMatchingFilter '(objectClass=person)' \
      --searchPageSize 2 --file mod.ldif

  # Group all changes into one transaction
  ldapmodify --serverURL ldap://ds.example.com:389 --useTransaction \
      --file changes.ldif

The process exit code is the numeric value of the final LDAP result code,
clamped to 0..255.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	flags := rootCmd.Flags()

	flags.StringSliceVar(&opts.Files, "file", nil, "LDIF file with change records (repeatable; stdin if absent)")
	flags.StringVar(&opts.Encoding, "encoding", "", "input character set (IANA name; default UTF-8)")
	flags.BoolVar(&opts.DefaultAdd, "defaultAdd", false, "treat records without a changetype as adds")
	flags.BoolVar(&opts.StripTrailingSpaces, "stripTrailingSpaces", false,
		"strip illegal trailing spaces instead of rejecting the record")

	flags.StringSliceVar(&opts.ServerURLs, "serverURL", nil,
		"directory server URL (repeatable; tried in order on connection failure)")
	flags.StringVar(&opts.BindDN, "bindDN", "", "DN to bind as")
	flags.StringVar(&opts.BindPassword, "bindPassword", "", "password to bind with")
	flags.StringVar(&opts.CACertificateFile, "trustStorePath", "", "PEM file with trusted CA certificates")
	flags.BoolVar(&opts.InsecureSkipVerify, "trustAll", false, "skip TLS certificate verification")
	flags.BoolVar(&opts.UseAdministrativeSession, "useAdministrativeSession", false,
		"request an administrative session on each new connection")

	flags.StringArrayVar(&opts.ModifyEntryWithDN, "modifyEntryWithDN", nil,
		"apply each modify record to this DN instead of its own (repeatable)")
	flags.StringArrayVar(&opts.ModifyEntriesWithDNsFromFile, "modifyEntriesWithDNsFromFile", nil,
		"apply each modify record to every DN listed in this file (repeatable)")
	flags.StringArrayVar(&opts.ModifyEntriesMatchingFilter, "modifyEntriesMatchingFilter", nil,
		"apply each modify record to every entry matching this filter (repeatable)")
	flags.StringArrayVar(&opts.ModifyEntriesMatchingFiltersFromFile, "modifyEntriesMatchingFiltersFromFile", nil,
		"apply each modify record to every entry matching each filter in this file (repeatable)")

	flags.BoolVar(&opts.UseTransaction, "useTransaction", false,
		"process all operations in one server-side transaction")
	flags.StringVar(&opts.MultiUpdateErrorBehavior, "multiUpdateErrorBehavior", "",
		"send all operations in one multi-update request with this error behavior "+
			"(atomic, abort-on-error, continue-on-error)")

	flags.BoolVar(&opts.ContinueOnError, "continueOnError", false, "keep processing after a failed operation")
	flags.BoolVar(&opts.RetryFailedOperations, "retryFailedOperations", false,
		"retry an operation once on a replacement connection after a connection failure")
	flags.BoolVar(&opts.FollowReferrals, "followReferrals", false, "report referrals as informational")
	flags.BoolVar(&opts.DryRun, "dryRun", false, "report what would be done without sending any request after the bind")
	flags.IntVar(&opts.RatePerSecond, "ratePerSecond", 0, "maximum operations per second (0 = unlimited)")
	flags.IntVar(&opts.SearchPageSize, "searchPageSize", 0, "page size for bulk-modify searches")
	flags.StringVar(&opts.RejectFile, "rejectFile", "", "LDIF file collecting rejected change records")

	flags.BoolVar(&opts.NoOperation, "noOperation", false, "attach the no-op control")
	flags.BoolVar(&opts.ManageDsaIT, "useManageDsaIT", false, "attach the manage DSA IT control")
	flags.BoolVar(&opts.PermissiveModify, "permissiveModify", false, "attach the permissive modify control")
	flags.BoolVar(&opts.SubtreeDelete, "subtreeDelete", false, "attach the subtree delete control")
	flags.BoolVar(&opts.HardDelete, "hardDelete", false, "attach the hard delete control")
	flags.BoolVar(&opts.SoftDelete, "softDelete", false, "attach the soft delete control")
	flags.BoolVar(&opts.ReplicationRepair, "replicationRepair", false, "attach the replication repair control")
	flags.BoolVar(&opts.IgnoreNoUserModification, "ignoreNoUserModification", false,
		"attach the ignore NO-USER-MODIFICATION control")
	flags.BoolVar(&opts.NameWithEntryUUID, "nameWithEntryUUID", false, "attach the name-with-entryUUID control")
	flags.BoolVar(&opts.GetAuthorizationEntry, "getAuthorizationEntryAttributes", false,
		"attach the get authorization entry control")
	flags.BoolVar(&opts.GetUserResourceLimits, "getUserResourceLimits", false,
		"attach the get user resource limits control")
	flags.BoolVar(&opts.AuthorizationIdentity, "authorizationIdentity", false,
		"attach the authorization identity request control")
	flags.BoolVar(&opts.SuppressReferentialIntegrityUpdates, "suppressReferentialIntegrityUpdates", false,
		"attach the suppress referential integrity updates control")
	flags.BoolVar(&opts.UsePasswordPolicy, "usePasswordPolicy", false, "attach the password policy control")
	flags.BoolVar(&opts.PasswordValidationDetails, "getPasswordValidationDetails", false,
		"attach the password validation details control to password changes")
	flags.BoolVar(&opts.RetireCurrentPassword, "retireCurrentPassword", false,
		"retire the former password on password changes")
	flags.BoolVar(&opts.PurgeCurrentPassword, "purgeCurrentPassword", false,
		"purge the former password on password changes")
	flags.StringVar(&opts.OperationPurpose, "operationPurpose", "", "attach an operation purpose control")
	flags.StringVar(&opts.AssertionFilter, "assertionFilter", "",
		"only apply each change if this filter matches the target entry")
	flags.StringVar(&opts.PreReadAttributes, "preReadAttributes", "",
		"capture these attributes before each change (comma- or space-separated)")
	flags.StringVar(&opts.PostReadAttributes, "postReadAttributes", "",
		"capture these attributes after each change (comma- or space-separated)")
	flags.StringVar(&opts.ProxyAs, "proxyAs", "", "proxied authorization v2 identity (authzID)")
	flags.StringVar(&opts.ProxyV1As, "proxyV1As", "", "proxied authorization v1 identity (DN)")
	flags.StringVar(&opts.AssuredReplicationLocalLevel, "assuredReplicationLocalLevel", "",
		"local assurance level (none, received-any-server, processed-all-servers)")
	flags.StringVar(&opts.AssuredReplicationRemoteLevel, "assuredReplicationRemoteLevel", "",
		"remote assurance level (none, received-any-remote-location, received-all-remote-locations, "+
			"processed-all-remote-servers)")
	flags.DurationVar(&opts.AssuredReplicationTimeout, "assuredReplicationTimeout", 0,
		"assured replication timeout")
	flags.StringSliceVar(&opts.SuppressOperationalAttributeUpdates, "suppressOperationalAttributeUpdates", nil,
		"operational attribute families to leave unmaintained "+
			"(last-access-time, last-login-time, last-login-ip, lastmod)")

	flags.StringArrayVar(&opts.AddControls, "addControl", nil,
		"control for add requests, as oid[:criticality[::base64value]] (repeatable)")
	flags.StringArrayVar(&opts.DeleteControls, "deleteControl", nil,
		"control for delete requests, as oid[:criticality[::base64value]] (repeatable)")
	flags.StringArrayVar(&opts.ModifyControls, "modifyControl", nil,
		"control for modify requests, as oid[:criticality[::base64value]] (repeatable)")
	flags.StringArrayVar(&opts.ModifyDNControls, "modifyDNControl", nil,
		"control for modify DN requests, as oid[:criticality[::base64value]] (repeatable)")

	exitCode := 0

	rootCmd.RunE = func(cmd *cobra.Command, _ []string) error {
		exitCode = execute(cmd.Context(), opts)

		return nil
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		return ldapresult.ParamError.ExitCode()
	}

	return exitCode
}

func execute(ctx context.Context, opts *config.Options) int {
	logCfg, err := zaplogger.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid logging configuration: %v\n", err)

		return ldapresult.ParamError.ExitCode()
	}

	logCfg.ToolName = config.ToolName
	logger := zaplogger.New(*logCfg)

	defer func() {
		_ = logger.Sync()
	}()

	if err := config.ApplyEnv(opts); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return ldapresult.ParamError.ExitCode()
	}

	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return ldapresult.CodeOf(err).ExitCode()
	}

	settings, err := opts.BuildSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return ldapresult.CodeOf(err).ExitCode()
	}

	tlsConfig, err := buildTLSConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)

		return ldapresult.CodeOf(err).ExitCode()
	}

	connector := pool.NewConnector(pool.DialConfig{
		ServerURLs:   opts.ServerURLs,
		TLSConfig:    tlsConfig,
		BindDN:       opts.BindDN,
		BindPassword: opts.BindPassword,
		PostConnect:  postConnect(opts),
		Logger:       logger,
	})

	sink := ldapmod.NewNotificationSink(os.Stderr, logger)

	poolOpts := []pool.Option{
		pool.WithLogger(logger),
		pool.WithNotificationHandler(sink.Handle),
	}

	if opts.RetryFailedOperations {
		poolOpts = append(poolOpts, pool.WithRetryFailedOperations())
	}

	connections, err := pool.New(ctx, connector, poolOpts...)
	if err != nil {
		// The health check already reported invalid credentials; printing the
		// error again would duplicate it.
		if code := ldapresult.CodeOf(err); code != ldapresult.InvalidCredentials {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}

		return ldapresult.CodeOf(err).ExitCode()
	}
	defer connections.Close()

	engineOpts := []ldapmod.Option{ldapmod.WithLogger(logger)}

	var rejectFile *os.File

	if opts.RejectFile != "" {
		rejectFile, err = os.OpenFile(opts.RejectFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open reject file %q: %v\n", opts.RejectFile, err)

			return ldapresult.LocalError.ExitCode()
		}

		defer rejectFile.Close()

		engineOpts = append(engineOpts, ldapmod.WithRejectWriter(ldif.NewRejectWriter(rejectFile, logger)))
	}

	source := ldif.NewFileSource(opts.Files, opts.Encoding, readerOptions(opts)...)
	defer source.Close()

	engine := ldapmod.New(settings, connections, engineOpts...)

	return engine.Run(ctx, source).ExitCode()
}

func readerOptions(opts *config.Options) []ldif.ReaderOption {
	var readerOpts []ldif.ReaderOption

	if opts.DefaultAdd {
		readerOpts = append(readerOpts, ldif.WithDefaultAdd())
	}

	if opts.StripTrailingSpaces {
		readerOpts = append(readerOpts, ldif.WithTrailingSpaceBehavior(ldif.TrailingSpaceStrip))
	}

	return readerOpts
}

func postConnect(opts *config.Options) pool.PostConnectFunc {
	if !opts.UseAdministrativeSession {
		return nil
	}

	clientName := fmt.Sprintf("%s-%s-%s", config.ToolName, config.ToolVersion, uuid.NewString())

	return func(conn pool.Conn) error {
		response, err := conn.Extended(extop.OIDStartAdministrativeSession,
			extop.EncodeStartAdministrativeSession(clientName), nil)
		if err != nil {
			return err
		}

		if response.Code() != ldapresult.Success {
			return ldapresult.NewError(response.Code(),
				"The start administrative session request failed: %s", response.String())
		}

		return nil
	}
}

func buildTLSConfig(opts *config.Options) (*tls.Config, error) {
	tlsConfig := &tls.Config{}

	if opts.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if opts.CACertificateFile != "" {
		pem, err := os.ReadFile(opts.CACertificateFile)
		if err != nil {
			return nil, ldapresult.WrapError(ldapresult.ParamError, err,
				"Failed to load certificates from %q", opts.CACertificateFile)
		}

		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(pem) {
			return nil, ldapresult.NewError(ldapresult.ParamError,
				"No certificates could be parsed from %q", opts.CACertificateFile)
		}

		tlsConfig.RootCAs = caCertPool
	}

	return tlsConfig, nil
}
