// Copyright 2025 SGNL.ai, Inc.

package pool

import (
	"context"
	"crypto/tls"
	"errors"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

// Connector establishes new authenticated connections.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// PostConnectFunc runs on every new connection before the bind, typically to
// issue a start-administrative-session extended request.
type PostConnectFunc func(conn Conn) error

// DialConfig configures the go-ldap-backed Connector.
type DialConfig struct {
	// ServerURLs is the ordered failover list (ldap:// or ldaps:// URLs).
	// Connect walks the list round-robin until one server accepts.
	ServerURLs []string

	// TLSConfig is used for ldaps URLs and StartTLS.
	TLSConfig *tls.Config

	// BindDN and BindPassword authenticate each new connection. An empty
	// BindDN performs an anonymous bind.
	BindDN       string
	BindPassword string

	// PostConnect, when non-nil, runs before the bind on each new
	// connection.
	PostConnect PostConnectFunc

	// Logger receives health-check reports. The bind is the pool's health
	// check; its failures are reported here exactly once.
	Logger *zap.Logger
}

// NewConnector creates the production Connector over go-ldap.
func NewConnector(cfg DialConfig) Connector {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.L()
	}

	return &dialConnector{cfg: cfg, logger: logger}
}

type dialConnector struct {
	cfg    DialConfig
	logger *zap.Logger

	// next rotates through the server list so a replacement connection after
	// a failure prefers the next server.
	next int
}

func (d *dialConnector) Connect(_ context.Context) (Conn, error) {
	var lastErr error

	for attempt := 0; attempt < len(d.cfg.ServerURLs); attempt++ {
		url := d.cfg.ServerURLs[d.next%len(d.cfg.ServerURLs)]
		d.next++

		conn, err := d.connectOne(url)
		if err != nil {
			lastErr = err

			// A bind rejection is authoritative; trying the next server
			// would just repeat the same credentials.
			var coded *ldapresult.Error
			if errors.As(err, &coded) && coded.Code == ldapresult.InvalidCredentials {
				return nil, err
			}

			continue
		}

		return conn, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}

	return nil, ldapresult.NewError(ldapresult.ParamError, "No server URLs were configured")
}

func (d *dialConnector) connectOne(url string) (Conn, error) {
	raw, err := ldap.DialURL(url, ldap.DialWithTLSConfig(d.cfg.TLSConfig))
	if err != nil {
		return nil, ldapresult.WrapError(ldapresult.ConnectError, err,
			"Failed to establish a connection to %s", url)
	}

	conn := &ldapConn{
		conn:          raw,
		address:       url,
		logger:        d.logger,
		notifications: make(chan *ldapresult.Extended),
	}
	close(conn.notifications)

	if d.cfg.PostConnect != nil {
		if err := d.cfg.PostConnect(conn); err != nil {
			conn.Close()

			return nil, err
		}
	}

	result, err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword)
	if err != nil {
		conn.Close()

		return nil, ldapresult.WrapError(ldapresult.ServerDown, err,
			"Failed to bind to %s", url)
	}

	if result.Code() != ldapresult.Success {
		// The health check reports the failure; callers suppress a second
		// report for invalid credentials.
		d.logger.Error("Unable to bind to the directory server",
			zap.String("server", url), zap.String("result", result.String()))
		conn.Close()

		return nil, &ldapresult.Error{
			Code:    result.Code(),
			Message: "Unable to bind to " + url + ": " + result.String(),
		}
	}

	return conn, nil
}

// ldapConn adapts a go-ldap connection to the Conn primitive.
type ldapConn struct {
	conn    *ldap.Conn
	address string
	logger  *zap.Logger

	// notifications is closed immediately: the go-ldap transport offers no
	// unsolicited-notification hook, so this connection never delivers any.
	notifications chan *ldapresult.Extended
}

func (c *ldapConn) Address() string { return c.address }

func (c *ldapConn) Notifications() <-chan *ldapresult.Extended { return c.notifications }

func (c *ldapConn) Close() error {
	return c.conn.Close()
}

func (c *ldapConn) Bind(dn, password string) (*ldapresult.Result, error) {
	var err error
	if dn == "" && password == "" {
		err = c.conn.UnauthenticatedBind("")
	} else {
		err = c.conn.Bind(dn, password)
	}

	if err != nil {
		return ResultFromError(err), nil
	}

	return ldapresult.New(ldapresult.Success), nil
}

func (c *ldapConn) Add(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	req := ldap.NewAddRequest(record.DN, ctls)
	for _, attribute := range record.Attributes {
		req.Attribute(attribute.Name, byteValuesToStrings(attribute.Values))
	}

	return c.outcome(c.conn.Add(req))
}

func (c *ldapConn) Delete(dn string, ctls []ldap.Control) (*ldapresult.Result, error) {
	return c.outcome(c.conn.Del(ldap.NewDelRequest(dn, ctls)))
}

func (c *ldapConn) Modify(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	req := ldap.NewModifyRequest(record.DN, ctls)

	for _, mod := range record.Mods {
		values := byteValuesToStrings(mod.Values)

		switch mod.Op {
		case ldif.ModAdd:
			req.Add(mod.Name, values)
		case ldif.ModDelete:
			req.Delete(mod.Name, values)
		case ldif.ModReplace:
			req.Replace(mod.Name, values)
		case ldif.ModIncrement:
			increment := ""
			if len(values) > 0 {
				increment = values[0]
			}

			req.Increment(mod.Name, increment)
		}
	}

	return c.outcome(c.conn.Modify(req))
}

func (c *ldapConn) ModifyDN(record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	req := ldap.NewModifyDNWithControlsRequest(
		record.DN, record.NewRDN, record.DeleteOldRDN, record.NewSuperior, ctls)

	return c.outcome(c.conn.ModifyDN(req))
}

func (c *ldapConn) Search(req *SearchRequest, onEntry EntryFunc) (*ldapresult.Result, error) {
	searchReq := ldap.NewSearchRequest(
		req.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		req.TimeLimitSeconds,
		false,
		req.Filter,
		req.Attributes,
		req.Controls,
	)

	searchResult, err := c.conn.Search(searchReq)
	if err != nil {
		return c.outcome(err)
	}

	for _, entry := range searchResult.Entries {
		if entry != nil {
			onEntry(entry.DN)
		}
	}

	responseControls := make([]ldapresult.Control, 0, len(searchResult.Controls))

	for _, control := range searchResult.Controls {
		decoded, decodeErr := decodeResponseControl(control)
		if decodeErr != nil {
			return nil, decodeErr
		}

		responseControls = append(responseControls, decoded)
	}

	return ldapresult.New(ldapresult.Success,
		ldapresult.WithReferralURLs(searchResult.Referrals...),
		ldapresult.WithResponseControls(responseControls...)), nil
}

func (c *ldapConn) Extended(oid string, value *ber.Packet, ctls []ldap.Control) (*ldapresult.Extended, error) {
	if len(ctls) > 0 {
		// The go-ldap transport cannot attach request controls to extended
		// requests. Surfaced once per request rather than failing the run.
		c.logger.Warn("Dropping request controls not supported on extended requests by the transport",
			zap.String("oid", oid), zap.Int("controls", len(ctls)))
	}

	response, err := c.conn.Extended(ldap.NewExtendedRequest(oid, value))
	if err != nil {
		result := ResultFromError(err)
		if IsConnectionFailure(result, nil) {
			return nil, err
		}

		return extendedFromResult(result, "", nil), nil
	}

	var responseValue []byte
	if response.Value != nil {
		responseValue = response.Value.Data.Bytes()
	}

	return extendedFromResult(ldapresult.New(ldapresult.Success), response.Name, responseValue), nil
}

func (c *ldapConn) outcome(err error) (*ldapresult.Result, error) {
	if err == nil {
		return ldapresult.New(ldapresult.Success), nil
	}

	result := ResultFromError(err)
	if result.Code() == ldapresult.ServerDown {
		return nil, err
	}

	return result, nil
}

func extendedFromResult(result *ldapresult.Result, oid string, value []byte) *ldapresult.Extended {
	return ldapresult.NewExtended(result.Code(), oid, value,
		ldapresult.WithMatchedDN(result.MatchedDN()),
		ldapresult.WithDiagnosticMessage(result.DiagnosticMessage()),
		ldapresult.WithReferralURLs(result.ReferralURLs()...),
		ldapresult.WithResponseControls(result.ResponseControls()...))
}

func byteValuesToStrings(values [][]byte) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, string(value))
	}

	return out
}

// decodeResponseControl converts a go-ldap response control into the plain
// control shape by round-tripping through its BER encoding.
func decodeResponseControl(control ldap.Control) (ldapresult.Control, error) {
	packet := control.Encode()

	decoded := ldapresult.Control{}
	if len(packet.Children) == 0 {
		return decoded, ldapresult.NewError(ldapresult.DecodingError,
			"Failed to convert response control %s: empty control sequence", control.GetControlType())
	}

	decoded.OID = control.GetControlType()

	for _, child := range packet.Children[1:] {
		switch child.Tag {
		case ber.TagBoolean:
			if critical, ok := child.Value.(bool); ok {
				decoded.Critical = critical
			}
		case ber.TagOctetString:
			decoded.Value = append([]byte(nil), child.Data.Bytes()...)
			decoded.HasValue = true
		}
	}

	return decoded, nil
}

