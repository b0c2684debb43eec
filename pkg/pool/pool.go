// Copyright 2025 SGNL.ai, Inc.

package pool

import (
	"context"

	ber "github.com/go-asn1-ber/asn1-ber"
	ldap "github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/sgnl-ai/ldapmodify/pkg/ldapresult"
	"github.com/sgnl-ai/ldapmodify/pkg/ldif"
)

const maxPoolSize = 2

// NotificationFunc receives unsolicited notifications forwarded off pooled
// connections.
type NotificationFunc func(notification *ldapresult.Extended)

// Option configures a Pool.
type Option func(*Pool)

// WithRetryFailedOperations enables transparent retry of data-modifying calls
// on a replacement connection when a failure is classified as a connection
// failure.
func WithRetryFailedOperations() Option {
	return func(p *Pool) {
		p.retryFailedOperations = true
	}
}

// WithNotificationHandler registers the sink unsolicited notifications are
// forwarded to.
func WithNotificationHandler(handler NotificationFunc) Option {
	return func(p *Pool) {
		p.onNotification = handler
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) {
		p.logger = logger
	}
}

// Pool holds up to two authenticated connections, created on demand and
// replaced when defunct. It is driven by a single goroutine; the engine's
// cooperative model needs no internal locking.
type Pool struct {
	connector Connector
	idle      []Conn
	closed    bool

	retryFailedOperations bool
	onNotification        NotificationFunc
	logger                *zap.Logger
}

// New constructs a Pool and establishes its initial connection. Construction
// fails if the initial connection cannot authenticate; the bind failure has
// already been reported by the connector's health check.
func New(ctx context.Context, connector Connector, opts ...Option) (*Pool, error) {
	p := &Pool{connector: connector, logger: zap.L()}

	for _, opt := range opts {
		opt(p)
	}

	conn, err := connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	p.idle = append(p.idle, conn)

	return p, nil
}

// Acquire checks a connection out of the pool, dialing a new one when none is
// idle.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	if p.closed {
		return nil, ldapresult.NewError(ldapresult.LocalError, "The connection pool is closed")
	}

	if n := len(p.idle); n > 0 {
		conn := p.idle[n-1]
		p.idle = p.idle[:n-1]

		return conn, nil
	}

	return p.connector.Connect(ctx)
}

// Release returns a healthy connection to the pool. Connections beyond the
// pool's capacity are closed rather than retained.
func (p *Pool) Release(conn Conn) {
	if conn == nil {
		return
	}

	p.drainNotifications(conn)

	if p.closed || len(p.idle) >= maxPoolSize {
		conn.Close()

		return
	}

	p.idle = append(p.idle, conn)
}

// ReleaseDefunct discards a connection that must not be reused.
func (p *Pool) ReleaseDefunct(conn Conn) {
	if conn == nil {
		return
	}

	p.drainNotifications(conn)
	conn.Close()
}

// ReplaceDefunct discards a defunct connection and dials its replacement.
func (p *Pool) ReplaceDefunct(ctx context.Context, conn Conn) (Conn, error) {
	p.ReleaseDefunct(conn)

	return p.connector.Connect(ctx)
}

// Close releases every idle connection.
func (p *Pool) Close() {
	p.closed = true

	for _, conn := range p.idle {
		conn.Close()
	}

	p.idle = nil
}

// Add dispatches an add through the pool, honoring the retry policy.
func (p *Pool) Add(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	return p.do(ctx, func(conn Conn) (*ldapresult.Result, error) {
		return conn.Add(record, ctls)
	})
}

// Delete dispatches a delete through the pool, honoring the retry policy.
func (p *Pool) Delete(ctx context.Context, dn string, ctls []ldap.Control) (*ldapresult.Result, error) {
	return p.do(ctx, func(conn Conn) (*ldapresult.Result, error) {
		return conn.Delete(dn, ctls)
	})
}

// Modify dispatches a modify through the pool, honoring the retry policy.
func (p *Pool) Modify(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	return p.do(ctx, func(conn Conn) (*ldapresult.Result, error) {
		return conn.Modify(record, ctls)
	})
}

// ModifyDN dispatches a modify DN through the pool, honoring the retry
// policy.
func (p *Pool) ModifyDN(ctx context.Context, record *ldif.ChangeRecord, ctls []ldap.Control) (*ldapresult.Result, error) {
	return p.do(ctx, func(conn Conn) (*ldapresult.Result, error) {
		return conn.ModifyDN(record, ctls)
	})
}

// Extended dispatches an extended request through the pool, honoring the
// retry policy.
func (p *Pool) Extended(
	ctx context.Context, oid string, value *ber.Packet, ctls []ldap.Control,
) (*ldapresult.Extended, error) {
	var extended *ldapresult.Extended

	result, err := p.do(ctx, func(conn Conn) (*ldapresult.Result, error) {
		response, err := conn.Extended(oid, value, ctls)
		if err != nil {
			return nil, err
		}

		extended = response

		return &response.Result, nil
	})
	if err != nil {
		return nil, err
	}

	if extended == nil && result != nil {
		extended = extendedFromResult(result, "", nil)
	}

	return extended, nil
}

// do runs one operation on a pooled connection. When retry is enabled and
// the failure is classified as a connection failure, the operation is
// transparently retried exactly once on a replacement connection.
func (p *Pool) do(
	ctx context.Context, op func(conn Conn) (*ldapresult.Result, error),
) (*ldapresult.Result, error) {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	result, err := op(conn)

	if !IsConnectionFailure(result, err) {
		p.Release(conn)

		return result, err
	}

	if !p.retryFailedOperations {
		p.ReleaseDefunct(conn)

		return failureOutcome(result, err)
	}

	p.logger.Debug("Retrying an operation on a replacement connection",
		zap.String("server", conn.Address()), zap.Error(err))

	replacement, replaceErr := p.ReplaceDefunct(ctx, conn)
	if replaceErr != nil {
		return failureOutcome(result, err)
	}

	result, err = op(replacement)
	if IsConnectionFailure(result, err) {
		p.ReleaseDefunct(replacement)

		return failureOutcome(result, err)
	}

	p.Release(replacement)

	return result, err
}

func failureOutcome(result *ldapresult.Result, err error) (*ldapresult.Result, error) {
	if result != nil {
		return result, nil
	}

	return ResultFromError(err), nil
}

// drainNotifications forwards any buffered unsolicited notifications without
// blocking.
func (p *Pool) drainNotifications(conn Conn) {
	if p.onNotification == nil {
		return
	}

	for {
		select {
		case notification, ok := <-conn.Notifications():
			if !ok {
				return
			}

			p.onNotification(notification)
		default:
			return
		}
	}
}
