package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ancestrio/family-archive/internal"
)

const (
	msgUnavailable   = "Database unavailable. Please try again later."
	msgAuthFailed    = "Database authentication failed."
	msgTimedOut      = "Database connection timed out."
	msgUnreachable   = "Database does not exist or is unreachable."
	msgPoolExhausted = "Database connection pool exhausted. Please retry shortly."
)

// sqlstateMessages is the fixed code-to-message table for connectivity
// failures. Callers never see engine-specific SQLSTATE codes.
var sqlstateMessages = map[string]string{
	"08000": msgUnavailable,
	"08001": msgUnavailable,
	"08003": msgUnavailable,
	"08004": msgUnavailable,
	"08006": msgUnavailable,
	"28000": msgAuthFailed,
	"28P01": msgAuthFailed,
	"3D000": msgUnreachable,
	"53300": msgPoolExhausted,
	"57P01": msgUnavailable,
	"57P03": msgUnavailable,
}

// Guard couples the circuit breaker with error normalization. Services
// call Check before touching storage and Normalize on every repository
// error, so transient outages surface as a uniform 503 contract.
type Guard struct {
	breaker *Breaker
	logger  *slog.Logger
}

func NewGuard(breaker *Breaker, logger *slog.Logger) *Guard {
	return &Guard{breaker: breaker, logger: logger}
}

// Check fails fast with the unavailable error while the breaker is open.
func (g *Guard) Check() error {
	if g.breaker.Allow() {
		return nil
	}
	return internal.NewUnavailableError(msgUnavailable)
}

// Normalize maps connectivity failures to the uniform unavailable error
// and trips the breaker. Any other error passes through unchanged.
func (g *Guard) Normalize(err error) error {
	if err == nil {
		return nil
	}
	if msg, ok := unavailableMessage(err); ok {
		g.breaker.Trip()
		g.logger.Error("storage unavailable", "error", err)
		return internal.NewUnavailableError(msg).WithCause(err)
	}
	return err
}

func unavailableMessage(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlstateMessages[pgErr.Code]; ok {
			return msg, true
		}
		return "", false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return msgUnavailable, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimedOut, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return msgTimedOut, true
		}
		return msgUnavailable, true
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "failed to connect"),
		strings.Contains(msg, "server closed the connection"):
		return msgUnavailable, true
	case strings.Contains(msg, "connection pool"):
		return msgPoolExhausted, true
	}
	return "", false
}
