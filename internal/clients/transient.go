package clients

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// isTransient reports whether err looks like a "service not yet accepting
// connections" failure: refused/unreachable sockets, dial timeouts, or a
// Postgres server that is still starting up. The classification is advisory —
// the prober retries every error class the same way.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 57P03 cannot_connect_now: server is starting up or shutting down.
		// Class 08: connection exceptions.
		return pgErr.Code == "57P03" || strings.HasPrefix(pgErr.Code, "08")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, context.DeadlineExceeded)
}
