package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/greensigteam/greensig-backend/internal/config"
)

// mockDB implements dbPinger for use in tests.
type mockDB struct {
	pingErr error
	closed  bool
}

func (m *mockDB) Ping(_ context.Context) error { return m.pingErr }
func (m *mockDB) Close()                       { m.closed = true }

// makeClient returns a PostgresClient with a stubbed connect function.
func makeClient(db dbPinger, connectErr error, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		cfg: config.PostgresConfig{},
		cb:  cb,
		connect: func(_ context.Context, _ config.PostgresConfig) (dbPinger, error) {
			return db, connectErr
		},
	}
}

func refusedErr() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

func authErr() error {
	return fmt.Errorf("connect: %w", &pgconn.PgError{
		Code:    "28P01",
		Message: "password authentication failed for user \"greensig\"",
	})
}

func TestPostgresProbe(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		pingErr       error
		connectErr    error
		wantOK        bool
		wantTransient bool
		wantErrSub    string
	}{
		{
			name:   "success — server reachable",
			wantOK: true,
		},
		{
			name:          "failure — connection refused is transient",
			connectErr:    refusedErr(),
			wantOK:        false,
			wantTransient: true,
			wantErrSub:    "connection refused",
		},
		{
			name:          "failure — ping error",
			pingErr:       refusedErr(),
			wantOK:        false,
			wantTransient: true,
			wantErrSub:    "ping",
		},
		{
			name:          "failure — auth error is not transient",
			connectErr:    authErr(),
			wantOK:        false,
			wantTransient: false,
			wantErrSub:    "password authentication failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db := &mockDB{pingErr: tt.pingErr}
			c := makeClient(db, tt.connectErr, NewCircuitBreaker("postgres"))

			result := c.Probe(context.Background())

			assert.Equal(t, "postgres", result.Name)
			assert.Equal(t, tt.wantOK, result.OK)
			assert.Equal(t, tt.wantTransient, result.Transient)
			if tt.wantErrSub != "" {
				assert.Contains(t, result.Error, tt.wantErrSub)
			}
		})
	}
}

func TestPostgresProbe_ClosesConnection(t *testing.T) {
	t.Parallel()

	db := &mockDB{}
	c := makeClient(db, nil, NewCircuitBreaker("postgres"))

	result := c.Probe(context.Background())

	assert.True(t, result.OK)
	assert.True(t, db.closed, "the probe connection must be closed before returning")
}

func TestPostgresProbe_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	c := makeClient(nil, errors.New("connection reset"), NewCircuitBreaker("postgres"))

	for i := 0; i < 3; i++ {
		result := c.Probe(context.Background())
		assert.False(t, result.OK)
		assert.Contains(t, result.Error, "connection reset")
	}

	result := c.Probe(context.Background())
	assert.False(t, result.OK)
	assert.Equal(t, "circuit open", result.Error)
	assert.True(t, result.Transient, "an open circuit is reported as transient")
}
