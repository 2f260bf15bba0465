package clients

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", refusedErr(), true},
		{"wrapped refused", fmt.Errorf("ping: %w", refusedErr()), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"postgres starting up (57P03)", &pgconn.PgError{Code: "57P03"}, true},
		{"connection exception (08006)", &pgconn.PgError{Code: "08006"}, true},
		{"auth failure (28P01)", &pgconn.PgError{Code: "28P01"}, false},
		{"undefined table (42P01)", &pgconn.PgError{Code: "42P01"}, false},
		{"generic error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}
