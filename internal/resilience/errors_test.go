package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input: missing field"), false},
		{"explicit", NewTransientError(errors.New("busy")), true},
		{"wrapped explicit", fmt.Errorf("store: %w", NewTransientError(errors.New("busy"))), true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", eris.Wrap(&pgconn.PgError{Code: "40P01"}, "store: write"), true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"check violation", &pgconn.PgError{Code: "23514"}, false},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"network timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientSQLState(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03", "57P01", "53300", "08000", "08P01"} {
		assert.True(t, IsTransientSQLState(code), code)
	}
	for _, code := range []string{"23505", "42P01", "22003", ""} {
		assert.False(t, IsTransientSQLState(code), code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "root cause", te.Error())
}
