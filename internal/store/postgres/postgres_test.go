package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"tindahanko/backend/internal/store"
)

func TestTxErrorMapsStatementLevelConflicts(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, store.ErrConflictRetry},
		{"deadlock detected", &pgconn.PgError{Code: "40P01"}, store.ErrConflictRetry},
		{"wrapped serialization failure", fmt.Errorf("query: %w", &pgconn.PgError{Code: "40001"}), store.ErrConflictRetry},
		{"unique violation passes through", &pgconn.PgError{Code: "23505"}, nil},
		{"plain error passes through", errors.New("connection reset"), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := txError(tc.err)
			if tc.want != nil {
				if !errors.Is(got, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
				return
			}
			if !errors.Is(got, tc.err) && got.Error() != tc.err.Error() {
				t.Fatalf("expected the original error back, got %v", got)
			}
		})
	}
}

func TestPgErrorClassifiers(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatalf("23505 must classify as unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("40001 must not classify as unique violation")
	}
	if !isSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("40001 must classify as serialization failure")
	}
	if !isSerializationFailure(&pgconn.PgError{Code: "40P01"}) {
		t.Fatalf("40P01 must classify as serialization failure")
	}
	if isSerializationFailure(errors.New("boom")) {
		t.Fatalf("plain errors must not classify as serialization failure")
	}
}
