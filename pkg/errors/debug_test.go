package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpWalksChainAndExtractsPGFields(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_sync_cursors_scope",
		TableName:      "sync_cursors",
		Detail:         "Key (integration_id, job_type, name) already exists.",
	}
	err := Wrap(CodePersistence, fmt.Errorf("insert cursor: %w", pgErr), "persist batch")

	d := Dump(err)
	if d.Code != CodePersistence {
		t.Fatalf("unexpected code %q", d.Code)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full unwrap chain, got %v", d.Chain)
	}
	if d.PGCode != "23505" || d.PGConstraint != "idx_sync_cursors_scope" || d.PGTable != "sync_cursors" {
		t.Fatalf("pg fields not extracted: %+v", d)
	}
}

func TestDumpHandlesLibPQErrors(t *testing.T) {
	d := Dump(&pq.Error{Code: "23505", Constraint: "idx_webhook_events_delivery", Table: "webhook_events"})
	if d.PGCode != "23505" || d.PGConstraint != "idx_webhook_events_delivery" {
		t.Fatalf("pq fields not extracted: %+v", d)
	}
}

func TestDumpNilError(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("expected zero dump, got %+v", d)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})) {
		t.Fatalf("expected pgx unique violation to match")
	}
	if !IsUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("expected pq unique violation to match")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failure is not a unique violation")
	}
	if IsUniqueViolation(New(CodePersistence, "plain persist error")) {
		t.Fatalf("typed error without a driver cause must not match")
	}
}
