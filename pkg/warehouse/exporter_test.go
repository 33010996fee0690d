package warehouse

import (
	"context"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"
)

type fakeInserter struct {
	calls     int
	batches   [][]any
	responses []error
}

func (f *fakeInserter) InsertRows(ctx context.Context, table string, rows []any) error {
	f.calls++
	f.batches = append(f.batches, rows)
	if len(f.responses) == 0 {
		return nil
	}
	err := f.responses[0]
	f.responses = f.responses[1:]
	return err
}

func testConfig() Config {
	return Config{
		Table:          "daily_aggregates",
		BatchSize:      2,
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaximumBackoff: 2 * time.Millisecond,
	}
}

func sampleRows(n int) []DailyAggregateRow {
	rows := make([]DailyAggregateRow, n)
	for i := range rows {
		rows[i] = DailyAggregateRow{
			TenantID:      "tenant-1",
			IntegrationID: "integration-1",
			Platform:      "shopify",
			Date:          "2026-08-20",
			OrdersCount:   int64(i + 1),
		}
	}
	return rows
}

func TestExportSplitsBatches(t *testing.T) {
	inserter := &fakeInserter{}
	exporter, err := New(inserter, testConfig())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if err := exporter.Export(context.Background(), sampleRows(5)); err != nil {
		t.Fatalf("export: %v", err)
	}

	if len(inserter.batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(inserter.batches))
	}
	if len(inserter.batches[0]) != 2 || len(inserter.batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %d, %d", len(inserter.batches[0]), len(inserter.batches[2]))
	}
}

func TestExportRetriesTransientErrors(t *testing.T) {
	unavailable := &googleapi.Error{Code: http.StatusServiceUnavailable}
	inserter := &fakeInserter{responses: []error{unavailable, unavailable, nil}}
	exporter, err := New(inserter, testConfig())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if err := exporter.Export(context.Background(), sampleRows(1)); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if inserter.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", inserter.calls)
	}
}

func TestExportFailsOnPermanentError(t *testing.T) {
	badRequest := &googleapi.Error{Code: http.StatusBadRequest}
	inserter := &fakeInserter{responses: []error{badRequest}}
	exporter, err := New(inserter, testConfig())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if err := exporter.Export(context.Background(), sampleRows(1)); err == nil {
		t.Fatal("expected permanent error to fail the export")
	}
	if inserter.calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", inserter.calls)
	}
}

func TestExportContinuesPastFailedBatch(t *testing.T) {
	badRequest := &googleapi.Error{Code: http.StatusBadRequest}
	inserter := &fakeInserter{responses: []error{badRequest, nil, nil}}
	exporter, err := New(inserter, testConfig())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}

	if err := exporter.Export(context.Background(), sampleRows(5)); err == nil {
		t.Fatal("expected the failed batch to surface in the combined error")
	}
	if len(inserter.batches) != 3 {
		t.Fatalf("expected all 3 batches attempted, got %d", len(inserter.batches))
	}
}

func TestNewValidatesInputs(t *testing.T) {
	if _, err := New(nil, testConfig()); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := New(&fakeInserter{}, Config{}); err == nil {
		t.Fatal("expected error for missing table")
	}
}

func TestExportEmptyRowsIsNoop(t *testing.T) {
	inserter := &fakeInserter{}
	exporter, err := New(inserter, testConfig())
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if err := exporter.Export(context.Background(), nil); err != nil {
		t.Fatalf("export: %v", err)
	}
	if inserter.calls != 0 {
		t.Fatalf("expected no inserts, got %d", inserter.calls)
	}
}
