// Package warehouse exports rebuilt daily aggregates to BigQuery.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultBatchSize      = 500
	defaultMaxRetries     = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// DailyAggregateRow is the warehouse shape of one rebuilt per-date aggregate.
type DailyAggregateRow struct {
	TenantID          string    `bigquery:"tenant_id"`
	IntegrationID     string    `bigquery:"integration_id"`
	Platform          string    `bigquery:"platform"`
	Date              string    `bigquery:"date"`
	OrdersCount       int64     `bigquery:"orders_count"`
	GrossRevenueCents int64     `bigquery:"gross_revenue_cents"`
	NetRevenueCents   int64     `bigquery:"net_revenue_cents"`
	AdSpendCents      int64     `bigquery:"ad_spend_cents"`
	Impressions       int64     `bigquery:"impressions"`
	Clicks            int64     `bigquery:"clicks"`
	Conversions       int64     `bigquery:"conversions"`
	ExportedAt        time.Time `bigquery:"exported_at"`
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Config controls exporter batching and retry behavior.
type Config struct {
	Table          string
	BatchSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

// Exporter inserts aggregate rows into BigQuery with retries and batching.
type Exporter struct {
	client         tableInserter
	table          string
	batchSize      int
	maxRetries     uint64
	initialBackoff time.Duration
	maximumBackoff time.Duration
}

// New creates an Exporter backed by a shared BigQuery client.
func New(client tableInserter, cfg Config) (*Exporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("aggregates table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = defaultInitialBackoff
	}
	maximum := cfg.MaximumBackoff
	if maximum <= 0 {
		maximum = defaultMaximumBackoff
	}
	if maximum < initial {
		maximum = initial
	}

	return &Exporter{
		client:         client,
		table:          table,
		batchSize:      batchSize,
		maxRetries:     uint64(maxRetries),
		initialBackoff: initial,
		maximumBackoff: maximum,
	}, nil
}

// Export writes the rows in batches, retrying transient insert failures.
// A failed batch does not stop later batches; all failures are combined.
func (e *Exporter) Export(ctx context.Context, rows []DailyAggregateRow) error {
	if e == nil {
		return errors.New("exporter not initialized")
	}
	var errs error
	for start := 0; start < len(rows); start += e.batchSize {
		end := start + e.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, &rows[i])
		}
		if err := e.insertWithRetry(ctx, batch); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (e *Exporter) insertWithRetry(ctx context.Context, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	backoff := retry.WithMaxRetries(e.maxRetries, retry.WithCappedDuration(
		e.maximumBackoff, retry.NewExponential(e.initialBackoff)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := e.client.InsertRows(ctx, e.table, rows); err != nil {
			if isRetryableInsertError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert %s rows: %w", e.table, err)
	}
	return nil
}

func isRetryableInsertError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableInsertError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil || len(rowErr.Errors) == 0 {
			return false
		}
		for _, inner := range rowErr.Errors {
			if !isRetryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
