package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

type stubHandler struct {
	jobType enums.JobType
}

func (h *stubHandler) JobType() enums.JobType { return h.jobType }
func (h *stubHandler) Run(ctx context.Context, desc RunDescriptor) (*RunStats, error) {
	return &RunStats{JobType: h.jobType, IntegrationID: desc.IntegrationID}, nil
}

func TestDecodeRunDescriptor(t *testing.T) {
	runID := uuid.New()
	integrationID := uuid.New()
	payload := []byte(`{"run_id":"` + runID.String() + `","integration_id":"` + integrationID.String() + `","job_type":"shopify_fresh","trigger":"manual","retry_count":1}`)

	desc, err := DecodeRunDescriptor(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if desc.RunID != runID || desc.IntegrationID != integrationID {
		t.Fatalf("unexpected ids: %+v", desc)
	}
	if desc.JobType != enums.JobShopifyFresh || desc.Trigger != enums.TriggerManual {
		t.Fatalf("unexpected enums: %+v", desc)
	}
}

func TestDecodeRunDescriptorRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":        `{{`,
		"unknown field":   `{"run_id":"` + uuid.NewString() + `","integration_id":"` + uuid.NewString() + `","job_type":"shopify_fresh","surprise":true}`,
		"missing run id":  `{"integration_id":"` + uuid.NewString() + `","job_type":"shopify_fresh"}`,
		"unknown jobtype": `{"run_id":"` + uuid.NewString() + `","integration_id":"` + uuid.NewString() + `","job_type":"ebay_fresh"}`,
		"bad trigger":     `{"run_id":"` + uuid.NewString() + `","integration_id":"` + uuid.NewString() + `","job_type":"meta_7d_fill","trigger":"cosmic"}`,
		"negative retry":  `{"run_id":"` + uuid.NewString() + `","integration_id":"` + uuid.NewString() + `","job_type":"meta_7d_fill","retry_count":-1}`,
	}
	for name, payload := range cases {
		if _, err := DecodeRunDescriptor([]byte(payload)); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestNormalizedTriggerDefaultsToSchedule(t *testing.T) {
	desc := RunDescriptor{}
	if got := desc.NormalizedTrigger(); got != enums.TriggerSchedule {
		t.Fatalf("expected schedule, got %s", got)
	}
	desc.Trigger = enums.TriggerRetry
	if got := desc.NormalizedTrigger(); got != enums.TriggerRetry {
		t.Fatalf("expected retry, got %s", got)
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry(
		&stubHandler{jobType: enums.JobShopifyFresh},
		&stubHandler{jobType: enums.JobMetaFill},
		nil,
	)

	handler, err := registry.Resolve(enums.JobMetaFill)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if handler.JobType() != enums.JobMetaFill {
		t.Fatalf("unexpected handler %s", handler.JobType())
	}

	if _, err := registry.Resolve(enums.JobSquareFresh); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	if got := len(registry.JobTypes()); got != 2 {
		t.Fatalf("expected 2 job types, got %d", got)
	}
}

func TestRunStatsToMap(t *testing.T) {
	stats := &RunStats{
		JobType:        enums.JobShopifyFresh,
		IntegrationID:  uuid.New(),
		DatesRequested: []string{"2026-08-20", "2026-08-21"},
		FetchedRows:    10,
		PersistedRows:  10,
		APICalls:       3,
		WindowStart:    "2026-08-20",
		WindowEnd:      "2026-08-21",
		CursorNext:     "2026-08-21T23:00:00Z",
		CursorAdvanced: true,
	}

	m := stats.ToMap()
	if m == nil {
		t.Fatal("expected stats map")
	}
	if m["jobType"] != "shopify_fresh" {
		t.Fatalf("unexpected jobType %v", m["jobType"])
	}
	if m["cursorAdvanced"] != true {
		t.Fatalf("unexpected cursorAdvanced %v", m["cursorAdvanced"])
	}
	// json numbers decode to float64 in a generic map
	if m["fetchedRows"] != float64(10) {
		t.Fatalf("unexpected fetchedRows %v", m["fetchedRows"])
	}
	if _, err := json.Marshal(m); err != nil {
		t.Fatalf("stats map must round-trip: %v", err)
	}
}
