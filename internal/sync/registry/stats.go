package registry

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	"github.com/angelmondragon/channelsync-backend/pkg/types"
)

// RunStats is the structured result of one job run. It is returned to the
// caller and persisted verbatim on the run record.
type RunStats struct {
	JobType           enums.JobType `json:"jobType"`
	IntegrationID     uuid.UUID     `json:"integrationId"`
	DatesRequested    []string      `json:"datesRequested"`
	FetchedRows       int           `json:"fetchedRows"`
	PersistedRows     int           `json:"persistedRows"`
	APICalls          int           `json:"apiCalls"`
	RateLimitEvents   int           `json:"rateLimitEvents"`
	WindowStart       string        `json:"windowStart,omitempty"`
	WindowEnd         string        `json:"windowEnd,omitempty"`
	CursorPrevious    string        `json:"cursorPrevious,omitempty"`
	CursorNext        string        `json:"cursorNext,omitempty"`
	CursorAdvanced    bool          `json:"cursorAdvanced"`
	CursorInitialized bool          `json:"cursorInitialized"`
	StubModeEnabled   bool          `json:"stubModeEnabled,omitempty"`
}

// ToMap renders the stats as the JSON map stored on the run record.
func (s *RunStats) ToMap() types.JSONMap {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var out types.JSONMap
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
