package enums

// RunStatus tracks the lifecycle of one sync run record.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

var validRunStatuses = []RunStatus{
	RunStatusQueued,
	RunStatusRunning,
	RunStatusSucceeded,
	RunStatusFailed,
}

// String implements fmt.Stringer.
func (r RunStatus) String() string {
	return string(r)
}

// IsValid reports whether the status matches the canonical run_status enum.
func (r RunStatus) IsValid() bool {
	for _, candidate := range validRunStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the run can no longer change state.
func (r RunStatus) IsTerminal() bool {
	return r == RunStatusSucceeded || r == RunStatusFailed
}
