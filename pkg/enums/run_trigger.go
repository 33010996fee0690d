package enums

// RunTrigger records what enqueued a sync run.
type RunTrigger string

const (
	TriggerSchedule RunTrigger = "schedule"
	TriggerManual   RunTrigger = "manual"
	TriggerRetry    RunTrigger = "retry"
)

var validRunTriggers = []RunTrigger{
	TriggerSchedule,
	TriggerManual,
	TriggerRetry,
}

// String implements fmt.Stringer.
func (r RunTrigger) String() string {
	return string(r)
}

// IsValid reports whether the trigger is recognized.
func (r RunTrigger) IsValid() bool {
	for _, candidate := range validRunTriggers {
		if candidate == r {
			return true
		}
	}
	return false
}
