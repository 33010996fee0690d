package enums

// IntegrationStatus reflects whether a tenant's platform connection is usable.
// Transitions are owned by the install flow; the sync engine only reads it.
type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationError        IntegrationStatus = "error"
	IntegrationDisconnected IntegrationStatus = "disconnected"
)

var validIntegrationStatuses = []IntegrationStatus{
	IntegrationConnected,
	IntegrationError,
	IntegrationDisconnected,
}

// String implements fmt.Stringer.
func (s IntegrationStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is recognized.
func (s IntegrationStatus) IsValid() bool {
	for _, candidate := range validIntegrationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
