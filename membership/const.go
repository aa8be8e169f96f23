package membership

// Status is the custom type to define the current state of a membership
type Status string

// Defining valid membership statuses
const (
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
	StatusExpired  Status = "EXPIRED"
	StatusTrial    Status = "TRIAL"
)

// ResetUsageOnUpgrade discards all consumption counters when a membership
// moves to a higher tier. Kept as a named rule so the behavior is testable
// and can be toggled if product decides otherwise.
const ResetUsageOnUpgrade = true
