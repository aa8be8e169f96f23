package subscription

// Status is the custom type to define the current state of a subscription
type Status string

// Defining valid subscription statuses
const (
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
	StatusPastDue  Status = "PAST_DUE"
	StatusUnpaid   Status = "UNPAID"
	StatusTrial    Status = "TRIAL"
)
