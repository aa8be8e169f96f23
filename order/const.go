package order

// Status is the custom type to define the current state of an order
type Status string

// Defining valid order statuses
const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// PaymentStatus is the custom type to define the payment progress of an order
type PaymentStatus string

// Defining valid payment statuses
// Valid sequence: PENDING -> PROCESSING -> SUCCEEDED/FAILED
const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentSucceeded  PaymentStatus = "SUCCEEDED"
	PaymentFailed     PaymentStatus = "FAILED"
	PaymentRefunded   PaymentStatus = "REFUNDED"
)
