package store

// Structured log field names shared by every store method.
const (
	MethodStrHelper = "method"
	RequestID       = "request_id"
)
