package order

import "fmt"

type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates a fulfillment-supplied status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}
