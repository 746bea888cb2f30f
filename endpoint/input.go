package endpoint

// Input is the creation/update payload for endpoints. On update, zero-value
// fields are left unchanged (partial update). Secrets are never accepted
// from callers; use Service.RotateSecret to replace one.
type Input struct {
	// URL is the webhook delivery URL.
	URL string `json:"url"`

	// Description is a human-readable description.
	Description string `json:"description"`

	// Events are the subscribed event types ("*" for all).
	Events []string `json:"events"`

	// Headers are custom HTTP headers merged into every delivery.
	Headers map[string]string `json:"headers,omitempty"`

	// RateLimit is the maximum deliveries per second. 0 means unlimited.
	RateLimit int `json:"rate_limit,omitempty"`

	// Metadata holds user-defined key-value pairs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ListOpts configures filtering and pagination for endpoint listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
