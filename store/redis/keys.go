package redis

// Key prefixes for primary entity storage.
const (
	prefixEndpoint = "hookline:ep:"
	prefixDelivery = "hookline:del:"
)

// Keys for sorted set indexes.
const (
	zEndpointAll = "hookline:z:ep:all"
	zDeliveryAll = "hookline:z:del:all" // scored by created_at
	zDeliveryEP  = "hookline:z:del:ep:" // + endpoint ID, scored by created_at
	zDeliveryDue = "hookline:z:del:due" // scored by next_retry_at
)

// Keys for set and list indexes.
const (
	sEndpointEnabled = "hookline:s:ep:enabled"
	lAttempts        = "hookline:l:att:" // + delivery ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// attemptsKey returns the list key holding a delivery's attempt history.
func attemptsKey(deliveryID string) string {
	return lAttempts + deliveryID
}
