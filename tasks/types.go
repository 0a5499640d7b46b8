package tasks

const (
	TypeLeaseExpire = "lease:expire"
	TypeExpiryCheck = "lease:expiry_check"
)

// Task payloads
type LeaseExpirePayload struct {
	ResourceID string `json:"resource_id"`
	LeaseID    string `json:"lease_id"`
}

type ExpiryCheckPayload struct {
	ResourceID string `json:"resource_id"`
	LeaseID    string `json:"lease_id"`
}
