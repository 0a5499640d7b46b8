package models

type ResourceClass string

const (
	ClassWindows ResourceClass = "windows"
	ClassLinux   ResourceClass = "linux"
	ClassUbuntu  ResourceClass = "ubuntu"
	ClassMacOS   ResourceClass = "macos"
)

type ResourceStatus string

const (
	StatusAvailable   ResourceStatus = "available"
	StatusMaintenance ResourceStatus = "maintenance"
)

// Resource is a reservable machine from the inventory collection.
// Occupancy is derived from the engine's lease state, not stored here.
type Resource struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	IPAddress string         `json:"ip_address"`
	Class     ResourceClass  `json:"class"`
	Status    ResourceStatus `json:"status"`
	Disabled  bool           `json:"disabled"`
}

// Reservable reports whether the resource accepts new leases or waiters.
func (r *Resource) Reservable() bool {
	return !r.Disabled && r.Status != StatusMaintenance
}
