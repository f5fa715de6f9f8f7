package backend

// Capability identifies an optional behaviour a backend supports.
type Capability string

const (
	// CapabilityStorage marks a backend that stores file content.
	CapabilityStorage Capability = "storage"

	// CapabilityPersistent marks a backend whose content survives Close.
	CapabilityPersistent Capability = "persistent"

	// CapabilityReadOnly marks a backend that rejects mutations.
	CapabilityReadOnly Capability = "readonly"
)

// Capabilities describes what a backend supports and its practical limits.
type Capabilities struct {
	Capabilities []Capability

	// MaxObjectSize is the largest object the backend can store, in bytes.
	// Zero means no known limit.
	MaxObjectSize int64
}

// Contains checks whether the capability list includes c.
func (bc *Capabilities) Contains(c Capability) bool {
	for _, capability := range bc.Capabilities {
		if capability == c {
			return true
		}
	}

	return false
}
