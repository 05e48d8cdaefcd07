package common

// Capability is a permission required by a mutating entry point
type Capability int

const (
	// CapOwner is held only by the owner
	CapOwner Capability = iota
	// CapOperator is held by operators and by the owner
	CapOperator
	// CapAllowlisted is held by allowlisted accounts
	CapAllowlisted
	// CapLockRole is held by the accounts allowed to drive the custody lock
	CapLockRole
)

func (c Capability) String() string {
	switch c {
	case CapOwner:
		return "owner"
	case CapOperator:
		return "operator"
	case CapAllowlisted:
		return "allowlisted"
	case CapLockRole:
		return "lock-role"
	default:
		return "unknown"
	}
}
