package services

// Action is something a caller asks to do with a resource.
type Action int

const (
	// ActOwn acts on a resource of the caller's own.
	ActOwn Action = iota
	// ActAdmin acts on any resource.
	ActAdmin
)

// Can reports whether identity may perform action on a resource owned by ownerID.
// Administrators may do anything; everyone else only acts on their own resources.
func Can(identity Identity, action Action, ownerID uint) bool {
	if identity.ID == 0 {
		return false
	}
	switch action {
	case ActOwn:
		return identity.Admin || identity.ID == ownerID
	case ActAdmin:
		return identity.Admin
	default:
		return false
	}
}
