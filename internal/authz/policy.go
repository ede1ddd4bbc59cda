// Package authz holds the authorization policy: a pure decision function
// answering whether an actor may perform an action on a resource.
//
// Read scoping for owned resources (never listing another user's items or
// outfits) is handled by owner-filtered store queries; the policy gates
// everything else uniformly across service methods.
package authz

// Action is the operation an actor wants to perform.
type Action int

const (
	ActionRead Action = iota + 1
	ActionCreate
	ActionUpdate
	ActionDelete
)

// Resource is the kind of entity the action targets.
type Resource int

const (
	ResourceCategory Resource = iota + 1
	ResourceClothingItem
	ResourceOutfit
)

// AdminRole is the role string granting category write access.
const AdminRole = "admin"

// Actor identifies the entity issuing a request. The zero value is the
// anonymous actor.
type Actor struct {
	ID            int
	Role          string
	Authenticated bool
}

// IsAdmin reports whether the actor carries the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Authenticated && a.Role == AdminRole
}

// Anonymous is the unauthenticated actor.
var Anonymous = Actor{}

// CanAccess decides whether actor may perform action on a resource of the
// given kind owned by ownerID. ownerID is ignored for categories, which are
// shared reference data.
func CanAccess(actor Actor, resource Resource, action Action, ownerID int) bool {
	switch resource {
	case ResourceCategory:
		if action == ActionRead {
			return true
		}
		return actor.IsAdmin()
	case ResourceClothingItem, ResourceOutfit:
		if !actor.Authenticated {
			return false
		}
		if action == ActionRead {
			return true
		}
		return actor.ID == ownerID
	default:
		return false
	}
}
