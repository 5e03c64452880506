// Package permission holds the single role/action capability matrix for the
// engine. Roles and actions are enumerated variants, never free-form strings,
// and every endpoint evaluates the same matrix exactly once per request.
package permission

type Role int

const (
	RoleUnknown Role = iota
	RoleMember
	RoleStaff
	RoleAdmin
)

func ParseRole(s string) Role {
	switch s {
	case "member":
		return RoleMember
	case "staff":
		return RoleStaff
	case "admin":
		return RoleAdmin
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleStaff:
		return "staff"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

type Action int

const (
	ActionReserve Action = iota
	ActionApproveReservation
	ActionCancelOwnReservation
	ActionCancelAnyReservation
	ActionManageEquipment
	ActionScheduleMaintenance
	ActionViewUsage
	ActionSubmitRating
	ActionModerateRating
)

var matrix = map[Role]map[Action]bool{
	RoleMember: {
		ActionReserve:              true,
		ActionCancelOwnReservation: true,
		ActionSubmitRating:         true,
		ActionViewUsage:            true,
	},
	RoleStaff: {
		ActionReserve:              true,
		ActionCancelOwnReservation: true,
		ActionCancelAnyReservation: true,
		ActionScheduleMaintenance:  true,
		ActionModerateRating:       true,
		ActionSubmitRating:         true,
		ActionViewUsage:            true,
	},
	RoleAdmin: {
		ActionReserve:              true,
		ActionApproveReservation:   true,
		ActionCancelOwnReservation: true,
		ActionCancelAnyReservation: true,
		ActionManageEquipment:      true,
		ActionScheduleMaintenance:  true,
		ActionViewUsage:            true,
		ActionSubmitRating:         true,
		ActionModerateRating:       true,
	},
}

// Can reports whether the role may perform the action. Unknown roles can do
// nothing.
func Can(role Role, action Action) bool {
	perms, ok := matrix[role]
	if !ok {
		return false
	}
	return perms[action]
}
