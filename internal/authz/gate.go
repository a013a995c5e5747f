package authz

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// Operation identifies a gated action. Handlers and services consult the same
// table so route guards and business rules cannot drift apart.
type Operation string

const (
	OpTicketCreate         Operation = "ticket.create"
	OpTicketCreateForOther Operation = "ticket.create_for_other"
	OpTicketEditAny        Operation = "ticket.edit_any"
	OpTicketEditOwn        Operation = "ticket.edit_own"
	OpTicketDelete         Operation = "ticket.delete"
	OpTicketAssign         Operation = "ticket.assign"
	OpCommentInternal      Operation = "comment.internal"
	OpUserManage           Operation = "user.manage"
	OpUserDirectory        Operation = "user.directory"
	OpUserChangeRole       Operation = "user.change_role"
	OpUserDeactivate       Operation = "user.deactivate"
	OpBroadcast            Operation = "notification.broadcast"
)

var permissions = map[Operation]map[domain.UserRole]bool{
	OpTicketCreate: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true, domain.RoleUser: true,
	},
	OpTicketCreateForOther: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true,
	},
	OpTicketEditAny: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true,
	},
	OpTicketEditOwn: {
		domain.RoleUser: true,
	},
	OpTicketDelete: {
		domain.RoleAdmin: true,
	},
	OpTicketAssign: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true,
	},
	OpCommentInternal: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true,
	},
	OpUserManage: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true,
	},
	OpUserDirectory: {
		domain.RoleAdmin: true, domain.RoleCoordinator: true, domain.RoleManager: true, domain.RoleUser: true,
	},
	OpUserChangeRole: {
		domain.RoleAdmin: true,
	},
	OpUserDeactivate: {
		domain.RoleAdmin: true,
	},
	OpBroadcast: {
		domain.RoleAdmin: true,
	},
}

// Can reports whether the role may perform the operation.
func Can(role domain.UserRole, op Operation) bool {
	return permissions[op][role]
}

// Authorize returns a Forbidden error when the role may not perform the
// operation. Callers must invoke it before attempting any mutation.
func Authorize(role domain.UserRole, op Operation) error {
	if !Can(role, op) {
		return apperrors.NewForbidden("operation not permitted for role")
	}
	return nil
}

// CanEditTicket combines the edit-any and edit-own rules for a loaded ticket.
func CanEditTicket(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if Can(actor.Role, OpTicketEditAny) {
		return true
	}
	return Can(actor.Role, OpTicketEditOwn) && ticket.CreatedByID == actor.ID
}
