package routing

import (
	"errors"

	"github.com/mautops/nota-esign/internal/model"
)

// ErrRoleUnknown 未知角色，拒绝访问
var ErrRoleUnknown = errors.New("unknown role")

// Scope describes the nota rows a user may list. A zero-valued field is not
// applied as a filter.
type Scope struct {
	All              bool
	SkpdID           *uint
	Statuses         []model.Status
	Stage            model.Stage
	SupervisedByUser *uint // skpds.asisten_id
}

// VisibilityFor returns the listing scope for user.
func VisibilityFor(user *model.User) (Scope, error) {
	if user == nil {
		return Scope{}, ErrRoleUnknown
	}
	switch user.Role {
	case model.RoleAdmin:
		return Scope{All: true}, nil
	case model.RoleSkpd:
		skpdID := uint(0)
		if user.SkpdID != nil {
			skpdID = *user.SkpdID
		}
		return Scope{
			SkpdID:   &skpdID,
			Statuses: []model.Status{model.StatusDraft, model.StatusDikembalikan, model.StatusProses},
		}, nil
	case model.RoleAsisten:
		id := user.ID
		return Scope{
			Statuses:         []model.Status{model.StatusProses},
			Stage:            model.StageAsisten,
			SupervisedByUser: &id,
		}, nil
	case model.RoleSekda:
		return Scope{Statuses: []model.Status{model.StatusProses}, Stage: model.StageSekda}, nil
	case model.RoleBupati:
		return Scope{Statuses: []model.Status{model.StatusProses}, Stage: model.StageBupati}, nil
	default:
		return Scope{}, ErrRoleUnknown
	}
}
