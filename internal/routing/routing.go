// Package routing holds the Nota Dinas approval chain rules. It has no
// storage dependencies; RoutingService in the service package applies these
// rules inside database transactions.
package routing

import (
	"errors"
	"fmt"

	"github.com/mautops/nota-esign/internal/model"
)

var (
	// ErrAsistenNotAssigned SKPD 未配置 Asisten
	ErrAsistenNotAssigned = errors.New("skpd has no asisten assigned")
	// ErrInvalidTarget 缺少或无效的发送目标
	ErrInvalidTarget = errors.New("invalid transmittal target")
	// ErrTerminal 已结束的公文不可再流转
	ErrTerminal = errors.New("nota has reached a terminal stage")
	// ErrRoleNotAllowed 当前角色不允许该操作
	ErrRoleNotAllowed = errors.New("role is not allowed to perform this transition")
	// ErrInvalidDecision 无效的审批决定
	ErrInvalidDecision = errors.New("decision must be disetujui or ditolak")
	// ErrNoteRequired 退回必须填写说明
	ErrNoteRequired = errors.New("note is required")
	// ErrNotEditable 公文状态不可编辑
	ErrNotEditable = errors.New("nota can only be changed while draft or dikembalikan")
)

// chain 固定的流转链
var chain = map[model.Stage]model.Stage{
	model.StageSkpd:    model.StageAsisten,
	model.StageAsisten: model.StageSekda,
	model.StageSekda:   model.StageBupati,
}

// NextStage returns the destination of a send from current. Stages on the
// fixed chain ignore requested. Any other non-terminal stage needs an
// explicit approver target; the way back to skpd is Return.
func NextStage(current, requested model.Stage, skpdHasAsisten bool) (model.Stage, error) {
	if current == model.StageSelesai {
		return "", ErrTerminal
	}
	if current == model.StageSkpd && !skpdHasAsisten {
		return "", ErrAsistenNotAssigned
	}
	if next, ok := chain[current]; ok {
		return next, nil
	}
	switch requested {
	case model.StageAsisten, model.StageSekda, model.StageBupati:
		return requested, nil
	default:
		return "", fmt.Errorf("%w: %q from stage %q", ErrInvalidTarget, requested, current)
	}
}

// CanSend reports whether a user with role may send a nota sitting at stage.
func CanSend(role model.Role, stage model.Stage) bool {
	switch role {
	case model.RoleSkpd:
		return stage == model.StageSkpd
	case model.RoleAsisten:
		return stage == model.StageAsisten
	case model.RoleSekda:
		return stage == model.StageSekda
	case model.RoleBupati:
		return stage == model.StageBupati
	default:
		return false
	}
}

// ApprovalSequence returns the urutan recorded for an approver role.
func ApprovalSequence(role model.Role) (int, bool) {
	switch role {
	case model.RoleAsisten:
		return model.UrutanAsisten, true
	case model.RoleSekda:
		return model.UrutanSekda, true
	case model.RoleBupati:
		return model.UrutanBupati, true
	default:
		return 0, false
	}
}

// RecordsApprovalOnSend reports whether a forward send by role implies approval.
func RecordsApprovalOnSend(role model.Role) bool {
	return role == model.RoleAsisten || role == model.RoleSekda
}

// CheckReturn validates a return to SKPD.
func CheckReturn(role model.Role, stage model.Stage, note string) error {
	switch role {
	case model.RoleAsisten, model.RoleSekda, model.RoleBupati:
	default:
		return ErrRoleNotAllowed
	}
	if stage == model.StageSelesai {
		return ErrTerminal
	}
	if note == "" {
		return ErrNoteRequired
	}
	return nil
}

// CheckDecision validates a final decision and returns the resulting status.
func CheckDecision(role model.Role, stage model.Stage, decision model.Status) (model.Status, error) {
	if role != model.RoleBupati {
		return "", ErrRoleNotAllowed
	}
	if stage == model.StageSelesai {
		return "", ErrTerminal
	}
	if stage != model.StageBupati {
		return "", fmt.Errorf("%w: nota is at stage %q", ErrRoleNotAllowed, stage)
	}
	switch decision {
	case model.StatusDisetujui, model.StatusDitolak:
		return decision, nil
	default:
		return "", ErrInvalidDecision
	}
}

// DecisionNote returns note, or the default note for decision when empty.
func DecisionNote(decision model.Status, note string) string {
	if note != "" {
		return note
	}
	return fmt.Sprintf("Nota telah %s oleh Bupati.", decision)
}

// CheckEditable 检查公文是否可编辑或删除
func CheckEditable(status model.Status) error {
	if !status.Editable() {
		return ErrNotEditable
	}
	return nil
}

// Submit returns the position of a nota being created (current empty) or
// edited. Only draft and dikembalikan notas may be resubmitted; the stage is
// always skpd.
func Submit(current model.Status) (model.Stage, model.Status, error) {
	switch current {
	case "":
		return model.StageSkpd, model.StatusDraft, nil
	case model.StatusDraft, model.StatusDikembalikan:
		return model.StageSkpd, current, nil
	default:
		return "", "", ErrNotEditable
	}
}
