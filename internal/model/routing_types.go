package model

// Role 用户角色
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSkpd    Role = "skpd"
	RoleAsisten Role = "asisten"
	RoleSekda   Role = "sekda"
	RoleBupati  Role = "bupati"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSkpd, RoleAsisten, RoleSekda, RoleBupati:
		return true
	default:
		return false
	}
}

// Stage 路由阶段 (tahap_saat_ini)
type Stage string

const (
	StageSkpd    Stage = "skpd"
	StageAsisten Stage = "asisten"
	StageSekda   Stage = "sekda"
	StageBupati  Stage = "bupati"
	StageSelesai Stage = "selesai"
)

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageSkpd, StageAsisten, StageSekda, StageBupati, StageSelesai:
		return true
	default:
		return false
	}
}

// Status 审批状态
type Status string

const (
	StatusDraft        Status = "draft"
	StatusProses       Status = "proses"
	StatusDisetujui    Status = "disetujui"
	StatusDitolak      Status = "ditolak"
	StatusDikembalikan Status = "dikembalikan"
)

// Editable reports whether a nota in this status may still be edited or deleted.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusDikembalikan
}
