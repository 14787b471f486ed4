package model

import (
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"
)

// PermissionNamePattern constrains permission names to the module.action form.
var PermissionNamePattern = regexp.MustCompile(`^[a-z_]+\.[a-z_]+$`)

// PermissionModule is the closed set of feature modules a permission can belong to.
type PermissionModule string

const (
	ModuleUsers         PermissionModule = "users"
	ModulePatients      PermissionModule = "patients"
	ModuleAppointments  PermissionModule = "appointments"
	ModuleBilling       PermissionModule = "billing"
	ModuleInvoices      PermissionModule = "invoices"
	ModulePayments      PermissionModule = "payments"
	ModuleInventory     PermissionModule = "inventory"
	ModuleLab           PermissionModule = "lab"
	ModulePrescriptions PermissionModule = "prescriptions"
	ModuleLeads         PermissionModule = "leads"
	ModuleTraining      PermissionModule = "training"
	ModuleReports       PermissionModule = "reports"
	ModuleAnalysis      PermissionModule = "analysis"
	ModuleRoles         PermissionModule = "roles"
	ModuleClinics       PermissionModule = "clinics"
	ModuleSettings      PermissionModule = "settings"
)

// PermissionAction is the closed set of actions a permission can describe.
type PermissionAction string

const (
	ActionView           PermissionAction = "view"
	ActionCreate         PermissionAction = "create"
	ActionEdit           PermissionAction = "edit"
	ActionDelete         PermissionAction = "delete"
	ActionList           PermissionAction = "list"
	ActionExport         PermissionAction = "export"
	ActionImport         PermissionAction = "import"
	ActionApprove        PermissionAction = "approve"
	ActionReject         PermissionAction = "reject"
	ActionAssign         PermissionAction = "assign"
	ActionUnassign       PermissionAction = "unassign"
	ActionActivate       PermissionAction = "activate"
	ActionDeactivate     PermissionAction = "deactivate"
	ActionArchive        PermissionAction = "archive"
	ActionRestore        PermissionAction = "restore"
	ActionPrint          PermissionAction = "print"
	ActionSend           PermissionAction = "send"
	ActionRefund         PermissionAction = "refund"
	ActionAdjust         PermissionAction = "adjust"
	ActionTransfer       PermissionAction = "transfer"
	ActionSchedule       PermissionAction = "schedule"
	ActionCancel         PermissionAction = "cancel"
	ActionComplete       PermissionAction = "complete"
	ActionUpload         PermissionAction = "upload"
	ActionDownload       PermissionAction = "download"
	ActionAnalyze        PermissionAction = "analyze"
	ActionManageRoles    PermissionAction = "manage_roles"
	ActionManagePerms    PermissionAction = "manage_permissions"
	ActionManageSettings PermissionAction = "manage_settings"
)

// PermissionLevel describes the depth of access a permission grants.
type PermissionLevel string

const (
	LevelNone   PermissionLevel = "none"
	LevelView   PermissionLevel = "view"
	LevelCreate PermissionLevel = "create"
	LevelEdit   PermissionLevel = "edit"
	LevelDelete PermissionLevel = "delete"
	LevelFull   PermissionLevel = "full"
)

// Permission is a single catalog entry. Names are globally unique and follow
// the module.action pattern. DependsOn and ConflictsWith hold names of other
// catalog entries; their existence is checked at seed and grant time, not here.
type Permission struct {
	Base
	Name               string           `db:"name" json:"name"`
	DisplayName        string           `db:"display_name" json:"display_name"`
	Description        string           `db:"description" json:"description"`
	Module             PermissionModule `db:"module" json:"module"`
	SubModule          string           `db:"sub_module" json:"sub_module,omitempty"`
	Action             PermissionAction `db:"action" json:"action"`
	Level              PermissionLevel  `db:"level" json:"level"`
	IsSystemPermission bool             `db:"is_system_permission" json:"is_system_permission"`
	DependsOn          pq.StringArray   `db:"depends_on" json:"depends_on,omitempty"`
	ConflictsWith      pq.StringArray   `db:"conflicts_with" json:"conflicts_with,omitempty"`
	AppliesToClinic    bool             `db:"applies_to_clinic" json:"applies_to_clinic"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

var validModules = map[PermissionModule]bool{
	ModuleUsers: true, ModulePatients: true, ModuleAppointments: true,
	ModuleBilling: true, ModuleInvoices: true, ModulePayments: true,
	ModuleInventory: true, ModuleLab: true, ModulePrescriptions: true,
	ModuleLeads: true, ModuleTraining: true, ModuleReports: true,
	ModuleAnalysis: true, ModuleRoles: true, ModuleClinics: true,
	ModuleSettings: true,
}

var validLevels = map[PermissionLevel]bool{
	LevelNone: true, LevelView: true, LevelCreate: true,
	LevelEdit: true, LevelDelete: true, LevelFull: true,
}

// Validate checks the shape invariants of a catalog entry.
func (p *Permission) Validate() error {
	if !PermissionNamePattern.MatchString(p.Name) {
		return fmt.Errorf("permission name %q must match module.action pattern", p.Name)
	}
	if !validModules[p.Module] {
		return fmt.Errorf("unknown permission module %q", p.Module)
	}
	if !validLevels[p.Level] {
		return fmt.Errorf("unknown permission level %q", p.Level)
	}
	for _, dep := range p.DependsOn {
		if !PermissionNamePattern.MatchString(dep) {
			return fmt.Errorf("depends_on entry %q must match module.action pattern", dep)
		}
	}
	for _, conflict := range p.ConflictsWith {
		if !PermissionNamePattern.MatchString(conflict) {
			return fmt.Errorf("conflicts_with entry %q must match module.action pattern", conflict)
		}
	}
	return nil
}

// GrantCheck is the result of evaluating whether a permission can be granted
// against an already-granted set.
type GrantCheck struct {
	CanGrant bool   `json:"can_grant"`
	Reason   string `json:"reason,omitempty"`
}
