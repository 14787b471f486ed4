package seeder

import (
	"github.com/lib/pq"

	"github.com/clinicore/clinic-api/internal/model"
)

// permissionCatalog is the seeded permission set. Seeding upserts by name,
// so edits here roll out on the next setup run without touching existing
// role grants.
var permissionCatalog = []model.Permission{
	// users
	{Name: "users.view", DisplayName: "View Users", Module: model.ModuleUsers, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "users.create", DisplayName: "Create Users", Module: model.ModuleUsers, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"users.view"}},
	{Name: "users.edit", DisplayName: "Edit Users", Module: model.ModuleUsers, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"users.view"}},
	{Name: "users.delete", DisplayName: "Delete Users", Module: model.ModuleUsers, Action: model.ActionDelete, Level: model.LevelDelete, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"users.view"}},
	{Name: "users.manage_permissions", DisplayName: "Manage User Permissions", Module: model.ModuleUsers, Action: model.ActionManagePerms, Level: model.LevelFull, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"users.edit"}},

	// patients
	{Name: "patients.view", DisplayName: "View Patients", Module: model.ModulePatients, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "patients.create", DisplayName: "Register Patients", Module: model.ModulePatients, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"patients.view"}},
	{Name: "patients.edit", DisplayName: "Edit Patients", Module: model.ModulePatients, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"patients.view"}},
	{Name: "patients.delete", DisplayName: "Delete Patients", Module: model.ModulePatients, Action: model.ActionDelete, Level: model.LevelDelete, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"patients.view"}},
	{Name: "patients.archive", DisplayName: "Archive Patients", Module: model.ModulePatients, Action: model.ActionArchive, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"patients.view"}},
	{Name: "patients.export", DisplayName: "Export Patient Data", Module: model.ModulePatients, Action: model.ActionExport, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"patients.view"}},

	// appointments
	{Name: "appointments.view", DisplayName: "View Appointments", Module: model.ModuleAppointments, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "appointments.create", DisplayName: "Book Appointments", Module: model.ModuleAppointments, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"appointments.view"}},
	{Name: "appointments.edit", DisplayName: "Reschedule Appointments", Module: model.ModuleAppointments, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"appointments.view"}},
	{Name: "appointments.cancel", DisplayName: "Cancel Appointments", Module: model.ModuleAppointments, Action: model.ActionCancel, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"appointments.view"}},
	{Name: "appointments.complete", DisplayName: "Complete Appointments", Module: model.ModuleAppointments, Action: model.ActionComplete, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"appointments.view"}},

	// billing and money movement. Creating and approving the same invoice
	// or payment is a separation-of-duties violation, hence the mutual
	// conflicts.
	{Name: "billing.view", DisplayName: "View Billing", Module: model.ModuleBilling, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "billing.adjust", DisplayName: "Adjust Billing", Module: model.ModuleBilling, Action: model.ActionAdjust, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"billing.view"}},
	{Name: "invoices.view", DisplayName: "View Invoices", Module: model.ModuleInvoices, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "invoices.create", DisplayName: "Create Invoices", Module: model.ModuleInvoices, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"invoices.view"}, ConflictsWith: pq.StringArray{"invoices.approve"}},
	{Name: "invoices.edit", DisplayName: "Edit Invoices", Module: model.ModuleInvoices, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"invoices.view"}},
	{Name: "invoices.approve", DisplayName: "Approve Invoices", Module: model.ModuleInvoices, Action: model.ActionApprove, Level: model.LevelFull, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"invoices.view"}, ConflictsWith: pq.StringArray{"invoices.create"}},
	{Name: "payments.view", DisplayName: "View Payments", Module: model.ModulePayments, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "payments.create", DisplayName: "Record Payments", Module: model.ModulePayments, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"payments.view"}, ConflictsWith: pq.StringArray{"payments.refund"}},
	{Name: "payments.refund", DisplayName: "Refund Payments", Module: model.ModulePayments, Action: model.ActionRefund, Level: model.LevelFull, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"payments.view"}, ConflictsWith: pq.StringArray{"payments.create"}},

	// inventory
	{Name: "inventory.view", DisplayName: "View Inventory", Module: model.ModuleInventory, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "inventory.edit", DisplayName: "Edit Inventory", Module: model.ModuleInventory, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"inventory.view"}},
	{Name: "inventory.transfer", DisplayName: "Transfer Stock", Module: model.ModuleInventory, Action: model.ActionTransfer, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"inventory.view"}},

	// lab
	{Name: "lab.view", DisplayName: "View Lab Orders", Module: model.ModuleLab, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "lab.create", DisplayName: "Order Lab Tests", Module: model.ModuleLab, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"lab.view"}},
	{Name: "lab.upload", DisplayName: "Upload Lab Results", Module: model.ModuleLab, Action: model.ActionUpload, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"lab.view"}},

	// prescriptions
	{Name: "prescriptions.view", DisplayName: "View Prescriptions", Module: model.ModulePrescriptions, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "prescriptions.create", DisplayName: "Write Prescriptions", Module: model.ModulePrescriptions, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"prescriptions.view"}},
	{Name: "prescriptions.print", DisplayName: "Print Prescriptions", Module: model.ModulePrescriptions, Action: model.ActionPrint, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"prescriptions.view"}},

	// leads
	{Name: "leads.view", DisplayName: "View Leads", Module: model.ModuleLeads, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "leads.create", DisplayName: "Create Leads", Module: model.ModuleLeads, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"leads.view"}},
	{Name: "leads.assign", DisplayName: "Assign Leads", Module: model.ModuleLeads, Action: model.ActionAssign, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"leads.view"}},

	// training
	{Name: "training.view", DisplayName: "View Training", Module: model.ModuleTraining, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "training.schedule", DisplayName: "Schedule Training", Module: model.ModuleTraining, Action: model.ActionSchedule, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"training.view"}},

	// reports and analysis
	{Name: "reports.view", DisplayName: "View Reports", Module: model.ModuleReports, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "reports.export", DisplayName: "Export Reports", Module: model.ModuleReports, Action: model.ActionExport, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"reports.view"}},
	{Name: "analysis.view", DisplayName: "View Analyses", Module: model.ModuleAnalysis, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "analysis.analyze", DisplayName: "Run Analyses", Module: model.ModuleAnalysis, Action: model.ActionAnalyze, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"analysis.view"}},

	// roles, clinics, settings
	{Name: "roles.view", DisplayName: "View Roles", Module: model.ModuleRoles, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "roles.create", DisplayName: "Create Roles", Module: model.ModuleRoles, Action: model.ActionCreate, Level: model.LevelCreate, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"roles.view"}},
	{Name: "roles.edit", DisplayName: "Edit Roles", Module: model.ModuleRoles, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"roles.view"}},
	{Name: "roles.delete", DisplayName: "Delete Roles", Module: model.ModuleRoles, Action: model.ActionDelete, Level: model.LevelDelete, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"roles.view"}},
	{Name: "roles.manage_roles", DisplayName: "Manage Role Grants", Module: model.ModuleRoles, Action: model.ActionManageRoles, Level: model.LevelFull, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"roles.edit"}},
	{Name: "clinics.view", DisplayName: "View Clinic", Module: model.ModuleClinics, Action: model.ActionView, Level: model.LevelView, IsSystemPermission: true, AppliesToClinic: true},
	{Name: "clinics.edit", DisplayName: "Edit Clinic", Module: model.ModuleClinics, Action: model.ActionEdit, Level: model.LevelEdit, IsSystemPermission: true, AppliesToClinic: true, DependsOn: pq.StringArray{"clinics.view"}},
	{Name: "settings.manage_settings", DisplayName: "Manage Settings", Module: model.ModuleSettings, Action: model.ActionManageSettings, Level: model.LevelFull, IsSystemPermission: true, AppliesToClinic: true},
}
