package seeder

import "github.com/clinicore/clinic-api/internal/model"

// roleSeed describes one system role. Inheritance is expressed by parent
// name and resolved to an ID during seeding, after all roles exist.
type roleSeed struct {
	Name         string
	DisplayName  string
	Description  string
	InheritsFrom string
	Priority     int
	Color        string
	Icon         string
	Permissions  []string
}

var systemRoles = []roleSeed{
	{
		Name:        model.RoleStaff,
		DisplayName: "Staff",
		Description: "Baseline clinic access",
		Priority:    10,
		Color:       "#9e9e9e",
		Icon:        "user",
		Permissions: []string{"patients.view", "appointments.view"},
	},
	{
		Name:         model.RoleReceptionist,
		DisplayName:  "Receptionist",
		Description:  "Front desk: scheduling and intake",
		InheritsFrom: model.RoleStaff,
		Priority:     20,
		Color:        "#03a9f4",
		Icon:         "phone",
		Permissions: []string{
			"patients.create",
			"appointments.create", "appointments.edit", "appointments.cancel",
			"leads.view", "leads.create",
		},
	},
	{
		Name:         model.RoleNurse,
		DisplayName:  "Nurse",
		Description:  "Clinical support",
		InheritsFrom: model.RoleStaff,
		Priority:     30,
		Color:        "#4caf50",
		Icon:         "heart",
		Permissions: []string{
			"patients.edit",
			"appointments.edit", "appointments.complete",
			"prescriptions.view", "lab.view", "inventory.view",
		},
	},
	{
		Name:         model.RoleAccountant,
		DisplayName:  "Accountant",
		Description:  "Billing and payments",
		InheritsFrom: model.RoleStaff,
		Priority:     40,
		Color:        "#ff9800",
		Icon:         "calculator",
		Permissions: []string{
			"billing.view", "billing.adjust",
			"invoices.view", "invoices.create", "invoices.edit",
			"payments.view", "payments.create",
			"reports.view", "reports.export",
		},
	},
	{
		Name:         model.RoleDoctor,
		DisplayName:  "Doctor",
		Description:  "Full clinical access",
		InheritsFrom: model.RoleNurse,
		Priority:     60,
		Color:        "#3f51b5",
		Icon:         "stethoscope",
		Permissions: []string{
			"patients.create", "patients.archive",
			"prescriptions.create", "prescriptions.print",
			"lab.create", "lab.upload",
			"analysis.view", "analysis.analyze",
			"reports.view",
		},
	},
	{
		Name:        model.RoleAdmin,
		DisplayName: "Administrator",
		Description: "Clinic administration",
		Priority:    90,
		Color:       "#f44336",
		Icon:        "shield",
		Permissions: []string{
			"users.view", "users.create", "users.edit", "users.delete", "users.manage_permissions",
			"patients.view", "patients.delete", "patients.export",
			"appointments.view",
			"roles.view", "roles.create", "roles.edit", "roles.delete", "roles.manage_roles",
			"clinics.view", "clinics.edit",
			"reports.view", "settings.manage_settings",
		},
	},
	{
		Name:        model.RoleSuperAdmin,
		DisplayName: "Super Administrator",
		Description: "Platform-wide administration",
		Priority:    100,
		Color:       "#212121",
		Icon:        "crown",
		Permissions: []string{},
	},
}
