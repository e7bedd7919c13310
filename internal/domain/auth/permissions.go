package auth

const (
	PermKPIRead      = "kpi.read"
	PermKPIWrite     = "kpi.write"
	PermKPIApprove   = "kpi.approve"
	PermKPIArchive   = "kpi.archive"
	PermSummaryRead  = "summary.read"
	PermSummaryWrite = "summary.write"
	PermDirRead      = "directory.read"
	PermDirWrite     = "directory.write"
	PermAuditRead    = "audit.read"
	PermSystemAdmin  = "admin.system"
)

var DefaultPermissions = []string{
	PermKPIRead,
	PermKPIWrite,
	PermKPIApprove,
	PermKPIArchive,
	PermSummaryRead,
	PermSummaryWrite,
	PermDirRead,
	PermDirWrite,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermKPIRead,
		PermKPIWrite,
		PermSummaryRead,
		PermDirRead,
	},
	RoleApprover: {
		PermKPIRead,
		PermKPIWrite,
		PermKPIApprove,
		PermSummaryRead,
		PermDirRead,
	},
	RoleModerator: {
		PermKPIRead,
		PermKPIWrite,
		PermKPIApprove,
		PermSummaryRead,
		PermSummaryWrite,
		PermDirRead,
	},
	RoleHRAdmin: {
		PermKPIRead,
		PermKPIWrite,
		PermKPIApprove,
		PermKPIArchive,
		PermSummaryRead,
		PermSummaryWrite,
		PermDirRead,
		PermDirWrite,
		PermAuditRead,
	},
	RolePlantAdmin: {
		PermKPIRead,
		PermKPIWrite,
		PermKPIApprove,
		PermKPIArchive,
		PermSummaryRead,
		PermSummaryWrite,
		PermDirRead,
		PermDirWrite,
		PermAuditRead,
	},
	RoleSuperAdmin: DefaultPermissions,
}
