package common

// File modes used when writing output
const (
	// FilePermissionSecure is for files that may hold credentials or logs
	FilePermissionSecure = 0600

	// FilePermissionNormal is for reports and metrics
	FilePermissionNormal = 0644

	DirPermissionNormal = 0755
)
