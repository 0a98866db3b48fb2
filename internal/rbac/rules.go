package rbac

// Coarse role gate in front of the handlers. Ownership of individual content
// nodes is checked separately by walking the hierarchy up to the course.
var RolePermissions = map[string][]string{
	"student": {
		"catalog:view",
		"course:enroll",
		"module:complete",
		"lesson:complete",
		"quiz:view",
		"quiz:take",
	},
	"professor": {
		"catalog:view",
		"course:create",
		"module:create",
		"module:update",
		"module:delete",
		"lesson:create",
		"lesson:update",
		"lesson:delete",
		"quiz:create",
		"quiz:append",
		"quiz:view",
	},
}
