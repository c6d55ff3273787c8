package sitter

// QueryRole names what a query file is used for.
type QueryRole string

const (
	RoleHighlights QueryRole = "highlights"
	RoleFolds      QueryRole = "folds"
	RoleIndents    QueryRole = "indents"
	RoleInjections QueryRole = "injections"
	RoleLocals     QueryRole = "locals"
)

// QueryRoles lists every role in a stable order.
var QueryRoles = []QueryRole{RoleHighlights, RoleFolds, RoleIndents, RoleInjections, RoleLocals}

// FileName returns the conventional query file name for the role.
func (r QueryRole) FileName() string { return string(r) + ".scm" }

// ParseQueryRole maps a role name to a QueryRole.
func ParseQueryRole(name string) (QueryRole, bool) {
	for _, r := range QueryRoles {
		if string(r) == name {
			return r, true
		}
	}
	return "", false
}
