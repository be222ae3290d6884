package enums

import "fmt"

// MemberRole represents a journey-level permissions role.
type MemberRole string

const (
	MemberRoleViewer MemberRole = "viewer"
	MemberRoleEditor MemberRole = "editor"
	MemberRoleOwner  MemberRole = "owner"
)

var validMemberRoles = []MemberRole{
	MemberRoleViewer,
	MemberRoleEditor,
	MemberRoleOwner,
}

var memberRoleRank = map[MemberRole]int{
	MemberRoleViewer: 1,
	MemberRoleEditor: 2,
	MemberRoleOwner:  3,
}

// String implements fmt.Stringer.
func (m MemberRole) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MemberRole.
func (m MemberRole) IsValid() bool {
	_, ok := memberRoleRank[m]
	return ok
}

// Satisfies reports whether the role grants at least the required level.
// Ordering is owner > editor > viewer.
func (m MemberRole) Satisfies(required MemberRole) bool {
	have, ok := memberRoleRank[m]
	if !ok {
		return false
	}
	want, ok := memberRoleRank[required]
	if !ok {
		return false
	}
	return have >= want
}

// ParseMemberRole converts raw input into a MemberRole.
func ParseMemberRole(value string) (MemberRole, error) {
	for _, candidate := range validMemberRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid member role %q", value)
}
