package net

import "strings"

// PlayerRole is a set of roles held by a player.
type PlayerRole uint8

const (
	// RoleHost marks the player hosting the table.
	RoleHost PlayerRole = 1 << iota
	// RoleLocal marks the player of the local node. It is never transmitted.
	RoleLocal
	// RoleEditor marks the player in control of the table.
	RoleEditor
	// RoleEditorRequested marks a player waiting for control of the table.
	RoleEditorRequested
)

// Has reports whether all the roles in r are set.
func (p PlayerRole) Has(r PlayerRole) bool {
	return p&r == r
}

// String ...
func (p PlayerRole) String() string {
	var names []string
	if p.Has(RoleHost) {
		names = append(names, "Host")
	}
	if p.Has(RoleLocal) {
		names = append(names, "Local")
	}
	if p.Has(RoleEditor) {
		names = append(names, "Editor")
	}
	if p.Has(RoleEditorRequested) {
		names = append(names, "EditorRequested")
	}
	return strings.Join(names, "|")
}

// Player describes a participant at the table.
type Player struct {
	Name  string
	Roles PlayerRole
}

// HasRole ...
func (p Player) HasRole(r PlayerRole) bool {
	return p.Roles.Has(r)
}

// IsEditor ...
func (p Player) IsEditor() bool {
	return p.Roles.Has(RoleEditor)
}
