// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package user

import "github.com/wingedpig/burrow/internal/json"

// Privilege is a bitmask of administrative grants.
type Privilege int

const (
	PrivDeactivate Privilege = 1 << iota
	PrivIssueTokens
	PrivConfig
	PrivGrantPrivileges
	PrivProcControl
	PrivAlias

	PrivNone Privilege = 0
	PrivAll            = PrivDeactivate | PrivIssueTokens | PrivConfig |
		PrivGrantPrivileges | PrivProcControl | PrivAlias
)

var privilegeNames = []struct {
	bit  Privilege
	name string
}{
	{PrivDeactivate, "DEACTIVATE"},
	{PrivIssueTokens, "ISSUE_TOKENS"},
	{PrivConfig, "CONFIG"},
	{PrivGrantPrivileges, "GRANT_PRIVILEGES"},
	{PrivProcControl, "PROC_CONTROL"},
	{PrivAlias, "ALIAS"},
}

// EncodePrivileges renders a bitmask as a JSON array of grant names. The
// full mask collapses to the single name "ALL".
func EncodePrivileges(p Privilege) *json.Value {
	arr := json.ArrayValue()
	if p&PrivAll == PrivAll {
		arr.Append(json.StringValue("ALL"))
		return arr
	}
	for _, pn := range privilegeNames {
		if p&pn.bit != 0 {
			arr.Append(json.StringValue(pn.name))
		}
	}
	return arr
}

// DecodePrivileges parses a JSON array of grant names into a bitmask.
// Unknown names are ignored.
func DecodePrivileges(v *json.Value) Privilege {
	var p Privilege
	for _, elem := range v.AsArray() {
		name := elem.AsString()
		if name == "ALL" {
			return PrivAll
		}
		for _, pn := range privilegeNames {
			if pn.name == name {
				p |= pn.bit
			}
		}
	}
	return p
}

// Privileges returns the user's grants.
func (u *User) Privileges() Privilege {
	return DecodePrivileges(u.ref.Json().Get("privileges"))
}

// SetPrivileges replaces the user's grants. An empty mask removes the
// field entirely.
func (u *User) SetPrivileges(p Privilege) {
	if p == PrivNone {
		u.ref.Json().Delete("privileges")
		return
	}
	u.ref.Json().Set("privileges", EncodePrivileges(p))
}
