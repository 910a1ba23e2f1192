package actions

import (
	"sort"

	"github.com/grafana/rbac-actions/types"
)

const groupedInputDeprecation = "grouping permissions by name is deprecated, pass a flat list of permissions instead"

type inputKind int

const (
	kindList inputKind = iota
	kindGroups
)

// Group is a named set of permissions, used by the deprecated grouped input.
type Group struct {
	Name        string
	Permissions []types.Permission
}

// Input is the set of permissions to resolve into allowed actions.
// Build one with List, or with Groups for callers still on the grouped form.
type Input struct {
	kind   inputKind
	list   []types.Permission
	groups []Group
}

func List(permissions ...types.Permission) Input {
	return Input{kind: kindList, list: permissions}
}

// Groups builds an input from named groups, flattened in the given order.
//
// Deprecated: use List.
func Groups(groups ...Group) Input {
	return Input{kind: kindGroups, groups: groups}
}

// GroupsFromMap builds a grouped input from a map, groups are flattened by name order.
//
// Deprecated: use List.
func GroupsFromMap(m map[string][]types.Permission) Input {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]Group, 0, len(names))
	for _, name := range names {
		groups = append(groups, Group{Name: name, Permissions: m[name]})
	}
	return Groups(groups...)
}

// Flatten returns a copy of the permissions of the input as a single ordered list.
// The grouped form warns through w, which may be nil.
func (in Input) Flatten(w *OnceWarner) []types.Permission {
	if in.kind == kindList {
		return types.ClonePermissions(in.list)
	}

	if w != nil {
		w.Warn(groupedInputDeprecation)
	}

	var n int
	for _, g := range in.groups {
		n += len(g.Permissions)
	}
	res := make([]types.Permission, 0, n)
	for _, g := range in.groups {
		for _, p := range g.Permissions {
			res = append(res, p.Clone())
		}
	}
	return res
}
