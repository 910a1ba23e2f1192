package actions

import (
	"github.com/grafana/rbac-actions/types"
)

// AllowedActions maps keys such as "canCreate" to whether the user may perform the action.
type AllowedActions map[string]bool

// Can reports whether the action with the given derived name is allowed.
// ex: Can("Create") reads the "canCreate" entry.
func (a AllowedActions) Can(name string) bool {
	return a[keyPrefix+name]
}

// Shape lists every requested action as denied, then allows the ones found in granted.
// The keys only ever come from requested.
func Shape(requested, granted []types.Permission) AllowedActions {
	res := make(AllowedActions, len(requested))
	for _, p := range requested {
		res[Key(p.Action)] = false
	}

	for _, p := range granted {
		k := Key(p.Action)
		if _, ok := res[k]; ok {
			res[k] = true
		}
	}
	return res
}
