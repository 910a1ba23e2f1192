package types

import (
	"slices"
)

// Permission is an access-control descriptor granted to (or requested for) a user.
// ex: { "action": "admin::roles.create", "subject": null, "conditions": ["admin::is-creator"] }
type Permission struct {
	ID int64 `json:"id,omitempty" yaml:"id,omitempty"`
	// Action is dot-delimited, the last segment names the action. Ex: "plugin::content-manager.explorer.create"
	Action string `json:"action" yaml:"action"`
	// Subject restricts the permission to a content type. Empty means any subject.
	Subject    string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
	// Conditions must be evaluated server side before the permission can be considered granted.
	Conditions []string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// Properties narrows a permission down to specific fields or locales.
type Properties struct {
	Fields  []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Locales []string `json:"locales,omitempty" yaml:"locales,omitempty"`
}

func (p Permission) HasConditions() bool {
	return len(p.Conditions) > 0
}

// Satisfies reports whether p is granted by a request for action on subject.
// A request without subject does not restrict the subject of p.
func (p Permission) Satisfies(action, subject string) bool {
	if p.Action != action {
		return false
	}
	return subject == "" || p.Subject == subject
}

// Clone returns a deep copy of p.
func (p Permission) Clone() Permission {
	p.Properties.Fields = slices.Clone(p.Properties.Fields)
	p.Properties.Locales = slices.Clone(p.Properties.Locales)
	p.Conditions = slices.Clone(p.Conditions)
	return p
}

// ClonePermissions deep copies a list of permissions, nil stays nil.
func ClonePermissions(perms []Permission) []Permission {
	if perms == nil {
		return nil
	}
	res := make([]Permission, len(perms))
	for i, p := range perms {
		res[i] = p.Clone()
	}
	return res
}
