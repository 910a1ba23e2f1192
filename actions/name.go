package actions

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const keyPrefix = "can"

// ActionName derives a camel cased name from the last segment of a dot-delimited action.
// ex: "admin::roles.create-draft" => "CreateDraft"
// Actions without a dot have no name.
func ActionName(action string) string {
	idx := strings.LastIndexByte(action, '.')
	if idx < 0 {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(action[idx+1:], "-") {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	return b.String()
}

// Key returns the allowed actions key of an action.
// ex: "admin::roles.create" => "canCreate"
func Key(action string) string {
	return keyPrefix + ActionName(action)
}
