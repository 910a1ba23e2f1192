package actions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionName(t *testing.T) {
	tests := []struct {
		name   string
		action string
		want   string
		key    string
	}{
		{
			name:   "single word",
			action: "admin::roles.create",
			want:   "Create",
			key:    "canCreate",
		},
		{
			name:   "hyphenated",
			action: "admin::roles.create-draft",
			want:   "CreateDraft",
			key:    "canCreateDraft",
		},
		{
			name:   "last segment only",
			action: "plugin::content-manager.explorer.read",
			want:   "Read",
			key:    "canRead",
		},
		{
			name:   "many parts",
			action: "plugin::upload.configure-view.and-more",
			want:   "AndMore",
			key:    "canAndMore",
		},
		{
			name:   "empty parts are skipped",
			action: "admin::users.--read--all",
			want:   "ReadAll",
			key:    "canReadAll",
		},
		{
			name:   "already capitalized",
			action: "admin::users.Read",
			want:   "Read",
			key:    "canRead",
		},
		{
			name:   "no dot",
			action: "admin::marketplace",
			want:   "",
			key:    "can",
		},
		{
			name:   "trailing dot",
			action: "admin::roles.",
			want:   "",
			key:    "can",
		},
		{
			name:   "empty",
			action: "",
			want:   "",
			key:    "can",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ActionName(tt.action))
			assert.Equal(t, tt.key, Key(tt.action))
		})
	}
}
