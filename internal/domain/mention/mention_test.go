package mention_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/agentfleet/coordinator/internal/domain/mention"
)

func TestExtractHandles(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "multiple distinct handles",
			body: "cc @dev_a @dev_b @ghost",
			want: []string{"dev_a", "dev_b", "ghost"},
		},
		{
			name: "case-insensitive dedup",
			body: "ping @Dev_A and also @dev_a again",
			want: []string{"dev_a"},
		},
		{
			name: "no handles",
			body: "nothing to see here",
			want: nil,
		},
		{
			name: "handle with dots and hyphens",
			body: "see @qa-lead.senior for sign-off",
			want: []string{"qa-lead.senior"},
		},
		{
			name: "bare at sign is not a handle",
			body: "price is $5 @ the store",
			want: nil,
		},
		{
			name: "preserves first-occurrence order",
			body: "@zed then @alice then @zed again",
			want: []string{"zed", "alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHandles(tt.body))
		})
	}
}

func TestMentionIsRead(t *testing.T) {
	m := New("proj-1", SourceDocument, "doc-1", "dev_a", nil)
	assert.False(t, m.IsRead())
}
