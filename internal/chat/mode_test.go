package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docchat/internal/models"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name        string
		requested   string
		threadMime  string
		hasDocument bool
		want        Mode
	}{
		{"auto with document", "", "", true, ModeDocument},
		{"auto without document", "", "", false, ModeWeb},
		{"explicit web", "web", "", false, ModeWeb},
		{"explicit web ignores document", "web", "", true, ModeWeb},
		{"explicit document with id", "document", "", true, ModeDocument},
		{"explicit document without id widens", "document", "", false, ModeAllDocs},
		{"web thread pins web", "document", models.WebChatMimeType, true, ModeWeb},
		{"all-docs thread pins all-docs", "web", models.AllDocsMimeType, true, ModeAllDocs},
		{"pdf thread pins document", "web", "application/pdf", true, ModeDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(tt.requested, tt.threadMime, tt.hasDocument))
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "document", ModeDocument.String())
	assert.Equal(t, "all-docs", ModeAllDocs.String())
	assert.Equal(t, "web", ModeWeb.String())
}
