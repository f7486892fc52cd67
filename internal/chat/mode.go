package chat

import (
	"docchat/internal/models"
)

// Mode is the resolved conversation scope.
type Mode int

const (
	// ModeDocument answers from one document's chunks.
	ModeDocument Mode = iota
	// ModeAllDocs answers from every ready document the user can see.
	ModeAllDocs
	// ModeWeb answers with live web search, no document grounding.
	ModeWeb
)

func (m Mode) String() string {
	switch m {
	case ModeAllDocs:
		return "all-docs"
	case ModeWeb:
		return "web"
	default:
		return "document"
	}
}

// ResolveMode maps the requested mode onto a concrete scope. A thread's bound
// document wins over the request: threads never change scope after creation.
// requested is "document", "web" or anything else for auto.
func ResolveMode(requested, threadMimeType string, hasDocument bool) Mode {
	switch threadMimeType {
	case models.WebChatMimeType:
		return ModeWeb
	case models.AllDocsMimeType:
		return ModeAllDocs
	case "":
		// No thread yet; fall through to the request.
	default:
		return ModeDocument
	}

	switch requested {
	case "web":
		return ModeWeb
	case "document":
		if hasDocument {
			return ModeDocument
		}
		return ModeAllDocs
	default: // auto
		if hasDocument {
			return ModeDocument
		}
		return ModeWeb
	}
}
