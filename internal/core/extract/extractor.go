package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docchat/internal/core"
)

// minMeaningfulLen is the character count below which PDF text-layer output
// is treated as empty and the next fallback tier runs.
const minMeaningfulLen = 20

// strategy is one extraction tier. Returning ("", nil) means "nothing found,
// try the next tier"; an error is logged and degrades the same way.
type strategy interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Extractor converts a raw document blob plus its declared MIME type into
// plain text. PDF extraction runs an ordered fallback chain ending in vision
// OCR; the chain never errors on its own, it yields an empty string so the
// ingestion pipeline can record a clear "no text" failure.
type Extractor struct {
	pdfChain []strategy
	logger   *slog.Logger
}

// New builds the extractor. The transcriber backs the final OCR tier and may
// be nil, in which case that tier is skipped.
func New(ocr core.VisionTranscriber) *Extractor {
	chain := []strategy{
		&docconvPDF{},
		&pdftotextExec{},
	}
	if ocr != nil {
		chain = append(chain, &visionOCR{transcriber: ocr})
	}
	return &Extractor{pdfChain: chain, logger: slog.Default()}
}

// Extract dispatches on the declared MIME type. Unrecognized types fail with
// core.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch kind(mimeType) {
	case kindPDF:
		return e.extractPDF(ctx, data), nil
	case kindDocx:
		return extractDocx(data)
	case kindText:
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, mimeType)
	}
}

// extractPDF walks the fallback chain until a tier yields meaningful text.
// Tier failures are swallowed so a broken parser degrades instead of failing
// the whole document; the pipeline treats a final empty string as
// "no extractable content".
func (e *Extractor) extractPDF(ctx context.Context, data []byte) string {
	var best string
	for _, s := range e.pdfChain {
		text, err := s.Extract(ctx, data)
		if err != nil {
			e.logger.WarnContext(ctx, "pdf extraction tier failed",
				"tier", s.Name(), "error", err)
			continue
		}
		if len(strings.TrimSpace(text)) >= minMeaningfulLen {
			return text
		}
		if best == "" {
			best = text
		}
	}
	return best
}

type mimeKind int

const (
	kindUnknown mimeKind = iota
	kindPDF
	kindDocx
	kindText
)

func kind(mimeType string) mimeKind {
	switch {
	case strings.Contains(mimeType, "pdf"):
		return kindPDF
	case strings.Contains(mimeType, "wordprocessingml"),
		strings.Contains(mimeType, "haansoft"):
		return kindDocx
	case strings.HasPrefix(mimeType, "text/"):
		return kindText
	default:
		return kindUnknown
	}
}
