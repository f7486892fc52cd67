package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
)

// docconvPDF is the primary tier: docconv's PDF text-layer conversion.
type docconvPDF struct{}

func (d *docconvPDF) Name() string { return "docconv" }

func (d *docconvPDF) Extract(_ context.Context, data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), "application/pdf", false)
	if err != nil {
		return "", fmt.Errorf("docconv convert: %w", err)
	}
	return res.Body, nil
}

// pdftotextExec is the secondary tier: a direct pdftotext pass over the whole
// file. Some PDFs with a damaged metadata dictionary still yield a text layer
// this way.
type pdftotextExec struct{}

func (p *pdftotextExec) Name() string { return "pdftotext" }

func (p *pdftotextExec) Extract(ctx context.Context, data []byte) (string, error) {
	path, cleanup, err := writeTempPDF(data)
	if err != nil {
		return "", err
	}
	defer cleanup()

	cmd := exec.CommandContext(ctx, "pdftotext", "-enc", "UTF-8", "-nopgbrk", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// visionOCR is the last tier: render the first page to PNG and have a
// vision-capable model transcribe it verbatim. Best effort by design; any
// failure yields an empty string rather than an error so the caller can
// report a plain "no text" outcome.
type visionOCR struct {
	transcriber interface {
		TranscribeImage(ctx context.Context, png []byte) (string, error)
	}
}

func (v *visionOCR) Name() string { return "vision-ocr" }

func (v *visionOCR) Extract(ctx context.Context, data []byte) (string, error) {
	png, err := renderFirstPagePNG(ctx, data)
	if err != nil {
		return "", err
	}
	text, err := v.transcriber.TranscribeImage(ctx, png)
	if err != nil {
		return "", fmt.Errorf("vision transcribe: %w", err)
	}
	return text, nil
}

// renderFirstPagePNG rasterizes page 1 via pdftoppm into a temp directory and
// returns the PNG bytes.
func renderFirstPagePNG(ctx context.Context, data []byte) ([]byte, error) {
	path, cleanup, err := writeTempPDF(data)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	outDir, err := os.MkdirTemp("", "dochat-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	prefix := filepath.Join(outDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-f", "1", "-l", "1", "-r", "150", "-png", path, prefix)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w", err)
	}

	matches, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no image")
	}
	return os.ReadFile(matches[0])
}

func writeTempPDF(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "dochat-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
