package extract

import (
	"bytes"
	"fmt"

	"code.sajari.com/docconv"
)

// extractDocx pulls the raw text out of a DOCX archive via docconv.
func extractDocx(data []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("docx extract: %w", err)
	}
	return text, nil
}
