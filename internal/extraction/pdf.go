package extraction

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF walks pages in order and concatenates their text. Any page that
// fails to parse marks the whole document corrupt rather than returning a
// silently truncated result.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", newError(KindCorrupt, "failed to open PDF", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", newError(KindCorrupt, fmt.Sprintf("page %d is unreadable", i), nil)
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", newError(KindCorrupt, fmt.Sprintf("failed to extract page %d", i), err)
		}
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	return normalizeWhitespace(sb.String()), nil
}
