// Package extraction turns uploaded document files into plain text.
//
// Supported formats are PDF, EPUB and UTF-8 text. Each extractor validates
// the file before parsing so a mislabeled or truncated upload fails with a
// classified error instead of garbage text.
package extraction

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/metrics"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// DefaultMaxFileSize caps uploads at 50 MiB.
const DefaultMaxFileSize = 50 * 1024 * 1024

type Extractor struct {
	maxFileSize int64
}

func NewExtractor(maxFileSize int64) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Extractor{maxFileSize: maxFileSize}
}

// TypeForFilename maps a filename extension to a supported file type.
func TypeForFilename(filename string) (models.FileType, bool) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "", false
	}
	return models.ParseFileType(strings.ToLower(filename[idx+1:]))
}

// Validate checks size and magic bytes before any parsing happens. A file
// whose content does not match its claimed type is rejected as corrupt.
func (e *Extractor) Validate(data []byte, fileType models.FileType) error {
	if len(data) == 0 {
		return newError(KindCorrupt, "file is empty", nil)
	}
	if int64(len(data)) > e.maxFileSize {
		return newError(KindTooLarge,
			fmt.Sprintf("file size %d exceeds limit %d", len(data), e.maxFileSize), nil)
	}

	switch fileType {
	case models.FileTypePDF:
		if !bytes.HasPrefix(data, []byte("%PDF-")) {
			return newError(KindCorrupt, "missing PDF header", nil)
		}
	case models.FileTypeEPUB:
		if !bytes.HasPrefix(data, []byte("PK")) {
			return newError(KindCorrupt, "not a zip container", nil)
		}
	case models.FileTypeTXT:
		if !utf8.Valid(data) {
			return newError(KindEncoding, "text file is not valid UTF-8", nil)
		}
	default:
		return newError(KindUnsupportedType,
			fmt.Sprintf("unsupported file type %q", fileType), nil)
	}

	return nil
}

// Extract validates the file then returns its plain text content.
func (e *Extractor) Extract(data []byte, fileType models.FileType) (string, error) {
	if err := e.Validate(data, fileType); err != nil {
		metrics.ExtractionFailures.WithLabelValues(string(fileType)).Inc()
		return "", err
	}

	start := time.Now()
	var text string
	var err error

	switch fileType {
	case models.FileTypePDF:
		text, err = extractPDF(data)
	case models.FileTypeEPUB:
		text, err = extractEPUB(data)
	case models.FileTypeTXT:
		text = normalizeWhitespace(string(data))
	}

	if err != nil {
		metrics.ExtractionFailures.WithLabelValues(string(fileType)).Inc()
		return "", err
	}

	metrics.ExtractionDuration.WithLabelValues(string(fileType)).Observe(time.Since(start).Seconds())
	logger.Debug("Text extracted",
		zap.String("file_type", string(fileType)),
		zap.Int("bytes_in", len(data)),
		zap.Int("chars_out", len(text)),
	)

	return text, nil
}

// normalizeWhitespace collapses runs of whitespace into single spaces while
// preserving paragraph breaks.
func normalizeWhitespace(s string) string {
	paragraphs := strings.Split(s, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n\n")
}
