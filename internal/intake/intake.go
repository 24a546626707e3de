// Package intake classifies uploaded files and derives the clustering
// parameter from the number of sequence records they contain.
package intake

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the coarse classification of an uploaded file.
type Kind string

const (
	KindSequence Kind = "sequence"
	KindImage    Kind = "image"
)

// RecordMarker starts a new record in FASTA-style sequence text.
const RecordMarker = ">"

var (
	ErrEmptyFile    = errors.New("uploaded file appears empty or unreadable")
	ErrFileTooLarge = errors.New("uploaded file is too large")
)

var sequenceExts = map[string]bool{
	"fasta": true,
	"fa":    true,
	"fastq": true,
	"fq":    true,
	"txt":   true,
}

// Metadata describes a selected file. It is available immediately after
// selection and never requires a network call.
type Metadata struct {
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	SelectedAt  time.Time `json:"selected_at"`
	Kind        Kind      `json:"kind"`
	RecordCount int       `json:"record_count"`
}

// Classify reports whether a file is sequence text or is treated as a
// single-record image, based on its extension and declared MIME type.
func Classify(name, mimeType string) Kind {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if sequenceExts[ext] || baseMediaType(mimeType) == "text/plain" {
		return KindSequence
	}
	return KindImage
}

// CountRecords counts lines whose trimmed content starts with the record
// marker. Text with no markers but some non-blank content counts as one
// unlabeled record; blank text counts as zero.
func CountRecords(content []byte) int {
	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	count := 0
	hasContent := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		hasContent = true
		if strings.HasPrefix(trimmed, RecordMarker) {
			count++
		}
	}

	if count > 0 {
		return count
	}
	if hasContent {
		return 1
	}
	return 0
}

// ClusterParam bounds the requested cluster count by the detected number of
// records: max(1, min(requested, detected)). The warning is non-empty only
// when the requested value had to be reduced.
func ClusterParam(requested, detected int) (int, string) {
	k := requested
	if detected < k {
		k = detected
	}
	if k < 1 {
		k = 1
	}
	if k < requested {
		return k, fmt.Sprintf("Requested k=%d reduced to k=%d because only %d sample(s) were detected.",
			requested, k, detected)
	}
	return k, ""
}

// Inspect builds the selection metadata for a file. An empty declared MIME
// type is replaced by one sniffed from the content. Image files always count
// as a single record.
func Inspect(name, mimeType string, content []byte, selectedAt time.Time) Metadata {
	if strings.TrimSpace(mimeType) == "" {
		mimeType = mimetype.Detect(content).String()
	}

	md := Metadata{
		Name:       name,
		MimeType:   mimeType,
		Size:       int64(len(content)),
		SelectedAt: selectedAt,
		Kind:       Classify(name, mimeType),
	}
	if md.Kind == KindSequence {
		md.RecordCount = CountRecords(content)
	} else {
		md.RecordCount = 1
	}
	return md
}

// Validate refuses files that cannot be submitted. maxBytes <= 0 disables the size check.
func Validate(md Metadata, maxBytes int64) error {
	if maxBytes > 0 && md.Size > maxBytes {
		return fmt.Errorf("%w: %s exceeds the %s limit", ErrFileTooLarge, HumanSize(md.Size), HumanSize(maxBytes))
	}
	if md.RecordCount == 0 {
		return fmt.Errorf("%w: please check the file and try again", ErrEmptyFile)
	}
	return nil
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// HumanSize formats a byte count with two decimals in 1024-based units.
func HumanSize(bytes int64) string {
	if bytes <= 0 {
		return "0.00 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/math.Pow(1024, float64(i)), sizeUnits[i])
}

func baseMediaType(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
